package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Server    ServerConfig    `mapstructure:"server"`
	Model     ModelConfig     `mapstructure:"model"`
	LogLevel  string          `mapstructure:"log_level"`
}

type PathsConfig struct {
	TokenizerModel string `mapstructure:"tokenizer_model"`
}

type TokenizerConfig struct {
	Engine        string   `mapstructure:"engine"`
	ControlTokens []string `mapstructure:"control_tokens"`
	AddBOS        bool     `mapstructure:"add_bos"`
	AddEOS        bool     `mapstructure:"add_eos"`
	Reverse       bool     `mapstructure:"reverse"`
	PrefixTokens  []string `mapstructure:"prefix_tokens"`
	SuffixTokens  []string `mapstructure:"suffix_tokens"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	WatchModel      bool   `mapstructure:"watch_model"`
}

type ModelConfig struct {
	Repo   string `mapstructure:"repo"`
	OutDir string `mapstructure:"out_dir"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			TokenizerModel: "models/tokenizer.model",
		},
		Tokenizer: TokenizerConfig{
			Engine:        "auto",
			ControlTokens: []string{},
			PrefixTokens:  []string{},
			SuffixTokens:  []string{},
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         4,
			MaxTextBytes:    16384,
			RequestTimeout:  10,
			ShutdownTimeout: 30,
			WatchModel:      false,
		},
		Model: ModelConfig{
			// Default repo has a pinned manifest; only its tokenizer.model is fetched.
			Repo:   "kyutai/pocket-tts-without-voice-cloning",
			OutDir: "models",
		},
		LogLevel: "info",
	}
}

// binding ties a config key to the flag that overrides it.
type binding struct {
	key  string
	flag string
}

var bindings = []binding{
	{"paths.tokenizer_model", "tokenizer-model"},
	{"tokenizer.engine", "engine"},
	{"tokenizer.control_tokens", "control-token"},
	{"tokenizer.add_bos", "add-bos"},
	{"tokenizer.add_eos", "add-eos"},
	{"tokenizer.reverse", "reverse"},
	{"tokenizer.prefix_tokens", "prefix-token"},
	{"tokenizer.suffix_tokens", "suffix-token"},
	{"server.listen_addr", "server-listen-addr"},
	{"server.workers", "workers"},
	{"server.max_text_bytes", "max-text-bytes"},
	{"server.request_timeout", "request-timeout"},
	{"server.shutdown_timeout", "shutdown-timeout"},
	{"server.watch_model", "watch-model"},
	{"model.repo", "hf-repo"},
	{"model.out_dir", "out-dir"},
	{"log_level", "log-level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("tokenizer-model", defaults.Paths.TokenizerModel, "Path to SentencePiece tokenizer model")
	fs.String("engine", defaults.Tokenizer.Engine, "Segmentation engine (auto|unigram|none)")
	fs.StringSlice("control-token", defaults.Tokenizer.ControlTokens, "Control token to add to the vocabulary (repeatable)")
	fs.Bool("add-bos", defaults.Tokenizer.AddBOS, "Prepend the begin-of-sequence token on encode")
	fs.Bool("add-eos", defaults.Tokenizer.AddEOS, "Append the end-of-sequence token on encode")
	fs.Bool("reverse", defaults.Tokenizer.Reverse, "Reverse encoded token order")
	fs.StringSlice("prefix-token", defaults.Tokenizer.PrefixTokens, "Token placed before every encoded sequence (repeatable)")
	fs.StringSlice("suffix-token", defaults.Tokenizer.SuffixTokens, "Token placed after every encoded sequence (repeatable)")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent encode/decode requests (0 = unbounded)")
	fs.Int("max-text-bytes", defaults.Server.MaxTextBytes, "Max request text size in bytes")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds (0 = no deadline)")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period in seconds")
	fs.Bool("watch-model", defaults.Server.WatchModel, "Reload the tokenizer model when the file changes")
	fs.String("hf-repo", defaults.Model.Repo, "Hugging Face repository holding tokenizer.model")
	fs.String("out-dir", defaults.Model.OutDir, "Directory where downloaded models are stored")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("SPTOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("sptok")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// bindFlags binds every registered flag to its config key. Flags missing from
// fs are skipped so subcommands can register a subset.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, b := range bindings {
		f := fs.Lookup(b.flag)
		if f == nil {
			continue
		}

		if err := v.BindPFlag(b.key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", b.flag, err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.tokenizer_model", c.Paths.TokenizerModel)
	v.SetDefault("tokenizer.engine", c.Tokenizer.Engine)
	v.SetDefault("tokenizer.control_tokens", c.Tokenizer.ControlTokens)
	v.SetDefault("tokenizer.add_bos", c.Tokenizer.AddBOS)
	v.SetDefault("tokenizer.add_eos", c.Tokenizer.AddEOS)
	v.SetDefault("tokenizer.reverse", c.Tokenizer.Reverse)
	v.SetDefault("tokenizer.prefix_tokens", c.Tokenizer.PrefixTokens)
	v.SetDefault("tokenizer.suffix_tokens", c.Tokenizer.SuffixTokens)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.watch_model", c.Server.WatchModel)
	v.SetDefault("model.repo", c.Model.Repo)
	v.SetDefault("model.out_dir", c.Model.OutDir)
	v.SetDefault("log_level", c.LogLevel)
}
