package config

import "github.com/example/go-sptok/internal/tokenizer"

// ModelOptions converts the tokenizer section into load options.
func (c TokenizerConfig) ModelOptions() (tokenizer.ModelOptions, error) {
	engine, err := tokenizer.ParseEngine(c.Engine)
	if err != nil {
		return tokenizer.ModelOptions{}, err
	}

	opts := tokenizer.NewModelOptions().
		WithEngine(engine).
		WithAddBOS(c.AddBOS).
		WithAddEOS(c.AddEOS).
		WithReverse(c.Reverse)

	for _, tok := range c.ControlTokens {
		opts = opts.WithControlToken(tok)
	}

	return opts, nil
}

func (c TokenizerConfig) EncoderOptions() tokenizer.EncoderOptions {
	return tokenizer.EncoderOptions{
		PrefixTokens: append([]string(nil), c.PrefixTokens...),
		SuffixTokens: append([]string(nil), c.SuffixTokens...),
	}
}

// LoadModel loads the configured tokenizer model.
func (c Config) LoadModel() (*tokenizer.Model, error) {
	opts, err := c.Tokenizer.ModelOptions()
	if err != nil {
		return nil, err
	}

	return tokenizer.LoadModel(c.Paths.TokenizerModel, opts)
}
