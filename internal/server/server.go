package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/example/go-sptok/internal/config"
	"github.com/example/go-sptok/internal/text"
	"github.com/example/go-sptok/internal/tokenizer"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   16384,
		workers:        4,
		requestTimeout: 10 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for POST /encode.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent encode/decode calls.
// Zero disables the limit.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request deadline. Zero or a negative value
// disables it.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	src  Source
	opts options
	sem  chan struct{}
	log  *slog.Logger
}

// NewHandler returns an http.Handler that serves /health, /info, /vocab,
// POST /encode and POST /decode against the pipeline src currently holds.
func NewHandler(src Source, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		src:  src,
		opts: opts,
		log:  opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/info", h.handleInfo)
	mux.HandleFunc("/vocab", h.handleVocab)
	mux.HandleFunc("/encode", h.handleEncode)
	mux.HandleFunc("/decode", h.handleDecode)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

type infoResponse struct {
	ModelType      string   `json:"model_type"`
	Engine         string   `json:"engine"`
	VocabularySize int      `json:"vocabulary_size"`
	Unk            int32    `json:"unk"`
	BOS            int32    `json:"bos"`
	EOS            int32    `json:"eos"`
	Pad            int32    `json:"pad"`
	AddBOS         bool     `json:"add_bos"`
	AddEOS         bool     `json:"add_eos"`
	Reverse        bool     `json:"reverse"`
	ControlTokens  []string `json:"control_tokens"`
}

func (h *handler) handleInfo(w http.ResponseWriter, _ *http.Request) {
	m := h.src.Current().Model
	opts := m.Options()

	writeJSON(w, http.StatusOK, infoResponse{
		ModelType:      m.ModelType(),
		Engine:         string(m.Engine()),
		VocabularySize: m.VocabularySize(),
		Unk:            m.UnkIdx(),
		BOS:            m.BOSIdx(),
		EOS:            m.EOSIdx(),
		Pad:            m.PadIdx(),
		AddBOS:         opts.AddBOS(),
		AddEOS:         opts.AddEOS(),
		Reverse:        opts.Reverse(),
		ControlTokens:  opts.ControlTokens(),
	})
}

type vocabResponse struct {
	Index int32  `json:"index"`
	Piece string `json:"piece"`
	Kind  string `json:"kind"`
}

func (h *handler) handleVocab(w http.ResponseWriter, r *http.Request) {
	m := h.src.Current().Model
	q := r.URL.Query()

	var idx int32

	switch {
	case q.Has("token"):
		idx = m.TokenToIndex(q.Get("token"))
	case q.Has("index"):
		n, err := strconv.ParseInt(q.Get("index"), 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "index must be an integer")
			return
		}

		idx = int32(n)
	default:
		writeError(w, http.StatusBadRequest, "token or index query parameter is required")
		return
	}

	piece, err := m.IndexToToken(idx)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	kind, _ := m.Kind(idx)
	writeJSON(w, http.StatusOK, vocabResponse{Index: idx, Piece: piece, Kind: string(kind)})
}

type encodeRequest struct {
	Text   string `json:"text"`
	Pieces bool   `json:"pieces"`
}

type encodeResponse struct {
	IDs    []int32  `json:"ids"`
	Pieces []string `json:"pieces,omitempty"`
}

func (h *handler) handleEncode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req encodeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if len(req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return
	}

	input, err := text.Normalize(req.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, "text field is required")
		return
	}

	p := h.src.Current()

	h.run(w, r, "encode", slog.Int("text_len", len(req.Text)), func() (any, error) {
		ids, err := p.Encoder.Encode(input)
		if err != nil {
			return nil, err
		}

		resp := encodeResponse{IDs: ids}
		if req.Pieces {
			resp.Pieces = make([]string, len(ids))
			for i, id := range ids {
				resp.Pieces[i], _ = p.Model.IndexToToken(id)
			}
		}

		return resp, nil
	})
}

type decodeRequest struct {
	IDs []int32 `json:"ids"`
}

type decodeResponse struct {
	Text string `json:"text"`
}

func (h *handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req decodeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.IDs == nil {
		writeError(w, http.StatusBadRequest, "ids field is required")
		return
	}

	p := h.src.Current()

	h.run(w, r, "decode", slog.Int("ids", len(req.IDs)), func() (any, error) {
		s, err := p.Decoder.Decode(req.IDs)
		if err != nil {
			return nil, err
		}

		return decodeResponse{Text: s}, nil
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}

	return true
}

// run executes fn on a worker slot under the request deadline and writes its
// result. fn keeps its slot until it returns, even after a timeout response.
// A panic in fn is reported as a 500.
func (h *handler) run(w http.ResponseWriter, r *http.Request, op string, size slog.Attr, fn func() (any, error)) {
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
	}

	ctx := r.Context()
	if h.opts.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.requestTimeout)
		defer cancel()
	}

	type result struct {
		v   any
		err error
	}

	done := make(chan result, 1)
	start := time.Now()

	go func() {
		if h.sem != nil {
			defer func() { <-h.sem }()
		}

		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: fmt.Errorf("%s panicked: %v", op, rec)}
			}
		}()

		v, err := fn()
		done <- result{v, err}
	}()

	var res result

	select {
	case res = <-done:
	case <-ctx.Done():
		res = result{err: ctx.Err()}
	}

	durationMS := time.Since(start).Milliseconds()

	switch {
	case errors.Is(res.err, context.DeadlineExceeded) || errors.Is(res.err, context.Canceled):
		h.log.WarnContext(r.Context(), op+" timed out",
			size,
			slog.Int64("duration_ms", durationMS),
			slog.String("error", res.err.Error()),
		)
		writeError(w, http.StatusGatewayTimeout, op+" timed out")
	case res.err != nil:
		status := http.StatusInternalServerError
		switch {
		case errors.Is(res.err, tokenizer.ErrIndexOutOfRange):
			status = http.StatusBadRequest
		case errors.Is(res.err, tokenizer.ErrNoEngine):
			status = http.StatusNotImplemented
		}

		h.log.ErrorContext(r.Context(), op+" failed",
			size,
			slog.Int64("duration_ms", durationMS),
			slog.String("error", res.err.Error()),
		)
		writeError(w, status, res.err.Error())
	default:
		h.log.InfoContext(r.Context(), op+" complete",
			size,
			slog.Int64("duration_ms", durationMS),
		)
		writeJSON(w, http.StatusOK, res.v)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server: net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server loads the configured model and serves it over HTTP.
type Server struct {
	cfg             config.Config
	log             *slog.Logger
	shutdownTimeout time.Duration
}

func New(cfg config.Config) *Server {
	timeout := 30 * time.Second
	if cfg.Server.ShutdownTimeout > 0 {
		timeout = time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	}

	return &Server{
		cfg:             cfg,
		log:             slog.Default(),
		shutdownTimeout: timeout,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the logger used for requests and reloads.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.log = l
	return s
}

func (s *Server) load() (*Pipeline, error) {
	m, err := s.cfg.LoadModel()
	if err != nil {
		return nil, err
	}

	return NewPipeline(m, s.cfg.Tokenizer.EncoderOptions())
}

// Start serves until ctx is done, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	p, err := s.load()
	if err != nil {
		return err
	}

	store := NewStore(p)

	if s.cfg.Server.WatchModel {
		if err := store.Watch(ctx, s.cfg.Paths.TokenizerModel, s.load, s.log); err != nil {
			return err
		}
	}

	h := NewHandler(store,
		WithWorkers(s.cfg.Server.Workers),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
		WithLogger(s.log),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info("serving tokenizer",
		slog.String("addr", s.cfg.Server.ListenAddr),
		slog.String("model", s.cfg.Paths.TokenizerModel),
		slog.Int("vocabulary_size", p.Model.VocabularySize()),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
