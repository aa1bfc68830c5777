package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/go-khmer-tts/internal/config"
	"github.com/example/go-khmer-tts/internal/g2p"
	"github.com/example/go-khmer-tts/internal/symbols"
	"github.com/example/go-khmer-tts/internal/text"
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

// Phonemizer converts text to phones. *g2p.Phonemizer implements it.
type Phonemizer interface {
	Phonemize(text string) (g2p.Result, error)
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	maxBodyBytes   int64
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   4096,
		maxBodyBytes:   1 << 20,
		workers:        4,
		requestTimeout: 30 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for POST /phonemize.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithMaxBodyBytes caps the JSON request body of every POST endpoint.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) { o.maxBodyBytes = n }
}

// WithWorkers sets the maximum number of concurrent phonemization calls.
// Zero or less disables the limit.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request phonemization deadline.
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

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	g2p   Phonemizer
	table *symbols.Table
	opts  options
	sem   chan struct{} // semaphore for worker pool
	log   *slog.Logger
}

// NewHandler returns an http.Handler that serves /health, /symbols and
// POST /phonemize, /encode and /decode.
func NewHandler(p Phonemizer, table *symbols.Table, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		g2p:   p,
		table: table,
		opts:  opts,
		log:   opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/symbols", h.handleSymbols)
	mux.HandleFunc("/phonemize", h.handlePhonemize)
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

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Preset  string `json:"preset"`
	Size    int    `json:"size"`
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: buildVersion(),
		Preset:  string(h.table.Preset()),
		Size:    h.table.Len(),
	})
}

func (h *handler) handleSymbols(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, symbols.NewManifest(h.table))
}

type phonemizeRequest struct {
	Text string `json:"text"`
}

type phonemizeResponse struct {
	Text    string     `json:"text"`
	Words   []g2p.Word `json:"words"`
	Phones  []string   `json:"phones"`
	IDs     []int      `json:"ids"`
	Missing []string   `json:"missing"`
}

func (h *handler) handlePhonemize(w http.ResponseWriter, r *http.Request) {
	var req phonemizeRequest
	if !h.decodePost(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text field is required")
		return
	}

	if len(req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))

		return
	}

	// Acquire a worker slot, honouring cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() { <-h.sem }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	res, err := h.phonemize(ctx, req.Text)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			h.log.WarnContext(r.Context(), "phonemization timed out",
				slog.Int("text_len", len(req.Text)),
				slog.Int64("duration_ms", durationMS),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusGatewayTimeout, "phonemization timed out")
		case errors.Is(err, text.ErrEmptyText):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.ErrorContext(r.Context(), "phonemization failed",
				slog.Int("text_len", len(req.Text)),
				slog.Int64("duration_ms", durationMS),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, err.Error())
		}

		return
	}

	phones := res.Phones()
	ids, missing := h.table.EncodeLenient(phones)

	h.log.InfoContext(r.Context(), "phonemization complete",
		slog.Int("text_len", len(req.Text)),
		slog.Int64("duration_ms", durationMS),
		slog.Int("phones", len(phones)),
		slog.Int("oov", len(res.OOV())),
		slog.Int("missing", len(missing)),
	)

	writeJSON(w, http.StatusOK, phonemizeResponse{
		Text:    res.Text,
		Words:   nonNil(res.Words),
		Phones:  nonNil(phones),
		IDs:     nonNil(ids),
		Missing: nonNil(missing),
	})
}

// phonemize runs the synchronous front-end under ctx's deadline.
func (h *handler) phonemize(ctx context.Context, s string) (g2p.Result, error) {
	type result struct {
		res g2p.Result
		err error
	}

	done := make(chan result, 1)
	go func() {
		res, err := h.g2p.Phonemize(s)
		done <- result{res: res, err: err}
	}()

	select {
	case r := <-done:
		return r.res, r.err
	case <-ctx.Done():
		return g2p.Result{}, ctx.Err()
	}
}

type encodeRequest struct {
	Tokens []string `json:"tokens"`
}

type encodeResponse struct {
	IDs []int `json:"ids"`
}

type symbolError struct {
	Error    string `json:"error"`
	Token    string `json:"token"`
	Position int    `json:"position"`
}

func (h *handler) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req encodeRequest
	if !h.decodePost(w, r, &req) {
		return
	}

	ids, err := h.table.Encode(req.Tokens)
	if err != nil {
		var use *symbols.UnknownSymbolError
		if errors.As(err, &use) {
			writeJSON(w, http.StatusUnprocessableEntity, symbolError{
				Error:    err.Error(),
				Token:    use.Token,
				Position: use.Position,
			})

			return
		}

		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, encodeResponse{IDs: nonNil(ids)})
}

type decodeRequest struct {
	IDs []int `json:"ids"`
}

type decodeResponse struct {
	Tokens []string `json:"tokens"`
}

func (h *handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if !h.decodePost(w, r, &req) {
		return
	}

	tokens, err := h.table.Decode(req.IDs)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, symbols.ErrInvalidID) {
			status = http.StatusUnprocessableEntity
		}

		writeError(w, status, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, decodeResponse{Tokens: nonNil(tokens)})
}

// decodePost checks the method and decodes a JSON body of at most
// maxBodyBytes into v. It writes the error response itself and reports
// whether the handler should continue.
func (h *handler) decodePost(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}

	body := http.MaxBytesReader(w, r.Body, h.opts.maxBodyBytes)

	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds maximum size of %d bytes", tooLarge.Limit))

			return false
		}

		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())

		return false
	}

	return true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server wires the handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	g2p             Phonemizer
	shutdownTimeout time.Duration
}

// New returns a Server for cfg. When p is nil, Start loads the lexicon
// named in cfg and builds the phonemizer itself.
func New(cfg config.Config, p Phonemizer) *Server {
	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Server{
		cfg:             cfg,
		g2p:             p,
		shutdownTimeout: timeout,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

func (s *Server) Start(ctx context.Context) error {
	p, table, err := s.runtimeDeps()
	if err != nil {
		return err
	}

	handlerOpts := []Option{
		WithWorkers(s.cfg.Server.Workers),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout) * time.Second),
	}

	h := NewHandler(p, table, handlerOpts...)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	slog.Info("server listening",
		"addr", s.cfg.Server.ListenAddr,
		"preset", string(table.Preset()),
		"symbols", table.Len(),
	)

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

func (s *Server) runtimeDeps() (Phonemizer, *symbols.Table, error) {
	preset, err := symbols.ParsePreset(s.cfg.Symbols.Preset)
	if err != nil {
		return nil, nil, err
	}

	table, err := symbols.Build(preset)
	if err != nil {
		return nil, nil, fmt.Errorf("build symbol table: %w", err)
	}

	if s.g2p != nil {
		return s.g2p, table, nil
	}

	p, err := g2p.Load(s.cfg.Paths.Lexicon, G2POptions(s.cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("initialize phonemizer: %w", err)
	}

	return p, table, nil
}

// G2POptions maps the text section of cfg onto phonemizer options.
func G2POptions(cfg config.Config) g2p.Options {
	return g2p.Options{
		Normalize: cfg.Text.Normalize,
		Segment:   cfg.Text.Segment,
		Method:    text.Method(cfg.Text.SegmentMethod),
	}
}
