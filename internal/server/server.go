// Package server implements the HTTP API over the matching engine.
// The server is started by the `labmatch serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/labmatch-go/internal/logging"
	"github.com/54b3r/labmatch-go/internal/match"
	"github.com/54b3r/labmatch-go/internal/store"
	"github.com/54b3r/labmatch-go/internal/version"
)

// DefaultSearchTimeout bounds one search or compare request.
const DefaultSearchTimeout = 2 * time.Minute

// New constructs a Server over r and c.
func New(r Retriever, c Comparer, cfg *Config) (*Server, error) {
	if r == nil {
		return nil, fmt.Errorf("server: retriever must not be nil")
	}
	if c == nil {
		return nil, fmt.Errorf("server: comparer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.SearchTimeout == 0 {
		cfg.SearchTimeout = DefaultSearchTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = cfg.SearchTimeout + 30*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(cfg.MetricsRegistry)
	}

	s := &Server{
		retriever: r,
		comparer:  c,
		cfg:       cfg,
		log:       cfg.Logger,
		pingers:   cfg.Pingers,
		metrics:   cfg.Metrics,
		history:   cfg.History,
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger)
	rl.onReject = s.metrics.rateLimitedTotal.Inc
	s.stopRL = stop

	mux := http.NewServeMux()
	mux.Handle("POST /api/search", s.instrument("search", rl.middleware(http.HandlerFunc(s.handleSearch))))
	mux.Handle("POST /api/compare", s.instrument("compare", rl.middleware(http.HandlerFunc(s.handleCompare))))
	mux.Handle("GET /api/patterns", s.instrument("patterns", http.HandlerFunc(s.handlePatterns)))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(cfg.Logger, cors(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleSearch handles POST /api/search: one pattern, explained results.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", "", http.StatusBadRequest)
		return
	}
	if req.Pattern == "" {
		req.Pattern = string(match.PatternA)
	}

	p, err := match.ParsePattern(req.Pattern)
	if err != nil {
		s.writeMatchError(w, r, err)
		return
	}
	q, err := req.query()
	if err != nil {
		s.writeMatchError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SearchTimeout)
	defer cancel()

	start := time.Now()
	set, err := s.retriever.Retrieve(ctx, q, p)
	s.record(r.Context(), store.SearchEntry(q, p, set, time.Since(start), err))
	if err != nil {
		s.writeMatchError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, set)
}

// handleCompare handles POST /api/compare: all three patterns side by side.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", "", http.StatusBadRequest)
		return
	}
	q, err := req.query()
	if err != nil {
		s.writeMatchError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SearchTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.comparer.CompareWith(ctx, q, match.CompareOptions{AllowPartial: req.AllowPartial})
	s.record(r.Context(), store.CompareEntry(q, res, time.Since(start), err))
	if err != nil {
		s.writeMatchError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handlePatterns handles GET /api/patterns.
func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	cfgs := match.Patterns()
	out := make([]patternInfo, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, patternInfo{
			Pattern:     c.Pattern,
			Description: c.Description,
			Collection:  c.Collection,
			VectorField: c.VectorField,
			Fields:      c.Projection(),
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// query builds a defaulted, validated match.Query from the request.
func (f queryFields) query() (match.Query, error) {
	return match.NewQuery(f.Category, f.Title, f.Description, f.University, f.TopK)
}

// record writes a history entry. Failures are logged and never reach the
// client; the write outlives request cancellation.
func (s *Server) record(ctx context.Context, e store.Entry) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Record(context.WithoutCancel(ctx), e); err != nil {
		logging.FromContext(ctx).Warn("history: record failed", slog.Any("error", err))
	}
}

// writeMatchError maps err to a status code and writes the JSON error body.
func (s *Server) writeMatchError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		log.Info("request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSONError(w, err.Error(), string(match.KindOf(err)), status)
}

// statusFor maps a match error to an HTTP status. Deadline expiry wins over
// the kind of the step that was interrupted.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case match.IsClientError(err):
		return http.StatusBadRequest
	case match.KindOf(err) != "":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeJSONError writes {"error": msg, "kind": kind} with the given status.
func writeJSONError(w http.ResponseWriter, msg, kind string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg, Kind: kind})
}
