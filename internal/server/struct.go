package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/labmatch-go/internal/match"
	"github.com/54b3r/labmatch-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// exceed SearchTimeout or slow comparisons are cut off mid-response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// SearchTimeout bounds one search or compare request (default: 2m).
	SearchTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on search and
	// compare (requests/second). Defaults to 2 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 5 if zero.
	RateBurst int
	// Metrics receives HTTP and retrieval metrics. Pass the same instance to
	// match.WithObserver so retrieval outcomes land on the same registry.
	// If nil, one is registered on MetricsRegistry.
	Metrics *Metrics
	// MetricsRegistry is where a default Metrics is registered.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
	// History records every search and compare. Nil disables recording.
	History store.HistoryStore
}

// Retriever runs one pattern. *match.Retriever satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, q match.Query, p match.Pattern) (*match.PatternResultSet, error)
}

// Comparer runs all patterns. *match.Comparator satisfies it.
type Comparer interface {
	CompareWith(ctx context.Context, q match.Query, opts match.CompareOptions) (*match.ComparisonResult, error)
}

// Server is the HTTP front end for the matching engine.
type Server struct {
	retriever  Retriever
	comparer   Comparer
	cfg        *Config
	httpServer *http.Server
	log        *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	metrics *Metrics
	history store.HistoryStore
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryFields is the request body shared by search and compare.
type queryFields struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	University  string `json:"university"`
	TopK        int    `json:"top_k"`
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	queryFields
	// Pattern is A, B or C. Defaults to A.
	Pattern string `json:"pattern"`
}

// compareRequest is the JSON body for POST /api/compare.
type compareRequest struct {
	queryFields
	AllowPartial bool `json:"allow_partial"`
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
	// Kind is the match error kind, when there is one.
	Kind string `json:"kind,omitempty"`
}

// patternInfo describes one row of the pattern table for GET /api/patterns.
type patternInfo struct {
	Pattern     match.Pattern `json:"pattern"`
	Description string        `json:"description"`
	Collection  string        `json:"collection"`
	VectorField string        `json:"vector_field"`
	Fields      []string      `json:"fields"`
}
