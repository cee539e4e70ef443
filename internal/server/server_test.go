package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/labmatch-go/internal/match"
	"github.com/54b3r/labmatch-go/internal/store"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeRetriever records the last query and returns a canned set or error.
type fakeRetriever struct {
	mu      sync.Mutex
	calls   int
	query   match.Query
	pattern match.Pattern
	set     *match.PatternResultSet
	err     error
	// wait blocks until ctx is done, then returns ctx.Err() wrapped as a
	// search failure.
	wait bool
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q match.Query, p match.Pattern) (*match.PatternResultSet, error) {
	f.mu.Lock()
	f.calls++
	f.query, f.pattern = q, p
	f.mu.Unlock()
	if f.wait {
		<-ctx.Done()
		return nil, &match.Error{Kind: match.KindSearchFailure, Pattern: p, Op: "search", Err: ctx.Err()}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.set, nil
}

// fakeComparer records the options and returns a canned result or error.
type fakeComparer struct {
	calls int
	opts  match.CompareOptions
	res   *match.ComparisonResult
	err   error
}

func (f *fakeComparer) CompareWith(_ context.Context, _ match.Query, opts match.CompareOptions) (*match.ComparisonResult, error) {
	f.calls++
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

// fakeHistory is an in-memory store.HistoryStore.
type fakeHistory struct {
	mu      sync.Mutex
	entries []store.Entry
	err     error
}

func (f *fakeHistory) Record(_ context.Context, e store.Entry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.entries = append(f.entries, e)
	return fmt.Sprintf("id-%d", len(f.entries)), nil
}

func (f *fakeHistory) Recent(_ context.Context, n int) ([]store.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > len(f.entries) {
		n = len(f.entries)
	}
	return f.entries[:n], nil
}

func (f *fakeHistory) Close() error { return nil }

// newTestServer builds a Server with fresh fakes and an isolated registry.
func newTestServer() *Server {
	s, _ := newTestServerWith(&fakeRetriever{}, &fakeComparer{}, nil)
	return s
}

func newTestServerWith(r Retriever, c Comparer, cfg *Config) (*Server, *prometheus.Registry) {
	if cfg == nil {
		cfg = &Config{}
	}
	reg := prometheus.NewRegistry()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.MetricsRegistry = reg
	cfg.MetricsGatherer = reg
	s, err := New(r, c, cfg)
	if err != nil {
		panic(err)
	}
	return s, reg
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "127.0.0.1:40000"
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.NewDecoder(w.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func sampleSet(p match.Pattern, n int) *match.PatternResultSet {
	set := &match.PatternResultSet{Pattern: p, Description: "desc", SearchTime: 1.5}
	for i := range n {
		set.Results = append(set.Results, match.Result{
			ResearcherID: fmt.Sprintf("r%d", i),
			DisplayName:  fmt.Sprintf("研究者ID: r%d", i),
			Pattern:      p,
		})
	}
	return set
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_RequiresRetrieverAndComparer(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &fakeComparer{}, nil); err == nil {
		t.Error("expected error for nil retriever")
	}
	if _, err := New(&fakeRetriever{}, nil, nil); err == nil {
		t.Error("expected error for nil comparer")
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	defer s.stopRL()

	if s.cfg.Host != "127.0.0.1" || s.cfg.Port != 8080 {
		t.Errorf("addr defaults: %s:%d", s.cfg.Host, s.cfg.Port)
	}
	if s.cfg.SearchTimeout != DefaultSearchTimeout {
		t.Errorf("search timeout: got %v", s.cfg.SearchTimeout)
	}
	if s.cfg.WriteTimeout <= s.cfg.SearchTimeout {
		t.Errorf("write timeout %v must exceed search timeout %v", s.cfg.WriteTimeout, s.cfg.SearchTimeout)
	}
}

// ---------------------------------------------------------------------------
// POST /api/search
// ---------------------------------------------------------------------------

func TestHandleSearch_OK(t *testing.T) {
	t.Parallel()

	r := &fakeRetriever{set: sampleSet(match.PatternB, 2)}
	h := &fakeHistory{}
	s, _ := newTestServerWith(r, &fakeComparer{}, &Config{History: h})
	defer s.stopRL()

	w := doJSON(t, s, http.MethodPost, "/api/search",
		`{"category":"AI","title":"医療画像","description":"深層学習","top_k":2,"pattern":"b"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if r.pattern != match.PatternB {
		t.Errorf("pattern: got %q, want B", r.pattern)
	}
	if r.query.Institution != match.DefaultInstitution || r.query.ResultCount != 2 {
		t.Errorf("query defaults not applied: %+v", r.query)
	}

	var got match.PatternResultSet
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Results) != 2 || got.Results[0].ResearcherID != "r0" {
		t.Errorf("unexpected results: %+v", got.Results)
	}

	if len(h.entries) != 1 {
		t.Fatalf("history entries: got %d, want 1", len(h.entries))
	}
	if e := h.entries[0]; e.Kind != store.KindSearch || e.Pattern != "B" || e.Hits != 2 {
		t.Errorf("unexpected history entry: %+v", e)
	}
}

func TestHandleSearch_DefaultsToPatternA(t *testing.T) {
	t.Parallel()

	r := &fakeRetriever{set: sampleSet(match.PatternA, 0)}
	s, _ := newTestServerWith(r, &fakeComparer{}, nil)
	defer s.stopRL()

	w := doJSON(t, s, http.MethodPost, "/api/search", `{"category":"AI","title":"t","description":"d"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if r.pattern != match.PatternA {
		t.Errorf("pattern: got %q, want A", r.pattern)
	}
}

func TestHandleSearch_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	defer s.stopRL()

	w := doJSON(t, s, http.MethodPost, "/api/search", `not-json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleSearch_InvalidPatternMakesNoCall(t *testing.T) {
	t.Parallel()

	r := &fakeRetriever{}
	s, _ := newTestServerWith(r, &fakeComparer{}, nil)
	defer s.stopRL()

	w := doJSON(t, s, http.MethodPost, "/api/search", `{"category":"AI","pattern":"D"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Kind != string(match.KindInvalidPattern) {
		t.Errorf("kind: got %q", e.Kind)
	}
	if r.calls != 0 {
		t.Errorf("retriever called %d times", r.calls)
	}
}

func TestHandleSearch_InvalidTopK(t *testing.T) {
	t.Parallel()

	r := &fakeRetriever{}
	s, _ := newTestServerWith(r, &fakeComparer{}, nil)
	defer s.stopRL()

	w := doJSON(t, s, http.MethodPost, "/api/search", `{"category":"AI","top_k":500}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Kind != string(match.KindInvalidQuery) {
		t.Errorf("kind: got %q", e.Kind)
	}
	if r.calls != 0 {
		t.Errorf("retriever called %d times", r.calls)
	}
}

func TestHandleSearch_UpstreamFailureIs502(t *testing.T) {
	t.Parallel()

	upstream := &match.Error{Kind: match.KindExplanationFailure, Pattern: match.PatternA, Op: "explain", Err: errors.New("status 429")}
	h := &fakeHistory{}
	s, _ := newTestServerWith(&fakeRetriever{err: upstream}, &fakeComparer{}, &Config{History: h})
	defer s.stopRL()

	w := doJSON(t, s, http.MethodPost, "/api/search", `{"category":"AI"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	e := decodeError(t, w)
	if e.Kind != string(match.KindExplanationFailure) {
		t.Errorf("kind: got %q", e.Kind)
	}
	if !strings.Contains(e.Error, "status 429") {
		t.Errorf("error text must carry the upstream message: %q", e.Error)
	}
	if len(h.entries) != 1 || h.entries[0].ErrorKind != string(match.KindExplanationFailure) {
		t.Errorf("history must record the failure: %+v", h.entries)
	}
}

func TestHandleSearch_TimeoutIs504(t *testing.T) {
	t.Parallel()

	s, _ := newTestServerWith(&fakeRetriever{wait: true}, &fakeComparer{}, &Config{SearchTimeout: 20 * time.Millisecond})
	defer s.stopRL()

	w := doJSON(t, s, http.MethodPost, "/api/search", `{"category":"AI"}`)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Kind != string(match.KindSearchFailure) {
		t.Errorf("kind: got %q", e.Kind)
	}
}

func TestHandleSearch_HistoryFailureDoesNotFailRequest(t *testing.T) {
	t.Parallel()

	h := &fakeHistory{err: errors.New("disk full")}
	s, _ := newTestServerWith(&fakeRetriever{set: sampleSet(match.PatternA, 1)}, &fakeComparer{}, &Config{History: h})
	defer s.stopRL()

	w := doJSON(t, s, http.MethodPost, "/api/search", `{"category":"AI"}`)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/compare
// ---------------------------------------------------------------------------

func TestHandleCompare_OK(t *testing.T) {
	t.Parallel()

	c := &fakeComparer{res: &match.ComparisonResult{
		PatternA:            sampleSet(match.PatternA, 1),
		PatternB:            sampleSet(match.PatternB, 1),
		PatternC:            sampleSet(match.PatternC, 1),
		TotalComparisonTime: 2.5,
	}}
	h := &fakeHistory{}
	s, _ := newTestServerWith(&fakeRetriever{}, c, &Config{History: h})
	defer s.stopRL()

	w := doJSON(t, s, http.MethodPost, "/api/compare", `{"category":"AI","title":"t","description":"d","allow_partial":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !c.opts.AllowPartial {
		t.Error("allow_partial was not passed through")
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, k := range []string{"pattern_a", "pattern_b", "pattern_c", "total_comparison_time", "query_info"} {
		if _, ok := body[k]; !ok {
			t.Errorf("missing key %q", k)
		}
	}
	if len(h.entries) != 1 || h.entries[0].Kind != store.KindCompare || h.entries[0].Hits != 3 {
		t.Errorf("unexpected history: %+v", h.entries)
	}
}

func TestHandleCompare_Failure(t *testing.T) {
	t.Parallel()

	c := &fakeComparer{err: &match.Error{Kind: match.KindPartialData, Pattern: match.PatternC, Op: "project", Err: errors.New("missing publication_title")}}
	s, _ := newTestServerWith(&fakeRetriever{}, c, nil)
	defer s.stopRL()

	w := doJSON(t, s, http.MethodPost, "/api/compare", `{"category":"AI"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Kind != string(match.KindPartialData) {
		t.Errorf("kind: got %q", e.Kind)
	}
}

// ---------------------------------------------------------------------------
// GET /api/patterns, CORS, routing
// ---------------------------------------------------------------------------

func TestHandlePatterns(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	defer s.stopRL()

	w := doJSON(t, s, http.MethodGet, "/api/patterns", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got []patternInfo
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 patterns, got %d", len(got))
	}
	for i, p := range match.AllPatterns {
		if got[i].Pattern != p {
			t.Errorf("row %d: got %q, want %q", i, got[i].Pattern, p)
		}
		if got[i].Description == "" || got[i].Collection == "" || len(got[i].Fields) == 0 {
			t.Errorf("row %d incomplete: %+v", i, got[i])
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	defer s.stopRL()

	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "https://example.org")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin: got %q", got)
	}
}

func TestRequestID_Header(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	defer s.stopRL()

	w := doJSON(t, s, http.MethodGet, "/api/health", "")
	if id := w.Header().Get("X-Request-ID"); len(id) != 16 {
		t.Errorf("X-Request-ID: got %q", id)
	}
}

func TestSearch_WrongMethod(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	defer s.stopRL()

	w := doJSON(t, s, http.MethodGet, "/api/search", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid pattern", &match.Error{Kind: match.KindInvalidPattern}, http.StatusBadRequest},
		{"invalid query", &match.Error{Kind: match.KindInvalidQuery}, http.StatusBadRequest},
		{"embedding", &match.Error{Kind: match.KindEmbeddingFailure, Err: errors.New("x")}, http.StatusBadGateway},
		{"search", &match.Error{Kind: match.KindSearchFailure, Err: errors.New("x")}, http.StatusBadGateway},
		{"explanation", &match.Error{Kind: match.KindExplanationFailure, Err: errors.New("x")}, http.StatusBadGateway},
		{"partial", &match.Error{Kind: match.KindPartialData, Err: errors.New("x")}, http.StatusBadGateway},
		{"deadline", &match.Error{Kind: match.KindEmbeddingFailure, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, got, tc.want)
		}
	}
}
