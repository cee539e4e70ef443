package match

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/54b3r/labmatch-go/internal/explain"
	"github.com/54b3r/labmatch-go/internal/index"
)

type fakeEmbedder struct {
	calls atomic.Int32
	texts []string
	mu    sync.Mutex
	// failures is the number of leading calls that fail.
	failures int32
	err      error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	n := f.calls.Add(1)
	f.mu.Lock()
	f.texts = append(f.texts, texts...)
	f.mu.Unlock()
	if f.err != nil && n <= f.failures {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeSearcher struct {
	mu    sync.Mutex
	calls int
	reqs  []index.SearchRequest
	hits  map[string][]index.Hit // by collection
	err   error
}

func (f *fakeSearcher) Search(_ context.Context, req index.SearchRequest) ([]index.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.hits[req.Collection], nil
}

func (f *fakeSearcher) Close() error { return nil }

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeExplainer delegates to fn, or echoes a fixed reply.
type fakeExplainer struct {
	calls atomic.Int32
	reply string
	fn    func(ctx context.Context, t *explain.Template, hit index.Hit) (string, error)
}

func (f *fakeExplainer) Explain(ctx context.Context, t *explain.Template, _ string, hit index.Hit) (string, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(ctx, t, hit)
	}
	return f.reply, nil
}

// fakeRetriever returns n results per pattern after a delay.
type fakeRetriever struct {
	counts map[Pattern]int
	delay  map[Pattern]time.Duration
	errs   map[Pattern]error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q Query, p Pattern) (*PatternResultSet, error) {
	start := time.Now()
	select {
	case <-time.After(f.delay[p]):
	case <-ctx.Done():
		return nil, &Error{Kind: KindSearchFailure, Pattern: p, Op: "search", Err: ctx.Err()}
	}
	if err := f.errs[p]; err != nil {
		return nil, err
	}
	res := make([]Result, f.counts[p])
	for i := range res {
		res[i] = Result{ResearcherID: fmt.Sprintf("%s-%d", p, i), Institution: q.Institution, Pattern: p}
	}
	elapsed := time.Since(start)
	return &PatternResultSet{Results: res, Elapsed: elapsed, SearchTime: elapsed.Seconds(), Pattern: p}, nil
}

func score(v float64) *float64 { return &v }

// researcherHit builds a hit with every base field plus extras.
func researcherHit(id string, s *float64, extra map[string]string) index.Hit {
	fields := map[string]string{
		index.FieldID:           "doc-" + id,
		index.FieldResearcherID: id,
		index.FieldAffiliation:  "東京科学大学 工学院",
		index.FieldPosition:     "准教授",
		index.FieldKeywords:     "深層学習, 医用画像",
	}
	for k, v := range extra {
		fields[k] = v
	}
	return index.Hit{ID: "doc-" + id, Fields: fields, Score: s}
}
