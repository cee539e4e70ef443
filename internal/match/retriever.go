package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"

	"github.com/54b3r/labmatch-go/internal/explain"
	"github.com/54b3r/labmatch-go/internal/index"
	"github.com/54b3r/labmatch-go/internal/logging"
)

// DefaultExplainConcurrency bounds in-flight explanation calls when no pool
// is supplied.
const DefaultExplainConcurrency = 4

// Embedder converts texts to vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Explainer writes the justification for one candidate.
type Explainer interface {
	Explain(ctx context.Context, t *explain.Template, queryText string, hit index.Hit) (string, error)
}

// Observer receives timing and outcome for every retrieval and comparison.
// The server uses it to feed Prometheus.
type Observer interface {
	ObserveRetrieval(p Pattern, elapsed time.Duration, err error)
	ObserveComparison(elapsed time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveRetrieval(Pattern, time.Duration, error) {}
func (noopObserver) ObserveComparison(time.Duration, error)         {}

// requiredFields must be present on every hit.
var requiredFields = []string{
	index.FieldResearcherID,
	index.FieldAffiliation,
	index.FieldPosition,
	index.FieldKeywords,
}

// Retriever runs embed, search and explain for one pattern at a time. It
// holds no per-query state and is safe for concurrent use.
type Retriever struct {
	embedder  Embedder
	searcher  index.Searcher
	explainer Explainer
	pool      *ants.Pool
	ownsPool  bool
	retry     RetryPolicy
	observer  Observer
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithPool shares an explanation worker pool. The caller owns its lifecycle.
// The pool must have a positive capacity.
func WithPool(p *ants.Pool) Option {
	return func(r *Retriever) { r.pool = p }
}

// WithRetry sets the retry policy for external calls.
func WithRetry(p RetryPolicy) Option {
	return func(r *Retriever) { r.retry = p }
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(r *Retriever) {
		if o != nil {
			r.observer = o
		}
	}
}

// NewRetriever wires a Retriever. Without WithPool it creates a private pool
// of DefaultExplainConcurrency workers, released by Close.
func NewRetriever(e Embedder, s index.Searcher, x Explainer, opts ...Option) (*Retriever, error) {
	if e == nil || s == nil || x == nil {
		return nil, fmt.Errorf("match: embedder, searcher and explainer are required")
	}
	r := &Retriever{
		embedder:  e,
		searcher:  s,
		explainer: x,
		observer:  noopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.pool != nil && r.pool.Cap() <= 0 {
		return nil, fmt.Errorf("match: explain pool must be bounded, got capacity %d", r.pool.Cap())
	}
	if r.pool == nil {
		p, err := ants.NewPool(DefaultExplainConcurrency)
		if err != nil {
			return nil, fmt.Errorf("match: create explain pool: %w", err)
		}
		r.pool = p
		r.ownsPool = true
	}
	return r, nil
}

// Close releases the private pool, if any.
func (r *Retriever) Close() {
	if r.ownsPool {
		r.pool.Release()
	}
}

// Retrieve returns the explained candidates for q under pattern p. Any
// failure fails the whole call; no partial result set is returned.
func (r *Retriever) Retrieve(ctx context.Context, q Query, p Pattern) (*PatternResultSet, error) {
	cfg, ok := Lookup(p)
	if !ok {
		return nil, newError(KindInvalidPattern, p, "retrieve", "unknown pattern %q (valid values: A, B, C)", p)
	}
	q = q.withDefaults()
	if err := q.Validate(); err != nil {
		var me *Error
		if errors.As(err, &me) {
			me.Pattern = p
		}
		return nil, err
	}

	ctx = logging.With(ctx, slog.String("pattern", string(p)))
	log := logging.FromContext(ctx)

	start := time.Now()
	results, err := r.retrieve(ctx, q, cfg)
	elapsed := time.Since(start)
	r.observer.ObserveRetrieval(p, elapsed, err)

	if err != nil {
		log.Error("match: retrieval failed",
			slog.String("kind", string(KindOf(err))),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	log.Info("match: retrieval complete",
		slog.Int("hits", len(results)),
		slog.Int("top_k", q.ResultCount),
		slog.Duration("duration", elapsed),
	)

	return &PatternResultSet{
		Results:     results,
		Elapsed:     elapsed,
		SearchTime:  elapsed.Seconds(),
		Pattern:     p,
		Description: cfg.Description,
	}, nil
}

// Search is the pattern A shorthand that returns only the results list.
func (r *Retriever) Search(ctx context.Context, q Query) ([]Result, error) {
	set, err := r.Retrieve(ctx, q, PatternA)
	if err != nil {
		return nil, err
	}
	return set.Results, nil
}

func (r *Retriever) retrieve(ctx context.Context, q Query, cfg *PatternConfig) ([]Result, error) {
	p := cfg.Pattern
	text := q.Text()

	var vec []float32
	err := r.retry.do(ctx, func() error {
		vecs, err := r.embedder.Embed(ctx, []string{text})
		if err != nil {
			return err
		}
		if len(vecs) != 1 || len(vecs[0]) == 0 {
			return backoff.Permanent(fmt.Errorf("expected 1 non-empty vector, got %d", len(vecs)))
		}
		vec = vecs[0]
		return nil
	})
	if err != nil {
		return nil, &Error{Kind: KindEmbeddingFailure, Pattern: p, Op: "embed", Err: err}
	}

	req := index.SearchRequest{
		Collection:  cfg.Collection,
		VectorField: cfg.VectorField,
		Vector:      vec,
		K:           q.ResultCount,
		Filter:      index.Filter{Field: index.FieldAffiliation, Text: q.Institution},
		Fields:      cfg.Projection(),
	}
	var hits []index.Hit
	err = r.retry.do(ctx, func() error {
		var err error
		hits, err = r.searcher.Search(ctx, req)
		return err
	})
	if err != nil {
		return nil, &Error{Kind: KindSearchFailure, Pattern: p, Op: "search", Err: err}
	}

	results := make([]Result, len(hits))
	for i, hit := range hits {
		for _, f := range requiredFields {
			if _, ok := hit.Field(f); !ok {
				return nil, newError(KindPartialData, p, "assemble", "hit %d (id %q) is missing field %q", i, hit.ID, f)
			}
		}
		results[i] = newResult(cfg, q, hit)
	}

	if err := r.explainAll(ctx, cfg, text, hits, results); err != nil {
		return nil, &Error{Kind: KindExplanationFailure, Pattern: p, Op: "explain", Err: err}
	}
	return results, nil
}

// explainAll fills results[i].Explanation for every hit through the shared
// pool. Slot i is written only by the task for hit i. The first failure
// cancels the remaining tasks and is returned.
func (r *Retriever) explainAll(ctx context.Context, cfg *PatternConfig, queryText string, hits []index.Hit, results []Result) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	log := logging.FromContext(ctx)
	var wg sync.WaitGroup

	for i := range hits {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			started := time.Now()
			var text string
			err := r.retry.do(ctx, func() error {
				var err error
				text, err = r.explainer.Explain(ctx, cfg.Template, queryText, hits[i])
				return err
			})
			if err != nil {
				cancel(fmt.Errorf("hit %d (researcher %s): %w", i, results[i].ResearcherID, err))
				return
			}
			results[i].Explanation = text
			log.Debug("match: explanation ready",
				slog.Int("rank", i),
				slog.String("researcher_id", results[i].ResearcherID),
				slog.Duration("duration", time.Since(started)),
			)
		})
		if err != nil {
			wg.Done()
			cancel(fmt.Errorf("submit explanation task: %w", err))
			break
		}
	}
	wg.Wait()

	return context.Cause(ctx)
}

// newResult maps a hit onto the caller-facing record. Required fields have
// already been checked.
func newResult(cfg *PatternConfig, q Query, hit index.Hit) Result {
	id := hit.Get(index.FieldResearcherID)
	res := Result{
		ResearcherID: id,
		DisplayName:  "研究者ID: " + id,
		Institution:  q.Institution,
		Affiliation:  hit.Get(index.FieldAffiliation),
		Position:     hit.Get(index.FieldPosition),
		Keywords:     hit.Get(index.FieldKeywords),
		Pattern:      cfg.Pattern,
	}
	if hit.Score != nil {
		res.Score = *hit.Score
	}
	switch cfg.Blob {
	case BlobProjects:
		b := cfg.blob(hit)
		res.Projects = &b
	case BlobPublications:
		b := cfg.blob(hit)
		res.Publications = &b
	}
	return res
}
