package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/labmatch-go/internal/logging"
)

// PatternRetriever is the slice of Retriever the Comparator needs.
type PatternRetriever interface {
	Retrieve(ctx context.Context, q Query, p Pattern) (*PatternResultSet, error)
}

// CompareOptions tunes a comparison.
type CompareOptions struct {
	// AllowPartial returns the patterns that succeeded and records the
	// others in ComparisonResult.Failures. The call fails only when every
	// pattern fails. Off by default: any failure fails the comparison.
	AllowPartial bool
}

// Comparator runs every pattern against one query concurrently.
type Comparator struct {
	retriever PatternRetriever
	observer  Observer
}

// NewComparator returns a Comparator over r. obs may be nil.
func NewComparator(r PatternRetriever, obs Observer) *Comparator {
	if obs == nil {
		obs = noopObserver{}
	}
	return &Comparator{retriever: r, observer: obs}
}

// Compare runs A, B and C with all-or-nothing failure semantics.
func (c *Comparator) Compare(ctx context.Context, q Query) (*ComparisonResult, error) {
	return c.CompareWith(ctx, q, CompareOptions{})
}

// CompareWith runs A, B and C. Each pattern embeds the query on its own.
// TotalComparisonTime is the wall-clock span around all three.
func (c *Comparator) CompareWith(ctx context.Context, q Query, opts CompareOptions) (*ComparisonResult, error) {
	q = q.withDefaults()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	start := time.Now()

	sets := make([]*PatternResultSet, len(AllPatterns))
	errs := make([]error, len(AllPatterns))

	var err error
	if opts.AllowPartial {
		var g errgroup.Group
		for i, p := range AllPatterns {
			g.Go(func() error {
				sets[i], errs[i] = c.retriever.Retrieve(ctx, q, p)
				return nil
			})
		}
		_ = g.Wait()
		if sets[0] == nil && sets[1] == nil && sets[2] == nil {
			err = errors.Join(errs...)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i, p := range AllPatterns {
			g.Go(func() error {
				set, err := c.retriever.Retrieve(gctx, q, p)
				if err != nil {
					return err
				}
				sets[i] = set
				return nil
			})
		}
		err = g.Wait()
	}

	elapsed := time.Since(start)
	c.observer.ObserveComparison(elapsed, err)

	if err != nil {
		log.Error("match: comparison failed",
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	out := &ComparisonResult{
		TotalComparisonTime: elapsed.Seconds(),
		Elapsed:             elapsed,
		QueryInfo:           q.Info(),
	}
	for i, p := range AllPatterns {
		if sets[i] == nil {
			if out.Failures == nil {
				out.Failures = make(map[Pattern]string)
			}
			out.Failures[p] = errs[i].Error()
			continue
		}
		out.put(p, sets[i])
	}

	log.Info("match: comparison complete",
		slog.Duration("duration", elapsed),
		slog.Int("failed_patterns", len(out.Failures)),
	)
	return out, nil
}

// String summarises the comparison for CLI output.
func (c *ComparisonResult) String() string {
	n := func(s *PatternResultSet) int {
		if s == nil {
			return 0
		}
		return len(s.Results)
	}
	return fmt.Sprintf("A=%d B=%d C=%d total=%.2fs", n(c.PatternA), n(c.PatternB), n(c.PatternC), c.TotalComparisonTime)
}
