package store

import (
	"time"

	"github.com/54b3r/labmatch-go/internal/match"
)

// SearchEntry builds the log entry for a single-pattern retrieval.
// Only counts and timings are kept; result records are never stored.
func SearchEntry(q match.Query, p match.Pattern, set *match.PatternResultSet, elapsed time.Duration, err error) Entry {
	e := queryEntry(KindSearch, q, elapsed, err)
	e.Pattern = string(p)
	if set != nil {
		e.Hits = len(set.Results)
	}
	return e
}

// CompareEntry builds the log entry for a comparison. Hits is the total
// across the patterns that returned.
func CompareEntry(q match.Query, res *match.ComparisonResult, elapsed time.Duration, err error) Entry {
	e := queryEntry(KindCompare, q, elapsed, err)
	if res != nil {
		for _, p := range match.AllPatterns {
			if s := res.Set(p); s != nil {
				e.Hits += len(s.Results)
			}
		}
	}
	return e
}

func queryEntry(kind Kind, q match.Query, elapsed time.Duration, err error) Entry {
	e := Entry{
		Kind:        kind,
		Category:    q.Category,
		Title:       q.Title,
		Description: q.Description,
		Institution: q.Institution,
		TopK:        q.ResultCount,
		Duration:    elapsed,
	}
	if err != nil {
		e.ErrorKind = string(match.KindOf(err))
		e.Error = err.Error()
	}
	return e
}
