// Package match turns a company's project request into ranked, explained
// researcher candidates. One generic Retriever serves every pattern from a
// fixed configuration table; the Comparator runs all patterns side by side.
package match

import (
	"fmt"
)

const (
	// DefaultInstitution is the affiliation filter applied when a query names none.
	DefaultInstitution = "東京科学大学"
	// DefaultResultCount is the number of candidates requested when unset.
	DefaultResultCount = 10
	// MaxResultCount bounds a single retrieval; each candidate costs one
	// explanation call.
	MaxResultCount = 50
)

// Query is one matching request. Treat it as immutable once built.
type Query struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	// Institution filters researchers by current affiliation. The index
	// decides the match semantics (full-text or substring).
	Institution string `json:"university"`
	// ResultCount is the number of nearest neighbours requested.
	ResultCount int `json:"top_k"`
}

// NewQuery applies defaults and validates.
func NewQuery(category, title, description, institution string, resultCount int) (Query, error) {
	q := Query{
		Category:    category,
		Title:       title,
		Description: description,
		Institution: institution,
		ResultCount: resultCount,
	}.withDefaults()
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Text is the literal string that gets embedded: category, title and
// description joined by single spaces. Blank fields keep their separator.
func (q Query) Text() string {
	return q.Category + " " + q.Title + " " + q.Description
}

// Validate reports an InvalidQuery error for an unusable result count.
// Call it on a query that has had defaults applied.
func (q Query) Validate() error {
	switch {
	case q.ResultCount < 0:
		return &Error{Kind: KindInvalidQuery, Op: "validate", Err: fmt.Errorf("result count must be positive, got %d", q.ResultCount)}
	case q.ResultCount > MaxResultCount:
		return &Error{Kind: KindInvalidQuery, Op: "validate", Err: fmt.Errorf("result count %d exceeds maximum %d", q.ResultCount, MaxResultCount)}
	}
	return nil
}

// Info echoes the query in the shape comparison responses use.
func (q Query) Info() QueryInfo {
	return QueryInfo{
		Category:    q.Category,
		Title:       q.Title,
		Description: q.Description,
		University:  q.Institution,
		TopK:        q.ResultCount,
	}
}

func (q Query) withDefaults() Query {
	if q.Institution == "" {
		q.Institution = DefaultInstitution
	}
	if q.ResultCount == 0 {
		q.ResultCount = DefaultResultCount
	}
	return q
}
