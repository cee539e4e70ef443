// Package index defines the vector search port used by the matching engine
// and the concrete backends that satisfy it (Qdrant, Postgres + pgvector).
// The engine never depends on a specific backend: it hands a SearchRequest
// naming the collection, the vector field and the projected fields, and gets
// back ordered hits.
package index

import (
	"context"
)

// Field names of the researcher documents stored in every pattern collection.
// The same names are used as Qdrant payload keys and as pgvector column names.
const (
	FieldID                  = "id"
	FieldResearcherID        = "researcher_id"
	FieldAffiliation         = "researcher_affiliation_current"
	FieldPosition            = "researcher_position_current"
	FieldKeywords            = "keywords_pi"
	FieldProjectTitle        = "research_project_title"
	FieldProjectDetails      = "research_project_details"
	FieldAchievement         = "research_achievement"
	FieldPublicationTitle    = "publication_title"
	FieldPublicationAbstract = "description_publication"
)

// BaseFields is the projection every pattern requests.
var BaseFields = []string{
	FieldID,
	FieldResearcherID,
	FieldAffiliation,
	FieldPosition,
	FieldKeywords,
}

// Filter restricts a search to documents whose Field matches Text.
// Matching is substring/full-text as implemented by the backend, never
// exact equality.
type Filter struct {
	// Field is the document field the filter applies to.
	Field string

	// Text is the value that must be matched inside Field.
	Text string
}

// SearchRequest is a single k-nearest-neighbour query against one collection.
type SearchRequest struct {
	// Collection is the collection (Qdrant) or table (pgvector) to query.
	Collection string

	// VectorField is the named vector inside the collection.
	VectorField string

	// Vector is the query embedding.
	Vector []float32

	// K is the number of neighbours requested.
	K int

	// Filter is applied server-side. A zero Filter disables filtering.
	Filter Filter

	// Fields is the projection returned for each hit.
	Fields []string
}

// Hit is a raw document returned by a vector search, before formatting.
type Hit struct {
	// ID is the backend document identifier.
	ID string

	// Fields holds the projected field values. Fields absent or null in the
	// backend are not present in the map.
	Fields map[string]string

	// Score is the backend relevance score (higher is more similar).
	// Nil when the backend did not report one.
	Score *float64
}

// Field returns the value of name and whether it was present.
func (h Hit) Field(name string) (string, bool) {
	v, ok := h.Fields[name]
	return v, ok
}

// Get returns the value of name, or "" if absent.
func (h Hit) Get(name string) string {
	return h.Fields[name]
}

// Searcher is the interface for pattern-scoped vector similarity search.
// Implementations must be safe to call from multiple goroutines and must
// return hits in relevance order.
type Searcher interface {
	// Search runs req and returns at most req.K hits, most relevant first.
	Search(ctx context.Context, req SearchRequest) ([]Hit, error)

	// Close releases any resources held by the backend.
	Close() error
}
