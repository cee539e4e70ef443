package index

import (
	"reflect"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

func TestQueryPoints_NamedVectorAndFilter(t *testing.T) {
	t.Parallel()

	req := SearchRequest{
		Collection:  "science_tokyo_pattern_b",
		VectorField: "science_tokyo_pattern_b",
		Vector:      []float32{0.1, 0.2, 0.3},
		K:           7,
		Filter:      Filter{Field: FieldAffiliation, Text: "東京科学大学"},
		Fields:      []string{FieldResearcherID, FieldKeywords},
	}

	qp := queryPoints(req)

	if qp.GetCollectionName() != req.Collection {
		t.Errorf("collection: got %q, want %q", qp.GetCollectionName(), req.Collection)
	}
	if qp.GetUsing() != req.VectorField {
		t.Errorf("using: got %q, want %q", qp.GetUsing(), req.VectorField)
	}
	if qp.GetLimit() != 7 {
		t.Errorf("limit: got %d, want 7", qp.GetLimit())
	}

	must := qp.GetFilter().GetMust()
	if len(must) != 1 {
		t.Fatalf("want 1 filter condition, got %d", len(must))
	}
	field := must[0].GetField()
	if field.GetKey() != FieldAffiliation {
		t.Errorf("filter key: got %q", field.GetKey())
	}
	if field.GetMatch().GetText() != "東京科学大学" {
		t.Errorf("filter text: got %q", field.GetMatch().GetText())
	}

	include := qp.GetWithPayload().GetInclude().GetFields()
	if !reflect.DeepEqual(include, req.Fields) {
		t.Errorf("payload include: got %v, want %v", include, req.Fields)
	}
}

func TestQueryPoints_NoFilterNoVectorName(t *testing.T) {
	t.Parallel()

	qp := queryPoints(SearchRequest{Collection: "c", Vector: []float32{1}, K: 1})
	if qp.Filter != nil {
		t.Error("expected no filter when Filter.Field is empty")
	}
	if qp.Using != nil {
		t.Error("expected no Using when VectorField is empty")
	}
}

func TestHitFromPoint(t *testing.T) {
	t.Parallel()

	p := &qdrant.ScoredPoint{
		Id:    qdrant.NewIDNum(42),
		Score: 0.5,
		Payload: qdrant.NewValueMap(map[string]any{
			FieldResearcherID: "90123456",
			FieldKeywords:     []any{"deep learning", "MRI"},
			"count":           int64(3),
		}),
	}
	p.Payload[FieldPosition] = qdrant.NewValueNull()

	hit := hitFromPoint(p)

	if hit.ID != "42" {
		t.Errorf("id: got %q, want 42", hit.ID)
	}
	if hit.Score == nil || *hit.Score != 0.5 {
		t.Errorf("score: got %v, want 0.5", hit.Score)
	}
	if got := hit.Get(FieldResearcherID); got != "90123456" {
		t.Errorf("researcher_id: got %q", got)
	}
	if got := hit.Get(FieldKeywords); got != "deep learning, MRI" {
		t.Errorf("keywords: got %q", got)
	}
	if got := hit.Get("count"); got != "3" {
		t.Errorf("count: got %q", got)
	}
	if _, ok := hit.Field(FieldPosition); ok {
		t.Error("null payload value must be treated as missing")
	}
}

func TestHitFromPoint_PayloadIDWins(t *testing.T) {
	t.Parallel()

	p := &qdrant.ScoredPoint{
		Id:      qdrant.NewIDUUID("5c56c793-69f3-4fbf-87e6-c4bf54c28c26"),
		Payload: qdrant.NewValueMap(map[string]any{FieldID: "doc-1"}),
	}
	if got := hitFromPoint(p).ID; got != "doc-1" {
		t.Errorf("id: got %q, want doc-1", got)
	}
}
