package index

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements Searcher backed by a Qdrant instance. One client
// serves every pattern; the collection and named vector come from the request.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex connects to Qdrant and verifies that every collection in
// collections exists. Collections are never created here: building the index
// is the job of the ingestion tooling, and a missing collection is a
// misconfiguration that should fail at startup.
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig, collections ...string) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	for _, name := range collections {
		if err := idx.checkCollection(ctx, name); err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	return idx, nil
}

// Client exposes the underlying gRPC client for readiness probes.
func (s *QdrantIndex) Client() *qdrant.Client {
	return s.client
}

// checkCollection returns an error if the named collection does not exist.
func (s *QdrantIndex) checkCollection(ctx context.Context, name string) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection %q: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("qdrant: collection %q does not exist", name)
	}
	return nil
}

// Search runs a named-vector query with a full-text payload filter and
// returns the hits in the order Qdrant scored them.
func (s *QdrantIndex) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	points, err := s.client.Query(ctx, queryPoints(req))
	if err != nil {
		return nil, fmt.Errorf("qdrant: search %q failed: %w", req.Collection, err)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, hitFromPoint(p))
	}
	return hits, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

// queryPoints translates a SearchRequest into a Qdrant Query API request.
func queryPoints(req SearchRequest) *qdrant.QueryPoints {
	limit := uint64(req.K) //nolint:gosec // K is validated positive by the caller

	qp := &qdrant.QueryPoints{
		CollectionName: req.Collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayloadInclude(req.Fields...),
	}
	if req.VectorField != "" {
		qp.Using = qdrant.PtrOf(req.VectorField)
	}
	if req.Filter.Field != "" {
		qp.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchText(req.Filter.Field, req.Filter.Text),
			},
		}
	}
	return qp
}

// hitFromPoint converts a scored point into a Hit. Null payload values are
// dropped so callers see them as missing.
func hitFromPoint(p *qdrant.ScoredPoint) Hit {
	score := float64(p.GetScore())
	hit := Hit{
		ID:     pointID(p.GetId()),
		Fields: make(map[string]string, len(p.GetPayload())),
		Score:  &score,
	}
	for k, v := range p.GetPayload() {
		if s, ok := valueString(v); ok {
			hit.Fields[k] = s
		}
	}
	if id, ok := hit.Fields[FieldID]; ok && id != "" {
		hit.ID = id
	}
	return hit
}

// pointID renders a Qdrant point id as a string.
func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// valueString flattens a payload value to text. Lists are joined with ", ".
// The second return value is false for null or unsupported values.
func valueString(v *qdrant.Value) (string, bool) {
	if v == nil {
		return "", false
	}
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue, true
	case *qdrant.Value_IntegerValue:
		return strconv.FormatInt(k.IntegerValue, 10), true
	case *qdrant.Value_DoubleValue:
		return strconv.FormatFloat(k.DoubleValue, 'f', -1, 64), true
	case *qdrant.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue), true
	case *qdrant.Value_ListValue:
		items := k.ListValue.GetValues()
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := valueString(item); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), true
	default:
		return "", false
	}
}
