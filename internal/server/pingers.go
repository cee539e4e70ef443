package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/labmatch-go/internal/index"
)

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
type QdrantPinger struct {
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// pinger is anything with a context-aware Ping, such as *index.PGVectorIndex.
type pinger interface {
	Ping(ctx context.Context) error
}

// PostgresPinger probes the pgvector database.
type PostgresPinger struct {
	db pinger
}

// NewPostgresPinger constructs a PostgresPinger over db.
func NewPostgresPinger(db pinger) *PostgresPinger {
	return &PostgresPinger{db: db}
}

// Name returns the dependency label used in readiness responses.
func (p *PostgresPinger) Name() string { return "postgres" }

// Ping checks that a pooled connection can reach the server.
func (p *PostgresPinger) Ping(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// PingersFor returns the readiness probes for the configured index backend.
func PingersFor(s index.Searcher) []Pinger {
	switch v := s.(type) {
	case *index.QdrantIndex:
		return []Pinger{NewQdrantPinger(v.Client())}
	case *index.PGVectorIndex:
		return []Pinger{NewPostgresPinger(v)}
	default:
		return nil
	}
}
