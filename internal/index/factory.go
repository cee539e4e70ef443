package index

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Backend enumerates the supported vector search backends.
type Backend string

const (
	// BackendQdrant selects a Qdrant instance over gRPC.
	BackendQdrant Backend = "qdrant"
	// BackendPGVector selects Postgres with the pgvector extension.
	BackendPGVector Backend = "pgvector"
)

// Config selects a backend and carries its settings.
type Config struct {
	// Backend identifies which vector store to use.
	Backend Backend

	// Qdrant holds settings for BackendQdrant.
	Qdrant QdrantConfig

	// PGVector holds settings for BackendPGVector.
	PGVector PGVectorConfig
}

// ConfigFromEnv resolves the index configuration from environment variables.
//
//	INDEX_BACKEND     = qdrant | pgvector (default: qdrant)
//	QDRANT_HOST       (default: localhost)
//	QDRANT_PORT       (default: 6334)
//	QDRANT_API_KEY
//	QDRANT_TLS        = true | false
//	PGVECTOR_DSN
//	PGVECTOR_MAX_CONNS
func ConfigFromEnv() *Config {
	return &Config{
		Backend: Backend(getEnvOrDefault("INDEX_BACKEND", string(BackendQdrant))),
		Qdrant: QdrantConfig{
			Host:   getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:   getEnvInt("QDRANT_PORT", 6334),
			APIKey: os.Getenv("QDRANT_API_KEY"),
			UseTLS: os.Getenv("QDRANT_TLS") == "true",
		},
		PGVector: PGVectorConfig{
			DSN:      os.Getenv("PGVECTOR_DSN"),
			MaxConns: int32(getEnvInt("PGVECTOR_MAX_CONNS", 0)), //nolint:gosec // small config value
		},
	}
}

// New constructs the configured Searcher. For Qdrant, collections are checked
// for existence before returning.
func New(ctx context.Context, cfg *Config, collections ...string) (Searcher, error) {
	switch cfg.Backend {
	case BackendQdrant:
		return NewQdrantIndex(ctx, &cfg.Qdrant, collections...)
	case BackendPGVector:
		return NewPGVectorIndex(ctx, &cfg.PGVector)
	default:
		return nil, fmt.Errorf("index: unknown backend %q (valid values: qdrant, pgvector)", cfg.Backend)
	}
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
