package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// PGVectorConfig holds connection parameters for the Postgres + pgvector backend.
type PGVectorConfig struct {
	// DSN is the libpq-style connection string or postgres:// URL.
	DSN string

	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32
}

// PGVectorIndex implements Searcher on Postgres with the pgvector extension.
// Each pattern collection maps to a table; each named vector maps to a
// vector column of that table. Similarity is cosine: score = 1 - distance.
type PGVectorIndex struct {
	// pool is the shared connection pool.
	pool *pgxpool.Pool
}

// NewPGVectorIndex opens a pool against cfg.DSN and pings the database.
func NewPGVectorIndex(ctx context.Context, cfg *PGVectorConfig) (*PGVectorIndex, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector: DSN must not be empty")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector: parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgvector: failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: failed to ping database: %w", err)
	}

	return &PGVectorIndex{pool: pool}, nil
}

// Ping checks database reachability.
func (s *PGVectorIndex) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Search runs an ORDER BY distance query against the request's table.
func (s *PGVectorIndex) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	sql, args := buildPGQuery(req)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search %q failed: %w", req.Collection, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		values := make([]*string, len(req.Fields))
		dest := make([]any, 0, len(req.Fields)+1)
		for i := range values {
			dest = append(dest, &values[i])
		}
		var score float64
		dest = append(dest, &score)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("pgvector: scan %q: %w", req.Collection, err)
		}

		hit := Hit{Fields: make(map[string]string, len(req.Fields)), Score: &score}
		for i, name := range req.Fields {
			if values[i] != nil {
				hit.Fields[name] = *values[i]
			}
		}
		hit.ID = hit.Fields[FieldID]
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: rows %q: %w", req.Collection, err)
	}
	return hits, nil
}

// Close releases the connection pool.
func (s *PGVectorIndex) Close() error {
	s.pool.Close()
	return nil
}

// buildPGQuery renders the SQL and arguments for req. Identifiers come from
// the fixed pattern table and are quoted; user input only travels as arguments.
func buildPGQuery(req SearchRequest) (string, []any) {
	vectorCol := pgx.Identifier{req.VectorField}.Sanitize()

	cols := make([]string, 0, len(req.Fields)+1)
	for _, f := range req.Fields {
		cols = append(cols, pgx.Identifier{f}.Sanitize()+"::text")
	}
	cols = append(cols, fmt.Sprintf("1 - (%s <=> $1::vector) AS score", vectorCol))

	args := []any{pgvector.NewVector(req.Vector)}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(cols, ", "), pgx.Identifier{req.Collection}.Sanitize())
	if req.Filter.Field != "" {
		args = append(args, escapeLike(req.Filter.Text))
		fmt.Fprintf(&sb, " WHERE %s ILIKE '%%' || $%d || '%%'", pgx.Identifier{req.Filter.Field}.Sanitize(), len(args))
	}
	args = append(args, req.K)
	fmt.Fprintf(&sb, " ORDER BY %s <=> $1::vector LIMIT $%d", vectorCol, len(args))

	return sb.String(), args
}

// escapeLike escapes LIKE wildcards so the filter text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
