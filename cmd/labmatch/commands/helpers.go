package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"

	"github.com/54b3r/labmatch-go/internal/embedder"
	"github.com/54b3r/labmatch-go/internal/explain"
	"github.com/54b3r/labmatch-go/internal/index"
	"github.com/54b3r/labmatch-go/internal/match"
	"github.com/54b3r/labmatch-go/internal/provider"
	"github.com/54b3r/labmatch-go/internal/store"
	"github.com/54b3r/labmatch-go/internal/tracing"
	"github.com/54b3r/labmatch-go/internal/version"
)

// engine bundles everything a search needs. Close releases it in reverse
// construction order.
type engine struct {
	retriever  *match.Retriever
	comparator *match.Comparator
	searcher   index.Searcher
	history    store.HistoryStore
	closers    []func()
}

// Close releases all resources held by the engine.
func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// buildEngine wires provider, embedder, index, explanation pool, retriever,
// comparator and history log from the environment. obs may be nil.
// On error every resource opened so far is released.
func buildEngine(ctx context.Context, log *slog.Logger, obs match.Observer) (_ *engine, err error) {
	e := &engine{}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	if flush, ok := tracing.Register(tracing.ConfigFromEnv(version.Version)); ok {
		e.closers = append(e.closers, flush)
		log.Info("langfuse tracing enabled")
	} else {
		log.Debug("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY or LANGFUSE_SECRET_KEY not set"))
	}

	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)

	embCfg := embedder.ConfigFromEnv()
	if err := embedder.ValidateForIndex(log, embCfg, os.Getenv("EMBEDDING_PROVIDER") != ""); err != nil {
		return nil, fmt.Errorf("invalid embedding configuration: %w", err)
	}
	emb, err := embedder.New(embCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	idxCfg := index.ConfigFromEnv()
	searcher, err := index.New(ctx, idxCfg, match.Collections()...)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s index: %w", idxCfg.Backend, err)
	}
	e.searcher = searcher
	e.closers = append(e.closers, func() { _ = searcher.Close() })
	log.Info("index opened", slog.String("backend", string(idxCfg.Backend)))

	matchCfg := match.ConfigFromEnv()
	gen, err := explain.NewGenerator(chatModel, matchCfg.Explain)
	if err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(matchCfg.ExplainConcurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create explanation pool: %w", err)
	}
	e.closers = append(e.closers, pool.Release)

	e.retriever, err = match.NewRetriever(emb, searcher, gen,
		match.WithPool(pool),
		match.WithRetry(matchCfg.Retry),
		match.WithObserver(obs),
	)
	if err != nil {
		return nil, err
	}
	e.comparator = match.NewComparator(e.retriever, obs)

	e.history = openHistory(log)
	if e.history != nil {
		h := e.history
		e.closers = append(e.closers, func() { _ = h.Close() })
	}

	return e, nil
}

// openHistory opens the search history log. LABMATCH_HISTORY_DB overrides the
// default path (~/.labmatch/history.db); "disabled" turns it off. Failures
// disable history rather than the command.
func openHistory(log *slog.Logger) store.HistoryStore {
	dbPath := os.Getenv("LABMATCH_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via LABMATCH_HISTORY_DB=disabled")
		return nil
	}
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
		dbPath = p
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Debug("history: store opened", slog.String("path", dbPath))
	return hs
}

// record writes e to the history log if one is open.
func (e *engine) record(ctx context.Context, log *slog.Logger, entry store.Entry) {
	if e.history == nil {
		return
	}
	if _, err := e.history.Record(ctx, entry); err != nil {
		log.Warn("history: record failed", slog.Any("error", err))
	}
}

// queryFlags holds the flags shared by search and compare.
type queryFlags struct {
	category    string
	title       string
	description string
	university  string
	topK        int
}

// register adds the query flags to cmd.
func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "category", "", "Request category (e.g. AI)")
	cmd.Flags().StringVar(&f.title, "title", "", "Project title")
	cmd.Flags().StringVar(&f.description, "description", "", "Project description")
	cmd.Flags().StringVar(&f.university, "university", "", "Affiliation filter (default: "+match.DefaultInstitution+")")
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", match.DefaultResultCount, "Number of candidates to return")
}

// query builds a defaulted, validated query from the flags.
func (f *queryFlags) query() (match.Query, error) {
	return match.NewQuery(f.category, f.title, f.description, f.university, f.topK)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// getEnvOrDefault returns the named env var or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the named env var as an int, or fallback.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the named env var as a float64, or fallback.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration returns the named env var as a duration, or fallback.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
