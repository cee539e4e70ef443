package match

import (
	"os"
	"strconv"
	"time"

	"github.com/54b3r/labmatch-go/internal/explain"
)

// Config holds engine tuning resolved once at startup.
type Config struct {
	// ExplainConcurrency sizes the shared explanation pool.
	ExplainConcurrency int
	// Explain tunes each generation call.
	Explain explain.Config
	// Retry applies to embed, search and explain calls.
	Retry RetryPolicy
}

// ConfigFromEnv resolves engine tuning from environment variables.
//
//	MATCH_EXPLAIN_CONCURRENCY     (default: 4, non-positive values use the default)
//	MATCH_EXPLAIN_MAX_TOKENS      (default: 300)
//	MATCH_PROMPT_TOKEN_BUDGET     (default: 2000, negative disables)
//	MATCH_RETRY_MAX               (default: 0, no retries)
//	MATCH_RETRY_INITIAL_INTERVAL  (default: 500ms)
func ConfigFromEnv() *Config {
	return &Config{
		ExplainConcurrency: getEnvPositiveInt("MATCH_EXPLAIN_CONCURRENCY", DefaultExplainConcurrency),
		Explain: explain.Config{
			MaxTokens:         getEnvInt("MATCH_EXPLAIN_MAX_TOKENS", explain.DefaultMaxTokens),
			PromptTokenBudget: getEnvInt("MATCH_PROMPT_TOKEN_BUDGET", 0),
		},
		Retry: RetryPolicy{
			MaxRetries:      getEnvInt("MATCH_RETRY_MAX", 0),
			InitialInterval: getEnvDuration("MATCH_RETRY_INITIAL_INTERVAL", 500*time.Millisecond),
		},
	}
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

// getEnvPositiveInt is getEnvInt for values that must be at least 1.
// ants treats a non-positive pool size as unlimited.
func getEnvPositiveInt(key string, fallback int) int {
	if i := getEnvInt(key, fallback); i > 0 {
		return i
	}
	return fallback
}

// getEnvDuration parses a Go duration string, falling back on error.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
