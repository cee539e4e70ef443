package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: azure
  max_tokens: 400
  azure:
    endpoint: https://my-resource.openai.azure.com
    deployment: gpt-4o
    api_version: "2025-04-01-preview"
embedding:
  provider: openai
  model: text-embedding-3-small
index:
  backend: pgvector
  pgvector:
    dsn: postgres://labmatch@db:5432/labmatch
    max_conns: 8
match:
  explain_concurrency: 6
  retry_max: 2
  retry_initial_interval: 250ms
server:
  port: 9000
  search_timeout: 90s
  rate_limit_rps: 0.5
logging:
  level: debug
  format: text
history:
  db_path: /var/lib/labmatch/history.db
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	envKeys := []string{
		"MODEL_PROVIDER", "MODEL_MAX_TOKENS",
		"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_API_VERSION",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"INDEX_BACKEND", "PGVECTOR_DSN", "PGVECTOR_MAX_CONNS",
		"MATCH_EXPLAIN_CONCURRENCY", "MATCH_RETRY_MAX", "MATCH_RETRY_INITIAL_INTERVAL",
		"SERVER_PORT", "SEARCH_TIMEOUT", "RATE_LIMIT_RPS",
		"LOG_LEVEL", "LOG_FORMAT", "LABMATCH_HISTORY_DB",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	loaded, err := Load(cfgPath, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":               "azure",
		"MODEL_MAX_TOKENS":             "400",
		"AZURE_OPENAI_ENDPOINT":        "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT":      "gpt-4o",
		"AZURE_OPENAI_API_VERSION":     "2025-04-01-preview",
		"EMBEDDING_PROVIDER":           "openai",
		"EMBEDDING_MODEL":              "text-embedding-3-small",
		"INDEX_BACKEND":                "pgvector",
		"PGVECTOR_DSN":                 "postgres://labmatch@db:5432/labmatch",
		"PGVECTOR_MAX_CONNS":           "8",
		"MATCH_EXPLAIN_CONCURRENCY":    "6",
		"MATCH_RETRY_MAX":              "2",
		"MATCH_RETRY_INITIAL_INTERVAL": "250ms",
		"SERVER_PORT":                  "9000",
		"SEARCH_TIMEOUT":               "1m30s",
		"RATE_LIMIT_RPS":               "0.5",
		"LOG_LEVEL":                    "debug",
		"LOG_FORMAT":                   "text",
		"LABMATCH_HISTORY_DB":          "/var/lib/labmatch/history.db",
	}
	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
index:
  backend: qdrant
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("INDEX_BACKEND", "pgvector")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("INDEX_BACKEND"); got != "pgvector" {
		t.Errorf("INDEX_BACKEND: expected env override %q, got %q", "pgvector", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, slog.Default()); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestParse_UnknownKey(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("qdrant:\n  host: old-layout\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(cfgPath); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestParse_EmptyFile(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Parse(cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Index.Backend != "" {
		t.Errorf("expected zero config, got backend %q", cfg.Index.Backend)
	}
}

func TestParse_Durations(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server:\n  search_timeout: 2m\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Parse(cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.SearchTimeout != 2*time.Minute {
		t.Errorf("search_timeout: got %v, want 2m", cfg.Server.SearchTimeout)
	}
}

func TestResolveConfigPath_EnvVar(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(cfgPath, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LABMATCH_CONFIG", cfgPath)

	if got := resolveConfigPath(""); got != cfgPath {
		t.Errorf("resolveConfigPath: got %q, want %q", got, cfgPath)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("QDRANT_HOST=qdrant.lab\nOLLAMA_MODEL=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("QDRANT_HOST", "")
	os.Unsetenv("QDRANT_HOST")
	t.Setenv("OLLAMA_MODEL", "from-shell")

	if err := LoadDotEnv(slog.Default(), envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("QDRANT_HOST"); got != "qdrant.lab" {
		t.Errorf("QDRANT_HOST: got %q, want qdrant.lab", got)
	}
	if got := os.Getenv("OLLAMA_MODEL"); got != "from-shell" {
		t.Errorf("OLLAMA_MODEL: shell value must win, got %q", got)
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDurationStr(t *testing.T) {
	t.Parallel()
	if got := durationStr(0); got != "" {
		t.Errorf("durationStr(0) = %q", got)
	}
	if got := durationStr(500 * time.Millisecond); got != "500ms" {
		t.Errorf("durationStr(500ms) = %q", got)
	}
}
