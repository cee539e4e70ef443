package embedder

import (
	"log/slog"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are not suitable for embedding.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// ValidateForIndex validates cfg and logs warnings for configurations that will
// build but likely return useless vectors: an inherited backend nobody chose
// explicitly, or a chat model configured as the embedding model. Query
// vectors must come from the same model that embedded the index.
func ValidateForIndex(log *slog.Logger, cfg *Config, explicitBackend bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !explicitBackend && cfg.Backend != "ollama" {
		log.Warn("embedder: EMBEDDING_PROVIDER is not set; inheriting MODEL_PROVIDER as embedding backend",
			slog.String("backend", cfg.Backend),
			slog.String("hint", "set EMBEDDING_PROVIDER to the backend that embedded the index"),
		)
	}

	if looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: embedding model looks like a chat model; search quality will suffer",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}
