package explain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/labmatch-go/internal/budget"
	"github.com/54b3r/labmatch-go/internal/index"
	"github.com/54b3r/labmatch-go/internal/logging"
)

// DefaultMaxTokens caps each explanation's length.
const DefaultMaxTokens = 300

// Config controls generation.
type Config struct {
	// MaxTokens caps the generated explanation. Zero uses DefaultMaxTokens.
	MaxTokens int
	// PromptTokenBudget is the estimated prompt size above which a warning is
	// logged. Zero uses budget.DefaultPromptTokens; negative disables it.
	PromptTokenBudget int
}

// Generator produces explanations with a chat model. It holds no per-call
// state and is safe for concurrent use if the model is.
type Generator struct {
	model        model.BaseChatModel
	maxTokens    int
	promptBudget int
}

// NewGenerator returns a Generator backed by m.
func NewGenerator(m model.BaseChatModel, cfg Config) (*Generator, error) {
	if m == nil {
		return nil, fmt.Errorf("explain: chat model must not be nil")
	}
	g := &Generator{
		model:        m,
		maxTokens:    cfg.MaxTokens,
		promptBudget: cfg.PromptTokenBudget,
	}
	if g.maxTokens <= 0 {
		g.maxTokens = DefaultMaxTokens
	}
	if g.promptBudget == 0 {
		g.promptBudget = budget.DefaultPromptTokens
	}
	return g, nil
}

// Messages builds the two-message exchange for one candidate.
func Messages(t *Template, queryText string, hit index.Hit) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(t.System),
		schema.UserMessage(t.Prompt(queryText, hit)),
	}
}

// Explain asks the model why hit suits queryText and returns the reply
// content unmodified. Any model error is returned wrapped.
func (g *Generator) Explain(ctx context.Context, t *Template, queryText string, hit index.Hit) (string, error) {
	log := logging.FromContext(ctx)
	msgs := Messages(t, queryText, hit)

	if n, ok := budget.Fits(msgs, g.promptBudget); !ok {
		log.Warn("explain: prompt exceeds token budget",
			slog.String("pattern", t.Name),
			slog.String("researcher_id", hit.Get(index.FieldResearcherID)),
			slog.Int("estimated_tokens", n),
			slog.Int("budget", g.promptBudget),
		)
	}

	resp, err := g.model.Generate(ctx, msgs,
		model.WithTemperature(0),
		model.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("explain: pattern %s: generate: %w", t.Name, err)
	}
	if resp == nil {
		return "", fmt.Errorf("explain: pattern %s: empty response", t.Name)
	}

	log.Debug("explain: generated",
		slog.String("pattern", t.Name),
		slog.String("researcher_id", hit.Get(index.FieldResearcherID)),
		slog.Int("chars", len(resp.Content)),
	)
	return resp.Content, nil
}
