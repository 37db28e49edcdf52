// Package insight turns questionnaire answers into a structured Insight by
// prompting the completion service and parsing its JSON reply.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scentmatch/scentmatch/engine/domain"
)

// Completer abstracts the text completion service.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator builds prompts and parses completions into Insights.
type Generator struct {
	completer Completer
	logger    *slog.Logger
}

// New creates a Generator.
func New(completer Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{completer: completer, logger: logger}
}

// Generate prompts the completion service with all ten answers and parses
// the reply. Replies wrapped in a markdown code fence are unwrapped before
// parsing. The returned Insight always carries a non-empty query.
func (g *Generator) Generate(ctx context.Context, answers domain.QuestionnaireAnswers) (domain.Insight, error) {
	prompt := BuildPrompt(answers)

	raw, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		return domain.Insight{}, fmt.Errorf("insight: complete: %w", err)
	}
	g.logger.Debug("completion received", "len", len(raw))

	parsed, err := parseInsight(raw)
	if err != nil {
		return domain.Insight{}, err
	}
	if err := domain.ValidateInsight(parsed); err != nil {
		return domain.Insight{}, err
	}
	return parsed, nil
}

// parseInsight strips an optional markdown fence and unmarshals the reply.
func parseInsight(raw string) (domain.Insight, error) {
	cleaned := stripFence(raw)

	var in domain.Insight
	if err := json.Unmarshal([]byte(cleaned), &in); err != nil {
		return domain.Insight{}, fmt.Errorf("%w: %v", domain.ErrInsightMalformed, err)
	}
	return in, nil
}

// stripFence removes a leading ```json (or bare ```) line and a trailing
// ``` line. Anything else is returned trimmed but untouched.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
