package agents

import (
	"context"
	"strings"

	"github.com/agentic-navigator/navigator/pkg/models"
	"github.com/agentic-navigator/navigator/pkg/workflow"
)

// Summariser produces an extractive summary: the leading sentences up to
// a budget, plus basic corpus insights. It owns summary_text and
// summary_insights.
type Summariser struct {
	maxSentences int
}

func NewSummariser() *Summariser {
	return &Summariser{maxSentences: 3}
}

func (s *Summariser) Name() string {
	return models.AgentSummariser
}

func (s *Summariser) Process(ctx context.Context, view *models.SessionContext, opts workflow.Options) (*workflow.PartialResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sentences := splitSentences(view.RawInput)
	take := len(sentences)
	if take > s.maxSentences {
		take = s.maxSentences
	}
	summary := strings.TrimSpace(strings.Join(sentences[:take], " "))
	if summary == "" {
		summary = strings.TrimSpace(view.RawInput)
	}

	return &workflow.PartialResult{
		SummaryText: summary,
		SummaryInsights: map[string]any{
			"sentence_count": len(sentences),
			"word_count":     len(strings.Fields(view.RawInput)),
			"model_type":     string(opts.ModelType),
		},
	}, nil
}

// splitSentences breaks text on terminal punctuation, keeping the
// punctuation with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
