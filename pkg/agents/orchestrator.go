// Package agents provides the built-in deterministic agent plug-ins.
// They implement the same capability interface as external LLM-backed
// agents and power the default pipeline and the test suite.
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentic-navigator/navigator/pkg/models"
	"github.com/agentic-navigator/navigator/pkg/workflow"
)

// codeMarkers are cheap signals that raw input is source code.
var codeMarkers = []string{"package ", "import ", "func ", "class ", "def ", "#include", "{", "};"}

// Orchestrator classifies the input and records its plan notes. It owns
// content_type (when undetermined) and the orchestrator_notes insight.
type Orchestrator struct{}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{}
}

func (o *Orchestrator) Name() string {
	return models.AgentOrchestrator
}

func (o *Orchestrator) Process(ctx context.Context, view *models.SessionContext, opts workflow.Options) (*workflow.PartialResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contentType := view.ContentType
	if contentType == "" {
		contentType = detectContentType(view.RawInput)
	}

	notes := fmt.Sprintf("content_type=%s input_chars=%d model_type=%s",
		contentType, len(view.RawInput), opts.ModelType)

	return &workflow.PartialResult{
		ContentType: contentType,
		SummaryInsights: map[string]any{
			"orchestrator_notes": notes,
		},
	}, nil
}

func detectContentType(input string) models.ContentType {
	hits := 0
	for _, marker := range codeMarkers {
		if strings.Contains(input, marker) {
			hits++
		}
	}
	if hits >= 2 {
		return models.ContentTypeCodebase
	}
	return models.ContentTypeDocument
}
