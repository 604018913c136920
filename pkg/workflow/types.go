// Package workflow drives the agent pipeline over a shared
// SessionContext: strict sequential execution, per-step persistence,
// progress events and A2A messaging.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentic-navigator/navigator/pkg/config"
	"github.com/agentic-navigator/navigator/pkg/models"
)

// Options is the per-invocation contract handed to every agent plug-in.
// Cancellation travels in the context.
type Options struct {
	ModelType     config.ModelType
	CorrelationID string
}

// PartialResult is an agent's typed delta. The executor merges only the
// fields the agent owns; Extra keys are logged and ignored.
type PartialResult struct {
	ContentType     models.ContentType
	SummaryText     string
	SummaryInsights map[string]any
	KeyEntities     []string
	Relationships   []models.EntityRelationship
	EntityMetadata  map[string]map[string]any
	GraphJSON       *models.GraphJSON
	Extra           map[string]any
}

// AgentPlugin is the capability interface every agent implements. The
// context view is a private clone; mutations to it are discarded.
type AgentPlugin interface {
	Name() string
	Process(ctx context.Context, view *models.SessionContext, opts Options) (*PartialResult, error)
}

// AgentError lets a plug-in attribute a taxonomy kind to its failure.
// Plain errors default to agent_fault.
type AgentError struct {
	Kind models.ErrorKind
	Err  error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// classifyAgentError maps a plug-in failure onto the error taxonomy.
func classifyAgentError(err error) models.ErrorKind {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Kind
	}
	if errors.Is(err, context.Canceled) {
		return models.ErrorKindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorKindResourceExhausted
	}
	return models.ErrorKindAgentFault
}
