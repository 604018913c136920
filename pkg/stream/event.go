// Package stream delivers ordered progress events from the workflow
// executor to a single subscribed client per session.
package stream

import (
	"time"

	"github.com/google/uuid"

	"github.com/agentic-navigator/navigator/pkg/models"
)

// EventStatus is the client-visible state an event reports.
type EventStatus string

const (
	StatusQueued     EventStatus = "queued"
	StatusProcessing EventStatus = "processing"
	StatusComplete   EventStatus = "complete"
	StatusError      EventStatus = "error"
	// StatusBufferOverflow marks that older events were evicted from a
	// full buffer.
	StatusBufferOverflow EventStatus = "buffer_overflow"
)

// EventMetadata carries progress bookkeeping for an event.
type EventMetadata struct {
	ElapsedMS     int64    `json:"elapsed_ms"`
	Step          int      `json:"step"`
	TotalSteps    int      `json:"total_steps"`
	AgentSequence []string `json:"agent_sequence"`
}

// EventPayload carries the client-visible slice of an agent's output.
type EventPayload struct {
	Summary        string                      `json:"summary,omitempty"`
	Entities       []string                    `json:"entities,omitempty"`
	Relationships  []models.EntityRelationship `json:"relationships,omitempty"`
	Visualization  *models.GraphJSON           `json:"visualization,omitempty"`
	Error          models.ErrorKind            `json:"error,omitempty"`
	ErrorDetails   string                      `json:"error_details,omitempty"`
	PartialResults map[string]any              `json:"partial_results,omitempty"`
}

// AgentEvent is one frame on the progress stream.
type AgentEvent struct {
	ID        string         `json:"id"`
	Agent     string         `json:"agent"`
	Status    EventStatus    `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  *EventMetadata `json:"metadata,omitempty"`
	Payload   *EventPayload  `json:"payload,omitempty"`
}

// NewEvent creates an event stamped with a fresh id and the current time.
func NewEvent(agent string, status EventStatus) *AgentEvent {
	return &AgentEvent{
		ID:        "evt_" + uuid.NewString(),
		Agent:     agent,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}
