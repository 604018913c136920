// Package models defines the shared data model for the navigator runtime:
// the SessionContext accumulated across the agent workflow, entity
// relationships, the knowledge-graph payload, and the error taxonomy.
package models

import (
	"time"
)

// ContentType classifies the raw input submitted to a workflow.
type ContentType string

const (
	ContentTypeDocument ContentType = "document"
	ContentTypeCodebase ContentType = "codebase"
)

// WorkflowStatus is the lifecycle state of a session's workflow.
type WorkflowStatus string

const (
	WorkflowStatusPending   WorkflowStatus = "pending"
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
)

// Confidence grades an extracted relationship.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Canonical agent names, in execution order.
const (
	AgentOrchestrator = "orchestrator"
	AgentSummariser   = "summariser"
	AgentLinker       = "linker"
	AgentVisualiser   = "visualiser"
)

// AgentSequence is the canonical execution order of the workflow.
// completed_agents is always a subsequence of this slice.
var AgentSequence = []string{AgentOrchestrator, AgentSummariser, AgentLinker, AgentVisualiser}

// EntityRelationship is a directed, labelled edge between two entities
// extracted by the linker agent.
type EntityRelationship struct {
	Source     string     `json:"source"`
	Target     string     `json:"target"`
	Type       string     `json:"type"`
	Label      string     `json:"label"`
	Confidence Confidence `json:"confidence"`
}

// GraphNode is a node in the rendered knowledge graph.
type GraphNode struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Data  map[string]any `json:"data,omitempty"`
}

// GraphEdge is an edge in the rendered knowledge graph.
type GraphEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// GraphJSON is the visualiser's output: a typed graph layout.
type GraphJSON struct {
	Type  string      `json:"type"` // e.g. "MIND_MAP"
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// ErrorEntry records a single error observed during a workflow run.
type ErrorEntry struct {
	Agent     string    `json:"agent"`
	ErrorKind ErrorKind `json:"error_kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionContext is the single mutable record that accumulates a workflow's
// outputs and status. It is created and mutated only by the executor; agents
// receive a read-only view and return partial results.
type SessionContext struct {
	SessionID   string      `json:"session_id"`
	RawInput    string      `json:"raw_input"`
	ContentType ContentType `json:"content_type"`

	SummaryText     string         `json:"summary_text,omitempty"`
	SummaryInsights map[string]any `json:"summary_insights,omitempty"`

	KeyEntities    []string                  `json:"key_entities,omitempty"`
	Relationships  []EntityRelationship      `json:"relationships,omitempty"`
	EntityMetadata map[string]map[string]any `json:"entity_metadata,omitempty"`

	GraphJSON *GraphJSON `json:"graph_json,omitempty"`

	CompletedAgents []string       `json:"completed_agents"`
	CurrentAgent    string         `json:"current_agent,omitempty"`
	WorkflowStatus  WorkflowStatus `json:"workflow_status"`
	Errors          []ErrorEntry   `json:"errors,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSessionContext creates a pending context for a fresh workflow run.
func NewSessionContext(sessionID, rawInput string, contentType ContentType) *SessionContext {
	now := time.Now().UTC()
	return &SessionContext{
		SessionID:       sessionID,
		RawInput:        rawInput,
		ContentType:     contentType,
		SummaryInsights: make(map[string]any),
		CompletedAgents: []string{},
		WorkflowStatus:  WorkflowStatusPending,
		StartedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy of the context. The executor hands clones to
// agents so a misbehaving plug-in cannot mutate shared state.
func (c *SessionContext) Clone() *SessionContext {
	cp := *c

	cp.SummaryInsights = cloneMap(c.SummaryInsights)

	if c.KeyEntities != nil {
		cp.KeyEntities = append([]string(nil), c.KeyEntities...)
	}
	if c.Relationships != nil {
		cp.Relationships = append([]EntityRelationship(nil), c.Relationships...)
	}
	if c.EntityMetadata != nil {
		cp.EntityMetadata = make(map[string]map[string]any, len(c.EntityMetadata))
		for k, v := range c.EntityMetadata {
			cp.EntityMetadata[k] = cloneMap(v)
		}
	}
	if c.GraphJSON != nil {
		g := *c.GraphJSON
		g.Nodes = append([]GraphNode(nil), c.GraphJSON.Nodes...)
		g.Edges = append([]GraphEdge(nil), c.GraphJSON.Edges...)
		cp.GraphJSON = &g
	}
	if c.CompletedAgents != nil {
		cp.CompletedAgents = append([]string(nil), c.CompletedAgents...)
	}
	if c.Errors != nil {
		cp.Errors = append([]ErrorEntry(nil), c.Errors...)
	}
	return &cp
}

// HasCompleted reports whether the named agent already finished its step.
func (c *SessionContext) HasCompleted(agent string) bool {
	for _, a := range c.CompletedAgents {
		if a == agent {
			return true
		}
	}
	return false
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
