// Package bus implements the in-process A2A message exchange: typed
// messages, priority-ordered bounded queues, signing and authorisation,
// TTL enforcement and a bounded history.
package bus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentic-navigator/navigator/pkg/identity"
	"github.com/agentic-navigator/navigator/pkg/models"
)

// MessageType tags the variant payload carried in a message's data field.
type MessageType string

const (
	MessageTypeTaskDelegation         MessageType = "TaskDelegation"
	MessageTypeSummarizationCompleted MessageType = "SummarizationCompleted"
	MessageTypeRelationshipMapped     MessageType = "RelationshipMapped"
	MessageTypeVisualizationReady     MessageType = "VisualizationReady"
	MessageTypeKnowledgeTransfer      MessageType = "KnowledgeTransfer"
	MessageTypeAgentStatus            MessageType = "AgentStatus"
)

// Priority orders delivery on a recipient queue. Higher ranks drain first.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank returns the ordinal used for queue ordering.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// MessageStatus is the delivery lifecycle of a message.
type MessageStatus string

const (
	StatusPending    MessageStatus = "pending"
	StatusProcessing MessageStatus = "processing"
	StatusCompleted  MessageStatus = "completed"
	StatusFailed     MessageStatus = "failed"
)

// Security carries the sender identity and signature of a message.
type Security struct {
	ServiceAccountID string             `json:"service_account_id"`
	Signature        string             `json:"signature"`
	Algorithm        identity.Algorithm `json:"algorithm"`
	Verified         bool               `json:"verified"`
}

// Trace links a message to its workflow run and parent message.
type Trace struct {
	CorrelationID   string            `json:"correlation_id"`
	ParentMessageID string            `json:"parent_message_id,omitempty"`
	SpanID          string            `json:"span_id"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Typed payloads, one per message type.

// TaskDelegationData asks an agent to run its workflow step.
type TaskDelegationData struct {
	SessionID string `json:"session_id"`
	Task      string `json:"task"`
	Step      int    `json:"step"`
}

// SummarizationCompletedData announces the summariser's output.
type SummarizationCompletedData struct {
	SessionID   string         `json:"session_id"`
	SummaryText string         `json:"summary_text"`
	Insights    map[string]any `json:"insights,omitempty"`
}

// RelationshipMappedData announces the linker's output.
type RelationshipMappedData struct {
	SessionID     string                      `json:"session_id"`
	KeyEntities   []string                    `json:"key_entities"`
	Relationships []models.EntityRelationship `json:"relationships"`
}

// VisualizationReadyData announces the visualiser's output.
type VisualizationReadyData struct {
	SessionID string            `json:"session_id"`
	Graph     *models.GraphJSON `json:"graph"`
}

// KnowledgeTransferData hands arbitrary named fields between agents.
type KnowledgeTransferData struct {
	SessionID string         `json:"session_id"`
	Fields    map[string]any `json:"fields"`
}

// AgentStatusData reports an agent's processing state.
type AgentStatusData struct {
	SessionID string `json:"session_id"`
	Agent     string `json:"agent"`
	State     string `json:"state"`
}

// A2AMessage is one message on the bus.
type A2AMessage struct {
	MessageID  string        `json:"message_id"`
	Type       MessageType   `json:"message_type"`
	FromAgent  string        `json:"from_agent"`
	ToAgent    string        `json:"to_agent"`
	Priority   Priority      `json:"priority"`
	Status     MessageStatus `json:"status"`
	Timestamp  float64       `json:"timestamp"`
	TTLSeconds int           `json:"ttl_seconds"`
	Security   Security      `json:"security"`
	Trace      Trace         `json:"trace"`
	Data       any           `json:"data"`
}

// NewMessage creates a pending message with a fresh id and the current
// wall-clock timestamp. TTL defaults to 0 (no expiry).
func NewMessage(msgType MessageType, fromAgent, toAgent string, priority Priority, data any) *A2AMessage {
	return &A2AMessage{
		MessageID: uuid.NewString(),
		Type:      msgType,
		FromAgent: fromAgent,
		ToAgent:   toAgent,
		Priority:  priority,
		Status:    StatusPending,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Data:      data,
	}
}

// SessionID extracts the workflow session the payload belongs to, or ""
// when the payload carries none.
func (m *A2AMessage) SessionID() string {
	switch d := m.Data.(type) {
	case TaskDelegationData:
		return d.SessionID
	case *TaskDelegationData:
		return d.SessionID
	case SummarizationCompletedData:
		return d.SessionID
	case *SummarizationCompletedData:
		return d.SessionID
	case RelationshipMappedData:
		return d.SessionID
	case *RelationshipMappedData:
		return d.SessionID
	case VisualizationReadyData:
		return d.SessionID
	case *VisualizationReadyData:
		return d.SessionID
	case KnowledgeTransferData:
		return d.SessionID
	case *KnowledgeTransferData:
		return d.SessionID
	case AgentStatusData:
		return d.SessionID
	case *AgentStatusData:
		return d.SessionID
	default:
		return ""
	}
}

// payloadMatches reports whether the data value is the variant the
// message type requires.
func payloadMatches(t MessageType, data any) bool {
	switch t {
	case MessageTypeTaskDelegation:
		_, a := data.(TaskDelegationData)
		_, b := data.(*TaskDelegationData)
		return a || b
	case MessageTypeSummarizationCompleted:
		_, a := data.(SummarizationCompletedData)
		_, b := data.(*SummarizationCompletedData)
		return a || b
	case MessageTypeRelationshipMapped:
		_, a := data.(RelationshipMappedData)
		_, b := data.(*RelationshipMappedData)
		return a || b
	case MessageTypeVisualizationReady:
		_, a := data.(VisualizationReadyData)
		_, b := data.(*VisualizationReadyData)
		return a || b
	case MessageTypeKnowledgeTransfer:
		_, a := data.(KnowledgeTransferData)
		_, b := data.(*KnowledgeTransferData)
		return a || b
	case MessageTypeAgentStatus:
		_, a := data.(AgentStatusData)
		_, b := data.(*AgentStatusData)
		return a || b
	default:
		return false
	}
}

// CanonicalBytes serialises the message in its stable signing form:
// signature and verified flag cleared, then re-encoded through a map so
// keys come out sorted with no insignificant whitespace.
func (m *A2AMessage) CanonicalBytes() ([]byte, error) {
	clone := *m
	clone.Security.Signature = ""
	clone.Security.Verified = false

	structured, err := json.Marshal(&clone)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalise message %s: %w", m.MessageID, err)
	}
	var asMap map[string]any
	if err := json.Unmarshal(structured, &asMap); err != nil {
		return nil, fmt.Errorf("failed to canonicalise message %s: %w", m.MessageID, err)
	}
	canonical, err := json.Marshal(asMap)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalise message %s: %w", m.MessageID, err)
	}
	return canonical, nil
}

// UnmarshalJSON decodes a message with its data field dispatched on
// message_type. Unknown payload fields are rejected.
func (m *A2AMessage) UnmarshalJSON(data []byte) error {
	type alias A2AMessage
	aux := struct {
		*alias
		Data json.RawMessage `json:"data"`
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		m.Data = nil
		return nil
	}
	payload, err := decodePayload(m.Type, aux.Data)
	if err != nil {
		return err
	}
	m.Data = payload
	return nil
}

func decodePayload(t MessageType, raw json.RawMessage) (any, error) {
	decode := func(dst any) (any, error) {
		if err := strictUnmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", t, err)
		}
		return dst, nil
	}
	switch t {
	case MessageTypeTaskDelegation:
		return decode(&TaskDelegationData{})
	case MessageTypeSummarizationCompleted:
		return decode(&SummarizationCompletedData{})
	case MessageTypeRelationshipMapped:
		return decode(&RelationshipMappedData{})
	case MessageTypeVisualizationReady:
		return decode(&VisualizationReadyData{})
	case MessageTypeKnowledgeTransfer:
		return decode(&KnowledgeTransferData{})
	case MessageTypeAgentStatus:
		return decode(&AgentStatusData{})
	default:
		return nil, fmt.Errorf("unknown message type %q", t)
	}
}

func strictUnmarshal(raw json.RawMessage, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
