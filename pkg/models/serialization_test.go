package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedContext() *SessionContext {
	sc := NewSessionContext("sess-1", "the cell and the mitochondrion", ContentTypeDocument)
	sc.SummaryText = "A short summary."
	sc.SummaryInsights["themes"] = []any{"biology"}
	sc.KeyEntities = []string{"cell", "mitochondrion"}
	sc.Relationships = []EntityRelationship{
		{Source: "mitochondrion", Target: "cell", Type: "part_of", Label: "part of", Confidence: ConfidenceHigh},
	}
	sc.EntityMetadata = map[string]map[string]any{
		"cell": {"mentions": float64(2)},
	}
	sc.GraphJSON = &GraphJSON{
		Type:  "MIND_MAP",
		Nodes: []GraphNode{{ID: "n1", Label: "cell"}},
		Edges: []GraphEdge{{ID: "e1", Source: "n1", Target: "n1"}},
	}
	sc.CompletedAgents = append([]string{}, AgentSequence...)
	sc.WorkflowStatus = WorkflowStatusCompleted
	sc.Errors = []ErrorEntry{
		{Agent: AgentLinker, ErrorKind: ErrorKindAgentFault, Message: "transient", Timestamp: time.Now().UTC().Truncate(time.Second)},
	}
	return sc
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	original := populatedContext()

	data, err := EncodeSessionContext(original)
	require.NoError(t, err)

	decoded, err := DecodeSessionContext(data)
	require.NoError(t, err)

	// updated_at moves on every save; compare everything else.
	decoded.UpdatedAt = original.UpdatedAt
	assert.Equal(t, original, decoded)
}

func TestEncode_TimestampsCarryZone(t *testing.T) {
	data, err := EncodeSessionContext(populatedContext())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))

	var startedAt string
	require.NoError(t, json.Unmarshal(raw["started_at"], &startedAt))
	_, err = time.Parse(time.RFC3339, startedAt)
	assert.NoError(t, err)
}

func TestDecode_IgnoresUnknownFields(t *testing.T) {
	data, err := EncodeSessionContext(populatedContext())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	raw["legacy_field"] = json.RawMessage(`"dropped"`)
	data, err = json.Marshal(raw)
	require.NoError(t, err)

	decoded, err := DecodeSessionContext(data)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", decoded.SessionID)
}

func TestDecode_MissingRequiredFieldFails(t *testing.T) {
	data, err := EncodeSessionContext(populatedContext())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	delete(raw, "workflow_status")
	data, err = json.Marshal(raw)
	require.NoError(t, err)

	_, err = DecodeSessionContext(data)
	assert.ErrorContains(t, err, "workflow_status")
}

func TestDecode_RejectsInvalidJSON(t *testing.T) {
	_, err := DecodeSessionContext([]byte(`{"session_id":`))
	assert.Error(t, err)
}

func TestClone_IsDeep(t *testing.T) {
	original := populatedContext()
	cp := original.Clone()

	cp.KeyEntities[0] = "mutated"
	cp.SummaryInsights["themes"] = "mutated"
	cp.GraphJSON.Nodes[0].Label = "mutated"
	cp.CompletedAgents[0] = "mutated"

	assert.Equal(t, "cell", original.KeyEntities[0])
	assert.Equal(t, []any{"biology"}, original.SummaryInsights["themes"])
	assert.Equal(t, "cell", original.GraphJSON.Nodes[0].Label)
	assert.Equal(t, AgentOrchestrator, original.CompletedAgents[0])
}

func TestHasCompleted(t *testing.T) {
	sc := NewSessionContext("s", "in", ContentTypeCodebase)
	assert.False(t, sc.HasCompleted(AgentOrchestrator))
	sc.CompletedAgents = append(sc.CompletedAgents, AgentOrchestrator)
	assert.True(t, sc.HasCompleted(AgentOrchestrator))
	assert.False(t, sc.HasCompleted(AgentSummariser))
}
