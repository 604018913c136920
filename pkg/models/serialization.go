package models

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// sessionContextFields is the set of keys EncodeSessionContext can emit.
// DecodeSessionContext logs and drops anything outside this set.
var sessionContextFields = map[string]bool{
	"session_id":       true,
	"raw_input":        true,
	"content_type":     true,
	"summary_text":     true,
	"summary_insights": true,
	"key_entities":     true,
	"relationships":    true,
	"entity_metadata":  true,
	"graph_json":       true,
	"completed_agents": true,
	"current_agent":    true,
	"workflow_status":  true,
	"errors":           true,
	"started_at":       true,
	"updated_at":       true,
}

// requiredContextFields must be present for a snapshot to load.
var requiredContextFields = []string{
	"session_id", "raw_input", "content_type", "workflow_status", "started_at",
}

// EncodeSessionContext serialises a context to its canonical JSON form.
// Timestamps marshal as RFC 3339 with explicit zone (time.Time default),
// enums as their string names.
func EncodeSessionContext(c *SessionContext) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session context: %w", err)
	}
	return data, nil
}

// DecodeSessionContext deserialises a snapshot strictly: unknown fields are
// logged and ignored, missing required fields fail the load.
func DecodeSessionContext(data []byte) (*SessionContext, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("session context snapshot is not valid JSON: %w", err)
	}

	for _, field := range requiredContextFields {
		if _, ok := raw[field]; !ok {
			return nil, fmt.Errorf("session context snapshot missing required field %q", field)
		}
	}

	for key := range raw {
		if !sessionContextFields[key] {
			slog.Warn("Ignoring unknown session context field", "field", key)
			delete(raw, key)
		}
	}

	filtered, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode filtered snapshot: %w", err)
	}

	var c SessionContext
	if err := json.Unmarshal(filtered, &c); err != nil {
		return nil, fmt.Errorf("failed to decode session context: %w", err)
	}
	return &c, nil
}
