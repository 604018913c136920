package identity

import (
	"log/slog"
	"sync"
	"time"

	"github.com/agentic-navigator/navigator/pkg/models"
)

// AuditRecord is a sanitised description of a rejected or
// security-relevant message. It never carries payload data.
type AuditRecord struct {
	MessageID string           `json:"message_id"`
	FromAgent string           `json:"from_agent"`
	ToAgent   string           `json:"to_agent"`
	Kind      models.ErrorKind `json:"kind"`
	Reason    string           `json:"reason"`
	Timestamp time.Time        `json:"timestamp"`
}

// AuditLog keeps a bounded in-memory ring of audit records and mirrors
// each one to the structured log.
type AuditLog struct {
	mu       sync.Mutex
	records  []AuditRecord
	capacity int
	logger   *slog.Logger
}

// NewAuditLog creates an audit log bounded at capacity records.
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = 1_000
	}
	return &AuditLog{
		capacity: capacity,
		logger:   slog.With("component", "audit", "audit", true),
	}
}

// Record appends a record, evicting the oldest when full.
func (l *AuditLog) Record(rec AuditRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	l.logger.Warn("Message rejected",
		"message_id", rec.MessageID,
		"from_agent", rec.FromAgent,
		"to_agent", rec.ToAgent,
		"kind", rec.Kind,
		"reason", rec.Reason)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	if len(l.records) > l.capacity {
		l.records = l.records[len(l.records)-l.capacity:]
	}
}

// Records returns a snapshot of the retained records, oldest first.
func (l *AuditLog) Records() []AuditRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditRecord, len(l.records))
	copy(out, l.records)
	return out
}

// CountByKind returns how many retained records carry the given kind.
func (l *AuditLog) CountByKind(kind models.ErrorKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, rec := range l.records {
		if rec.Kind == kind {
			n++
		}
	}
	return n
}
