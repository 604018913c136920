package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/agentic-navigator/navigator/pkg/config"
	"github.com/agentic-navigator/navigator/pkg/identity"
	"github.com/agentic-navigator/navigator/pkg/metrics"
	"github.com/agentic-navigator/navigator/pkg/models"
)

// HistorySink receives accepted messages for durable archival. The bus
// treats it as best effort; a nil sink disables archival.
type HistorySink interface {
	AppendHistory(ctx context.Context, sessionID string, msg *A2AMessage) error
}

// AgentActivity counts messages sent and received per agent.
type AgentActivity struct {
	Sent     int `json:"sent"`
	Received int `json:"received"`
}

// Stats is a point-in-time snapshot of bus state.
type Stats struct {
	Total          int                      `json:"total"`
	Pending        int                      `json:"pending"`
	ByType         map[MessageType]int      `json:"by_type"`
	AgentActivity  map[string]AgentActivity `json:"agent_activity"`
	DroppedFull    int                      `json:"dropped_full"`
	DroppedExpired int                      `json:"dropped_expired"`
}

// HistoryFilter narrows history queries. Zero values match everything.
type HistoryFilter struct {
	Agent string
	Type  MessageType
	Since float64
}

// Bus is the in-process A2A message exchange. It signs and validates on
// publish, enforces TTL on receive, and keeps bounded per-recipient
// queues plus a bounded history ring.
type Bus struct {
	signer    *identity.Signer
	validator *identity.Validator
	audit     *identity.AuditLog
	self      identity.Identity
	sink      HistorySink

	queueCap   int
	historyCap int

	mu             sync.Mutex
	queues         map[string][]*A2AMessage
	inflight       map[string]*A2AMessage
	history        []*A2AMessage
	activity       map[string]*AgentActivity
	droppedFull    int
	droppedExpired int

	logger *slog.Logger
}

// New creates a bus bound to the process identity. Agents must be
// registered before they can receive.
func New(cfg *config.Config, signer *identity.Signer, validator *identity.Validator, audit *identity.AuditLog, self identity.Identity, sink HistorySink) *Bus {
	return &Bus{
		signer:     signer,
		validator:  validator,
		audit:      audit,
		self:       self,
		sink:       sink,
		queueCap:   cfg.MessageQueueCap,
		historyCap: cfg.HistoryCapacity,
		queues:     make(map[string][]*A2AMessage),
		inflight:   make(map[string]*A2AMessage),
		activity:   make(map[string]*AgentActivity),
		logger:     slog.With("component", "bus"),
	}
}

// RegisterAgent creates the recipient queue for an agent. Registration is
// idempotent.
func (b *Bus) RegisterAgent(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.queues[name]; !ok {
		b.queues[name] = nil
	}
}

// Publish signs, validates and enqueues a message. Broadcasts fan out to
// every registered agent except the sender. Expiry is not checked here;
// the receive path owns TTL enforcement.
func (b *Bus) Publish(ctx context.Context, msg *A2AMessage) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", ErrMalformed)
	}
	if !payloadMatches(msg.Type, msg.Data) {
		b.reject(msg, models.ErrorKindMalformed, "payload does not match message type")
		return fmt.Errorf("%w: payload does not match %s", ErrMalformed, msg.Type)
	}

	msg.Security.ServiceAccountID = b.self.Email
	msg.Security.Algorithm = b.signer.Algorithm()
	msg.Security.Verified = false

	canonical, err := msg.CanonicalBytes()
	if err != nil {
		b.reject(msg, models.ErrorKindMalformed, "not canonicalisable")
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	msg.Security.Signature = b.signer.Sign(canonical)

	result := b.validator.Validate(identity.MessageClaims{
		MessageID:        msg.MessageID,
		FromAgent:        msg.FromAgent,
		ToAgent:          msg.ToAgent,
		ServiceAccountID: msg.Security.ServiceAccountID,
		Signature:        msg.Security.Signature,
		Algorithm:        msg.Security.Algorithm,
		Timestamp:        msg.Timestamp,
		TTLSeconds:       msg.TTLSeconds,
		Canonical:        canonical,
	})

	// Publish-time validation is signature and policy centric; a stale
	// timestamp alone is left for the receive path to drop.
	if result.Has(identity.IssueUntrustedIdentity) || result.Has(identity.IssueUnauthorisedRoute) {
		b.reject(msg, models.ErrorKindUnauthorised, "identity or route not authorised")
		return fmt.Errorf("%w: %s -> %s", ErrUnauthorised, msg.FromAgent, msg.ToAgent)
	}
	if result.Has(identity.IssueSignatureMismatch) {
		b.reject(msg, models.ErrorKindMalformed, "signature mismatch")
		return fmt.Errorf("%w: signature mismatch on %s", ErrMalformed, msg.MessageID)
	}
	msg.Security.Verified = true

	b.mu.Lock()
	if msg.Trace.CorrelationID == "" {
		msg.Trace.CorrelationID = b.inheritCorrelationLocked(msg.Trace.ParentMessageID)
	}
	if msg.Trace.SpanID == "" {
		msg.Trace.SpanID = uuid.NewString()
	}

	var enqueueErr error
	if msg.ToAgent == identity.Broadcast {
		// Fan-out is best effort per recipient: a full queue drops that
		// copy (counted in dropped_full) without failing the publish, so
		// one slow agent cannot block status updates to the rest.
		for name := range b.queues {
			if name == msg.FromAgent {
				continue
			}
			b.enqueueLocked(name, msg)
		}
	} else if _, ok := b.queues[msg.ToAgent]; !ok {
		b.mu.Unlock()
		b.reject(msg, models.ErrorKindUnknownRecipient, "recipient not registered")
		return fmt.Errorf("%w: %s", ErrUnknownRecipient, msg.ToAgent)
	} else if !b.enqueueLocked(msg.ToAgent, msg) {
		enqueueErr = fmt.Errorf("%w: queue for %s is full", ErrBusy, msg.ToAgent)
	}

	if enqueueErr == nil {
		b.appendHistoryLocked(msg)
		b.activityFor(msg.FromAgent).Sent++
	}
	b.mu.Unlock()

	if enqueueErr != nil {
		b.reject(msg, models.ErrorKindBusy, "recipient queue full")
		return enqueueErr
	}

	metrics.MessagesPublished.WithLabelValues(string(msg.Type)).Inc()
	b.archive(ctx, msg)
	return nil
}

// Receive returns the non-expired messages addressed to agentName,
// optionally filtered by type, ordered by priority then timestamp, and
// marks them processing. Each agent must have a single consumer.
func (b *Bus) Receive(agentName string, types ...MessageType) []*A2AMessage {
	wanted := make(map[MessageType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	b.mu.Lock()
	queue, ok := b.queues[agentName]
	if !ok {
		b.mu.Unlock()
		return nil
	}

	var kept, batch, expired []*A2AMessage
	for _, msg := range queue {
		switch {
		case b.validator.Expired(msg.Timestamp, msg.TTLSeconds):
			expired = append(expired, msg)
		case len(wanted) > 0 && !wanted[msg.Type]:
			kept = append(kept, msg)
		default:
			batch = append(batch, msg)
		}
	}
	b.queues[agentName] = kept
	b.droppedExpired += len(expired)

	sort.SliceStable(batch, func(i, j int) bool {
		if batch[i].Priority.Rank() != batch[j].Priority.Rank() {
			return batch[i].Priority.Rank() > batch[j].Priority.Rank()
		}
		return batch[i].Timestamp < batch[j].Timestamp
	})
	for _, msg := range batch {
		msg.Status = StatusProcessing
		b.inflight[msg.MessageID] = msg
	}
	b.activityFor(agentName).Received += len(batch)
	b.mu.Unlock()

	for _, msg := range expired {
		metrics.MessagesExpired.Inc()
		b.audit.Record(identity.AuditRecord{
			MessageID: msg.MessageID,
			FromAgent: msg.FromAgent,
			ToAgent:   msg.ToAgent,
			Kind:      models.ErrorKindExpired,
			Reason:    "ttl exceeded at delivery",
		})
	}
	return batch
}

// Acknowledge records the terminal outcome of a received message.
func (b *Bus) Acknowledge(messageID string, succeeded bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg, ok := b.inflight[messageID]
	if !ok {
		return fmt.Errorf("%w: message %s is not in flight", ErrNotFound, messageID)
	}
	if succeeded {
		msg.Status = StatusCompleted
	} else {
		msg.Status = StatusFailed
	}
	delete(b.inflight, messageID)
	return nil
}

// Stats returns a snapshot of queue depth, type distribution and
// per-agent activity.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Stats{
		ByType:         make(map[MessageType]int),
		AgentActivity:  make(map[string]AgentActivity),
		DroppedFull:    b.droppedFull,
		DroppedExpired: b.droppedExpired,
	}
	for _, queue := range b.queues {
		s.Pending += len(queue)
	}
	s.Total = len(b.history)
	for _, msg := range b.history {
		s.ByType[msg.Type]++
	}
	for name, act := range b.activity {
		s.AgentActivity[name] = *act
	}
	return s
}

// History returns archived messages matching the filter, oldest first,
// capped at limit (0 means no cap).
func (b *Bus) History(filter HistoryFilter, limit int) []*A2AMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*A2AMessage
	for _, msg := range b.history {
		if filter.Agent != "" && msg.FromAgent != filter.Agent && msg.ToAgent != filter.Agent {
			continue
		}
		if filter.Type != "" && msg.Type != filter.Type {
			continue
		}
		if filter.Since > 0 && msg.Timestamp < filter.Since {
			continue
		}
		out = append(out, msg)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (b *Bus) enqueueLocked(recipient string, msg *A2AMessage) bool {
	if len(b.queues[recipient]) >= b.queueCap {
		b.droppedFull++
		metrics.MessagesDroppedFull.Inc()
		return false
	}
	b.queues[recipient] = append(b.queues[recipient], msg)
	return true
}

func (b *Bus) appendHistoryLocked(msg *A2AMessage) {
	b.history = append(b.history, msg)
	if len(b.history) > b.historyCap {
		b.history = b.history[len(b.history)-b.historyCap:]
	}
}

func (b *Bus) inheritCorrelationLocked(parentID string) string {
	if parentID != "" {
		if parent, ok := b.inflight[parentID]; ok {
			return parent.Trace.CorrelationID
		}
		for _, msg := range b.history {
			if msg.MessageID == parentID {
				return msg.Trace.CorrelationID
			}
		}
	}
	return uuid.NewString()
}

func (b *Bus) activityFor(name string) *AgentActivity {
	act, ok := b.activity[name]
	if !ok {
		act = &AgentActivity{}
		b.activity[name] = act
	}
	return act
}

func (b *Bus) reject(msg *A2AMessage, kind models.ErrorKind, reason string) {
	metrics.MessagesRejected.WithLabelValues(string(kind)).Inc()
	b.audit.Record(identity.AuditRecord{
		MessageID: msg.MessageID,
		FromAgent: msg.FromAgent,
		ToAgent:   msg.ToAgent,
		Kind:      kind,
		Reason:    reason,
	})
}

// archive forwards an accepted message to the durable history sink. Sink
// failures are logged and never surface to the publisher.
func (b *Bus) archive(ctx context.Context, msg *A2AMessage) {
	if b.sink == nil {
		return
	}
	sessionID := msg.SessionID()
	if sessionID == "" {
		return
	}
	if err := b.sink.AppendHistory(ctx, sessionID, msg); err != nil {
		b.logger.Warn("Failed to archive message",
			"message_id", msg.MessageID,
			"session_id", sessionID,
			"error", err)
	}
}
