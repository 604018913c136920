package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentic-navigator/navigator/pkg/bus"
	"github.com/agentic-navigator/navigator/pkg/models"
)

// MemoryStore keeps snapshots and history in process memory. It is the
// default backend and the workhorse of the test suite.
type MemoryStore struct {
	mu         sync.RWMutex
	snapshots  map[string][]byte
	startedAt  map[string]time.Time
	history    map[string][]*bus.A2AMessage
	historyCap int
}

// NewMemoryStore creates an in-memory store. historyCap bounds the
// per-session history ring.
func NewMemoryStore(historyCap int) *MemoryStore {
	if historyCap <= 0 {
		historyCap = 1_000
	}
	return &MemoryStore{
		snapshots:  make(map[string][]byte),
		startedAt:  make(map[string]time.Time),
		history:    make(map[string][]*bus.A2AMessage),
		historyCap: historyCap,
	}
}

func (m *MemoryStore) SaveContext(ctx context.Context, sc *models.SessionContext) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	data, err := models.EncodeSessionContext(sc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[sc.SessionID] = data
	m.startedAt[sc.SessionID] = sc.StartedAt
	return nil
}

func (m *MemoryStore) LoadContext(ctx context.Context, sessionID string) (*models.SessionContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.mu.RLock()
	data, ok := m.snapshots[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return models.DecodeSessionContext(data)
}

func (m *MemoryStore) DeleteContext(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snapshots[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	delete(m.snapshots, sessionID)
	delete(m.startedAt, sessionID)
	delete(m.history, sessionID)
	return nil
}

func (m *MemoryStore) ListContexts(ctx context.Context, limit int, afterCursor string) ([]string, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.mu.RLock()
	ids := make([]string, 0, len(m.snapshots))
	for id := range m.snapshots {
		ids = append(ids, id)
	}
	started := m.startedAt
	sort.Slice(ids, func(i, j int) bool {
		if !started[ids[i]].Equal(started[ids[j]]) {
			return started[ids[i]].After(started[ids[j]])
		}
		return ids[i] < ids[j]
	})
	m.mu.RUnlock()

	start := 0
	if afterCursor != "" {
		for i, id := range ids {
			if id == afterCursor {
				start = i + 1
				break
			}
		}
	}
	if start >= len(ids) {
		return nil, "", nil
	}
	end := len(ids)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	page := ids[start:end]
	next := ""
	if end < len(ids) {
		next = page[len(page)-1]
	}
	return page, next, nil
}

func (m *MemoryStore) AppendHistory(ctx context.Context, sessionID string, msg *bus.A2AMessage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ring := append(m.history[sessionID], msg)
	if len(ring) > m.historyCap {
		ring = ring[len(ring)-m.historyCap:]
	}
	m.history[sessionID] = ring
	return nil
}

func (m *MemoryStore) ReadHistory(ctx context.Context, sessionID string, filter bus.HistoryFilter, limit int) ([]*bus.A2AMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*bus.A2AMessage
	for _, msg := range m.history[sessionID] {
		if !matchHistory(msg, filter) {
			continue
		}
		out = append(out, msg)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) Close() error {
	return nil
}
