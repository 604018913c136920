// Package store persists SessionContext snapshots and A2A message
// history, keyed by session id, behind a backend-agnostic interface.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/agentic-navigator/navigator/pkg/bus"
	"github.com/agentic-navigator/navigator/pkg/models"
)

var (
	// ErrNotFound means the session has no stored snapshot.
	ErrNotFound = errors.New("session not found")
	// ErrUnavailable means the backend failed transiently. Store failures
	// are never fatal to a workflow.
	ErrUnavailable = errors.New("session store unavailable")
)

// SessionStore is the persistence contract. Implementations must make
// SaveContext atomic at the record level and serialise writes per
// session id.
type SessionStore interface {
	SaveContext(ctx context.Context, sc *models.SessionContext) error
	LoadContext(ctx context.Context, sessionID string) (*models.SessionContext, error)
	DeleteContext(ctx context.Context, sessionID string) error
	// ListContexts pages session ids newest first. The returned cursor is
	// empty when there are no further pages.
	ListContexts(ctx context.Context, limit int, afterCursor string) ([]string, string, error)
	AppendHistory(ctx context.Context, sessionID string, msg *bus.A2AMessage) error
	ReadHistory(ctx context.Context, sessionID string, filter bus.HistoryFilter, limit int) ([]*bus.A2AMessage, error)
	Ping(ctx context.Context) error
	Close() error
}

// timeoutStore bounds every call so a stalled backend cannot block the
// executor past the configured budget.
type timeoutStore struct {
	inner   SessionStore
	timeout time.Duration
}

// WithTimeout wraps a store so each operation runs under its own
// deadline.
func WithTimeout(inner SessionStore, timeout time.Duration) SessionStore {
	if timeout <= 0 {
		return inner
	}
	return &timeoutStore{inner: inner, timeout: timeout}
}

func (t *timeoutStore) SaveContext(ctx context.Context, sc *models.SessionContext) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.SaveContext(ctx, sc)
}

func (t *timeoutStore) LoadContext(ctx context.Context, sessionID string) (*models.SessionContext, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.LoadContext(ctx, sessionID)
}

func (t *timeoutStore) DeleteContext(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.DeleteContext(ctx, sessionID)
}

func (t *timeoutStore) ListContexts(ctx context.Context, limit int, afterCursor string) ([]string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.ListContexts(ctx, limit, afterCursor)
}

func (t *timeoutStore) AppendHistory(ctx context.Context, sessionID string, msg *bus.A2AMessage) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.AppendHistory(ctx, sessionID, msg)
}

func (t *timeoutStore) ReadHistory(ctx context.Context, sessionID string, filter bus.HistoryFilter, limit int) ([]*bus.A2AMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.ReadHistory(ctx, sessionID, filter, limit)
}

func (t *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Ping(ctx)
}

func (t *timeoutStore) Close() error {
	return t.inner.Close()
}

// matchHistory applies the shared history filter semantics across
// backends that filter in memory.
func matchHistory(msg *bus.A2AMessage, filter bus.HistoryFilter) bool {
	if filter.Agent != "" && msg.FromAgent != filter.Agent && msg.ToAgent != filter.Agent {
		return false
	}
	if filter.Type != "" && msg.Type != filter.Type {
		return false
	}
	if filter.Since > 0 && msg.Timestamp < filter.Since {
		return false
	}
	return true
}
