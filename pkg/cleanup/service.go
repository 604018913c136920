// Package cleanup provides the session retention sweeper.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentic-navigator/navigator/pkg/config"
	"github.com/agentic-navigator/navigator/pkg/models"
	"github.com/agentic-navigator/navigator/pkg/store"
)

// sweepPageSize bounds how many sessions one listing call inspects.
const sweepPageSize = 100

// Service periodically deletes terminal sessions older than the
// configured retention window. Running sessions are never touched.
// Sweeps are idempotent and safe to run from multiple replicas.
type Service struct {
	store     store.SessionStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a retention sweeper from the runtime config.
func NewService(cfg *config.Config, st store.SessionStore) *Service {
	return &Service{
		store:     st,
		retention: time.Duration(cfg.SessionRetentionDays) * 24 * time.Hour,
		interval:  cfg.CleanupInterval,
		logger:    slog.With("component", "cleanup"),
		now:       time.Now,
	}
}

// Start launches the background sweep loop. A zero retention window
// disables the service.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil || s.retention <= 0 {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("Cleanup service started",
		"retention", s.retention,
		"interval", s.interval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep walks the session listing once and deletes expired terminal
// sessions. Returns the number of sessions removed.
func (s *Service) Sweep(ctx context.Context) int {
	deadline := s.now().Add(-s.retention)
	removed := 0
	cursor := ""

	for {
		ids, next, err := s.store.ListContexts(ctx, sweepPageSize, cursor)
		if err != nil {
			s.logger.Error("Retention: session listing failed", "error", err)
			return removed
		}
		for _, id := range ids {
			if s.sweepOne(ctx, id, deadline) {
				removed++
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}

	if removed > 0 {
		s.logger.Info("Retention: deleted expired sessions", "count", removed)
	}
	return removed
}

func (s *Service) sweepOne(ctx context.Context, id string, deadline time.Time) bool {
	sc, err := s.store.LoadContext(ctx, id)
	if err != nil {
		return false
	}
	if !terminal(sc.WorkflowStatus) || sc.UpdatedAt.After(deadline) {
		return false
	}
	if err := s.store.DeleteContext(ctx, id); err != nil {
		s.logger.Warn("Retention: delete failed", "session_id", id, "error", err)
		return false
	}
	return true
}

func terminal(status models.WorkflowStatus) bool {
	return status == models.WorkflowStatusCompleted || status == models.WorkflowStatusFailed
}
