package cleanup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-navigator/navigator/pkg/config"
	"github.com/agentic-navigator/navigator/pkg/models"
	"github.com/agentic-navigator/navigator/pkg/store"
)

func seed(t *testing.T, st store.SessionStore, id string, status models.WorkflowStatus, age time.Duration) {
	t.Helper()
	sc := models.NewSessionContext(id, "input", models.ContentTypeDocument)
	sc.WorkflowStatus = status
	sc.UpdatedAt = time.Now().Add(-age)
	require.NoError(t, st.SaveContext(context.Background(), sc))
}

func newSweeper(st store.SessionStore, retentionDays int) *Service {
	return NewService(&config.Config{
		SessionRetentionDays: retentionDays,
		CleanupInterval:      time.Hour,
	}, st)
}

func TestSweep_DeletesExpiredTerminalSessions(t *testing.T) {
	st := store.NewMemoryStore(10)
	seed(t, st, "old-completed", models.WorkflowStatusCompleted, 48*time.Hour)
	seed(t, st, "old-failed", models.WorkflowStatusFailed, 48*time.Hour)
	seed(t, st, "fresh-completed", models.WorkflowStatusCompleted, time.Hour)

	removed := newSweeper(st, 1).Sweep(context.Background())
	assert.Equal(t, 2, removed)

	_, err := st.LoadContext(context.Background(), "old-completed")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.LoadContext(context.Background(), "fresh-completed")
	assert.NoError(t, err)
}

func TestSweep_NeverTouchesRunningSessions(t *testing.T) {
	st := store.NewMemoryStore(10)
	seed(t, st, "old-running", models.WorkflowStatusRunning, 72*time.Hour)
	seed(t, st, "old-pending", models.WorkflowStatusPending, 72*time.Hour)

	removed := newSweeper(st, 1).Sweep(context.Background())
	assert.Equal(t, 0, removed)

	_, err := st.LoadContext(context.Background(), "old-running")
	assert.NoError(t, err)
}

func TestSweep_Paginates(t *testing.T) {
	st := store.NewMemoryStore(10)
	total := sweepPageSize + 20
	for i := 0; i < total; i++ {
		seed(t, st, fmt.Sprintf("s%03d", i), models.WorkflowStatusCompleted, 48*time.Hour)
	}

	removed := newSweeper(st, 1).Sweep(context.Background())
	assert.Equal(t, total, removed)
}

func TestStart_DisabledWithoutRetention(t *testing.T) {
	st := store.NewMemoryStore(10)
	svc := newSweeper(st, 0)

	svc.Start(context.Background())
	assert.Nil(t, svc.cancel)
}

func TestStartStop(t *testing.T) {
	st := store.NewMemoryStore(10)
	seed(t, st, "old", models.WorkflowStatusCompleted, 48*time.Hour)

	svc := newSweeper(st, 1)
	svc.Start(context.Background())
	defer svc.Stop()

	// The initial sweep runs asynchronously; wait for it to land.
	assert.Eventually(t, func() bool {
		_, err := st.LoadContext(context.Background(), "old")
		return errors.Is(err, store.ErrNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}
