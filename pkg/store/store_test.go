package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-navigator/navigator/pkg/bus"
	"github.com/agentic-navigator/navigator/pkg/models"
)

// backends under test share one behavioural suite.
func backends(t *testing.T) map[string]SessionStore {
	t.Helper()
	fileStore, err := NewFileStore(t.TempDir(), 5)
	require.NoError(t, err)
	return map[string]SessionStore{
		"memory": NewMemoryStore(5),
		"file":   fileStore,
	}
}

func sampleContext(sessionID string, startedAt time.Time) *models.SessionContext {
	sc := models.NewSessionContext(sessionID, "The mitochondrion is the powerhouse of the cell.", models.ContentTypeDocument)
	sc.StartedAt = startedAt
	sc.UpdatedAt = startedAt
	sc.SummaryText = "A short summary."
	sc.KeyEntities = []string{"mitochondrion", "cell"}
	sc.Relationships = []models.EntityRelationship{
		{Source: "mitochondrion", Target: "cell", Type: "part_of", Label: "powerhouse of", Confidence: models.ConfidenceHigh},
	}
	sc.WorkflowStatus = models.WorkflowStatusCompleted
	sc.CompletedAgents = append([]string(nil), models.AgentSequence...)
	return sc
}

func historyMessage(sessionID, from, to string, ts float64) *bus.A2AMessage {
	msg := bus.NewMessage(bus.MessageTypeTaskDelegation, from, to, bus.PriorityMedium, &bus.TaskDelegationData{
		SessionID: sessionID,
		Task:      "run step",
	})
	msg.Timestamp = ts
	return msg
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			original := sampleContext("s1", time.Now().UTC().Truncate(time.Millisecond))

			require.NoError(t, s.SaveContext(ctx, original))
			loaded, err := s.LoadContext(ctx, "s1")
			require.NoError(t, err)

			assert.Equal(t, original.SessionID, loaded.SessionID)
			assert.Equal(t, original.RawInput, loaded.RawInput)
			assert.Equal(t, original.SummaryText, loaded.SummaryText)
			assert.Equal(t, original.KeyEntities, loaded.KeyEntities)
			assert.Equal(t, original.Relationships, loaded.Relationships)
			assert.Equal(t, original.WorkflowStatus, loaded.WorkflowStatus)
			assert.True(t, original.StartedAt.Equal(loaded.StartedAt))
		})
	}
}

func TestStore_SaveOverwritesSnapshot(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sc := sampleContext("s1", time.Now().UTC())
			require.NoError(t, s.SaveContext(ctx, sc))

			sc.SummaryText = "Revised summary."
			require.NoError(t, s.SaveContext(ctx, sc))

			loaded, err := s.LoadContext(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "Revised summary.", loaded.SummaryText)
		})
	}
}

func TestStore_LoadMissingReturnsNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.LoadContext(context.Background(), "ghost")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_DeleteContext(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveContext(ctx, sampleContext("s1", time.Now().UTC())))

			require.NoError(t, s.DeleteContext(ctx, "s1"))
			_, err := s.LoadContext(ctx, "s1")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.DeleteContext(ctx, "s1"), ErrNotFound)
		})
	}
}

func TestStore_ListContextsNewestFirstWithCursor(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(5)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		sc := sampleContext(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.SaveContext(ctx, sc))
	}

	page1, cursor, err := s.ListContexts(ctx, 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"s4", "s3"}, page1)
	require.NotEmpty(t, cursor)

	page2, cursor, err := s.ListContexts(ctx, 2, cursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s1"}, page2)

	page3, cursor, err := s.ListContexts(ctx, 2, cursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"s0"}, page3)
	assert.Empty(t, cursor)
}

func TestStore_HistoryRingEvictsOldest(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 8; i++ {
				msg := historyMessage("s1", models.AgentOrchestrator, models.AgentSummariser, float64(i+1))
				require.NoError(t, s.AppendHistory(ctx, "s1", msg))
			}

			// Bound of 5 set in backends().
			got, err := s.ReadHistory(ctx, "s1", bus.HistoryFilter{}, 0)
			require.NoError(t, err)
			require.Len(t, got, 5)
			assert.Equal(t, float64(4), got[0].Timestamp)
			assert.Equal(t, float64(8), got[4].Timestamp)
		})
	}
}

func TestStore_ReadHistoryFilters(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.AppendHistory(ctx, "s1",
				historyMessage("s1", models.AgentOrchestrator, models.AgentSummariser, 1)))
			require.NoError(t, s.AppendHistory(ctx, "s1",
				historyMessage("s1", models.AgentOrchestrator, models.AgentLinker, 2)))

			status := bus.NewMessage(bus.MessageTypeAgentStatus, models.AgentLinker, models.AgentOrchestrator, bus.PriorityLow, &bus.AgentStatusData{
				SessionID: "s1", Agent: models.AgentLinker, State: "running",
			})
			status.Timestamp = 3
			require.NoError(t, s.AppendHistory(ctx, "s1", status))

			byAgent, err := s.ReadHistory(ctx, "s1", bus.HistoryFilter{Agent: models.AgentLinker}, 0)
			require.NoError(t, err)
			assert.Len(t, byAgent, 2)

			byType, err := s.ReadHistory(ctx, "s1", bus.HistoryFilter{Type: bus.MessageTypeAgentStatus}, 0)
			require.NoError(t, err)
			require.Len(t, byType, 1)
			assert.Equal(t, bus.MessageTypeAgentStatus, byType[0].Type)

			since, err := s.ReadHistory(ctx, "s1", bus.HistoryFilter{Since: 2}, 0)
			require.NoError(t, err)
			assert.Len(t, since, 2)

			limited, err := s.ReadHistory(ctx, "s1", bus.HistoryFilter{}, 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)
		})
	}
}

func TestStore_FileSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewFileStore(dir, 5)
	require.NoError(t, err)
	require.NoError(t, first.SaveContext(ctx, sampleContext("s1", time.Now().UTC())))
	require.NoError(t, first.AppendHistory(ctx, "s1",
		historyMessage("s1", models.AgentOrchestrator, models.AgentSummariser, 1)))

	reopened, err := NewFileStore(dir, 5)
	require.NoError(t, err)

	loaded, err := reopened.LoadContext(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", loaded.SessionID)

	history, err := reopened.ReadHistory(ctx, "s1", bus.HistoryFilter{}, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestStore_TimeoutWrapperCancelsStalledCalls(t *testing.T) {
	s := WithTimeout(&stalledStore{}, 50*time.Millisecond)

	start := time.Now()
	_, err := s.LoadContext(context.Background(), "s1")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

// stalledStore blocks until its context expires.
type stalledStore struct{}

func (st *stalledStore) wait(ctx context.Context) error {
	<-ctx.Done()
	return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
}

func (st *stalledStore) SaveContext(ctx context.Context, _ *models.SessionContext) error {
	return st.wait(ctx)
}

func (st *stalledStore) LoadContext(ctx context.Context, _ string) (*models.SessionContext, error) {
	return nil, st.wait(ctx)
}

func (st *stalledStore) DeleteContext(ctx context.Context, _ string) error {
	return st.wait(ctx)
}

func (st *stalledStore) ListContexts(ctx context.Context, _ int, _ string) ([]string, string, error) {
	return nil, "", st.wait(ctx)
}

func (st *stalledStore) AppendHistory(ctx context.Context, _ string, _ *bus.A2AMessage) error {
	return st.wait(ctx)
}

func (st *stalledStore) ReadHistory(ctx context.Context, _ string, _ bus.HistoryFilter, _ int) ([]*bus.A2AMessage, error) {
	return nil, st.wait(ctx)
}

func (st *stalledStore) Ping(ctx context.Context) error {
	return st.wait(ctx)
}

func (st *stalledStore) Close() error { return nil }
