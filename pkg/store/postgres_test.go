package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/agentic-navigator/navigator/pkg/bus"
	"github.com/agentic-navigator/navigator/pkg/database"
	"github.com/agentic-navigator/navigator/pkg/models"
)

// Integration test for the document backend. Opt in with NAVIGATOR_E2E=1.
func TestPostgresStore_Integration(t *testing.T) {
	if os.Getenv("NAVIGATOR_E2E") != "1" {
		t.Skip("set NAVIGATOR_E2E=1 to run the postgres integration test")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("navigator"),
		postgres.WithUsername("navigator"),
		postgres.WithPassword("navigator"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.Config{
		Host:         host,
		Port:         port.Int(),
		User:         "navigator",
		Password:     "navigator",
		Database:     "navigator",
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	require.NoError(t, err)

	s := NewPostgresStore(client, 3)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Ping(ctx))

	t.Run("context round trip", func(t *testing.T) {
		original := sampleContext("pg-s1", time.Now().UTC().Truncate(time.Millisecond))
		require.NoError(t, s.SaveContext(ctx, original))

		loaded, err := s.LoadContext(ctx, "pg-s1")
		require.NoError(t, err)
		assert.Equal(t, original.SummaryText, loaded.SummaryText)
		assert.Equal(t, original.KeyEntities, loaded.KeyEntities)

		original.SummaryText = "Revised."
		require.NoError(t, s.SaveContext(ctx, original))
		loaded, err = s.LoadContext(ctx, "pg-s1")
		require.NoError(t, err)
		assert.Equal(t, "Revised.", loaded.SummaryText)
	})

	t.Run("list pagination", func(t *testing.T) {
		base := time.Now().UTC()
		for i, id := range []string{"pg-a", "pg-b", "pg-c"} {
			sc := sampleContext(id, base.Add(time.Duration(i)*time.Minute))
			require.NoError(t, s.SaveContext(ctx, sc))
		}

		page1, cursor, err := s.ListContexts(ctx, 2, "")
		require.NoError(t, err)
		require.Len(t, page1, 2)
		assert.Equal(t, "pg-c", page1[0])
		require.NotEmpty(t, cursor)

		page2, _, err := s.ListContexts(ctx, 2, cursor)
		require.NoError(t, err)
		assert.NotContains(t, page2, page1[0])
		assert.NotContains(t, page2, page1[1])
	})

	t.Run("history ring bound", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			msg := historyMessage("pg-s1", models.AgentOrchestrator, models.AgentSummariser, float64(i+1))
			require.NoError(t, s.AppendHistory(ctx, "pg-s1", msg))
		}

		got, err := s.ReadHistory(ctx, "pg-s1", bus.HistoryFilter{}, 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, float64(3), got[0].Timestamp)
		assert.Equal(t, float64(5), got[2].Timestamp)
	})

	t.Run("delete removes snapshot and history", func(t *testing.T) {
		require.NoError(t, s.DeleteContext(ctx, "pg-s1"))
		_, err := s.LoadContext(ctx, "pg-s1")
		assert.ErrorIs(t, err, ErrNotFound)

		history, err := s.ReadHistory(ctx, "pg-s1", bus.HistoryFilter{}, 0)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}
