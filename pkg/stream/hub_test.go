package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-navigator/navigator/pkg/config"
	"github.com/agentic-navigator/navigator/pkg/models"
)

func newTestHub(capacity int) *Hub {
	return NewHub(&config.Config{EventBufferCap: capacity})
}

func TestHub_SingleSubscriberInvariant(t *testing.T) {
	h := newTestHub(8)

	_, err := h.Open("s1")
	require.NoError(t, err)

	_, err = h.Open("s1")
	require.ErrorIs(t, err, ErrAlreadySubscribed)

	// A different session is independent.
	_, err = h.Open("s2")
	require.NoError(t, err)

	// Close frees the slot.
	h.Close("s1")
	_, err = h.Open("s1")
	require.NoError(t, err)
}

func TestHub_EmitWithoutSubscriber(t *testing.T) {
	h := newTestHub(8)
	err := h.Emit("ghost", NewEvent(models.AgentSummariser, StatusQueued))
	require.ErrorIs(t, err, ErrNoSubscriber)
}

func TestHub_EmissionOrderPreserved(t *testing.T) {
	h := newTestHub(8)
	sub, err := h.Open("s1")
	require.NoError(t, err)

	statuses := []EventStatus{StatusQueued, StatusProcessing, StatusComplete}
	for _, st := range statuses {
		require.NoError(t, h.Emit("s1", NewEvent(models.AgentSummariser, st)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, want := range statuses {
		ev, err := sub.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, ev.Status)
	}
}

func TestHub_OverflowDropsOldestWithSingleMarker(t *testing.T) {
	h := newTestHub(3)
	sub, err := h.Open("s1")
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		require.NoError(t, h.Emit("s1", NewEvent(models.AgentLinker, StatusProcessing)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	h.Close("s1")
	var got []*AgentEvent
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			break
		}
		got = append(got, ev)
	}

	markers := 0
	for _, ev := range got {
		if ev.Status == StatusBufferOverflow {
			markers++
		}
	}
	assert.Equal(t, 1, markers, "a run of evictions yields exactly one marker")
	assert.Positive(t, sub.Dropped())
	// The newest event survives.
	require.NotEmpty(t, got)
	assert.Equal(t, StatusProcessing, got[len(got)-1].Status)
}

func TestHub_NextBlocksUntilEmit(t *testing.T) {
	h := newTestHub(8)
	sub, err := h.Open("s1")
	require.NoError(t, err)

	done := make(chan *AgentEvent, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ev, err := sub.Next(ctx)
		if err == nil {
			done <- ev
		}
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, h.Emit("s1", NewEvent(models.AgentVisualiser, StatusComplete)))

	select {
	case ev, ok := <-done:
		require.True(t, ok)
		assert.Equal(t, models.AgentVisualiser, ev.Agent)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not observe the emitted event")
	}
}

func TestHub_CancelSetsFlag(t *testing.T) {
	h := newTestHub(8)
	sub, err := h.Open("s1")
	require.NoError(t, err)

	assert.False(t, sub.Cancelled())
	h.Cancel("s1")
	assert.True(t, sub.Cancelled())
}

func TestHub_NextAfterCloseDrainsThenErrors(t *testing.T) {
	h := newTestHub(8)
	sub, err := h.Open("s1")
	require.NoError(t, err)

	require.NoError(t, h.Emit("s1", NewEvent(models.AgentOrchestrator, StatusQueued)))
	h.Close("s1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, ev.Status)

	_, err = sub.Next(ctx)
	require.ErrorIs(t, err, ErrSubscriptionClosed)
}
