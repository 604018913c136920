package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-navigator/navigator/pkg/agents"
	"github.com/agentic-navigator/navigator/pkg/bus"
	"github.com/agentic-navigator/navigator/pkg/config"
	"github.com/agentic-navigator/navigator/pkg/identity"
	"github.com/agentic-navigator/navigator/pkg/models"
	"github.com/agentic-navigator/navigator/pkg/store"
	"github.com/agentic-navigator/navigator/pkg/stream"
	"github.com/agentic-navigator/navigator/pkg/workflow"
)

type serverFixture struct {
	server *Server
	store  store.SessionStore
	hub    *stream.Hub
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()
	return newTestServerWithPlugins(t, []workflow.AgentPlugin{
		agents.NewOrchestrator(),
		agents.NewSummariser(),
		agents.NewLinker(),
		agents.NewVisualiser(),
	})
}

func newTestServerWithPlugins(t *testing.T, plugins []workflow.AgentPlugin) *serverFixture {
	t.Helper()
	cfg := &config.Config{
		Environment:            config.EnvDevelopment,
		SigningKey:             "test-signing-key",
		TrustedServiceAccounts: []string{identity.DevServiceAccount},
		PBKDF2Iterations:       100_000,
		ModelType:              config.ModelTypePrimary,
		StoreBackend:           config.StoreBackendMemory,
		MaxWorkflowDuration:    30 * time.Second,
		MaxConcurrentWorkflows: 4,
		MessageQueueCap:        1_024,
		HistoryCapacity:        100,
		EventBufferCap:         256,
		ClockSkewTolerance:     5 * time.Second,
	}

	signer := identity.NewSigner(cfg.SigningKey, cfg.UsePBKDF2, cfg.PBKDF2Iterations)
	audit := identity.NewAuditLog(100)
	self := identity.Identity{Email: identity.DevServiceAccount, ProjectID: "navigator-dev", UniqueID: "u1"}
	st := store.NewMemoryStore(cfg.HistoryCapacity)
	b := bus.New(cfg, signer, identity.NewValidator(signer, cfg), audit, self, st)
	hub := stream.NewHub(cfg)
	exec := workflow.NewExecutor(cfg, st, b, hub, plugins)

	return &serverFixture{
		server: NewServer(cfg, st, b, hub, exec, audit),
		store:  st,
		hub:    hub,
	}
}

func (f *serverFixture) seedSession(t *testing.T, id string, status models.WorkflowStatus) {
	t.Helper()
	sc := models.NewSessionContext(id, "The mitochondrion is the powerhouse of the cell.", models.ContentTypeDocument)
	sc.WorkflowStatus = status
	require.NoError(t, f.store.SaveContext(context.Background(), sc))
}

func (f *serverFixture) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "memory", health.Store)
	assert.NotEmpty(t, health.Version)
}

func TestGetSessionHandler(t *testing.T) {
	f := newTestServer(t)
	f.seedSession(t, "s1", models.WorkflowStatusCompleted)

	rec := f.do(t, http.MethodGet, "/api/v1/sessions/s1")
	assert.Equal(t, http.StatusOK, rec.Code)

	var sc models.SessionContext
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sc))
	assert.Equal(t, "s1", sc.SessionID)
	assert.Equal(t, models.WorkflowStatusCompleted, sc.WorkflowStatus)
}

func TestGetSessionHandler_NotFound(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/v1/sessions/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSessionsHandler(t *testing.T) {
	f := newTestServer(t)
	for i := 0; i < 3; i++ {
		f.seedSession(t, fmt.Sprintf("s%d", i), models.WorkflowStatusCompleted)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/sessions?limit=2")
	assert.Equal(t, http.StatusOK, rec.Code)

	var list SessionListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Sessions, 2)
	require.NotEmpty(t, list.NextCursor)

	rec = f.do(t, http.MethodGet, "/api/v1/sessions?limit=2&cursor="+list.NextCursor)
	assert.Equal(t, http.StatusOK, rec.Code)
	var rest SessionListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rest))
	assert.Len(t, rest.Sessions, 1)
	assert.Empty(t, rest.NextCursor)
}

func TestDeleteSessionHandler(t *testing.T) {
	f := newTestServer(t)
	f.seedSession(t, "s1", models.WorkflowStatusCompleted)

	rec := f.do(t, http.MethodDelete, "/api/v1/sessions/s1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/sessions/s1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHistoryHandler(t *testing.T) {
	f := newTestServer(t)
	f.seedSession(t, "s1", models.WorkflowStatusCompleted)

	for i := 0; i < 3; i++ {
		msg := bus.NewMessage(bus.MessageTypeTaskDelegation, models.AgentOrchestrator, models.AgentLinker, bus.PriorityHigh, bus.TaskDelegationData{
			SessionID: "s1",
			Task:      "extract",
			Step:      i,
		})
		require.NoError(t, f.store.AppendHistory(context.Background(), "s1", msg))
	}

	rec := f.do(t, http.MethodGet, "/api/v1/sessions/s1/history")
	assert.Equal(t, http.StatusOK, rec.Code)

	var history SessionHistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history.Messages, 3)

	rec = f.do(t, http.MethodGet, "/api/v1/sessions/s1/history?limit=1")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history.Messages, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/sessions/s1/history?type=agent_status")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Empty(t, history.Messages)

	rec = f.do(t, http.MethodGet, "/api/v1/sessions/missing/history")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHistoryHandler_BadSince(t *testing.T) {
	f := newTestServer(t)
	f.seedSession(t, "s1", models.WorkflowStatusCompleted)

	rec := f.do(t, http.MethodGet, "/api/v1/sessions/s1/history?since=later")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBusStatsHandler(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/v1/bus/stats")
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats bus.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.Total)
}

func TestBusAuditHandler(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/v1/bus/audit")
	assert.Equal(t, http.StatusOK, rec.Code)

	var audit BusAuditResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	assert.Empty(t, audit.Records)
}

// pingFailingStore fails health probes while delegating everything else.
type pingFailingStore struct {
	store.SessionStore
}

func (p *pingFailingStore) Ping(context.Context) error {
	return store.ErrUnavailable
}

func TestHealthHandler_StoreDown(t *testing.T) {
	f := newTestServer(t)
	f.server.store = &pingFailingStore{SessionStore: f.store}

	rec := f.do(t, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "unhealthy", health.Status)
	assert.NotEmpty(t, health.Error)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
