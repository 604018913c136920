package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentic-navigator/navigator/pkg/bus"
	"github.com/agentic-navigator/navigator/pkg/config"
	"github.com/agentic-navigator/navigator/pkg/metrics"
	"github.com/agentic-navigator/navigator/pkg/models"
	"github.com/agentic-navigator/navigator/pkg/store"
	"github.com/agentic-navigator/navigator/pkg/stream"
)

// ErrBusy is returned when the concurrent-workflow limit is reached.
var ErrBusy = errors.New("workflow capacity exhausted")

// RunResult is the terminal outcome of a workflow run. Persisted is
// false when any snapshot write failed; the run itself still finishes.
type RunResult struct {
	Context   *models.SessionContext
	Persisted bool
}

// Executor drives the canonical agent sequence over one SessionContext
// per session. It is the single writer of the context; agents receive
// clones and return partial results.
type Executor struct {
	cfg    *config.Config
	store  store.SessionStore
	bus    *bus.Bus
	hub    *stream.Hub
	agents map[string]AgentPlugin
	slots  chan struct{}
	logger *slog.Logger
}

// NewExecutor wires the executor and registers every plug-in with the
// bus so it can receive delegations.
func NewExecutor(cfg *config.Config, st store.SessionStore, b *bus.Bus, hub *stream.Hub, plugins []AgentPlugin) *Executor {
	agents := make(map[string]AgentPlugin, len(plugins))
	for _, p := range plugins {
		agents[p.Name()] = p
		if b != nil {
			b.RegisterAgent(p.Name())
		}
	}
	return &Executor{
		cfg:    cfg,
		store:  st,
		bus:    b,
		hub:    hub,
		agents: agents,
		slots:  make(chan struct{}, cfg.MaxConcurrentWorkflows),
		logger: slog.With("component", "executor"),
	}
}

// RunWorkflow executes the four agents in order for a fresh session and
// returns the terminal context. sub may be nil when no client is
// streaming.
func (e *Executor) RunWorkflow(ctx context.Context, rawInput string, contentType models.ContentType, sub *stream.Subscription) (*RunResult, error) {
	select {
	case e.slots <- struct{}{}:
		defer func() { <-e.slots }()
	default:
		return nil, ErrBusy
	}

	sessionID := uuid.NewString()
	return e.runSession(ctx, sessionID, rawInput, contentType, sub)
}

// RunWorkflowWithSession is RunWorkflow with a caller-chosen session id,
// used by the streaming handler which opens the subscription first.
func (e *Executor) RunWorkflowWithSession(ctx context.Context, sessionID, rawInput string, contentType models.ContentType, sub *stream.Subscription) (*RunResult, error) {
	select {
	case e.slots <- struct{}{}:
		defer func() { <-e.slots }()
	default:
		return nil, ErrBusy
	}
	return e.runSession(ctx, sessionID, rawInput, contentType, sub)
}

func (e *Executor) runSession(ctx context.Context, sessionID, rawInput string, contentType models.ContentType, sub *stream.Subscription) (*RunResult, error) {
	run := &sessionRun{
		executor:      e,
		sessionID:     sessionID,
		sub:           sub,
		correlationID: uuid.NewString(),
		startedAt:     time.Now(),
		persisted:     true,
		logger:        e.logger.With("session_id", sessionID),
	}

	sc := models.NewSessionContext(sessionID, rawInput, contentType)
	run.ctx = sc

	ctx, cancel := context.WithTimeout(ctx, e.cfg.MaxWorkflowDuration)
	defer cancel()

	run.logger.Info("Workflow started",
		"content_type", contentType,
		"model_type", e.cfg.ModelType,
		"correlation_id", run.correlationID)

	for step, agentName := range models.AgentSequence {
		if kind, stopped := run.interrupted(ctx); stopped {
			run.terminate(agentName, step, kind)
			break
		}
		run.executeStep(ctx, step, agentName)
		if run.fatal {
			break
		}
	}

	sc.CurrentAgent = ""
	if sc.WorkflowStatus != models.WorkflowStatusFailed {
		if len(sc.CompletedAgents) == len(models.AgentSequence) {
			sc.WorkflowStatus = models.WorkflowStatusCompleted
		} else {
			sc.WorkflowStatus = models.WorkflowStatusFailed
		}
	}
	sc.UpdatedAt = time.Now().UTC()
	run.persist()

	metrics.WorkflowsFinished.WithLabelValues(string(sc.WorkflowStatus)).Inc()
	run.logger.Info("Workflow finished",
		"status", sc.WorkflowStatus,
		"completed_agents", sc.CompletedAgents,
		"errors", len(sc.Errors),
		"persisted", run.persisted)

	return &RunResult{Context: sc, Persisted: run.persisted}, nil
}

// sessionRun is the per-run mutable state of the executor loop.
type sessionRun struct {
	executor      *Executor
	sessionID     string
	ctx           *models.SessionContext
	sub           *stream.Subscription
	correlationID string
	startedAt     time.Time
	persisted     bool
	fatal         bool
	logger        *slog.Logger
}

// interrupted reports whether the run must stop before the next step.
func (r *sessionRun) interrupted(ctx context.Context) (models.ErrorKind, bool) {
	if r.sub != nil && r.sub.Cancelled() {
		return models.ErrorKindCancelled, true
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return models.ErrorKindResourceExhausted, true
	case ctx.Err() != nil:
		return models.ErrorKindCancelled, true
	}
	return "", false
}

func (r *sessionRun) executeStep(ctx context.Context, step int, agentName string) {
	e := r.executor
	sc := r.ctx

	sc.CurrentAgent = agentName
	if sc.WorkflowStatus == models.WorkflowStatusPending {
		sc.WorkflowStatus = models.WorkflowStatusRunning
	}

	r.emit(r.event(agentName, stream.StatusQueued, step, nil))
	r.delegate(ctx, step, agentName)
	r.emit(r.event(agentName, stream.StatusProcessing, step, nil))

	plugin, ok := e.agents[agentName]
	if !ok {
		r.recordError(agentName, models.ErrorKindUnknownRecipient, fmt.Sprintf("no plug-in registered for %s", agentName))
		r.emit(r.errorEvent(agentName, step, models.ErrorKindUnknownRecipient, "agent not registered"))
		return
	}

	partial, err := r.invoke(ctx, plugin)
	if err != nil {
		kind := classifyAgentError(err)
		r.recordError(agentName, kind, err.Error())
		r.emit(r.errorEvent(agentName, step, kind, err.Error()))
		if kind.IsFatal() {
			sc.WorkflowStatus = models.WorkflowStatusFailed
			r.fatal = true
		}
		r.persist()
		return
	}

	merge(sc, agentName, partial, r.logger)
	sc.CompletedAgents = append(sc.CompletedAgents, agentName)
	sc.UpdatedAt = time.Now().UTC()
	r.persist()
	r.announceCompletion(ctx, agentName)
	r.emit(r.completeEvent(agentName, step))
}

// invoke runs the plug-in over a clone of the context, containing any
// panic as an agent fault.
func (r *sessionRun) invoke(ctx context.Context, plugin AgentPlugin) (partial *PartialResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			partial = nil
			err = fmt.Errorf("agent panic: %v", rec)
		}
	}()
	return plugin.Process(ctx, r.ctx.Clone(), Options{
		ModelType:     r.executor.cfg.ModelType,
		CorrelationID: r.correlationID,
	})
}

// terminate records a fatal interruption and emits the terminal error
// event.
func (r *sessionRun) terminate(agentName string, step int, kind models.ErrorKind) {
	r.recordError(agentName, kind, string(kind))
	r.ctx.WorkflowStatus = models.WorkflowStatusFailed
	r.fatal = true
	r.emit(r.errorEvent(agentName, step, kind, "workflow terminated"))
}

// delegate publishes the TaskDelegation for a step. Bus failures are
// never fatal to the run.
func (r *sessionRun) delegate(ctx context.Context, step int, agentName string) {
	if r.executor.bus == nil {
		return
	}
	msg := bus.NewMessage(bus.MessageTypeTaskDelegation, models.AgentOrchestrator, agentName, bus.PriorityHigh, bus.TaskDelegationData{
		SessionID: r.sessionID,
		Task:      fmt.Sprintf("execute %s step", agentName),
		Step:      step,
	})
	msg.Trace.CorrelationID = r.correlationID
	if err := r.executor.bus.Publish(ctx, msg); err != nil {
		r.logger.Warn("Failed to publish delegation", "agent", agentName, "error", err)
	}
}

// announceCompletion publishes the agent's typed completion message back
// to the orchestrator.
func (r *sessionRun) announceCompletion(ctx context.Context, agentName string) {
	if r.executor.bus == nil {
		return
	}
	sc := r.ctx

	var msg *bus.A2AMessage
	switch agentName {
	case models.AgentOrchestrator:
		msg = bus.NewMessage(bus.MessageTypeAgentStatus, agentName, models.AgentOrchestrator, bus.PriorityMedium, bus.AgentStatusData{
			SessionID: r.sessionID,
			Agent:     agentName,
			State:     "completed",
		})
	case models.AgentSummariser:
		msg = bus.NewMessage(bus.MessageTypeSummarizationCompleted, agentName, models.AgentOrchestrator, bus.PriorityMedium, bus.SummarizationCompletedData{
			SessionID:   r.sessionID,
			SummaryText: sc.SummaryText,
			Insights:    sc.SummaryInsights,
		})
	case models.AgentLinker:
		msg = bus.NewMessage(bus.MessageTypeRelationshipMapped, agentName, models.AgentOrchestrator, bus.PriorityMedium, bus.RelationshipMappedData{
			SessionID:     r.sessionID,
			KeyEntities:   sc.KeyEntities,
			Relationships: sc.Relationships,
		})
	case models.AgentVisualiser:
		msg = bus.NewMessage(bus.MessageTypeVisualizationReady, agentName, models.AgentOrchestrator, bus.PriorityMedium, bus.VisualizationReadyData{
			SessionID: r.sessionID,
			Graph:     sc.GraphJSON,
		})
	}
	msg.Trace.CorrelationID = r.correlationID
	if err := r.executor.bus.Publish(ctx, msg); err != nil {
		r.logger.Warn("Failed to publish completion", "agent", agentName, "error", err)
	}
}

// persist snapshots the context. Uses a fresh context so a cancelled run
// still records its terminal state; failures flip the persisted flag and
// never abort the run.
func (r *sessionRun) persist() {
	if r.executor.store == nil {
		return
	}
	if err := r.executor.store.SaveContext(context.Background(), r.ctx); err != nil {
		r.persisted = false
		r.logger.Warn("Failed to persist session context", "error", err)
	}
}

func (r *sessionRun) emit(ev *stream.AgentEvent) {
	if r.executor.hub == nil {
		return
	}
	if err := r.executor.hub.Emit(r.sessionID, ev); err != nil && !errors.Is(err, stream.ErrNoSubscriber) {
		r.logger.Warn("Failed to emit event", "status", ev.Status, "error", err)
	}
}

func (r *sessionRun) event(agent string, status stream.EventStatus, step int, payload *stream.EventPayload) *stream.AgentEvent {
	ev := stream.NewEvent(agent, status)
	ev.Metadata = &stream.EventMetadata{
		ElapsedMS:     time.Since(r.startedAt).Milliseconds(),
		Step:          step + 1,
		TotalSteps:    len(models.AgentSequence),
		AgentSequence: models.AgentSequence,
	}
	ev.Payload = payload
	return ev
}

func (r *sessionRun) completeEvent(agent string, step int) *stream.AgentEvent {
	sc := r.ctx
	payload := &stream.EventPayload{}
	switch agent {
	case models.AgentOrchestrator:
		payload.PartialResults = map[string]any{
			"content_type":       sc.ContentType,
			orchestratorNotesKey: sc.SummaryInsights[orchestratorNotesKey],
		}
	case models.AgentSummariser:
		payload.Summary = sc.SummaryText
	case models.AgentLinker:
		payload.Entities = sc.KeyEntities
		payload.Relationships = sc.Relationships
	case models.AgentVisualiser:
		payload.Visualization = sc.GraphJSON
	}
	return r.event(agent, stream.StatusComplete, step, payload)
}

func (r *sessionRun) errorEvent(agent string, step int, kind models.ErrorKind, details string) *stream.AgentEvent {
	return r.event(agent, stream.StatusError, step, &stream.EventPayload{
		Error:        kind,
		ErrorDetails: details,
	})
}

func (r *sessionRun) recordError(agent string, kind models.ErrorKind, message string) {
	r.ctx.Errors = append(r.ctx.Errors, models.ErrorEntry{
		Agent:     agent,
		ErrorKind: kind,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	r.logger.Warn("Workflow step error", "agent", agent, "kind", kind, "message", message)
}
