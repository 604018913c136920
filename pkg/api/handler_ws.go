package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/agentic-navigator/navigator/pkg/models"
	"github.com/agentic-navigator/navigator/pkg/stream"
	"github.com/agentic-navigator/navigator/pkg/workflow"
)

// wsWriteTimeout bounds a single WebSocket send so one stalled client
// cannot wedge the delivery loop.
const wsWriteTimeout = 10 * time.Second

// NavigateRequest is the first frame a client sends on /ws/navigate.
type NavigateRequest struct {
	Document    string `json:"document"`
	ContentType string `json:"content_type,omitempty"`

	// Both default to true when omitted.
	IncludeMetadata       *bool `json:"include_metadata,omitempty"`
	IncludePartialResults *bool `json:"include_partial_results,omitempty"`
}

// controlFrame is a client message sent while a workflow is running.
type controlFrame struct {
	Action string `json:"action"`
}

// wsFrame is the server-to-client envelope.
type wsFrame struct {
	Type      string                `json:"type"` // "session", "event", "ack", "done", "error"
	SessionID string                `json:"session_id,omitempty"`
	Event     *stream.AgentEvent    `json:"event,omitempty"`
	Action    string                `json:"action,omitempty"`
	Status    models.WorkflowStatus `json:"status,omitempty"`
	Persisted *bool                 `json:"persisted,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// navigateWSHandler handles GET /ws/navigate: one workflow run per
// connection, streamed as JSON event frames.
func (s *Server) navigateWSHandler(c *echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// TODO: replace with an OriginPatterns allowlist once the UI origin
		// is fixed in deployment config.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusInternalError, "navigation aborted")

	ctx := c.Request().Context()
	logger := slog.With("component", "ws")

	req, err := readNavigateRequest(ctx, conn)
	if err != nil {
		_ = writeFrame(ctx, conn, wsFrame{Type: "error", Error: err.Error()})
		conn.Close(websocket.StatusPolicyViolation, "invalid request")
		return nil
	}

	sessionID := uuid.NewString()
	sub, err := s.hub.Open(sessionID)
	if err != nil {
		_ = writeFrame(ctx, conn, wsFrame{Type: "error", Error: "session already streaming"})
		conn.Close(websocket.StatusPolicyViolation, "duplicate subscription")
		return nil
	}

	if err := writeFrame(ctx, conn, wsFrame{Type: "session", SessionID: sessionID}); err != nil {
		s.hub.Close(sessionID)
		return nil
	}

	// Run the workflow; the hub is closed afterwards so the delivery loop
	// drains the buffer and then terminates.
	results := make(chan *workflow.RunResult, 1)
	go func() {
		defer s.hub.Close(sessionID)
		result, err := s.executor.RunWorkflowWithSession(ctx, sessionID, req.Document, models.ContentType(req.ContentType), sub)
		if err != nil {
			logger.Warn("Workflow rejected", "session_id", sessionID, "error", err)
			results <- nil
			return
		}
		results <- result
	}()

	// Read loop — control frames until the client or the run ends.
	readerCtx, stopReader := context.WithCancel(ctx)
	defer stopReader()
	go s.controlLoop(readerCtx, conn, sessionID, logger)

	// Delivery loop.
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			break
		}
		trimEvent(ev, req)
		if err := writeFrame(ctx, conn, wsFrame{Type: "event", SessionID: sessionID, Event: ev}); err != nil {
			logger.Warn("Client write failed, cancelling workflow", "session_id", sessionID, "error", err)
			s.hub.Cancel(sessionID)
			<-results
			return nil
		}
	}

	result := <-results
	if result == nil {
		_ = writeFrame(ctx, conn, wsFrame{Type: "error", SessionID: sessionID, Error: "workflow capacity exhausted"})
		conn.Close(websocket.StatusTryAgainLater, "busy")
		return nil
	}

	done := wsFrame{
		Type:      "done",
		SessionID: sessionID,
		Status:    result.Context.WorkflowStatus,
		Persisted: &result.Persisted,
	}
	_ = writeFrame(ctx, conn, done)
	conn.Close(websocket.StatusNormalClosure, "")
	return nil
}

// controlLoop processes client control frames. Cancel flags the session;
// pause and resume are acknowledged but scheduling is not suspended.
func (s *Server) controlLoop(ctx context.Context, conn *websocket.Conn, sessionID string, logger *slog.Logger) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var frame controlFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			_ = writeFrame(ctx, conn, wsFrame{Type: "error", SessionID: sessionID, Error: "malformed control frame"})
			continue
		}
		switch frame.Action {
		case "cancel":
			logger.Info("Client requested cancellation", "session_id", sessionID)
			s.hub.Cancel(sessionID)
			_ = writeFrame(ctx, conn, wsFrame{Type: "ack", SessionID: sessionID, Action: frame.Action})
		case "pause", "resume":
			_ = writeFrame(ctx, conn, wsFrame{Type: "ack", SessionID: sessionID, Action: frame.Action})
		default:
			_ = writeFrame(ctx, conn, wsFrame{Type: "error", SessionID: sessionID, Error: "unknown action"})
		}
	}
}

func readNavigateRequest(ctx context.Context, conn *websocket.Conn) (*NavigateRequest, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	var req NavigateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errMalformedRequest
	}
	if req.Document == "" {
		return nil, errDocumentRequired
	}
	switch models.ContentType(req.ContentType) {
	case "", models.ContentTypeDocument, models.ContentTypeCodebase:
	default:
		return nil, errBadContentType
	}
	return &req, nil
}

// trimEvent strips optional sections the client opted out of.
func trimEvent(ev *stream.AgentEvent, req *NavigateRequest) {
	if !boolOrTrue(req.IncludeMetadata) {
		ev.Metadata = nil
	}
	if !boolOrTrue(req.IncludePartialResults) && ev.Payload != nil {
		ev.Payload.PartialResults = nil
	}
}

func boolOrTrue(p *bool) bool {
	return p == nil || *p
}

func writeFrame(ctx context.Context, conn *websocket.Conn, frame wsFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
