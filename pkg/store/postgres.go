package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentic-navigator/navigator/pkg/bus"
	"github.com/agentic-navigator/navigator/pkg/database"
	"github.com/agentic-navigator/navigator/pkg/models"
)

// PostgresStore is the document backend: snapshots and history as JSONB
// rows keyed by session id.
type PostgresStore struct {
	client     *database.Client
	historyCap int
}

// NewPostgresStore wraps an open database client.
func NewPostgresStore(client *database.Client, historyCap int) *PostgresStore {
	if historyCap <= 0 {
		historyCap = 1_000
	}
	return &PostgresStore{client: client, historyCap: historyCap}
}

func (p *PostgresStore) SaveContext(ctx context.Context, sc *models.SessionContext) error {
	data, err := models.EncodeSessionContext(sc)
	if err != nil {
		return err
	}
	_, err = p.client.DB().ExecContext(ctx, `
		INSERT INTO agent_context (session_id, context, started_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id)
		DO UPDATE SET context = EXCLUDED.context, updated_at = EXCLUDED.updated_at`,
		sc.SessionID, data, sc.StartedAt, sc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrUnavailable, sc.SessionID, err)
	}
	return nil
}

func (p *PostgresStore) LoadContext(ctx context.Context, sessionID string) (*models.SessionContext, error) {
	var data []byte
	err := p.client.DB().QueryRowContext(ctx,
		`SELECT context FROM agent_context WHERE session_id = $1`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrUnavailable, sessionID, err)
	}
	return models.DecodeSessionContext(data)
}

func (p *PostgresStore) DeleteContext(ctx context.Context, sessionID string) error {
	res, err := p.client.DB().ExecContext(ctx,
		`DELETE FROM agent_context WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	_, _ = p.client.DB().ExecContext(ctx,
		`DELETE FROM message_history WHERE session_id = $1`, sessionID)
	return nil
}

func (p *PostgresStore) ListContexts(ctx context.Context, limit int, afterCursor string) ([]string, string, error) {
	// Keyset pagination on (started_at DESC, session_id ASC).
	var (
		query string
		args  []any
	)
	if afterCursor == "" {
		query = `
			SELECT session_id FROM agent_context
			ORDER BY started_at DESC, session_id ASC`
	} else {
		query = `
			SELECT a.session_id FROM agent_context a, agent_context c
			WHERE c.session_id = $1
			  AND (a.started_at < c.started_at
			       OR (a.started_at = c.started_at AND a.session_id > c.session_id))
			ORDER BY a.started_at DESC, a.session_id ASC`
		args = []any{afterCursor}
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit+1)
	}

	rows, err := p.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("%w: list: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, "", fmt.Errorf("%w: list scan: %v", ErrUnavailable, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("%w: list rows: %v", ErrUnavailable, err)
	}

	next := ""
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
		next = ids[len(ids)-1]
	}
	return ids, next, nil
}

func (p *PostgresStore) AppendHistory(ctx context.Context, sessionID string, msg *bus.A2AMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message %s: %w", msg.MessageID, err)
	}
	_, err = p.client.DB().ExecContext(ctx, `
		INSERT INTO message_history (session_id, message_id, from_agent, to_agent, msg_type, ts, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sessionID, msg.MessageID, msg.FromAgent, msg.ToAgent, string(msg.Type), msg.Timestamp, data)
	if err != nil {
		return fmt.Errorf("%w: append history %s: %v", ErrUnavailable, sessionID, err)
	}

	// Evict beyond the per-session bound, oldest first.
	_, err = p.client.DB().ExecContext(ctx, `
		DELETE FROM message_history
		WHERE session_id = $1 AND id NOT IN (
			SELECT id FROM message_history
			WHERE session_id = $1
			ORDER BY id DESC
			LIMIT $2
		)`, sessionID, p.historyCap)
	if err != nil {
		return fmt.Errorf("%w: trim history %s: %v", ErrUnavailable, sessionID, err)
	}
	return nil
}

func (p *PostgresStore) ReadHistory(ctx context.Context, sessionID string, filter bus.HistoryFilter, limit int) ([]*bus.A2AMessage, error) {
	query := `
		SELECT message FROM message_history
		WHERE session_id = $1`
	args := []any{sessionID}

	if filter.Agent != "" {
		args = append(args, filter.Agent)
		query += fmt.Sprintf(" AND (from_agent = $%d OR to_agent = $%d)", len(args), len(args))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND msg_type = $%d", len(args))
	}
	if filter.Since > 0 {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	query += " ORDER BY id ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := p.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: read history %s: %v", ErrUnavailable, sessionID, err)
	}
	defer rows.Close()

	var out []*bus.A2AMessage
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("%w: history scan: %v", ErrUnavailable, err)
		}
		var msg bus.A2AMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("corrupt history row for %s: %w", sessionID, err)
		}
		out = append(out, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: history rows: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	if err := p.client.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	return p.client.Close()
}
