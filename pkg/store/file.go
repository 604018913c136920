package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agentic-navigator/navigator/pkg/bus"
	"github.com/agentic-navigator/navigator/pkg/models"
)

const (
	snapshotSuffix = ".json"
	historySuffix  = ".history.json"
)

// FileStore persists each session as a JSON file in a flat directory.
// Writes go through a temp file and rename, so a snapshot is replaced
// atomically.
type FileStore struct {
	dir        string
	historyCap int
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string, historyCap int) (*FileStore, error) {
	if historyCap <= 0 {
		historyCap = 1_000
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: cannot create %s: %v", ErrUnavailable, dir, err)
	}
	return &FileStore{dir: dir, historyCap: historyCap}, nil
}

func (f *FileStore) SaveContext(ctx context.Context, sc *models.SessionContext) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	data, err := models.EncodeSessionContext(sc)
	if err != nil {
		return err
	}
	return f.writeAtomic(sc.SessionID+snapshotSuffix, data)
}

func (f *FileStore) LoadContext(ctx context.Context, sessionID string) (*models.SessionContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	data, err := os.ReadFile(f.path(sessionID + snapshotSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return models.DecodeSessionContext(data)
}

func (f *FileStore) DeleteContext(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	err := os.Remove(f.path(sessionID + snapshotSuffix))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	os.Remove(f.path(sessionID + historySuffix))
	return nil
}

func (f *FileStore) ListContexts(ctx context.Context, limit int, afterCursor string) ([]string, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	type sessionFile struct {
		id      string
		modTime time.Time
	}
	var sessions []sessionFile
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, historySuffix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sessions = append(sessions, sessionFile{
			id:      strings.TrimSuffix(name, snapshotSuffix),
			modTime: info.ModTime(),
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].modTime.Equal(sessions[j].modTime) {
			return sessions[i].modTime.After(sessions[j].modTime)
		}
		return sessions[i].id < sessions[j].id
	})

	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.id
	}

	start := 0
	if afterCursor != "" {
		for i, id := range ids {
			if id == afterCursor {
				start = i + 1
				break
			}
		}
	}
	if start >= len(ids) {
		return nil, "", nil
	}
	end := len(ids)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	page := ids[start:end]
	next := ""
	if end < len(ids) {
		next = page[len(page)-1]
	}
	return page, next, nil
}

func (f *FileStore) AppendHistory(ctx context.Context, sessionID string, msg *bus.A2AMessage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	ring, err := f.readHistoryFile(sessionID)
	if err != nil {
		return err
	}
	ring = append(ring, msg)
	if len(ring) > f.historyCap {
		ring = ring[len(ring)-f.historyCap:]
	}
	data, err := json.Marshal(ring)
	if err != nil {
		return fmt.Errorf("failed to encode history for %s: %w", sessionID, err)
	}
	return f.writeAtomic(sessionID+historySuffix, data)
}

func (f *FileStore) ReadHistory(ctx context.Context, sessionID string, filter bus.HistoryFilter, limit int) ([]*bus.A2AMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	ring, err := f.readHistoryFile(sessionID)
	if err != nil {
		return nil, err
	}
	var out []*bus.A2AMessage
	for _, msg := range ring {
		if !matchHistory(msg, filter) {
			continue
		}
		out = append(out, msg)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *FileStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(f.dir); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (f *FileStore) Close() error {
	return nil
}

func (f *FileStore) readHistoryFile(sessionID string) ([]*bus.A2AMessage, error) {
	data, err := os.ReadFile(f.path(sessionID + historySuffix))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var ring []*bus.A2AMessage
	if err := json.Unmarshal(data, &ring); err != nil {
		return nil, fmt.Errorf("corrupt history for %s: %w", sessionID, err)
	}
	return ring, nil
}

func (f *FileStore) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), f.path(name)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, name)
}
