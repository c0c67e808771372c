package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xbiggyl/wsassistant/internal/session"
)

// Store persists the final aggregate of an archived session. Failures are
// logged by the caller and never resurrect the session.
type Store interface {
	Save(ctx context.Context, aggregate session.Aggregate) error
}

// FileStore writes one JSON document per archived session.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

// Save writes the aggregate to <dir>/<sessionID>.json. The write goes
// through a temp file and rename so a crash never leaves a torn document.
func (s *FileStore) Save(ctx context.Context, aggregate session.Aggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if aggregate.SessionID == "" {
		return fmt.Errorf("aggregate has no session id")
	}

	data, err := json.MarshalIndent(aggregate, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode aggregate: %w", err)
	}

	final := filepath.Join(s.dir, aggregate.SessionID+".json")
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize archive file: %w", err)
	}

	return nil
}

// Load reads a previously archived aggregate, mainly for the admin API and
// tests.
func (s *FileStore) Load(sessionID string) (session.Aggregate, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, sessionID+".json"))
	if err != nil {
		return session.Aggregate{}, fmt.Errorf("failed to read archive file: %w", err)
	}

	var aggregate session.Aggregate
	if err := json.Unmarshal(data, &aggregate); err != nil {
		return session.Aggregate{}, fmt.Errorf("failed to decode archive file: %w", err)
	}

	return aggregate, nil
}
