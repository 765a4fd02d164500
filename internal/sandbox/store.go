package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/terra-clan/sqlgym/internal/filestore"
)

// Common errors
var (
	ErrSandboxNotFound  = errors.New("sandbox not found")
	ErrTemplateNotFound = errors.New("task template not found")
)

// Store manages the isolated per-session working copies of task template
// databases. Each session owns exactly one sandbox file, keyed by the
// session id, so the mapping is recoverable from the id alone.
type Store struct {
	templates filestore.Store
	sandboxes *filestore.Dir
}

// NewStore creates a sandbox store over the given template source and
// sandbox directory. Sandboxes need a real directory because the SQLite
// driver opens them by path.
func NewStore(templates filestore.Store, sandboxes *filestore.Dir) *Store {
	return &Store{
		templates: templates,
		sandboxes: sandboxes,
	}
}

func sandboxKey(sessionID string) string {
	return sessionID + ".sqlite"
}

// Materialize copies the task template byte-for-byte into a fresh sandbox
// for the session. A failed copy leaves no sandbox behind.
func (s *Store) Materialize(ctx context.Context, templateKey, sessionID string) error {
	src, err := s.templates.Open(templateKey)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return ErrTemplateNotFound
		}
		return fmt.Errorf("failed to open template %s: %w", templateKey, err)
	}
	defer src.Close()

	if err := s.sandboxes.Put(sandboxKey(sessionID), src); err != nil {
		return fmt.Errorf("failed to materialize sandbox for session %s: %w", sessionID, err)
	}

	return nil
}

// Exists reports whether a sandbox was ever materialized for the session.
func (s *Store) Exists(sessionID string) (bool, error) {
	return s.sandboxes.Exists(sandboxKey(sessionID))
}

// Open opens the session's sandbox database for execution. The caller
// owns the returned handle and must close it.
func (s *Store) Open(ctx context.Context, sessionID string) (*sql.DB, error) {
	key := sandboxKey(sessionID)

	exists, err := s.sandboxes.Exists(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrSandboxNotFound
	}

	// busy_timeout guards against overlapping readers; the solving layer
	// already serializes writers per session.
	dsn := s.sandboxes.Path(key) + "?_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sandbox %s: %w", sessionID, err)
	}

	// SQLite supports a single writer, so keep one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sandbox %s: %w", sessionID, err)
	}

	return db, nil
}

// Remove deletes the session's sandbox file. Missing files are not an
// error; the retention worker may race a manual cleanup.
func (s *Store) Remove(sessionID string) error {
	if err := s.sandboxes.Delete(sandboxKey(sessionID)); err != nil && !errors.Is(err, filestore.ErrNotFound) {
		return err
	}
	return nil
}
