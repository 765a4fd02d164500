package cleanup

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/terra-clan/sqlgym/internal/filestore"
	"github.com/terra-clan/sqlgym/internal/models"
	"github.com/terra-clan/sqlgym/internal/sandbox"
	"github.com/terra-clan/sqlgym/internal/storage"
)

func newTestCleaner(t *testing.T, retention time.Duration) (*Cleaner, *storage.MemoryRepository, *sandbox.Store, filestore.Store) {
	t.Helper()

	templates := filestore.NewMemory()
	sandboxDir, err := filestore.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}

	repo := storage.NewMemoryRepository()
	sandboxes := sandbox.NewStore(templates, sandboxDir)
	return New(repo, sandboxes, time.Minute, retention), repo, sandboxes, templates
}

// addSession stores a session and its sandbox file.
func addSession(t *testing.T, repo *storage.MemoryRepository, sandboxes *sandbox.Store, templates filestore.Store, id string, status models.SessionStatus, finishedAt *time.Time) {
	t.Helper()
	ctx := context.Background()

	if err := templates.Put("tmpl.sqlite", bytes.NewReader([]byte("db"))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := sandboxes.Materialize(ctx, "tmpl.sqlite", id); err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	err := repo.CreateSession(ctx, &models.Session{
		ID:         id,
		TaskID:     "t1",
		UserID:     "u1",
		Status:     status,
		CreatedAt:  time.Now().UTC().Add(-2 * time.Hour),
		FinishedAt: finishedAt,
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
}

func TestRunOnceRemovesExpiredSandboxes(t *testing.T) {
	cleaner, repo, sandboxes, templates := newTestCleaner(t, 30*time.Minute)

	old := time.Now().UTC().Add(-time.Hour)
	fresh := time.Now().UTC().Add(-time.Minute)
	addSession(t, repo, sandboxes, templates, "expired", models.SessionFinished, &old)
	addSession(t, repo, sandboxes, templates, "recent", models.SessionFinished, &fresh)
	addSession(t, repo, sandboxes, templates, "active", models.SessionSolving, nil)

	cleaner.runOnce(context.Background())

	if exists, _ := sandboxes.Exists("expired"); exists {
		t.Error("expired sandbox was not removed")
	}
	if exists, _ := sandboxes.Exists("recent"); !exists {
		t.Error("sandbox inside the retention window was removed")
	}
	if exists, _ := sandboxes.Exists("active"); !exists {
		t.Error("sandbox of an active session was removed")
	}

	// Session rows survive cleanup
	if s, _ := repo.GetSession(context.Background(), "expired"); s == nil {
		t.Error("session row was deleted by cleanup")
	}
}

func TestZeroRetentionDisablesCleanup(t *testing.T) {
	cleaner, repo, sandboxes, templates := newTestCleaner(t, 0)

	old := time.Now().UTC().Add(-time.Hour)
	addSession(t, repo, sandboxes, templates, "finished", models.SessionFinished, &old)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleaner.Start(ctx)
	cleaner.Stop()

	if exists, _ := sandboxes.Exists("finished"); !exists {
		t.Error("sandbox removed although cleanup is disabled")
	}
}
