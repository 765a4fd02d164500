package solving

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/sqlgym/internal/cache"
	"github.com/terra-clan/sqlgym/internal/catalog"
	"github.com/terra-clan/sqlgym/internal/models"
	"github.com/terra-clan/sqlgym/internal/sandbox"
	"github.com/terra-clan/sqlgym/internal/storage"
)

// Common errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFinished = errors.New("session finished")
	ErrUserNotFound    = errors.New("user not found")
)

// RecentResultsLimit caps the recent entries in a progress report.
const RecentResultsLimit = 10

// Manager owns the solving session lifecycle: it opens sessions against
// catalog tasks, runs queries in their sandboxes, validates submitted
// answers and credits the scoring ledger exactly once per session.
type Manager struct {
	repo      storage.Repository
	catalog   *catalog.Catalog
	sandboxes *sandbox.Store
	cache     *cache.Cache
	locks     *sessionLocks
}

// NewManager creates a session manager.
func NewManager(repo storage.Repository, cat *catalog.Catalog, sandboxes *sandbox.Store, c *cache.Cache) *Manager {
	return &Manager{
		repo:      repo,
		catalog:   cat,
		sandboxes: sandboxes,
		cache:     c,
		locks:     newSessionLocks(),
	}
}

// Open starts a new session for the user against a task: it materializes
// a fresh sandbox copy of the task's template and records the session in
// the started state. If the copy fails, no session is left behind.
func (m *Manager) Open(ctx context.Context, taskID string, user *models.User) (*models.SessionResponse, error) {
	task, err := m.catalog.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:        uuid.New().String(),
		TaskID:    task.ID,
		UserID:    user.ID,
		Status:    models.SessionStarted,
		CreatedAt: time.Now().UTC(),
	}

	if err := m.sandboxes.Materialize(ctx, task.TemplateKey, session.ID); err != nil {
		return nil, fmt.Errorf("failed to prepare sandbox: %w", err)
	}

	if err := m.repo.CreateSession(ctx, session); err != nil {
		// Roll the copy back so no orphan sandbox survives a failed open.
		if rmErr := m.sandboxes.Remove(session.ID); rmErr != nil {
			slog.Error("failed to remove sandbox after failed open", "error", rmErr, "session_id", session.ID)
		}
		return nil, err
	}

	slog.Info("session opened",
		"session_id", session.ID,
		"task_id", task.ID,
		"user_id", user.ID,
	)

	return sessionResponse(session, task), nil
}

// Get returns a session with its task snapshot, or ErrSessionNotFound.
func (m *Manager) Get(ctx context.Context, sessionID string) (*models.SessionResponse, error) {
	session, task, err := m.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sessionResponse(session, task), nil
}

// Execute runs one arbitrary SQL statement against the session's sandbox.
// The first execution moves the session from started to solve; a finished
// session rejects the statement.
func (m *Manager) Execute(ctx context.Context, sessionID, query string) (*models.QueryResult, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	session, _, err := m.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, ErrSessionFinished
	}

	if session.Status == models.SessionStarted {
		if err := m.repo.MarkSolving(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	db, err := m.sandboxes.Open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	result, err := sandbox.Execute(ctx, db, query)
	if err != nil {
		return nil, err
	}

	slog.Debug("query executed",
		"session_id", sessionID,
		"rows", len(result.Rows),
	)

	return result, nil
}

// Visualize returns the sandbox's schema with bounded sample data. It is
// read-only and does not advance the session state.
func (m *Manager) Visualize(ctx context.Context, sessionID string) ([]models.TableSchema, error) {
	session, _, err := m.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, ErrSessionFinished
	}

	db, err := m.sandboxes.Open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return sandbox.InspectSchema(ctx, db)
}

// Solve validates a submitted answer. A correct answer finishes the
// session and credits the user in one atomic step; an incorrect one
// leaves the session open for further queries and resubmission.
func (m *Manager) Solve(ctx context.Context, sessionID, answer string, user *models.User) (*models.SolveResponse, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	session, task, err := m.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, ErrSessionFinished
	}

	// Exact, case-sensitive comparison; no normalization.
	if answer != task.Answer {
		return &models.SolveResponse{
			Correct: false,
			Message: "Incorrect answer",
			Session: sessionResponse(session, task),
		}, nil
	}

	result := &models.Result{
		ID:        uuid.New().String(),
		TaskID:    task.ID,
		SessionID: session.ID,
		UserID:    user.ID,
		Points:    task.Price,
		CreatedAt: time.Now().UTC(),
	}

	credited, err := m.repo.FinishAndCredit(ctx, result)
	if err != nil {
		return nil, err
	}
	if !credited {
		// A concurrent submission won the race; this one conflicts.
		return nil, ErrSessionFinished
	}

	m.cache.InvalidateProgress(ctx, user.ID)

	session.Status = models.SessionFinished
	session.FinishedAt = &result.CreatedAt

	slog.Info("session solved",
		"session_id", session.ID,
		"task_id", task.ID,
		"user_id", user.ID,
		"points", result.Points,
	)

	return &models.SolveResponse{
		Correct: true,
		Message: "Correct answer",
		Session: sessionResponse(session, task),
		Result:  result,
	}, nil
}

// Progress aggregates a user's solved tasks from the result ledger.
func (m *Manager) Progress(ctx context.Context, username string) (*models.Progress, error) {
	user, err := m.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if cached, ok := m.cache.GetProgress(ctx, user.ID); ok {
		return cached, nil
	}

	progress, err := m.repo.GetProgress(ctx, user.ID, RecentResultsLimit)
	if err != nil {
		return nil, err
	}
	progress.Username = user.Username

	m.cache.SetProgress(ctx, user.ID, progress)
	return progress, nil
}

// fetch loads a session together with its task.
func (m *Manager) fetch(ctx context.Context, sessionID string) (*models.Session, *models.Task, error) {
	session, err := m.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, ErrSessionNotFound
	}

	task, err := m.catalog.Get(ctx, session.TaskID)
	if err != nil {
		return nil, nil, err
	}

	return session, task, nil
}

func sessionResponse(session *models.Session, task *models.Task) *models.SessionResponse {
	return &models.SessionResponse{
		ID:        session.ID,
		Status:    session.Status,
		Task:      task.Summary(),
		CreatedAt: session.CreatedAt,
	}
}
