package storage

import (
	"context"
	"errors"
	"time"

	"github.com/terra-clan/sqlgym/internal/models"
)

// ErrDuplicateUsername is returned when a username is already registered.
var ErrDuplicateUsername = errors.New("username already taken")

// Repository defines the interface for application persistence.
// Lookup methods return (nil, nil) when the record does not exist.
type Repository interface {
	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error

	// Tasks
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context) ([]*models.Task, error)

	// Sessions
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error

	// MarkSolving transitions a session from started to solve. It is a
	// no-op on sessions already past started.
	MarkSolving(ctx context.Context, id string) error

	// FinishAndCredit atomically finishes the session, records the result
	// and increments the user's points. All three effects apply together
	// or not at all. Returns false without side effects if the session
	// was already finished.
	FinishAndCredit(ctx context.Context, res *models.Result) (bool, error)

	// GetProgress aggregates a user's results: completed count, total
	// points, per-level breakdown and the most recent entries.
	GetProgress(ctx context.Context, userID string, recentLimit int) (*models.Progress, error)

	// ListFinishedSessionsBefore returns finished sessions whose terminal
	// transition happened before the cutoff. Used by the retention worker.
	ListFinishedSessionsBefore(ctx context.Context, cutoff time.Time) ([]*models.Session, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
