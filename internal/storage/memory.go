package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/terra-clan/sqlgym/internal/models"
)

// MemoryRepository implements Repository with in-process maps. It backs
// tests and local development where PostgreSQL is unavailable.
type MemoryRepository struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	tasks    map[string]*models.Task
	sessions map[string]*models.Session
	results  map[string]*models.Result
	order    []string // task insertion order
}

// NewMemoryRepository returns an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:    make(map[string]*models.User),
		tasks:    make(map[string]*models.Task),
		sessions: make(map[string]*models.Session),
		results:  make(map[string]*models.Result),
	}
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}

// --- Users ---

// CreateUser inserts a new user
func (r *MemoryRepository) CreateUser(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == u.Username {
			return ErrDuplicateUsername
		}
	}

	clone := *u
	r.users[u.ID] = &clone
	return nil
}

// GetUserByID retrieves a user by id
func (r *MemoryRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

// GetUserByUsername retrieves a user by username
func (r *MemoryRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

// UpdateUser updates a user's profile fields
func (r *MemoryRepository) UpdateUser(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[u.ID]
	if !ok {
		return nil
	}

	for id, other := range r.users {
		if id != u.ID && other.Username == u.Username {
			return ErrDuplicateUsername
		}
	}

	existing.Name = u.Name
	existing.Username = u.Username
	existing.Avatar = u.Avatar
	existing.Description = u.Description
	return nil
}

// --- Tasks ---

// CreateTask inserts a new task
func (r *MemoryRepository) CreateTask(ctx context.Context, t *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *t
	r.tasks[t.ID] = &clone
	r.order = append(r.order, t.ID)
	return nil
}

// GetTask retrieves a task by id
func (r *MemoryRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	clone := *t
	return &clone, nil
}

// ListTasks returns all tasks in insertion order
func (r *MemoryRepository) ListTasks(ctx context.Context) ([]*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]*models.Task, 0, len(r.order))
	for _, id := range r.order {
		if t, ok := r.tasks[id]; ok {
			clone := *t
			tasks = append(tasks, &clone)
		}
	}
	return tasks, nil
}

// --- Sessions ---

// CreateSession inserts a new session
func (r *MemoryRepository) CreateSession(ctx context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *s
	r.sessions[s.ID] = &clone
	return nil
}

// GetSession retrieves a session by id
func (r *MemoryRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

// DeleteSession removes a session
func (r *MemoryRepository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

// MarkSolving transitions a started session to solve
func (r *MemoryRepository) MarkSolving(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok && s.Status == models.SessionStarted {
		s.Status = models.SessionSolving
	}
	return nil
}

// FinishAndCredit finishes the session, records the result and credits the
// user as one atomic step under the repository lock.
func (r *MemoryRepository) FinishAndCredit(ctx context.Context, res *models.Result) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[res.SessionID]
	if !ok {
		return false, nil
	}
	if s.Status == models.SessionFinished {
		return false, nil
	}

	s.Status = models.SessionFinished
	finishedAt := res.CreatedAt
	s.FinishedAt = &finishedAt

	clone := *res
	r.results[res.ID] = &clone

	if u, ok := r.users[res.UserID]; ok {
		u.Points += res.Points
	}

	return true, nil
}

// GetProgress aggregates a user's results
func (r *MemoryRepository) GetProgress(ctx context.Context, userID string, recentLimit int) (*models.Progress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	progress := &models.Progress{
		ByLevel: make(map[models.Level]int),
		Recent:  []models.ResultEntry{},
	}
	for _, level := range models.Levels {
		progress.ByLevel[level] = 0
	}

	var entries []models.ResultEntry
	for _, res := range r.results {
		if res.UserID != userID {
			continue
		}

		progress.Completed++
		progress.TotalPoints += res.Points

		entry := models.ResultEntry{
			ID:        res.ID,
			TaskID:    res.TaskID,
			Points:    res.Points,
			CreatedAt: res.CreatedAt,
		}
		if t, ok := r.tasks[res.TaskID]; ok {
			entry.TaskName = t.Name
			entry.Level = t.Level
			progress.ByLevel[t.Level]++
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	if recentLimit > 0 && len(entries) > recentLimit {
		entries = entries[:recentLimit]
	}
	progress.Recent = append(progress.Recent, entries...)

	return progress, nil
}

// ListFinishedSessionsBefore returns finished sessions older than the cutoff
func (r *MemoryRepository) ListFinishedSessionsBefore(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []*models.Session
	for _, s := range r.sessions {
		if s.Status == models.SessionFinished && s.FinishedAt != nil && s.FinishedAt.Before(cutoff) {
			clone := *s
			sessions = append(sessions, &clone)
		}
	}
	return sessions, nil
}
