package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/sqlgym/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Users ---

// CreateUser inserts a new user record
func (r *PostgresRepository) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, name, username, avatar, description, points, is_admin, level, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Username,
		u.Avatar,
		u.Description,
		u.Points,
		u.IsAdmin,
		string(u.Level),
		u.PasswordHash,
		u.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

const userColumns = `id, name, username, avatar, description, points, is_admin, level, password_hash, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var level string

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Username,
		&u.Avatar,
		&u.Description,
		&u.Points,
		&u.IsAdmin,
		&level,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.Level = models.Level(level)
	return &u, nil
}

// GetUserByID retrieves a user by id
func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetUserByUsername retrieves a user by username
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.pool.QueryRow(ctx, query, username))
}

// UpdateUser updates a user's mutable profile fields. Points are left
// alone here; only FinishAndCredit touches them.
func (r *PostgresRepository) UpdateUser(ctx context.Context, u *models.User) error {
	query := `
		UPDATE users
		SET name = $2, username = $3, avatar = $4, description = $5
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, u.ID, u.Name, u.Username, u.Avatar, u.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// --- Tasks ---

// CreateTask inserts a new task record
func (r *PostgresRepository) CreateTask(ctx context.Context, t *models.Task) error {
	query := `
		INSERT INTO tasks (id, name, description, level, template_key, answer, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		t.ID,
		t.Name,
		t.Description,
		string(t.Level),
		t.TemplateKey,
		t.Answer,
		t.Price,
		t.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

const taskColumns = `id, name, description, level, template_key, answer, price, created_at`

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	var level string

	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&level,
		&t.TemplateKey,
		&t.Answer,
		&t.Price,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	t.Level = models.Level(level)
	return &t, nil
}

// GetTask retrieves a task by id
func (r *PostgresRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// ListTasks returns all tasks
func (r *PostgresRepository) ListTasks(ctx context.Context) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

// --- Sessions ---

// CreateSession inserts a new session record
func (r *PostgresRepository) CreateSession(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, task_id, user_id, status, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.TaskID,
		s.UserID,
		string(s.Status),
		s.CreatedAt,
		nullTime(s.FinishedAt),
	)

	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	var status string
	var finishedAt sql.NullTime

	err := row.Scan(
		&s.ID,
		&s.TaskID,
		&s.UserID,
		&status,
		&s.CreatedAt,
		&finishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	s.Status = models.SessionStatus(status)
	if finishedAt.Valid {
		s.FinishedAt = &finishedAt.Time
	}

	return &s, nil
}

// GetSession retrieves a session by id
func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT id, task_id, user_id, status, created_at, finished_at
		FROM sessions
		WHERE id = $1
	`
	return scanSession(r.pool.QueryRow(ctx, query, id))
}

// DeleteSession removes a session record
func (r *PostgresRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// MarkSolving transitions a session from started to solve. The status
// guard makes repeated calls harmless.
func (r *PostgresRepository) MarkSolving(ctx context.Context, id string) error {
	query := `UPDATE sessions SET status = $2 WHERE id = $1 AND status = $3`

	_, err := r.pool.Exec(ctx, query, id, string(models.SessionSolving), string(models.SessionStarted))
	if err != nil {
		return fmt.Errorf("failed to mark session solving: %w", err)
	}
	return nil
}

// FinishAndCredit finishes the session, inserts the result and credits the
// user in one transaction. The status-guarded UPDATE means a concurrent
// submission (even from another process) credits at most once.
func (r *PostgresRepository) FinishAndCredit(ctx context.Context, res *models.Result) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE sessions SET status = $2, finished_at = $3 WHERE id = $1 AND status <> $2`,
		res.SessionID, string(models.SessionFinished), res.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finish session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Already finished; no credit.
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO results (id, task_id, session_id, user_id, points, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ID, res.TaskID, res.SessionID, res.UserID, res.Points, res.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert result: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET points = points + $2 WHERE id = $1`,
		res.UserID, res.Points,
	)
	if err != nil {
		return false, fmt.Errorf("failed to credit user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit credit: %w", err)
	}

	return true, nil
}

// GetProgress aggregates a user's results
func (r *PostgresRepository) GetProgress(ctx context.Context, userID string, recentLimit int) (*models.Progress, error) {
	progress := &models.Progress{
		ByLevel: make(map[models.Level]int),
		Recent:  []models.ResultEntry{},
	}
	for _, level := range models.Levels {
		progress.ByLevel[level] = 0
	}

	err := r.pool.QueryRow(ctx,
		`SELECT count(*), coalesce(sum(points), 0) FROM results WHERE user_id = $1`,
		userID,
	).Scan(&progress.Completed, &progress.TotalPoints)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate results: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT t.level, count(*)
		 FROM results r
		 JOIN tasks t ON t.id = r.task_id
		 WHERE r.user_id = $1
		 GROUP BY t.level`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("failed to scan level row: %w", err)
		}
		progress.ByLevel[models.Level(level)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recent, err := r.pool.Query(ctx,
		`SELECT r.id, r.task_id, t.name, t.level, r.points, r.created_at
		 FROM results r
		 JOIN tasks t ON t.id = r.task_id
		 WHERE r.user_id = $1
		 ORDER BY r.created_at DESC, r.id
		 LIMIT $2`,
		userID, recentLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent results: %w", err)
	}
	defer recent.Close()

	for recent.Next() {
		var e models.ResultEntry
		var level string
		if err := recent.Scan(&e.ID, &e.TaskID, &e.TaskName, &level, &e.Points, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		e.Level = models.Level(level)
		progress.Recent = append(progress.Recent, e)
	}

	return progress, recent.Err()
}

// ListFinishedSessionsBefore returns finished sessions older than the cutoff
func (r *PostgresRepository) ListFinishedSessionsBefore(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	query := `
		SELECT id, task_id, user_id, status, created_at, finished_at
		FROM sessions
		WHERE status = $1 AND finished_at IS NOT NULL AND finished_at < $2
	`

	rows, err := r.pool.Query(ctx, query, string(models.SessionFinished), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list finished sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// Helpers

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
