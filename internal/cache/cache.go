package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/sqlgym/internal/models"
)

const (
	taskListKey       = "sqlgym:tasks:all"
	progressKeyPrefix = "sqlgym:progress:"
)

// Cache is a Redis-backed read cache for the task list and per-user
// progress aggregates. A nil *Cache is valid and behaves as a permanent
// miss, so callers never branch on whether caching is enabled.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and returns a cache with the given entry TTL.
func New(address, password string, db int, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func progressKey(userID string) string {
	return progressKeyPrefix + userID
}

// GetProgress returns the cached progress for a user, if present.
func (c *Cache) GetProgress(ctx context.Context, userID string) (*models.Progress, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, progressKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("progress cache read failed", "error", err, "user_id", userID)
		}
		return nil, false
	}

	var p models.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Warn("progress cache entry corrupt", "error", err, "user_id", userID)
		return nil, false
	}
	return &p, true
}

// SetProgress stores a user's progress aggregate. Failures are logged and
// swallowed; the cache never breaks the request path.
func (c *Cache) SetProgress(ctx context.Context, userID string, p *models.Progress) {
	if c == nil {
		return
	}

	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, progressKey(userID), data, c.ttl).Err(); err != nil {
		slog.Warn("progress cache write failed", "error", err, "user_id", userID)
	}
}

// InvalidateProgress drops a user's cached progress, called after a credit.
func (c *Cache) InvalidateProgress(ctx context.Context, userID string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, progressKey(userID)).Err(); err != nil {
		slog.Warn("progress cache invalidation failed", "error", err, "user_id", userID)
	}
}

// GetTaskList returns the cached task catalog, if present.
func (c *Cache) GetTaskList(ctx context.Context) ([]models.TaskSummary, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, taskListKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("task list cache read failed", "error", err)
		}
		return nil, false
	}

	var tasks []models.TaskSummary
	if err := json.Unmarshal(data, &tasks); err != nil {
		slog.Warn("task list cache entry corrupt", "error", err)
		return nil, false
	}
	return tasks, true
}

// SetTaskList stores the task catalog.
func (c *Cache) SetTaskList(ctx context.Context, tasks []models.TaskSummary) {
	if c == nil {
		return
	}

	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, taskListKey, data, c.ttl).Err(); err != nil {
		slog.Warn("task list cache write failed", "error", err)
	}
}

// InvalidateTaskList drops the cached catalog, called after a task upload.
func (c *Cache) InvalidateTaskList(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, taskListKey).Err(); err != nil {
		slog.Warn("task list cache invalidation failed", "error", err)
	}
}
