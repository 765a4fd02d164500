package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/sqlgym/internal/cache"
	"github.com/terra-clan/sqlgym/internal/filestore"
	"github.com/terra-clan/sqlgym/internal/models"
	"github.com/terra-clan/sqlgym/internal/storage"
)

// ErrTaskNotFound is returned when no task exists under the requested id.
var ErrTaskNotFound = errors.New("task not found")

// ValidationError reports malformed task upload input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Catalog is the read registry of task definitions. Tasks are immutable
// once created; the only writer is the administrative upload.
type Catalog struct {
	repo      storage.Repository
	templates filestore.Store
	cache     *cache.Cache
}

// New creates a catalog over the given repository and template store.
func New(repo storage.Repository, templates filestore.Store, c *cache.Cache) *Catalog {
	return &Catalog{
		repo:      repo,
		templates: templates,
		cache:     c,
	}
}

// Get returns the task or ErrTaskNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (*models.Task, error) {
	task, err := c.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// List returns public summaries of every task.
func (c *Catalog) List(ctx context.Context) ([]models.TaskSummary, error) {
	if cached, ok := c.cache.GetTaskList(ctx); ok {
		return cached, nil
	}

	tasks, err := c.repo.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		summaries = append(summaries, t.Summary())
	}

	c.cache.SetTaskList(ctx, summaries)
	return summaries, nil
}

// CreateTaskInput carries an administrative task upload: metadata plus the
// template database file content.
type CreateTaskInput struct {
	Name        string
	Description string
	Level       models.Level
	Answer      string
	Price       int
	Template    io.Reader
}

// Create validates the upload, stores the template file under the new
// task's id and inserts the task record.
func (c *Catalog) Create(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	if in.Name == "" {
		return nil, &ValidationError{Message: "task name is required"}
	}
	if !in.Level.Valid() {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown level %q", in.Level)}
	}
	if in.Answer == "" {
		return nil, &ValidationError{Message: "task answer is required"}
	}
	if in.Price < 0 {
		return nil, &ValidationError{Message: "task price must be non-negative"}
	}
	if in.Template == nil {
		return nil, &ValidationError{Message: "template database file is required"}
	}

	task := &models.Task{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Description: in.Description,
		Level:       in.Level,
		Answer:      in.Answer,
		Price:       in.Price,
		CreatedAt:   time.Now().UTC(),
	}
	task.TemplateKey = task.ID + ".sqlite"

	if err := c.templates.Put(task.TemplateKey, in.Template); err != nil {
		return nil, fmt.Errorf("failed to store task template: %w", err)
	}

	if err := c.repo.CreateTask(ctx, task); err != nil {
		// Keep the store consistent with the catalog.
		c.templates.Delete(task.TemplateKey)
		return nil, err
	}

	c.cache.InvalidateTaskList(ctx)
	return task, nil
}
