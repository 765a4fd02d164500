package catalog

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/terra-clan/sqlgym/internal/filestore"
	"github.com/terra-clan/sqlgym/internal/models"
	"github.com/terra-clan/sqlgym/internal/storage"
)

func newTestCatalog() (*Catalog, *storage.MemoryRepository, *filestore.Memory) {
	repo := storage.NewMemoryRepository()
	templates := filestore.NewMemory()
	return New(repo, templates, nil), repo, templates
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	cat, _, templates := newTestCatalog()

	task, err := cat.Create(ctx, CreateTaskInput{
		Name:        "Joins 101",
		Description: "Basic joins",
		Level:       models.LevelIntermediate,
		Answer:      "7",
		Price:       20,
		Template:    bytes.NewReader([]byte("sqlite-template-bytes")),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.ID == "" || task.TemplateKey != task.ID+".sqlite" {
		t.Fatalf("unexpected task identifiers: %+v", task)
	}

	exists, err := templates.Exists(task.TemplateKey)
	if err != nil || !exists {
		t.Fatalf("template not stored: exists=%v err=%v", exists, err)
	}

	got, err := cat.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Joins 101" || got.Answer != "7" {
		t.Fatalf("Get returned %+v", got)
	}

	if _, err := cat.Get(ctx, "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Get missing = %v, want ErrTaskNotFound", err)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	cat, _, _ := newTestCatalog()

	cases := []struct {
		name string
		in   CreateTaskInput
	}{
		{"missing name", CreateTaskInput{Level: models.LevelBeginner, Answer: "x", Template: bytes.NewReader(nil)}},
		{"bad level", CreateTaskInput{Name: "t", Level: "guru", Answer: "x", Template: bytes.NewReader(nil)}},
		{"missing answer", CreateTaskInput{Name: "t", Level: models.LevelBeginner, Template: bytes.NewReader(nil)}},
		{"negative price", CreateTaskInput{Name: "t", Level: models.LevelBeginner, Answer: "x", Price: -1, Template: bytes.NewReader(nil)}},
		{"missing template", CreateTaskInput{Name: "t", Level: models.LevelBeginner, Answer: "x"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := cat.Create(ctx, tc.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Create = %v, want ValidationError", err)
			}
		})
	}
}

func TestListSummariesHideAnswers(t *testing.T) {
	ctx := context.Background()
	cat, _, _ := newTestCatalog()

	for _, name := range []string{"one", "two"} {
		_, err := cat.Create(ctx, CreateTaskInput{
			Name:     name,
			Level:    models.LevelBeginner,
			Answer:   "secret",
			Price:    5,
			Template: bytes.NewReader([]byte("db")),
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	summaries, err := cat.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("List returned %d tasks, want 2", len(summaries))
	}
	if summaries[0].Name != "one" || summaries[1].Name != "two" {
		t.Fatalf("List order = %v", summaries)
	}
}

func TestSeedFromDir(t *testing.T) {
	ctx := context.Background()
	cat, repo, _ := newTestCatalog()

	dir := t.TempDir()
	manifest := `tasks:
  - name: First Steps
    description: Count the rows
    level: Beginner
    answer: "3"
    price: 5
    file: first.sqlite
  - name: Harder
    description: Aggregate
    level: Advanced
    answer: "99"
    price: 30
    file: harder.sqlite
`
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest failed: %v", err)
	}
	for _, name := range []string{"first.sqlite", "harder.sqlite"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("template"), 0o644); err != nil {
			t.Fatalf("write template failed: %v", err)
		}
	}

	if err := cat.SeedFromDir(ctx, dir); err != nil {
		t.Fatalf("SeedFromDir failed: %v", err)
	}

	tasks, err := repo.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("seeded %d tasks, want 2", len(tasks))
	}

	// Seeding again must not duplicate tasks
	if err := cat.SeedFromDir(ctx, dir); err != nil {
		t.Fatalf("second SeedFromDir failed: %v", err)
	}
	tasks, _ = repo.ListTasks(ctx)
	if len(tasks) != 2 {
		t.Fatalf("re-seeding produced %d tasks, want 2", len(tasks))
	}
}

func TestSeedFromDirMissingManifest(t *testing.T) {
	cat, _, _ := newTestCatalog()
	if err := cat.SeedFromDir(context.Background(), t.TempDir()); err == nil {
		t.Fatal("SeedFromDir succeeded without a manifest")
	}
}
