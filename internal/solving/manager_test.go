package solving

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/terra-clan/sqlgym/internal/catalog"
	"github.com/terra-clan/sqlgym/internal/filestore"
	"github.com/terra-clan/sqlgym/internal/models"
	"github.com/terra-clan/sqlgym/internal/sandbox"
	"github.com/terra-clan/sqlgym/internal/storage"
)

type testEnv struct {
	repo    *storage.MemoryRepository
	catalog *catalog.Catalog
	manager *Manager
	user    *models.User
	task    *models.Task
}

// newTestEnv wires a manager over the in-memory repository and tempdir
// file stores, with one task (answer "42", price 10) in the catalog.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	templates, err := filestore.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}
	sandboxes, err := filestore.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}

	repo := storage.NewMemoryRepository()
	cat := catalog.New(repo, templates, nil)
	manager := NewManager(repo, cat, sandbox.NewStore(templates, sandboxes), nil)

	user := &models.User{
		ID:        "u1",
		Name:      "Test User",
		Username:  "tester",
		Level:     models.LevelBeginner,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	template := makeTemplate(t)
	defer template.Close()

	task, err := cat.Create(ctx, catalog.CreateTaskInput{
		Name:        "The Answer",
		Description: "Find the answer",
		Level:       models.LevelBeginner,
		Answer:      "42",
		Price:       10,
		Template:    template,
	})
	if err != nil {
		t.Fatalf("Create task failed: %v", err)
	}

	return &testEnv{
		repo:    repo,
		catalog: cat,
		manager: manager,
		user:    user,
		task:    task,
	}
}

// makeTemplate builds a small sqlite template database and returns it
// opened for reading.
func makeTemplate(t *testing.T) *os.File {
	t.Helper()

	path := filepath.Join(t.TempDir(), "template.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open template failed: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE numbers (n INTEGER)`); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO numbers (n) VALUES (40), (2)`); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close template: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen template: %v", err)
	}
	return f
}

func TestSolvingScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// Open: session starts in started state with the task snapshot.
	session, err := env.manager.Open(ctx, env.task.ID, env.user)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if session.Status != models.SessionStarted {
		t.Errorf("status = %s, want %s", session.Status, models.SessionStarted)
	}
	if session.Task.Price != 10 || session.Task.Name != "The Answer" {
		t.Errorf("task snapshot = %+v", session.Task)
	}

	// First execution flips the state to solve.
	result, err := env.manager.Execute(ctx, session.ID, "SELECT 1")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0][0].Int() != 1 {
		t.Errorf("SELECT 1 returned %+v", result.Rows)
	}

	got, err := env.manager.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.SessionSolving {
		t.Errorf("status after execute = %s, want %s", got.Status, models.SessionSolving)
	}

	// Wrong answer: no transition, no credit, session stays open.
	outcome, err := env.manager.Solve(ctx, session.ID, "41", env.user)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if outcome.Correct {
		t.Error("wrong answer reported correct")
	}
	if outcome.Session.Status != models.SessionSolving {
		t.Errorf("status after wrong answer = %s, want %s", outcome.Session.Status, models.SessionSolving)
	}
	if outcome.Result != nil {
		t.Error("wrong answer produced a result record")
	}

	u, _ := env.repo.GetUserByID(ctx, env.user.ID)
	if u.Points != 0 {
		t.Errorf("points after wrong answer = %d, want 0", u.Points)
	}

	// Correct answer: finished, credited exactly the task price.
	outcome, err = env.manager.Solve(ctx, session.ID, "42", env.user)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !outcome.Correct {
		t.Fatal("correct answer reported incorrect")
	}
	if outcome.Session.Status != models.SessionFinished {
		t.Errorf("status = %s, want %s", outcome.Session.Status, models.SessionFinished)
	}
	if outcome.Result == nil || outcome.Result.Points != 10 {
		t.Errorf("result = %+v, want points 10", outcome.Result)
	}

	u, _ = env.repo.GetUserByID(ctx, env.user.ID)
	if u.Points != 10 {
		t.Errorf("points = %d, want 10", u.Points)
	}

	// Finished is terminal: both resubmission and execution conflict.
	if _, err := env.manager.Solve(ctx, session.ID, "42", env.user); !errors.Is(err, ErrSessionFinished) {
		t.Errorf("resubmit = %v, want ErrSessionFinished", err)
	}
	if _, err := env.manager.Execute(ctx, session.ID, "SELECT 1"); !errors.Is(err, ErrSessionFinished) {
		t.Errorf("execute after finish = %v, want ErrSessionFinished", err)
	}
	if _, err := env.manager.Visualize(ctx, session.ID); !errors.Is(err, ErrSessionFinished) {
		t.Errorf("visualize after finish = %v, want ErrSessionFinished", err)
	}

	// Exactly one scoring record, and it snapshots the task price.
	progress, err := env.manager.Progress(ctx, env.user.Username)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if progress.Completed != 1 || progress.TotalPoints != 10 {
		t.Errorf("progress = %+v, want 1 completed / 10 points", progress)
	}
	if progress.ByLevel[models.LevelBeginner] != 1 {
		t.Errorf("beginner count = %d, want 1", progress.ByLevel[models.LevelBeginner])
	}
	if len(progress.Recent) != 1 || progress.Recent[0].Points != 10 {
		t.Errorf("recent = %+v", progress.Recent)
	}
}

func TestConcurrentSolveCreditsOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	session, err := env.manager.Open(ctx, env.task.ID, env.user)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	correct := make(chan bool, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := env.manager.Solve(ctx, session.ID, "42", env.user)
			if err != nil {
				if !errors.Is(err, ErrSessionFinished) {
					t.Errorf("Solve = %v, want nil or ErrSessionFinished", err)
				}
				return
			}
			correct <- outcome.Correct
		}()
	}
	wg.Wait()
	close(correct)

	wins := 0
	for range correct {
		wins++
	}
	if wins != 1 {
		t.Errorf("%d submissions succeeded, want exactly 1", wins)
	}

	u, _ := env.repo.GetUserByID(ctx, env.user.ID)
	if u.Points != 10 {
		t.Errorf("points = %d after concurrent submissions, want 10", u.Points)
	}

	progress, err := env.manager.Progress(ctx, env.user.Username)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if progress.Completed != 1 {
		t.Errorf("completed = %d, want 1", progress.Completed)
	}
}

func TestOpenUnknownTask(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.manager.Open(context.Background(), "no-such-task", env.user)
	if !errors.Is(err, catalog.ErrTaskNotFound) {
		t.Errorf("Open = %v, want ErrTaskNotFound", err)
	}
}

func TestGetUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.manager.Get(context.Background(), "no-such-session")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get = %v, want ErrSessionNotFound", err)
	}
}

func TestProgressUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.manager.Progress(context.Background(), "nobody")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Progress = %v, want ErrUserNotFound", err)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	s1, err := env.manager.Open(ctx, env.task.ID, env.user)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s2, err := env.manager.Open(ctx, env.task.ID, env.user)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := env.manager.Execute(ctx, s1.ID, "DROP TABLE numbers"); err != nil {
		t.Fatalf("DROP failed: %v", err)
	}

	// The second session's copy is untouched.
	result, err := env.manager.Execute(ctx, s2.ID, "SELECT sum(n) FROM numbers")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Rows[0][0].Int() != 42 {
		t.Errorf("sum = %d, want 42", result.Rows[0][0].Int())
	}
}
