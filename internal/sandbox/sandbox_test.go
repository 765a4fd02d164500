package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/terra-clan/sqlgym/internal/filestore"
	"github.com/terra-clan/sqlgym/internal/models"
)

// newTestStore builds a store whose template dir holds one seeded sqlite
// database under books.sqlite.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	templates, err := filestore.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}
	sandboxes, err := filestore.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}

	db, err := sql.Open("sqlite", templates.Path("books.sqlite"))
	if err != nil {
		t.Fatalf("open template failed: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT NOT NULL, author TEXT, year INTEGER DEFAULT 2000)`,
		`INSERT INTO books (title, author, year) VALUES
			('A', 'a', 1990), ('B', 'b', 1991), ('C', 'c', 1992),
			('D', 'd', 1993), ('E', 'e', 1994), ('F', 'f', 1995), ('G', 'g', 1996)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed template: %v", err)
		}
	}

	return NewStore(templates, sandboxes)
}

func TestMaterializeCopyFidelity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Materialize(ctx, "books.sqlite", "sess-1"); err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	db, err := store.Open(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	result, err := Execute(ctx, db, "SELECT count(*) FROM sqlite_master WHERE type='table'")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0][0].Int() != 1 {
		t.Errorf("expected one table in sandbox copy, got %+v", result.Rows)
	}

	// Writes to the sandbox must not touch the template.
	if _, err := Execute(ctx, db, "DELETE FROM books"); err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}

	if err := store.Materialize(ctx, "books.sqlite", "sess-2"); err != nil {
		t.Fatalf("second Materialize failed: %v", err)
	}
	db2, err := store.Open(ctx, "sess-2")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db2.Close()

	result, err = Execute(ctx, db2, "SELECT count(*) FROM books")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Rows[0][0].Int() != 7 {
		t.Errorf("template mutated: fresh copy has %d rows, want 7", result.Rows[0][0].Int())
	}
}

func TestMaterializeMissingTemplate(t *testing.T) {
	store := newTestStore(t)

	err := store.Materialize(context.Background(), "missing.sqlite", "sess-x")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Materialize = %v, want ErrTemplateNotFound", err)
	}

	// The failed copy must leave no sandbox behind.
	exists, err := store.Exists("sess-x")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("sandbox exists after failed materialization")
	}
}

func TestOpenUnknownSandbox(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open(context.Background(), "never-materialized")
	if !errors.Is(err, ErrSandboxNotFound) {
		t.Errorf("Open = %v, want ErrSandboxNotFound", err)
	}
}

func TestExecuteStatementTypes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Materialize(ctx, "books.sqlite", "sess-exec"); err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	db, err := store.Open(ctx, "sess-exec")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	// SELECT returns typed rows.
	result, err := Execute(ctx, db, "SELECT 1, 2.5, 'x', NULL")
	if err != nil {
		t.Fatalf("SELECT failed: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	row := result.Rows[0]
	if row[0].Kind() != models.KindInt || row[0].Int() != 1 {
		t.Errorf("col 0 = %v, want int 1", row[0])
	}
	if row[1].Kind() != models.KindFloat || row[1].Float() != 2.5 {
		t.Errorf("col 1 = %v, want float 2.5", row[1])
	}
	if row[2].Kind() != models.KindText || row[2].Text() != "x" {
		t.Errorf("col 2 = %v, want text x", row[2])
	}
	if row[3].Kind() != models.KindNull {
		t.Errorf("col 3 kind = %v, want null", row[3].Kind())
	}

	// DML and DDL are permitted and commit their side effects.
	if _, err := Execute(ctx, db, "INSERT INTO books (title) VALUES ('H')"); err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}
	if _, err := Execute(ctx, db, "CREATE TABLE scratch (v TEXT)"); err != nil {
		t.Fatalf("CREATE failed: %v", err)
	}

	result, err = Execute(ctx, db, "SELECT count(*) FROM books")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if result.Rows[0][0].Int() != 8 {
		t.Errorf("count = %d after insert, want 8", result.Rows[0][0].Int())
	}

	// Failing SQL surfaces the backend message verbatim.
	_, err = Execute(ctx, db, "SELEKT broken")
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryError, got %v", err)
	}
	if qe.Message == "" {
		t.Error("QueryError carries no backend message")
	}
}

func TestInspectSchema(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Materialize(ctx, "books.sqlite", "sess-vis"); err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	db, err := store.Open(ctx, "sess-vis")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	tables, err := InspectSchema(ctx, db)
	if err != nil {
		t.Fatalf("InspectSchema failed: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}

	books := tables[0]
	if books.Name != "books" {
		t.Errorf("table name = %q, want books", books.Name)
	}
	if len(books.Columns) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(books.Columns))
	}

	byName := make(map[string]models.ColumnInfo)
	for _, col := range books.Columns {
		byName[col.Name] = col
	}

	if !byName["id"].PrimaryKey {
		t.Error("id should be primary key")
	}
	if !byName["title"].NotNull {
		t.Error("title should be not-null")
	}
	if byName["author"].NotNull {
		t.Error("author should be nullable")
	}
	if byName["year"].Default == nil || *byName["year"].Default != "2000" {
		t.Errorf("year default = %v, want 2000", byName["year"].Default)
	}

	// Sample is capped even though the table holds more rows.
	if len(books.Sample) != SampleRowLimit {
		t.Errorf("sample rows = %d, want %d", len(books.Sample), SampleRowLimit)
	}
}
