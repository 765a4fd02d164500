package sandbox

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/terra-clan/sqlgym/internal/models"
)

// SampleRowLimit caps the number of sample rows returned per table by
// schema inspection.
const SampleRowLimit = 5

// QueryError wraps a failing statement's backend error. The message is
// passed through verbatim so the learner can debug their SQL.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string {
	return "SQL Error: " + e.Message
}

// Execute runs one arbitrary, unsanitized SQL statement against the
// sandbox and returns the full result set. Any statement type is allowed;
// side effects only ever hit the session's private copy.
func Execute(ctx context.Context, db *sql.DB, query string) (*models.QueryResult, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, &QueryError{Message: err.Error()}
	}
	defer rows.Close()

	return collectRows(rows, 0)
}

// InspectSchema enumerates every table in the sandbox with its column
// metadata and a bounded sample of rows, for visualization.
func InspectSchema(ctx context.Context, db *sql.DB) ([]models.TableSchema, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, &QueryError{Message: err.Error()}
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, &QueryError{Message: err.Error()}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, &QueryError{Message: err.Error()}
	}
	rows.Close()

	tables := make([]models.TableSchema, 0, len(names))
	for _, name := range names {
		table := models.TableSchema{Name: name}

		columns, err := tableColumns(ctx, db, name)
		if err != nil {
			return nil, err
		}
		table.Columns = columns

		sample, err := tableSample(ctx, db, name)
		if err != nil {
			return nil, err
		}
		table.Sample = sample

		tables = append(tables, table)
	}

	return tables, nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) ([]models.ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, `PRAGMA table_info(`+quoteIdent(table)+`)`)
	if err != nil {
		return nil, &QueryError{Message: err.Error()}
	}
	defer rows.Close()

	var columns []models.ColumnInfo
	for rows.Next() {
		var col models.ColumnInfo
		var notNull, pk int
		var dflt sql.NullString

		if err := rows.Scan(&col.CID, &col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
			return nil, &QueryError{Message: err.Error()}
		}

		col.NotNull = notNull != 0
		col.PrimaryKey = pk != 0
		if dflt.Valid {
			col.Default = &dflt.String
		}

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, &QueryError{Message: err.Error()}
	}
	return columns, nil
}

func tableSample(ctx context.Context, db *sql.DB, table string) ([]models.Row, error) {
	rows, err := db.QueryContext(ctx, `SELECT * FROM `+quoteIdent(table)+` LIMIT `+strconv.Itoa(SampleRowLimit))
	if err != nil {
		return nil, &QueryError{Message: err.Error()}
	}
	defer rows.Close()

	result, err := collectRows(rows, SampleRowLimit)
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// collectRows drains a result set into tagged scalar rows. A limit of 0
// means unbounded.
func collectRows(rows *sql.Rows, limit int) (*models.QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Message: err.Error()}
	}

	result := &models.QueryResult{
		Columns: cols,
		Rows:    []models.Row{},
	}

	// Statements without a result set (INSERT, DDL) report zero columns.
	if len(cols) == 0 {
		return result, nil
	}

	values := make([]any, len(cols))
	pointers := make([]any, len(cols))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, &QueryError{Message: err.Error()}
		}

		row := make(models.Row, len(cols))
		for i, v := range values {
			row[i] = models.ValueOf(v)
		}
		result.Rows = append(result.Rows, row)

		if limit > 0 && len(result.Rows) >= limit {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, &QueryError{Message: err.Error()}
	}

	return result, nil
}

// quoteIdent quotes a table name for interpolation into PRAGMA and SELECT
// statements, which cannot take bind parameters for identifiers.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
