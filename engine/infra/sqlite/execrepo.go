package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/compozy/executor/engine/execution"
	"github.com/georgysavva/scany/v2/sqlscan"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const executionColumns = "id, workflow_id, run_id, status, created_at"

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02 15:04:05.000000000"

var parseLayouts = []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"}

// timestamp scans created_at whether the driver hands back text or time.Time.
type timestamp struct {
	time.Time
}

func (ts *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		ts.Time = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	case nil:
		ts.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("sqlite: unsupported timestamp type %T", src)
	}
}

func (ts *timestamp) parse(raw string) error {
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			ts.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("sqlite: cannot parse timestamp %q", raw)
}

type executionRow struct {
	ID         string    `db:"id"`
	WorkflowID string    `db:"workflow_id"`
	RunID      string    `db:"run_id"`
	Status     string    `db:"status"`
	CreatedAt  timestamp `db:"created_at"`
}

func (r *executionRow) toDomain() *execution.Execution {
	return &execution.Execution{
		ID:         r.ID,
		WorkflowID: r.WorkflowID,
		RunID:      r.RunID,
		Status:     execution.Status(r.Status),
		CreatedAt:  r.CreatedAt.Time,
	}
}

// ExecutionRepo implements execution.Repository on top of a SQLite *sql.DB.
type ExecutionRepo struct{ db *sql.DB }

func NewExecutionRepo(db *sql.DB) *ExecutionRepo { return &ExecutionRepo{db: db} }

func (r *ExecutionRepo) Insert(ctx context.Context, exec *execution.Execution) error {
	createdAt := exec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	const q = `INSERT INTO executions (id, workflow_id, run_id, status, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(
		ctx,
		q,
		exec.ID,
		exec.WorkflowID,
		exec.RunID,
		string(exec.Status),
		createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %s", execution.ErrConflict, exec.ID)
		}
		return fmt.Errorf("%w: sqlite: insert execution: %w", execution.ErrStorage, err)
	}
	return nil
}

func (r *ExecutionRepo) FindByID(ctx context.Context, id string) (*execution.Execution, error) {
	const q = `SELECT ` + executionColumns + ` FROM executions WHERE id = ?`
	var row executionRow
	if err := sqlscan.Get(ctx, r.db, &row, q, id); err != nil {
		if sqlscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: sqlite: get execution: %w", execution.ErrStorage, err)
	}
	return row.toDomain(), nil
}

func (r *ExecutionRepo) Update(
	ctx context.Context,
	id string,
	fields execution.UpdateFields,
) (*execution.Execution, error) {
	const q = `UPDATE executions SET workflow_id = ?, run_id = ?, status = ? ` +
		`WHERE id = ? AND (? = '' OR status = ?) RETURNING ` + executionColumns
	var row executionRow
	expected := string(fields.ExpectedStatus)
	err := sqlscan.Get(
		ctx,
		r.db,
		&row,
		q,
		fields.WorkflowID,
		fields.RunID,
		string(fields.Status),
		id,
		expected,
		expected,
	)
	if err != nil {
		if sqlscan.NotFound(err) {
			return nil, r.noRowUpdated(ctx, id, fields.ExpectedStatus)
		}
		return nil, fmt.Errorf("%w: sqlite: update execution: %w", execution.ErrStorage, err)
	}
	return row.toDomain(), nil
}

// noRowUpdated tells a missing record apart from a failed status condition.
func (r *ExecutionRepo) noRowUpdated(ctx context.Context, id string, expected execution.Status) error {
	if expected == "" {
		return fmt.Errorf("%w: %s", execution.ErrNotFound, id)
	}
	var exists bool
	err := sqlscan.Get(ctx, r.db, &exists, `SELECT EXISTS (SELECT 1 FROM executions WHERE id = ?)`, id)
	if err != nil {
		return fmt.Errorf("%w: sqlite: check execution: %w", execution.ErrStorage, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", execution.ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s is no longer %s", execution.ErrStatusChanged, id, expected)
}

func (r *ExecutionRepo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM executions WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("%w: sqlite: delete execution: %w", execution.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: sqlite: delete execution: %w", execution.ErrStorage, err)
	}
	return n, nil
}

func (r *ExecutionRepo) ListAll(ctx context.Context) ([]*execution.Execution, error) {
	return r.list(ctx, nil)
}

func (r *ExecutionRepo) ListByStatus(
	ctx context.Context,
	statuses ...execution.Status,
) ([]*execution.Execution, error) {
	if len(statuses) == 0 {
		return []*execution.Execution{}, nil
	}
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return r.list(ctx, squirrel.Eq{"status": values})
}

func (r *ExecutionRepo) list(ctx context.Context, where squirrel.Sqlizer) ([]*execution.Execution, error) {
	sb := squirrel.Select(executionColumns).From("executions").OrderBy("created_at ASC", "id ASC")
	if where != nil {
		sb = sb.Where(where)
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build list query: %w", err)
	}
	var rows []*executionRow
	if err := sqlscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%w: sqlite: list executions: %w", execution.ErrStorage, err)
	}
	out := make([]*execution.Execution, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	default:
		return false
	}
}
