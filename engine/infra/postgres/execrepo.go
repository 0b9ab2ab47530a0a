package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/compozy/executor/engine/execution"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolationCode = "23505"
	executionColumns    = "id, workflow_id, run_id, status, created_at"
)

const insertExecution = "INSERT INTO executions (" + executionColumns + ") VALUES ($1, $2, $3, $4, $5)"

const selectExecutionByID = "SELECT " + executionColumns + " FROM executions WHERE id = $1"

const updateExecution = "UPDATE executions SET workflow_id = $2, run_id = $3, status = $4 " +
	"WHERE id = $1 AND ($5::text = '' OR status = $5) RETURNING " + executionColumns

const executionExists = "SELECT EXISTS (SELECT 1 FROM executions WHERE id = $1)"

const deleteExecution = "DELETE FROM executions WHERE id = $1"

type executionRow struct {
	ID         string    `db:"id"`
	WorkflowID string    `db:"workflow_id"`
	RunID      string    `db:"run_id"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r *executionRow) toDomain() *execution.Execution {
	return &execution.Execution{
		ID:         r.ID,
		WorkflowID: r.WorkflowID,
		RunID:      r.RunID,
		Status:     execution.Status(r.Status),
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

// ExecutionRepo implements execution.Repository on Postgres.
type ExecutionRepo struct {
	db DB
}

func NewExecutionRepo(db DB) *ExecutionRepo {
	return &ExecutionRepo{db: db}
}

func (r *ExecutionRepo) Insert(ctx context.Context, exec *execution.Execution) error {
	_, err := r.db.Exec(
		ctx,
		insertExecution,
		exec.ID,
		exec.WorkflowID,
		exec.RunID,
		string(exec.Status),
		exec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%w: %s", execution.ErrConflict, exec.ID)
		}
		return fmt.Errorf("%w: inserting execution: %w", execution.ErrStorage, err)
	}
	return nil
}

func (r *ExecutionRepo) FindByID(ctx context.Context, id string) (*execution.Execution, error) {
	var row executionRow
	if err := pgxscan.Get(ctx, r.db, &row, selectExecutionByID, id); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: scanning execution: %w", execution.ErrStorage, err)
	}
	return row.toDomain(), nil
}

func (r *ExecutionRepo) Update(
	ctx context.Context,
	id string,
	fields execution.UpdateFields,
) (*execution.Execution, error) {
	var row executionRow
	err := pgxscan.Get(
		ctx,
		r.db,
		&row,
		updateExecution,
		id,
		fields.WorkflowID,
		fields.RunID,
		string(fields.Status),
		string(fields.ExpectedStatus),
	)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, r.noRowUpdated(ctx, id, fields.ExpectedStatus)
		}
		return nil, fmt.Errorf("%w: updating execution: %w", execution.ErrStorage, err)
	}
	return row.toDomain(), nil
}

// noRowUpdated tells a missing record apart from a failed status condition.
func (r *ExecutionRepo) noRowUpdated(ctx context.Context, id string, expected execution.Status) error {
	if expected == "" {
		return fmt.Errorf("%w: %s", execution.ErrNotFound, id)
	}
	var exists bool
	if err := pgxscan.Get(ctx, r.db, &exists, executionExists, id); err != nil {
		return fmt.Errorf("%w: checking execution: %w", execution.ErrStorage, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", execution.ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s is no longer %s", execution.ErrStatusChanged, id, expected)
}

func (r *ExecutionRepo) Delete(ctx context.Context, id string) (int64, error) {
	tag, err := r.db.Exec(ctx, deleteExecution, id)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting execution: %w", execution.ErrStorage, err)
	}
	return tag.RowsAffected(), nil
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
	sb := squirrel.Select(executionColumns).
		From("executions").
		OrderBy("created_at ASC", "id ASC").
		PlaceholderFormat(squirrel.Dollar)
	if where != nil {
		sb = sb.Where(where)
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}
	var rows []*executionRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%w: listing executions: %w", execution.ErrStorage, err)
	}
	out := make([]*execution.Execution, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
