package execution

import "context"

// Repository persists execution records. Insert fails with ErrConflict on a
// duplicate id; FindByID returns (nil, nil) for a missing record; Update fails
// with ErrNotFound, or ErrStatusChanged when ExpectedStatus is set and the
// stored status differs; Delete reports the number of rows removed and never fails
// for a missing record.
type Repository interface {
	Insert(ctx context.Context, exec *Execution) error
	FindByID(ctx context.Context, id string) (*Execution, error)
	Update(ctx context.Context, id string, fields UpdateFields) (*Execution, error)
	Delete(ctx context.Context, id string) (int64, error)
	ListAll(ctx context.Context) ([]*Execution, error)
	ListByStatus(ctx context.Context, statuses ...Status) ([]*Execution, error)
}
