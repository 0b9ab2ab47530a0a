package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/compozy/executor/engine/execution"
)

// InMemoryRepo is a Repository backed by a map, keeping insertion order.
type InMemoryRepo struct {
	mu      sync.Mutex
	records map[string]*execution.Execution
	order   []string
}

func NewInMemoryRepo(seed ...*execution.Execution) *InMemoryRepo {
	r := &InMemoryRepo{records: make(map[string]*execution.Execution)}
	for _, e := range seed {
		_ = r.Insert(context.Background(), e)
	}
	return r
}

func (r *InMemoryRepo) Insert(_ context.Context, exec *execution.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[exec.ID]; ok {
		return execution.ErrConflict
	}
	cp := *exec
	r.records[exec.ID] = &cp
	r.order = append(r.order, exec.ID)
	return nil
}

func (r *InMemoryRepo) FindByID(_ context.Context, id string) (*execution.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *InMemoryRepo) Update(
	_ context.Context,
	id string,
	fields execution.UpdateFields,
) (*execution.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, execution.ErrNotFound
	}
	if fields.ExpectedStatus != "" && rec.Status != fields.ExpectedStatus {
		return nil, execution.ErrStatusChanged
	}
	rec.WorkflowID = fields.WorkflowID
	rec.RunID = fields.RunID
	rec.Status = fields.Status
	cp := *rec
	return &cp, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return 0, nil
	}
	delete(r.records, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
	return 1, nil
}

func (r *InMemoryRepo) ListAll(_ context.Context) ([]*execution.Execution, error) {
	return r.list(nil), nil
}

func (r *InMemoryRepo) ListByStatus(
	_ context.Context,
	statuses ...execution.Status,
) ([]*execution.Execution, error) {
	return r.list(func(e *execution.Execution) bool { return slices.Contains(statuses, e.Status) }), nil
}

func (r *InMemoryRepo) list(keep func(*execution.Execution) bool) []*execution.Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*execution.Execution, 0, len(r.order))
	for _, id := range r.order {
		rec := r.records[id]
		if keep != nil && !keep(rec) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out
}

// Len returns the number of stored records.
func (r *InMemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
