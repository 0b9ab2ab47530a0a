package testutil

import (
	"context"

	"github.com/compozy/executor/engine/execution"
	"github.com/stretchr/testify/mock"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) StartExecution(ctx context.Context, req execution.StartRequest) (execution.RunRef, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(execution.RunRef), args.Error(1)
}

func (m *MockEngine) DescribeExecution(
	ctx context.Context,
	workflowID, runID string,
) (execution.RemoteStatus, error) {
	args := m.Called(ctx, workflowID, runID)
	return args.Get(0).(execution.RemoteStatus), args.Error(1)
}

func (m *MockEngine) TerminateExecution(ctx context.Context, workflowID, runID, reason string) error {
	args := m.Called(ctx, workflowID, runID, reason)
	return args.Error(0)
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Insert(ctx context.Context, exec *execution.Execution) error {
	return m.Called(ctx, exec).Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id string) (*execution.Execution, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*execution.Execution), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) Update(
	ctx context.Context,
	id string,
	fields execution.UpdateFields,
) (*execution.Execution, error) {
	args := m.Called(ctx, id, fields)
	if v := args.Get(0); v != nil {
		return v.(*execution.Execution), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) ListAll(ctx context.Context) ([]*execution.Execution, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]*execution.Execution), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) ListByStatus(
	ctx context.Context,
	statuses ...execution.Status,
) ([]*execution.Execution, error) {
	args := m.Called(ctx, statuses)
	if v := args.Get(0); v != nil {
		return v.([]*execution.Execution), args.Error(1)
	}
	return nil, args.Error(1)
}

// Running builds a RUNNING record for tests.
func Running(id, workflowID, runID string) *execution.Execution {
	return &execution.Execution{ID: id, WorkflowID: workflowID, RunID: runID, Status: execution.StatusRunning}
}
