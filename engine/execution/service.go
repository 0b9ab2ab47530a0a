package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/compozy/executor/pkg/logger"
	"github.com/google/uuid"
)

const workflowIDPrefix = "wf-"

// Config holds the fixed start parameters of every execution.
type Config struct {
	TaskQueue    string
	WorkflowType string
}

// Outcome classifies the result of one reconciliation.
type Outcome string

const (
	OutcomeUpdated           Outcome = "updated"
	OutcomeUnchanged         Outcome = "unchanged"
	OutcomeEngineUnavailable Outcome = "engine_unavailable"
	OutcomeRunNotFound       Outcome = "run_not_found"
	OutcomeDeleted           Outcome = "deleted"
	OutcomeStorageError      Outcome = "storage_error"
)

// ReconcileResult describes what ReconcileOne did to a record.
type ReconcileResult struct {
	Execution *Execution
	Previous  Status
	Current   Status
	Outcome   Outcome
}

type Option func(*Service)

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how record ids and workflow ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Service implements the execution use cases on top of a Repository and an
// Engine. It holds no mutable state of its own.
type Service struct {
	repo   Repository
	engine Engine
	cfg    Config
	now    func() time.Time
	newID  func() string
}

func NewService(repo Repository, engine Engine, cfg Config, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		engine: engine,
		cfg:    cfg,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateExecution starts a remote run and records it as RUNNING. No record is
// written when the start fails, and a run whose record cannot be inserted is
// terminated again.
func (s *Service) CreateExecution(ctx context.Context) (*Execution, error) {
	log := logger.FromContext(ctx)
	ref, err := s.engine.StartExecution(ctx, StartRequest{
		WorkflowID:   workflowIDPrefix + s.newID(),
		TaskQueue:    s.cfg.TaskQueue,
		WorkflowType: s.cfg.WorkflowType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start remote run: %w", err)
	}
	exec := &Execution{
		ID:         s.newID(),
		WorkflowID: ref.WorkflowID,
		RunID:      ref.RunID,
		Status:     StatusRunning,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, exec); err != nil {
		s.compensateStart(ctx, ref)
		return nil, fmt.Errorf("failed to insert execution: %w", err)
	}
	log.Info("Execution created", "execution_id", exec.ID, "workflow_id", exec.WorkflowID, "run_id", exec.RunID)
	return exec, nil
}

func (s *Service) compensateStart(ctx context.Context, ref RunRef) {
	log := logger.FromContext(ctx)
	// the caller may already be gone; the orphaned run still has to stop
	cctx := context.WithoutCancel(ctx)
	if err := s.engine.TerminateExecution(cctx, ref.WorkflowID, ref.RunID, "execution record not persisted"); err != nil {
		log.Error(
			"Failed to terminate orphaned run",
			"workflow_id", ref.WorkflowID,
			"run_id", ref.RunID,
			"error", err,
		)
		return
	}
	log.Warn("Terminated run whose record could not be persisted", "workflow_id", ref.WorkflowID, "run_id", ref.RunID)
}

// GetExecution returns (nil, nil) when no record exists.
func (s *Service) GetExecution(ctx context.Context, id string) (*Execution, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) ListExecutions(ctx context.Context) ([]*Execution, error) {
	return s.repo.ListAll(ctx)
}

// DeleteExecution removes the local record and reports whether one existed.
// The remote run keeps going.
func (s *Service) DeleteExecution(ctx context.Context, id string) (bool, error) {
	n, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListIncomplete returns the RUNNING records, the only ones polled.
func (s *Service) ListIncomplete(ctx context.Context) ([]*Execution, error) {
	return s.repo.ListByStatus(ctx, StatusRunning)
}

// ReconcileOne polls the engine for exec and stores the mapped status when it
// changed. A describe failure other than ErrRunNotFound writes nothing and is
// returned wrapped. A record deleted while being polled yields OutcomeDeleted
// with a nil error, and one changed concurrently yields OutcomeUnchanged.
func (s *Service) ReconcileOne(ctx context.Context, exec *Execution) (*ReconcileResult, error) {
	res := &ReconcileResult{Execution: exec, Previous: exec.Status, Current: exec.Status, Outcome: OutcomeUnchanged}
	if exec.Status.IsTerminal() {
		return res, nil
	}
	remote, err := s.engine.DescribeExecution(ctx, exec.WorkflowID, exec.RunID)
	next := MapRemoteStatus(remote)
	runGone := false
	if err != nil {
		if !errors.Is(err, ErrRunNotFound) {
			res.Outcome = OutcomeEngineUnavailable
			return res, fmt.Errorf("failed to describe execution %s: %w", exec.ID, err)
		}
		next = StatusUnknown
		runGone = true
	}
	if next == exec.Status {
		if runGone {
			res.Outcome = OutcomeRunNotFound
		}
		return res, nil
	}
	fields := exec.UpdateFields()
	fields.Status = next
	fields.ExpectedStatus = exec.Status
	updated, err := s.repo.Update(ctx, exec.ID, fields)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			res.Outcome = OutcomeDeleted
			return res, nil
		}
		if errors.Is(err, ErrStatusChanged) {
			return res, nil
		}
		res.Outcome = OutcomeStorageError
		return res, fmt.Errorf("failed to update execution %s: %w", exec.ID, err)
	}
	res.Execution = updated
	res.Current = updated.Status
	res.Outcome = OutcomeUpdated
	if runGone {
		res.Outcome = OutcomeRunNotFound
	}
	return res, nil
}

// UpdateStatus sets the status explicitly. Terminal records only accept
// their current status. The write only applies if the status read here is
// still stored, so a concurrent terminal update is never overwritten.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Execution, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}
	if current.Status == status {
		return current, nil
	}
	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, status)
	}
	fields := current.UpdateFields()
	fields.Status = status
	fields.ExpectedStatus = current.Status
	updated, err := s.repo.Update(ctx, id, fields)
	if errors.Is(err, ErrStatusChanged) {
		return nil, fmt.Errorf("%w: %s changed from %s concurrently", ErrInvalidTransition, id, current.Status)
	}
	return updated, err
}
