package execution

import "context"

// RemoteStatus is the orchestration engine's status vocabulary.
type RemoteStatus string

const (
	RemoteRunning        RemoteStatus = "RUNNING"
	RemoteCompleted      RemoteStatus = "COMPLETED"
	RemoteFailed         RemoteStatus = "FAILED"
	RemoteCanceled       RemoteStatus = "CANCELED"
	RemoteTerminated     RemoteStatus = "TERMINATED"
	RemoteContinuedAsNew RemoteStatus = "CONTINUED_AS_NEW"
	RemoteTimedOut       RemoteStatus = "TIMED_OUT"
	RemoteUnspecified    RemoteStatus = "UNSPECIFIED"
)

type StartRequest struct {
	WorkflowID   string
	TaskQueue    string
	WorkflowType string
	Input        []any
}

// RunRef identifies one remote run.
type RunRef struct {
	WorkflowID string
	RunID      string
}

// Engine is the narrow view of the orchestration engine. Implementations do
// not retry; failures are classified with ErrEngineUnavailable,
// ErrEngineRejected and ErrRunNotFound.
type Engine interface {
	StartExecution(ctx context.Context, req StartRequest) (RunRef, error)
	DescribeExecution(ctx context.Context, workflowID, runID string) (RemoteStatus, error)
	// TerminateExecution is only used to undo a start whose record could
	// not be persisted.
	TerminateExecution(ctx context.Context, workflowID, runID, reason string) error
}
