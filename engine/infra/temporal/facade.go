package temporal

import (
	"context"
	"errors"
	"fmt"

	"github.com/compozy/executor/engine/execution"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
)

// WorkflowClient is the part of client.Client the facade uses.
type WorkflowClient interface {
	ExecuteWorkflow(
		ctx context.Context,
		options client.StartWorkflowOptions,
		workflow any,
		args ...any,
	) (client.WorkflowRun, error)
	DescribeWorkflowExecution(
		ctx context.Context,
		workflowID, runID string,
	) (*workflowservice.DescribeWorkflowExecutionResponse, error)
	TerminateWorkflow(ctx context.Context, workflowID, runID, reason string, details ...any) error
}

// Facade implements execution.Engine on Temporal.
type Facade struct {
	client WorkflowClient
}

func NewFacade(c WorkflowClient) *Facade {
	return &Facade{client: c}
}

func (f *Facade) StartExecution(ctx context.Context, req execution.StartRequest) (execution.RunRef, error) {
	options := client.StartWorkflowOptions{
		ID:                                       req.WorkflowID,
		TaskQueue:                                req.TaskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	run, err := f.client.ExecuteWorkflow(ctx, options, req.WorkflowType, req.Input...)
	if err != nil {
		return execution.RunRef{}, classifyError(err)
	}
	return execution.RunRef{WorkflowID: run.GetID(), RunID: run.GetRunID()}, nil
}

func (f *Facade) DescribeExecution(
	ctx context.Context,
	workflowID, runID string,
) (execution.RemoteStatus, error) {
	resp, err := f.client.DescribeWorkflowExecution(ctx, workflowID, runID)
	if err != nil {
		return "", classifyError(err)
	}
	return remoteStatus(resp.GetWorkflowExecutionInfo().GetStatus()), nil
}

func (f *Facade) TerminateExecution(ctx context.Context, workflowID, runID, reason string) error {
	if err := f.client.TerminateWorkflow(ctx, workflowID, runID, reason); err != nil {
		return classifyError(err)
	}
	return nil
}

// classifyError separates "the engine does not know this run" and "the
// engine refused the request" from connectivity failures.
func classifyError(err error) error {
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %w", execution.ErrRunNotFound, err)
	}
	var (
		invalid        *serviceerror.InvalidArgument
		alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		denied         *serviceerror.PermissionDenied
		nsNotFound     *serviceerror.NamespaceNotFound
	)
	if errors.As(err, &invalid) || errors.As(err, &alreadyStarted) ||
		errors.As(err, &denied) || errors.As(err, &nsNotFound) {
		return fmt.Errorf("%w: %w", execution.ErrEngineRejected, err)
	}
	return fmt.Errorf("%w: %w", execution.ErrEngineUnavailable, err)
}

func remoteStatus(status enumspb.WorkflowExecutionStatus) execution.RemoteStatus {
	switch status {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return execution.RemoteRunning
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return execution.RemoteCompleted
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED:
		return execution.RemoteFailed
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return execution.RemoteCanceled
	case enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return execution.RemoteTerminated
	case enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return execution.RemoteContinuedAsNew
	case enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return execution.RemoteTimedOut
	default:
		return execution.RemoteUnspecified
	}
}
