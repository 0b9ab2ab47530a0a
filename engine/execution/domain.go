package execution

import (
	"fmt"
	"strings"
	"time"
)

// Status is the local status vocabulary of an execution record.
type Status string

const (
	StatusRunning        Status = "RUNNING"
	StatusComplete       Status = "COMPLETE"
	StatusFailed         Status = "FAILED"
	StatusCanceled       Status = "CANCELED"
	StatusTerminated     Status = "TERMINATED"
	StatusContinuedAsNew Status = "CONTINUED_AS_NEW"
	StatusTimedOut       Status = "TIMED_OUT"
	StatusUnknown        Status = "UNKNOWN"
)

var allStatuses = []Status{
	StatusRunning,
	StatusComplete,
	StatusFailed,
	StatusCanceled,
	StatusTerminated,
	StatusContinuedAsNew,
	StatusTimedOut,
	StatusUnknown,
}

// IsTerminal reports whether no further reconciliation happens for s.
// CONTINUED_AS_NEW counts as terminal: the continuation is a different remote
// run that is not linked back to the record.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusCanceled, StatusTerminated, StatusContinuedAsNew, StatusTimedOut:
		return true
	default:
		return false
	}
}

func (s Status) IsValid() bool {
	for _, v := range allStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus accepts a status name case-insensitively.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// NonTerminalStatuses lists the statuses that are not a fixed point.
func NonTerminalStatuses() []Status {
	out := make([]Status, 0, 2)
	for _, s := range allStatuses {
		if !s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// Execution is the local record of one remote workflow run.
type Execution struct {
	ID         string    `json:"id"          db:"id"`
	WorkflowID string    `json:"workflow_id" db:"workflow_id"`
	RunID      string    `json:"run_id"      db:"run_id"`
	Status     Status    `json:"status"      db:"status"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
}

// UpdateFields carries the overwritable columns of a record. A non-empty
// ExpectedStatus makes the update conditional on the stored status.
type UpdateFields struct {
	WorkflowID     string
	RunID          string
	Status         Status
	ExpectedStatus Status
}

func (e *Execution) UpdateFields() UpdateFields {
	return UpdateFields{WorkflowID: e.WorkflowID, RunID: e.RunID, Status: e.Status}
}
