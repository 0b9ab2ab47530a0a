package execution

import "errors"

var (
	// ErrNotFound is returned by Repository.Update when no record has the id.
	ErrNotFound = errors.New("execution not found")
	// ErrConflict is returned by Repository.Insert for a duplicate id.
	ErrConflict = errors.New("execution already exists")
	// ErrStatusChanged is returned by Repository.Update when the stored status
	// no longer matches UpdateFields.ExpectedStatus.
	ErrStatusChanged = errors.New("execution status changed concurrently")
	// ErrStorage wraps any other persistence failure.
	ErrStorage = errors.New("execution storage failure")

	// ErrEngineUnavailable means the orchestration engine could not be reached.
	ErrEngineUnavailable = errors.New("orchestration engine unavailable")
	// ErrEngineRejected means the engine refused the request.
	ErrEngineRejected = errors.New("orchestration engine rejected request")
	// ErrRunNotFound means the engine no longer knows the run. It is not a
	// connectivity failure.
	ErrRunNotFound = errors.New("remote run not found")

	ErrInvalidStatus     = errors.New("invalid execution status")
	ErrInvalidTransition = errors.New("invalid execution status transition")
	ErrInvalidID         = errors.New("invalid execution id")
)
