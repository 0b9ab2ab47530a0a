package execution

var remoteToLocal = map[RemoteStatus]Status{
	RemoteRunning:        StatusRunning,
	RemoteCompleted:      StatusComplete,
	RemoteFailed:         StatusFailed,
	RemoteCanceled:       StatusCanceled,
	RemoteTerminated:     StatusTerminated,
	RemoteContinuedAsNew: StatusContinuedAsNew,
	RemoteTimedOut:       StatusTimedOut,
}

// MapRemoteStatus converts an engine status to the local vocabulary.
// UNSPECIFIED and any unrecognized value map to UNKNOWN.
func MapRemoteStatus(remote RemoteStatus) Status {
	if s, ok := remoteToLocal[remote]; ok {
		return s
	}
	return StatusUnknown
}
