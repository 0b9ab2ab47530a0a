package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapRemoteStatus(t *testing.T) {
	t.Run("Should map every defined remote status one to one", func(t *testing.T) {
		cases := map[RemoteStatus]Status{
			RemoteRunning:        StatusRunning,
			RemoteCompleted:      StatusComplete,
			RemoteFailed:         StatusFailed,
			RemoteCanceled:       StatusCanceled,
			RemoteTerminated:     StatusTerminated,
			RemoteContinuedAsNew: StatusContinuedAsNew,
			RemoteTimedOut:       StatusTimedOut,
		}
		for remote, local := range cases {
			assert.Equal(t, local, MapRemoteStatus(remote), string(remote))
		}
	})
	t.Run("Should default to UNKNOWN", func(t *testing.T) {
		assert.Equal(t, StatusUnknown, MapRemoteStatus(RemoteUnspecified))
		assert.Equal(t, StatusUnknown, MapRemoteStatus(RemoteStatus("PAUSED")))
		assert.Equal(t, StatusUnknown, MapRemoteStatus(""))
	})
}

func TestStatus(t *testing.T) {
	t.Run("Should classify terminal statuses", func(t *testing.T) {
		assert.True(t, StatusComplete.IsTerminal())
		assert.True(t, StatusContinuedAsNew.IsTerminal())
		assert.False(t, StatusRunning.IsTerminal())
		assert.False(t, StatusUnknown.IsTerminal())
	})
	t.Run("Should list only RUNNING and UNKNOWN as non-terminal", func(t *testing.T) {
		assert.ElementsMatch(t, []Status{StatusRunning, StatusUnknown}, NonTerminalStatuses())
	})
	t.Run("Should parse case-insensitively", func(t *testing.T) {
		s, err := ParseStatus(" timed_out ")
		require.NoError(t, err)
		assert.Equal(t, StatusTimedOut, s)
		_, err = ParseStatus("DONE")
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})
}
