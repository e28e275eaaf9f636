package systemd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetListeners_NotActivated(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")

	listeners, err := GetListeners()
	require.NoError(t, err)
	require.False(t, listeners.Activated)
	require.Nil(t, listeners.Playback)
	require.Nil(t, listeners.Metrics)
}

func TestNotify_WithoutSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	require.NoError(t, NotifyReady())
	require.NoError(t, NotifyStopping())
}
