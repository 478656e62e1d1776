package netlink

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/jsimonetti/rtnetlink"
	"github.com/mdlayher/netlink"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fakeSysfs(t *testing.T, wireless ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range wireless {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name, "wireless"), 0o755))
	}
	return root
}

func TestLinkFromMessage(t *testing.T) {
	root := fakeSysfs(t, "wlan0")

	link, ok := linkFromMessage(rtnetlink.LinkMessage{
		Index: 3,
		Attributes: &rtnetlink.LinkAttributes{
			Name:             "wlan0",
			OperationalState: rtnetlink.OperStateUp,
		},
	}, root)
	require.True(t, ok)
	require.Equal(t, Link{Name: "wlan0", Index: 3, Up: true, Wireless: true}, link)

	link, ok = linkFromMessage(rtnetlink.LinkMessage{
		Index:      2,
		Attributes: &rtnetlink.LinkAttributes{Name: "eth0", OperationalState: rtnetlink.OperStateDown},
	}, root)
	require.True(t, ok)
	require.Equal(t, Link{Name: "eth0", Index: 2}, link)
}

func TestLinkFromMessage_Skipped(t *testing.T) {
	root := fakeSysfs(t)

	_, ok := linkFromMessage(rtnetlink.LinkMessage{Index: 1, Attributes: &rtnetlink.LinkAttributes{Name: "lo"}}, root)
	require.False(t, ok)
	_, ok = linkFromMessage(rtnetlink.LinkMessage{Index: 4}, root)
	require.False(t, ok)
}

func TestHandleRawMessage_IgnoresOtherTypes(t *testing.T) {
	w := &Watcher{sysfsRoot: fakeSysfs(t), logger: zap.NewNop()}

	_, ok := w.handleRawMessage(netlink.Message{Header: netlink.Header{Type: syscall.RTM_NEWADDR}})
	require.False(t, ok)

	// Truncated payloads are dropped, not fatal.
	_, ok = w.handleRawMessage(netlink.Message{Header: netlink.Header{Type: RTM_DELLINK}, Data: []byte{1}})
	require.False(t, ok)
}

func TestUnavailable(t *testing.T) {
	err := unavailable("dial rtnetlink", &netlink.OpError{Op: "dial", Err: os.ErrPermission})
	require.ErrorIs(t, err, ErrUnavailable)

	err = unavailable("list links", errors.New("boom"))
	require.NotErrorIs(t, err, ErrUnavailable)
}
