package supplicant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNetworkList(t *testing.T) {
	reply := "network id / ssid / bssid / flags\n" +
		"0\thome\tany\t[CURRENT]\n" +
		"1\twork\tany\t[DISABLED]\n" +
		"2\tcafe\t00:11:22:33:44:55\t[TEMP-DISABLED]\n" +
		"3\tlab\tany\t\n"

	networks, err := ParseNetworkList(reply)
	require.NoError(t, err)
	require.Equal(t, []Network{
		{ID: 0, SSID: "home", BSSID: "any", Current: true},
		{ID: 1, SSID: "work", BSSID: "any", Disabled: true},
		{ID: 2, SSID: "cafe", BSSID: "00:11:22:33:44:55"},
		{ID: 3, SSID: "lab", BSSID: "any"},
	}, networks)
}

func TestParseNetworkList_HeaderOnly(t *testing.T) {
	networks, err := ParseNetworkList("network id / ssid / bssid / flags\n")
	require.NoError(t, err)
	require.Empty(t, networks)
}

func TestParseNetworkList_BadID(t *testing.T) {
	_, err := ParseNetworkList("network id / ssid / bssid / flags\nx\thome\tany\t\n")
	require.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	status := ParseStatus("bssid=00:11:22:33:44:55\nssid=home\nid=0\nwpa_state=COMPLETED\n")
	require.Equal(t, StateCompleted, status["wpa_state"])
	require.Equal(t, "home", status["ssid"])
}

func TestUnquote(t *testing.T) {
	s, ok := Unquote(`"home"`)
	require.True(t, ok)
	require.Equal(t, "home", s)

	s, ok = Unquote("\"with \\\"quotes\\\"\"\n")
	require.True(t, ok)
	require.Equal(t, `with "quotes"`, s)

	_, ok = Unquote("686f6d65")
	require.False(t, ok)

	_, ok = Unquote("FAIL")
	require.False(t, ok)
}

func TestCommandErrorMatchesControlChannel(t *testing.T) {
	err := commandError("wlan0", "SELECT_NETWORK 1", errors.New("command failed"))
	require.ErrorIs(t, err, ErrControlChannel)
	require.Contains(t, err.Error(), "wlan0")
	require.Nil(t, commandError("wlan0", "REASSOCIATE", nil))

	// Already wrapped errors are not wrapped twice.
	var cmdErr *CommandError
	require.ErrorAs(t, commandError("wlan1", "other", err), &cmdErr)
	require.Equal(t, "wlan0", cmdErr.Interface)
}
