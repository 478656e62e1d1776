package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"x-netctl/internal/catalog"
	"x-netctl/internal/netlink"
	"x-netctl/internal/status"
	"x-netctl/internal/supplicant"
)

func TestReportBool(t *testing.T) {
	tests := []struct {
		name     string
		ok       bool
		err      error
		wantOut  string
		wantCode int
	}{
		{name: "yes", ok: true, wantOut: "active\n"},
		{name: "no", ok: false, wantOut: "inactive\n", wantCode: 1},
		{name: "unknown", err: &catalog.ProfileNotFoundError{Name: "x"}, wantOut: "unknown profile\n", wantCode: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := reportBool(&out, tt.ok, tt.err, "active", "inactive")
			require.Equal(t, tt.wantOut, out.String())
			if tt.wantCode == 0 {
				require.NoError(t, err)
				return
			}
			var exitErr exitError
			require.True(t, errors.As(err, &exitErr))
			require.Equal(t, tt.wantCode, exitErr.code)
		})
	}
}

func TestReportBool_ChannelError(t *testing.T) {
	var out bytes.Buffer
	chErr := &supplicant.CommandError{Interface: "wlan0", Command: "connect", Err: errors.New("refused")}
	err := reportBool(&out, false, chErr, "enabled", "disabled")
	require.ErrorIs(t, err, supplicant.ErrControlChannel)
	require.Empty(t, out.String())
}

func TestPrintEntries(t *testing.T) {
	var out bytes.Buffer
	printEntries(&out, []status.Entry{
		{Glyph: '*', Name: "home"},
		{Glyph: '!', Name: "work"},
		{Glyph: ' ', Name: "cafe"},
	})
	require.Equal(t, "* home\n! work\n  cafe\n", out.String())
}

func TestRuntimeAffects(t *testing.T) {
	rt := &runtime{current: &components{interfaces: []string{"wlan0"}}}

	require.True(t, rt.affects(netlink.Event{Link: netlink.Link{Name: "wlan0"}, Removed: true}))
	require.False(t, rt.affects(netlink.Event{Link: netlink.Link{Name: "eth0"}, Removed: true}))
	require.True(t, rt.affects(netlink.Event{Link: netlink.Link{Name: "wlan1", Wireless: true}}))
	require.False(t, rt.affects(netlink.Event{Link: netlink.Link{Name: "wlan0", Wireless: true}}))
	require.False(t, rt.affects(netlink.Event{Link: netlink.Link{Name: "eth1"}}))
}

func TestRootCommand_Flags(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"config", "backend", "ctrl-dir", "profile-dir", "interface", "unit-pattern", "poll-interval", "debug"} {
		require.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	require.Subset(t, names, []string{"list", "switch-to", "is-active", "is-enabled", "enable", "disable", "enable-all", "disable-all", "serve"})
}
