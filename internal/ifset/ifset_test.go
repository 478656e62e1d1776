package ifset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"x-netctl/internal/netlink"
)

type fakeUnits struct {
	units    []string
	err      error
	states   []string
	patterns []string
}

func (f *fakeUnits) ListUnits(_ context.Context, states, patterns []string) ([]string, error) {
	f.states, f.patterns = states, patterns
	return f.units, f.err
}

type fakeLinks struct {
	links map[string]netlink.Link
	err   error
}

func (f fakeLinks) Names() (map[string]netlink.Link, error) { return f.links, f.err }

func TestInstanceName(t *testing.T) {
	tests := []struct {
		unit string
		want string
		ok   bool
	}{
		{unit: "netctl-auto@wlan0.service", want: "wlan0", ok: true},
		{unit: `netctl-auto@wlp3s0\x2dext.service`, want: "wlp3s0-ext", ok: true},
		{unit: "netctl-auto@.service", ok: false},
		{unit: "netctl@wlan0.service", ok: false},
		{unit: "netctl-auto@wlan0.timer", ok: false},
	}
	for _, tt := range tests {
		got, ok := InstanceName(tt.unit, DefaultUnitPattern)
		require.Equal(t, tt.ok, ok, tt.unit)
		require.Equal(t, tt.want, got, tt.unit)
	}
}

func TestUnescape(t *testing.T) {
	require.Equal(t, "wlan0", Unescape("wlan0"))
	require.Equal(t, "a-b/c", Unescape(`a\x2db\x2fc`))
	require.Equal(t, `bad\xzz`, Unescape(`bad\xzz`))
	require.Equal(t, `tail\x2`, Unescape(`tail\x2`))
}

func TestInterfaces_Static(t *testing.T) {
	units := &fakeUnits{units: []string{"netctl-auto@wlan9.service"}}
	r := &Resolver{Static: []string{"wlan1", "wlan0", "wlan1"}, Units: units}

	got, err := r.Interfaces(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"wlan0", "wlan1"}, got)
	require.Nil(t, units.patterns)
}

func TestInterfaces_Units(t *testing.T) {
	units := &fakeUnits{units: []string{
		"netctl-auto@wlan1.service",
		"netctl-auto@wlan0.service",
		"netctl-auto@gone.service",
	}}
	r := &Resolver{
		Units: units,
		Links: fakeLinks{links: map[string]netlink.Link{
			"wlan0": {Name: "wlan0", Wireless: true},
			"wlan1": {Name: "wlan1", Wireless: true},
			"eth0":  {Name: "eth0"},
		}},
	}

	got, err := r.Interfaces(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"wlan0", "wlan1"}, got)
	require.Equal(t, []string{"active"}, units.states)
	require.Equal(t, []string{DefaultUnitPattern}, units.patterns)
}

func TestInterfaces_LinksUnavailable(t *testing.T) {
	r := &Resolver{
		Static: []string{"wlan0"},
		Links:  fakeLinks{err: netlink.ErrUnavailable},
	}

	got, err := r.Interfaces(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"wlan0"}, got)
}

func TestInterfaces_Errors(t *testing.T) {
	_, err := (&Resolver{}).Interfaces(context.Background())
	require.Error(t, err)

	boom := errors.New("bus closed")
	_, err = (&Resolver{Units: &fakeUnits{err: boom}}).Interfaces(context.Background())
	require.ErrorIs(t, err, boom)
}
