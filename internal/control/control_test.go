package control

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"x-netctl/internal/catalog"
	"x-netctl/internal/supplicant"
	"x-netctl/internal/supplicant/supplicanttest"
)

func setup() (supplicanttest.Bus, *Controller) {
	bus := supplicanttest.Bus{
		"wlan0": supplicanttest.New("wlan0",
			supplicanttest.Network{ID: 0, SSID: "home", Name: "home"},
			supplicanttest.Network{ID: 1, SSID: "work", Name: "work", Disabled: true},
		),
		"wlan1": supplicanttest.New("wlan1",
			supplicanttest.Network{ID: 0, SSID: "cafe", Name: "cafe", Disabled: true},
		),
	}
	cat := catalog.New([]string{"wlan0", "wlan1"}, bus.Dial, nil)
	return bus, New(cat, nil)
}

func TestEnable(t *testing.T) {
	bus, c := setup()

	require.NoError(t, c.Enable(context.Background(), "cafe"))
	require.True(t, bus["wlan1"].Enabled()[0])
	require.Equal(t, []string{"enable_network 0", "reassociate"}, bus["wlan1"].Mutations())
	require.Empty(t, bus["wlan0"].Mutations())
}

func TestDisable(t *testing.T) {
	bus, c := setup()
	bus["wlan0"].Connect(0)

	require.NoError(t, c.Disable(context.Background(), "home"))
	require.False(t, bus["wlan0"].Enabled()[0])
	require.Equal(t, -1, bus["wlan0"].Current())
	// No reassociate after a disable.
	require.Equal(t, []string{"disable_network 0"}, bus["wlan0"].Mutations())
}

func TestEnable_UnknownProfile(t *testing.T) {
	bus, c := setup()

	err := c.Enable(context.Background(), "nonexistent")
	require.ErrorIs(t, err, catalog.ErrProfileNotFound)
	require.Empty(t, bus["wlan0"].Mutations())
	require.Empty(t, bus["wlan1"].Mutations())
}

func TestEnableAll(t *testing.T) {
	bus, c := setup()

	require.NoError(t, c.EnableAll(context.Background()))
	for _, iface := range []string{"wlan0", "wlan1"} {
		require.Equal(t, []string{"enable_network all", "reassociate"}, bus[iface].Mutations(), iface)
		for id, enabled := range bus[iface].Enabled() {
			require.True(t, enabled, "%s network %d", iface, id)
		}
	}
}

func TestEnableAll_ContinuesAfterFailure(t *testing.T) {
	bus, c := setup()
	bus["wlan0"].FailOn["enable_network all"] = true

	err := c.EnableAll(context.Background())
	require.ErrorIs(t, err, supplicant.ErrControlChannel)

	require.Equal(t, []string{"enable_network all"}, bus["wlan0"].Mutations())
	require.Equal(t, []string{"enable_network all", "reassociate"}, bus["wlan1"].Mutations())
	require.True(t, bus["wlan1"].Enabled()[0])
}

func TestDisableAll(t *testing.T) {
	bus, c := setup()
	bus["wlan1"].FailOn["connect"] = true

	err := c.DisableAll(context.Background())
	require.ErrorIs(t, err, supplicant.ErrControlChannel)
	require.Equal(t, []string{"disable_network all"}, bus["wlan0"].Mutations())
	require.False(t, bus["wlan0"].Enabled()[0])
}

func TestSetEnabled_UnknownScope(t *testing.T) {
	_, c := setup()
	require.Error(t, c.SetEnabled(context.Background(), Scope(7), true, ""))
}
