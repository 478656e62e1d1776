package dbus

import (
	"github.com/godbus/dbus/v5"

	"x-netctl/internal/state"
	"x-netctl/internal/status"
)

// Properties interface implementation for org.freedesktop.DBus.Properties

// Get implements org.freedesktop.DBus.Properties.Get
func (s *Service) Get(iface, propName string) (dbus.Variant, *dbus.Error) {
	if iface != Interface {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownInterface", []interface{}{"Unknown interface"})
	}

	st := s.stateMgr.Get()
	v, ok := propertyMap(&st)[propName]
	if !ok {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownProperty", []interface{}{"Unknown property: " + propName})
	}
	return v, nil
}

// GetAll implements org.freedesktop.DBus.Properties.GetAll
func (s *Service) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != Interface {
		return nil, dbus.NewError("org.freedesktop.DBus.Error.UnknownInterface", []interface{}{"Unknown interface"})
	}

	st := s.stateMgr.Get()
	return propertyMap(&st), nil
}

// Set implements org.freedesktop.DBus.Properties.Set (read-only, returns error)
func (s *Service) Set(iface, propName string, value dbus.Variant) *dbus.Error {
	return dbus.NewError("org.freedesktop.DBus.Error.PropertyReadOnly", []interface{}{"Properties are read-only"})
}

func propertyMap(st *state.State) map[string]dbus.Variant {
	interfaces := st.Interfaces
	if interfaces == nil {
		interfaces = []string{}
	}
	return map[string]dbus.Variant{
		"Interfaces":       dbus.MakeVariant(interfaces),
		"Switching":        dbus.MakeVariant(st.Switching),
		"SwitchingProfile": dbus.MakeVariant(st.SwitchingProfile),
		"LastProfile":      dbus.MakeVariant(st.LastProfile),
		"LastResult":       dbus.MakeVariant(string(st.LastResult)),
		"LastError":        dbus.MakeVariant(st.LastError),
	}
}

// ProfileDBus represents a profile for D-Bus
type ProfileDBus struct {
	Name      string
	Status    int32 // 0 enabled, 1 active, 2 disabled
	Interface string
}

// profilesToDBus converts listing entries to D-Bus format
func profilesToDBus(entries []status.Entry) []ProfileDBus {
	result := make([]ProfileDBus, len(entries))
	for i, e := range entries {
		result[i] = ProfileDBus{
			Name:      e.Name,
			Status:    int32(e.Status),
			Interface: e.Interface,
		}
	}
	return result
}
