package dbus

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"x-netctl/internal/catalog"
	"x-netctl/internal/state"
	"x-netctl/internal/switcher"
)

// D-Bus method implementations

// List returns every profile as (name, status, interface)
func (s *Service) List() ([]ProfileDBus, *dbus.Error) {
	entries, err := s.backend.List(s.ctx)
	if err != nil {
		s.EmitSignal("Error", "List", err.Error())
		if len(entries) == 0 {
			return nil, s.toDBusError(err)
		}
	}
	return profilesToDBus(entries), nil
}

// SwitchTo starts a switch in the background. Switches run one at a time;
// progress is reported through SwitchStarted, SwitchFinished and the
// Switching properties.
func (s *Service) SwitchTo(name string) (bool, *dbus.Error) {
	if name == "" {
		return false, dbus.NewError(Interface+".Error", []interface{}{"profile name required"})
	}

	s.closeMu.Lock()
	if s.closed || s.ctx.Err() != nil {
		s.closeMu.Unlock()
		return false, dbus.NewError(Interface+".Error", []interface{}{"service is shutting down"})
	}
	s.wg.Add(1)
	s.closeMu.Unlock()

	go func() {
		defer s.wg.Done()
		s.runSwitch(name)
	}()
	return true, nil
}

func (s *Service) runSwitch(name string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMgr.Update(func(st *state.State) {
		st.Switching = true
		st.SwitchingProfile = name
		st.LastError = "" // Clear previous error on new attempt
	})
	s.EmitSignal("SwitchStarted", name)

	err := s.backend.SwitchTo(s.ctx, name)
	result := resultOf(err)

	s.stateMgr.Update(func(st *state.State) {
		st.Switching = false
		st.SwitchingProfile = ""
		st.LastProfile = name
		st.LastResult = result
		if err != nil {
			st.LastError = err.Error()
		}
	})
	if err != nil {
		s.logger.Warn("switch failed", zap.String("profile", name), zap.Error(err))
		s.EmitSignal("Error", "SwitchTo", err.Error())
	}
	s.EmitSignal("SwitchFinished", name, string(result))
}

// Enable enables a profile
func (s *Service) Enable(name string) (bool, *dbus.Error) {
	return s.mutate("Enable", func(ctx context.Context) error { return s.backend.Enable(ctx, name) })
}

// Disable disables a profile
func (s *Service) Disable(name string) (bool, *dbus.Error) {
	return s.mutate("Disable", func(ctx context.Context) error { return s.backend.Disable(ctx, name) })
}

// EnableAll enables every network on every interface
func (s *Service) EnableAll() (bool, *dbus.Error) {
	return s.mutate("EnableAll", s.backend.EnableAll)
}

// DisableAll disables every network on every interface
func (s *Service) DisableAll() (bool, *dbus.Error) {
	return s.mutate("DisableAll", s.backend.DisableAll)
}

func (s *Service) mutate(op string, fn func(context.Context) error) (bool, *dbus.Error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := fn(s.ctx); err != nil {
		s.stateMgr.Update(func(st *state.State) {
			st.LastError = err.Error()
		})
		s.EmitSignal("Error", op, err.Error())
		return false, nil
	}
	return true, nil
}

// IsActive reports whether a profile is associated
func (s *Service) IsActive(name string) (bool, *dbus.Error) {
	active, err := s.backend.IsActive(s.ctx, name)
	if err != nil {
		return false, s.toDBusError(err)
	}
	return active, nil
}

// IsEnabled reports whether a profile is enabled
func (s *Service) IsEnabled(name string) (bool, *dbus.Error) {
	enabled, err := s.backend.IsEnabled(s.ctx, name)
	if err != nil {
		return false, s.toDBusError(err)
	}
	return enabled, nil
}

func (s *Service) toDBusError(err error) *dbus.Error {
	if errors.Is(err, catalog.ErrProfileNotFound) {
		return dbus.NewError(Interface+".ProfileNotFound", []interface{}{err.Error()})
	}
	return dbus.NewError(Interface+".Error", []interface{}{err.Error()})
}

func resultOf(err error) state.Result {
	switch {
	case err == nil:
		return state.ResultAssociated
	case errors.Is(err, switcher.ErrInterrupted):
		return state.ResultInterrupted
	case errors.Is(err, switcher.ErrAssociationTimeout):
		return state.ResultTimeout
	case errors.Is(err, catalog.ErrProfileNotFound):
		return state.ResultNotFound
	default:
		return state.ResultFailed
	}
}
