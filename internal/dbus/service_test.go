package dbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"

	"x-netctl/internal/catalog"
	"x-netctl/internal/state"
	"x-netctl/internal/status"
	"x-netctl/internal/switcher"
)

type emitted struct {
	name   string
	values []interface{}
}

type fakeEmitter struct {
	mu      sync.Mutex
	signals []emitted
}

func (f *fakeEmitter) Emit(_ dbus.ObjectPath, name string, values ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, emitted{name: name, values: values})
	return nil
}

func (f *fakeEmitter) named(name string) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitted
	for _, s := range f.signals {
		if s.name == Interface+"."+name {
			out = append(out, s)
		}
	}
	return out
}

type fakeBackend struct {
	entries   []status.Entry
	listErr   error
	switchErr error
	enableErr error
	active    map[string]bool
	calls     []string
}

func (f *fakeBackend) List(context.Context) ([]status.Entry, error) { return f.entries, f.listErr }

func (f *fakeBackend) IsActive(_ context.Context, name string) (bool, error) {
	active, ok := f.active[name]
	if !ok {
		return false, &catalog.ProfileNotFoundError{Name: name}
	}
	return active, nil
}

func (f *fakeBackend) IsEnabled(_ context.Context, name string) (bool, error) {
	return f.IsActive(context.Background(), name)
}

func (f *fakeBackend) SwitchTo(_ context.Context, name string) error {
	f.calls = append(f.calls, "switch "+name)
	return f.switchErr
}

func (f *fakeBackend) Enable(_ context.Context, name string) error {
	f.calls = append(f.calls, "enable "+name)
	return f.enableErr
}

func (f *fakeBackend) Disable(_ context.Context, name string) error {
	f.calls = append(f.calls, "disable "+name)
	return nil
}

func (f *fakeBackend) EnableAll(context.Context) error {
	f.calls = append(f.calls, "enable-all")
	return f.enableErr
}

func (f *fakeBackend) DisableAll(context.Context) error {
	f.calls = append(f.calls, "disable-all")
	return nil
}

func setup(backend *fakeBackend) (*Service, *fakeEmitter, *state.Manager) {
	em := &fakeEmitter{}
	mgr := state.NewManager()
	return newService(context.Background(), em, mgr, backend, nil), em, mgr
}

func TestSwitchTo_Success(t *testing.T) {
	backend := &fakeBackend{}
	s, em, mgr := setup(backend)

	started, dErr := s.SwitchTo("work")
	require.Nil(t, dErr)
	require.True(t, started)
	s.Wait()

	require.Equal(t, []string{"switch work"}, backend.calls)
	st := mgr.Get()
	require.False(t, st.Switching)
	require.Equal(t, "work", st.LastProfile)
	require.Equal(t, state.ResultAssociated, st.LastResult)

	require.Len(t, em.named("SwitchStarted"), 1)
	finished := em.named("SwitchFinished")
	require.Len(t, finished, 1)
	require.Equal(t, []interface{}{"work", "associated"}, finished[0].values)
	require.Empty(t, em.named("Error"))
}

func TestSwitchTo_Timeout(t *testing.T) {
	backend := &fakeBackend{switchErr: fmt.Errorf("profile 'work' on wlan0: %w", switcher.ErrAssociationTimeout)}
	s, em, mgr := setup(backend)

	_, dErr := s.SwitchTo("work")
	require.Nil(t, dErr)
	s.Wait()

	st := mgr.Get()
	require.Equal(t, state.ResultTimeout, st.LastResult)
	require.Contains(t, st.LastError, "association timed out")
	require.Len(t, em.named("Error"), 1)
}

func TestSwitchTo_EmptyName(t *testing.T) {
	s, _, _ := setup(&fakeBackend{})
	_, dErr := s.SwitchTo("")
	require.NotNil(t, dErr)
}

func TestSwitchTo_RejectedAfterClose(t *testing.T) {
	backend := &fakeBackend{}
	s, em, _ := setup(backend)
	s.Close()

	started, dErr := s.SwitchTo("work")
	require.NotNil(t, dErr)
	require.False(t, started)
	s.Wait()
	require.Empty(t, backend.calls)
	require.Empty(t, em.named("SwitchStarted"))
}

func TestSwitchTo_RejectedAfterCancel(t *testing.T) {
	backend := &fakeBackend{}
	ctx, cancel := context.WithCancel(context.Background())
	s := newService(ctx, &fakeEmitter{}, state.NewManager(), backend, nil)
	cancel()

	_, dErr := s.SwitchTo("work")
	require.NotNil(t, dErr)
	s.Close()
	require.Empty(t, backend.calls)
}

func TestMutate(t *testing.T) {
	backend := &fakeBackend{}
	s, em, _ := setup(backend)

	ok, dErr := s.Enable("home")
	require.Nil(t, dErr)
	require.True(t, ok)

	backend.enableErr = errors.New("wlan0: enable_network all: FAIL")
	ok, dErr = s.EnableAll()
	require.Nil(t, dErr)
	require.False(t, ok)

	require.Equal(t, []string{"enable home", "enable-all"}, backend.calls)
	errs := em.named("Error")
	require.Len(t, errs, 1)
	require.Equal(t, "EnableAll", errs[0].values[0])
}

func TestIsActive(t *testing.T) {
	s, _, _ := setup(&fakeBackend{active: map[string]bool{"home": true}})

	active, dErr := s.IsActive("home")
	require.Nil(t, dErr)
	require.True(t, active)

	_, dErr = s.IsActive("nonexistent")
	require.NotNil(t, dErr)
	require.Equal(t, Interface+".ProfileNotFound", dErr.Name)
}

func TestList(t *testing.T) {
	backend := &fakeBackend{entries: []status.Entry{
		{Glyph: '*', Name: "home", Interface: "wlan0", Status: catalog.Active},
		{Glyph: '!', Name: "work", Interface: "wlan0", Status: catalog.Disabled},
	}}
	s, _, _ := setup(backend)

	profiles, dErr := s.List()
	require.Nil(t, dErr)
	require.Equal(t, []ProfileDBus{
		{Name: "home", Status: 1, Interface: "wlan0"},
		{Name: "work", Status: 2, Interface: "wlan0"},
	}, profiles)

	backend.entries, backend.listErr = nil, errors.New("no supplicant")
	_, dErr = s.List()
	require.NotNil(t, dErr)
}

func TestProperties(t *testing.T) {
	s, em, mgr := setup(&fakeBackend{})
	mgr.Update(func(st *state.State) { st.Interfaces = []string{"wlan0"} })

	v, dErr := s.Get(Interface, "Interfaces")
	require.Nil(t, dErr)
	require.Equal(t, []string{"wlan0"}, v.Value())

	all, dErr := s.GetAll(Interface)
	require.Nil(t, dErr)
	require.Len(t, all, 6)

	_, dErr = s.Get(Interface, "Bogus")
	require.NotNil(t, dErr)
	_, dErr = s.GetAll("org.example.Other")
	require.NotNil(t, dErr)
	require.NotNil(t, s.Set(Interface, "Switching", dbus.MakeVariant(true)))

	require.Len(t, em.named("PropertiesChanged"), 0)
	em.mu.Lock()
	require.Equal(t, "org.freedesktop.DBus.Properties.PropertiesChanged", em.signals[0].name)
	em.mu.Unlock()
}

func TestResultOf(t *testing.T) {
	require.Equal(t, state.ResultInterrupted, resultOf(fmt.Errorf("%w: %w", switcher.ErrInterrupted, context.Canceled)))
	require.Equal(t, state.ResultNotFound, resultOf(&catalog.ProfileNotFoundError{Name: "x"}))
	require.Equal(t, state.ResultFailed, resultOf(errors.New("boom")))
}
