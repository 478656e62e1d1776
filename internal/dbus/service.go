package dbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"go.uber.org/zap"

	"x-netctl/internal/state"
	"x-netctl/internal/status"
)

const (
	ServiceName = "org.xnetctl.Auto"
	ObjectPath  = "/org/xnetctl/Auto"
	Interface   = "org.xnetctl.Auto"
)

// Backend performs the profile operations the service exposes
type Backend interface {
	List(ctx context.Context) ([]status.Entry, error)
	IsActive(ctx context.Context, name string) (bool, error)
	IsEnabled(ctx context.Context, name string) (bool, error)
	SwitchTo(ctx context.Context, name string) error
	Enable(ctx context.Context, name string) error
	Disable(ctx context.Context, name string) error
	EnableAll(ctx context.Context) error
	DisableAll(ctx context.Context) error
}

type emitter interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// Service represents the D-Bus service
type Service struct {
	ctx      context.Context
	conn     *dbus.Conn
	emitter  emitter
	stateMgr *state.Manager
	backend  Backend
	logger   *zap.Logger

	// opMu serializes operations that mutate supplicant state
	opMu sync.Mutex
	wg   sync.WaitGroup

	// closeMu guards closed and orders wg.Add before Close's Wait
	closeMu sync.Mutex
	closed  bool
}

// NewService registers the service on conn. Operations run on ctx;
// cancelling it interrupts a running switch, which then restores.
func NewService(ctx context.Context, conn *dbus.Conn, stateMgr *state.Manager, backend Backend, logger *zap.Logger) (*Service, error) {
	s := newService(ctx, conn, stateMgr, backend, logger)
	s.conn = conn

	// Request service name
	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("name %s already taken", ServiceName)
	}

	// Export the service object
	if err := conn.Export(s, ObjectPath, Interface); err != nil {
		return nil, fmt.Errorf("failed to export: %w", err)
	}

	// Export the Properties interface
	if err := conn.Export(s, ObjectPath, "org.freedesktop.DBus.Properties"); err != nil {
		return nil, fmt.Errorf("failed to export properties: %w", err)
	}

	// Export introspection
	node := &introspect.Node{
		Name: ObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:       Interface,
				Methods:    s.methods(),
				Properties: s.properties(),
				Signals:    s.signals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("failed to export introspection: %w", err)
	}

	return s, nil
}

func newService(ctx context.Context, em emitter, stateMgr *state.Manager, backend Backend, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		ctx:      ctx,
		emitter:  em,
		stateMgr: stateMgr,
		backend:  backend,
		logger:   logger.Named("dbus"),
	}

	// Subscribe to state changes
	stateMgr.SetOnChange(s.onStateChange)
	return s
}

// Wait blocks until background switches have finished
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close releases the service name and waits for a running switch to restore
func (s *Service) Close() {
	s.closeMu.Lock()
	s.closed = true
	s.closeMu.Unlock()

	s.Wait()
	if s.conn != nil {
		_, _ = s.conn.ReleaseName(ServiceName)
	}
}

// onStateChange handles state updates and emits signals
func (s *Service) onStateChange(st *state.State) {
	// Emit property changed signals
	s.emitPropertiesChanged(st)
}

// emitPropertiesChanged emits PropertiesChanged for every property
func (s *Service) emitPropertiesChanged(st *state.State) {
	err := s.emitter.Emit(ObjectPath, "org.freedesktop.DBus.Properties.PropertiesChanged",
		Interface, propertyMap(st), []string{})
	if err != nil {
		s.logger.Warn("failed to emit PropertiesChanged", zap.Error(err))
	}
}

// EmitSignal emits a custom signal
func (s *Service) EmitSignal(name string, values ...interface{}) {
	if err := s.emitter.Emit(ObjectPath, Interface+"."+name, values...); err != nil {
		s.logger.Warn("failed to emit signal", zap.String("signal", name), zap.Error(err))
	}
}

// methods returns introspection method definitions
func (s *Service) methods() []introspect.Method {
	name := introspect.Arg{Name: "name", Type: "s", Direction: "in"}
	success := introspect.Arg{Name: "success", Type: "b", Direction: "out"}
	return []introspect.Method{
		{Name: "List", Args: []introspect.Arg{
			{Name: "profiles", Type: "a(sis)", Direction: "out"},
		}},
		{Name: "SwitchTo", Args: []introspect.Arg{name, {Name: "started", Type: "b", Direction: "out"}}},
		{Name: "Enable", Args: []introspect.Arg{name, success}},
		{Name: "Disable", Args: []introspect.Arg{name, success}},
		{Name: "EnableAll", Args: []introspect.Arg{success}},
		{Name: "DisableAll", Args: []introspect.Arg{success}},
		{Name: "IsActive", Args: []introspect.Arg{name, {Name: "active", Type: "b", Direction: "out"}}},
		{Name: "IsEnabled", Args: []introspect.Arg{name, {Name: "enabled", Type: "b", Direction: "out"}}},
	}
}

// properties returns introspection property definitions
func (s *Service) properties() []introspect.Property {
	return []introspect.Property{
		{Name: "Interfaces", Type: "as", Access: "read"},
		{Name: "Switching", Type: "b", Access: "read"},
		{Name: "SwitchingProfile", Type: "s", Access: "read"},
		{Name: "LastProfile", Type: "s", Access: "read"},
		{Name: "LastResult", Type: "s", Access: "read"},
		{Name: "LastError", Type: "s", Access: "read"},
	}
}

// signals returns introspection signal definitions
func (s *Service) signals() []introspect.Signal {
	return []introspect.Signal{
		{Name: "SwitchStarted", Args: []introspect.Arg{{Name: "profile", Type: "s"}}},
		{Name: "SwitchFinished", Args: []introspect.Arg{
			{Name: "profile", Type: "s"},
			{Name: "result", Type: "s"},
		}},
		{Name: "Error", Args: []introspect.Arg{
			{Name: "operation", Type: "s"},
			{Name: "message", Type: "s"},
		}},
	}
}
