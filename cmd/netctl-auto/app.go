package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"x-netctl/internal/catalog"
	"x-netctl/internal/config"
	"x-netctl/internal/control"
	"x-netctl/internal/ifset"
	"x-netctl/internal/netlink"
	"x-netctl/internal/profile"
	"x-netctl/internal/status"
	"x-netctl/internal/supplicant"
	"x-netctl/internal/switcher"
)

// app owns the connections shared by one command invocation
type app struct {
	cfg    config.Config
	logger *zap.Logger

	mu        sync.Mutex
	systemBus *dbus.Conn
	links     *netlink.Lister
}

func newApp(cfg config.Config, logger *zap.Logger) *app {
	return &app{cfg: cfg, logger: logger}
}

func (a *app) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.links != nil {
		a.links.Close()
	}
	if a.systemBus != nil {
		a.systemBus.Close()
	}
}

func (a *app) bus() (*dbus.Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.systemBus != nil {
		return a.systemBus, nil
	}
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	a.systemBus = conn
	return conn, nil
}

func (a *app) resolver() *ifset.Resolver {
	r := &ifset.Resolver{
		Static:      a.cfg.Interfaces,
		UnitPattern: a.cfg.UnitPattern,
		Logger:      a.logger,
	}
	if len(r.Static) == 0 {
		if conn, err := a.bus(); err != nil {
			a.logger.Warn("cannot discover interfaces", zap.Error(err))
		} else {
			r.Units = ifset.NewSystemd(conn)
		}
	}

	if links := a.linkLister(); links != nil {
		r.Links = links
	}
	return r
}

func (a *app) linkLister() *netlink.Lister {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.links == nil {
		links, err := netlink.Dial()
		if err != nil {
			a.logger.Debug("link filtering disabled", zap.Error(err))
			return nil
		}
		a.links = links
	}
	return a.links
}

func (a *app) dialer() (supplicant.Dialer, error) {
	switch a.cfg.Backend {
	case config.BackendDBus:
		conn, err := a.bus()
		if err != nil {
			return nil, err
		}
		return supplicant.DBusDialer(conn, a.logger), nil
	case config.BackendCtrl:
		return supplicant.CtrlDialer(a.cfg.CtrlDir, a.logger), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", a.cfg.Backend)
	}
}

// components wires the profile operations over one interface set
type components struct {
	interfaces []string
	control    *control.Controller
	switcher   *switcher.Coordinator
	query      *status.Query
}

func (a *app) components(ctx context.Context) (*components, error) {
	interfaces, err := a.resolver().Interfaces(ctx)
	if err != nil {
		return nil, err
	}
	if len(interfaces) == 0 {
		a.logger.Warn("no interfaces to operate on")
	}

	dial, err := a.dialer()
	if err != nil {
		return nil, err
	}

	cat := catalog.New(interfaces, dial, a.logger)
	store := profile.Store{Dir: a.cfg.ProfileDir}
	return &components{
		interfaces: interfaces,
		control:    control.New(cat, a.logger),
		switcher:   switcher.New(cat, store, a.cfg.PollInterval, a.logger),
		query:      status.New(cat, a.logger),
	}, nil
}

func (c *components) List(ctx context.Context) ([]status.Entry, error) {
	return c.query.List(ctx)
}

func (c *components) IsActive(ctx context.Context, name string) (bool, error) {
	return c.query.IsActive(ctx, name)
}

func (c *components) IsEnabled(ctx context.Context, name string) (bool, error) {
	return c.query.IsEnabled(ctx, name)
}

func (c *components) SwitchTo(ctx context.Context, name string) error {
	return c.switcher.SwitchTo(ctx, name)
}

func (c *components) Enable(ctx context.Context, name string) error {
	return c.control.Enable(ctx, name)
}

func (c *components) Disable(ctx context.Context, name string) error {
	return c.control.Disable(ctx, name)
}

func (c *components) EnableAll(ctx context.Context) error {
	return c.control.EnableAll(ctx)
}

func (c *components) DisableAll(ctx context.Context) error {
	return c.control.DisableAll(ctx)
}

// run builds the components and calls fn with a context cancelled by
// SIGINT/SIGTERM
func run(parent context.Context, opts *cliOptions, fn func(ctx context.Context, c *components) error) error {
	ctx, cancel := signalAwareContext(parent, opts.logger)
	defer cancel()

	a := newApp(opts.cfg, opts.logger)
	defer a.close()

	c, err := a.components(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, c)
}
