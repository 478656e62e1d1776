package main

import (
	"context"
	"fmt"
	"slices"
	"sync"

	gobus "github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"x-netctl/internal/config"
	"x-netctl/internal/dbus"
	"x-netctl/internal/netlink"
	"x-netctl/internal/state"
	"x-netctl/internal/status"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	var busType string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Export the profile operations on D-Bus as " + dbus.ServiceName,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&busType, "bus", config.BusSystem, "D-Bus bus type: session or system")
	return cmd
}

func serve(parent context.Context, opts *cliOptions) error {
	ctx, cancel := signalAwareContext(parent, opts.logger)
	defer cancel()

	logger := opts.logger.Named("serve")
	a := newApp(opts.cfg, opts.logger)
	defer a.close()

	stateMgr := state.NewManager()
	rt := &runtime{app: a, stateMgr: stateMgr, logger: logger}
	if err := rt.refresh(ctx); err != nil {
		return err
	}

	var conn *gobus.Conn
	var err error
	if opts.cfg.Bus == config.BusSystem {
		conn, err = a.bus()
	} else {
		conn, err = gobus.SessionBus()
	}
	if err != nil {
		return fmt.Errorf("failed to connect to D-Bus: %w", err)
	}

	svc, err := dbus.NewService(ctx, conn, stateMgr, rt, opts.logger)
	if err != nil {
		return fmt.Errorf("failed to start D-Bus service: %w", err)
	}
	defer svc.Close()
	logger.Info("D-Bus service registered", zap.String("bus", opts.cfg.Bus), zap.Strings("interfaces", rt.interfaces()))

	go rt.watchLinks(ctx)
	go rt.watchSystemResume(ctx)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// runtime is the service backend. It rebuilds its components when the
// interface set changes.
type runtime struct {
	app      *app
	stateMgr *state.Manager
	logger   *zap.Logger

	mu      sync.RWMutex
	current *components
}

func (r *runtime) refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.app.components(ctx)
	if err != nil {
		return err
	}
	if r.current != nil && slices.Equal(r.current.interfaces, c.interfaces) {
		return nil
	}
	r.current = c
	r.stateMgr.Update(func(st *state.State) {
		st.Interfaces = slices.Clone(c.interfaces)
	})
	r.logger.Info("interface set changed", zap.Strings("interfaces", c.interfaces))
	return nil
}

func (r *runtime) get() *components {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *runtime) interfaces() []string {
	return slices.Clone(r.get().interfaces)
}

func (r *runtime) List(ctx context.Context) ([]status.Entry, error) {
	return r.get().List(ctx)
}

func (r *runtime) IsActive(ctx context.Context, name string) (bool, error) {
	return r.get().IsActive(ctx, name)
}

func (r *runtime) IsEnabled(ctx context.Context, name string) (bool, error) {
	return r.get().IsEnabled(ctx, name)
}

func (r *runtime) SwitchTo(ctx context.Context, name string) error {
	return r.get().SwitchTo(ctx, name)
}

func (r *runtime) Enable(ctx context.Context, name string) error {
	return r.get().Enable(ctx, name)
}

func (r *runtime) Disable(ctx context.Context, name string) error {
	return r.get().Disable(ctx, name)
}

func (r *runtime) EnableAll(ctx context.Context) error {
	return r.get().EnableAll(ctx)
}

func (r *runtime) DisableAll(ctx context.Context) error {
	return r.get().DisableAll(ctx)
}

// affects reports whether a link event can change the interface set
func (r *runtime) affects(ev netlink.Event) bool {
	known := slices.Contains(r.interfaces(), ev.Link.Name)
	if ev.Removed {
		return known
	}
	return ev.Link.Wireless && !known
}

// watchLinks refreshes the interface set when wireless links come and go
func (r *runtime) watchLinks(ctx context.Context) {
	w, err := netlink.NewWatcher(r.logger)
	if err != nil {
		r.logger.Warn("netlink watcher unavailable", zap.Error(err))
		return
	}
	defer w.Close()

	err = w.Run(ctx, func(ev netlink.Event) {
		if !r.affects(ev) {
			return
		}
		r.logger.Debug("link changed", zap.String("link", ev.Link.Name), zap.Bool("removed", ev.Removed))
		if err := r.refresh(ctx); err != nil {
			r.logger.Warn("failed to refresh interfaces", zap.Error(err))
		}
	})
	if err != nil {
		r.logger.Warn("netlink watcher stopped", zap.Error(err))
	}
}

// watchSystemResume listens for PrepareForSleep D-Bus signal from logind
// and refreshes the interface set after resume
func (r *runtime) watchSystemResume(ctx context.Context) {
	conn, err := r.app.bus()
	if err != nil {
		r.logger.Warn("cannot watch system resume", zap.Error(err))
		return
	}

	// Subscribe to PrepareForSleep signal from logind
	if err := conn.AddMatchSignalContext(ctx,
		gobus.WithMatchInterface("org.freedesktop.login1.Manager"),
		gobus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		r.logger.Warn("cannot subscribe to PrepareForSleep", zap.Error(err))
		return
	}

	ch := make(chan *gobus.Signal, 1)
	conn.Signal(ch)
	defer conn.RemoveSignal(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			if sig.Name != "org.freedesktop.login1.Manager.PrepareForSleep" || len(sig.Body) == 0 {
				continue
			}
			goingToSleep, ok := sig.Body[0].(bool)
			if !ok || goingToSleep {
				continue
			}
			r.logger.Info("system resumed, refreshing interfaces")
			if err := r.refresh(ctx); err != nil {
				r.logger.Warn("failed to refresh interfaces", zap.Error(err))
			}
		}
	}
}
