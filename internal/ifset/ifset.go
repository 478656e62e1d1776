// Package ifset decides which interfaces the profile tools operate on.
package ifset

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"x-netctl/internal/netlink"
)

// DefaultUnitPattern matches the per-interface automatic selection units
const DefaultUnitPattern = "netctl-auto@*.service"

// UnitLister lists systemd units
type UnitLister interface {
	ListUnits(ctx context.Context, states, patterns []string) ([]string, error)
}

// LinkSource reports the links present on the system
type LinkSource interface {
	Names() (map[string]netlink.Link, error)
}

// Resolver produces the interface set
type Resolver struct {
	// Static interfaces bypass unit discovery when set
	Static      []string
	UnitPattern string
	Units       UnitLister
	// Links filters out names that are not present; nil disables filtering
	Links  LinkSource
	Logger *zap.Logger
}

// Interfaces returns the sorted interface set
func (r *Resolver) Interfaces(ctx context.Context) ([]string, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ifset")

	var names []string
	switch {
	case len(r.Static) > 0:
		names = append(names, r.Static...)
	case r.Units != nil:
		found, err := r.running(ctx)
		if err != nil {
			return nil, err
		}
		names = found
	default:
		return nil, errors.New("no interfaces configured and no unit lister available")
	}

	names = r.present(logger, names)
	slices.Sort(names)
	return slices.Compact(names), nil
}

func (r *Resolver) running(ctx context.Context) ([]string, error) {
	pattern := r.UnitPattern
	if pattern == "" {
		pattern = DefaultUnitPattern
	}

	units, err := r.Units.ListUnits(ctx, []string{"active"}, []string{pattern})
	if err != nil {
		return nil, fmt.Errorf("discover interfaces: %w", err)
	}

	var names []string
	for _, unit := range units {
		if name, ok := InstanceName(unit, pattern); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (r *Resolver) present(logger *zap.Logger, names []string) []string {
	if r.Links == nil {
		return names
	}
	links, err := r.Links.Names()
	if err != nil {
		logger.Warn("cannot check links, using interfaces as given", zap.Error(err))
		return names
	}

	kept := names[:0]
	for _, name := range names {
		link, ok := links[name]
		if !ok {
			logger.Warn("interface does not exist, skipping", zap.String("interface", name))
			continue
		}
		if !link.Wireless {
			logger.Debug("interface is not wireless", zap.String("interface", name))
		}
		kept = append(kept, name)
	}
	return kept
}
