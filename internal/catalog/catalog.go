// Package catalog builds the view of wireless profiles known to the
// supplicants of a set of interfaces.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"x-netctl/internal/supplicant"
)

// Status is the enablement state of a profile
type Status int

const (
	Enabled Status = iota
	Active
	Disabled
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Disabled:
		return "disabled"
	default:
		return "enabled"
	}
}

// Record is one profile: a network entry on one interface
type Record struct {
	Interface string
	NetworkID int
	Status    Status
	Name      string
}

// ErrProfileNotFound matches lookups of a name no interface knows
var ErrProfileNotFound = errors.New("profile not found")

// ProfileNotFoundError carries the name that failed to resolve
type ProfileNotFoundError struct {
	Name string
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("profile '%s' does not exist", e.Name)
}

func (e *ProfileNotFoundError) Is(target error) bool {
	return target == ErrProfileNotFound
}

// Catalog queries the live supplicants on every call, nothing is cached
type Catalog struct {
	interfaces []string
	dial       supplicant.Dialer
	logger     *zap.Logger
}

// New creates a catalog over interfaces in the given order
func New(interfaces []string, dial supplicant.Dialer, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		interfaces: append([]string(nil), interfaces...),
		dial:       dial,
		logger:     logger.Named("catalog"),
	}
}

// Interfaces returns the interface set
func (c *Catalog) Interfaces() []string {
	return append([]string(nil), c.interfaces...)
}

// Dial opens a control channel to iface
func (c *Catalog) Dial(ctx context.Context, iface string) (supplicant.Client, error) {
	return c.dial(ctx, iface)
}

// Profiles yields every profile in interface-then-network order. A failing
// interface is yielded as an error; iteration continues with the next
// interface if the consumer keeps ranging.
func (c *Catalog) Profiles(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for _, iface := range c.interfaces {
			records, err := c.Interface(ctx, iface)
			if err != nil {
				if !yield(Record{Interface: iface}, err) {
					return
				}
				continue
			}
			for _, rec := range records {
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

// Interface lists the profiles of a single interface
func (c *Catalog) Interface(ctx context.Context, iface string) ([]Record, error) {
	client, err := c.dial(ctx, iface)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return List(ctx, client, c.logger)
}

// List classifies the networks of an open client
func List(ctx context.Context, client supplicant.Client, logger *zap.Logger) ([]Record, error) {
	networks, err := client.ListNetworks(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(networks))
	for _, net := range networks {
		rec := Record{
			Interface: client.Interface(),
			NetworkID: net.ID,
			Status:    classify(net),
		}

		raw, err := client.NetworkAttr(ctx, net.ID, supplicant.AttrIDStr)
		switch {
		case errors.Is(err, supplicant.ErrNoAttribute):
		case err != nil:
			return nil, err
		default:
			if name, ok := supplicant.Unquote(raw); ok {
				rec.Name = name
			} else if logger != nil {
				logger.Debug("unreadable id_str", zap.String("interface", rec.Interface), zap.Int("network", net.ID))
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func classify(net supplicant.Network) Status {
	switch {
	case net.Current:
		return Active
	case net.Disabled:
		return Disabled
	default:
		return Enabled
	}
}

// Resolve returns the first record named name. Duplicate names on other
// interfaces are logged, the first match still wins.
func (c *Catalog) Resolve(ctx context.Context, name string) (Record, error) {
	// Unnamed networks are listed with an empty name and must never match
	if name == "" {
		return Record{}, &ProfileNotFoundError{Name: name}
	}

	var (
		found *Record
		errs  []error
	)

	for rec, err := range c.Profiles(ctx) {
		if err != nil {
			c.logger.Warn("failed to list profiles", zap.String("interface", rec.Interface), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if rec.Name != name {
			continue
		}
		if found == nil {
			rec := rec
			found = &rec
			continue
		}
		if rec.Interface != found.Interface {
			c.logger.Warn("profile name is not unique, using first match",
				zap.String("profile", name),
				zap.String("interface", found.Interface),
				zap.String("ignored", rec.Interface))
		}
	}

	if found != nil {
		return *found, nil
	}
	return Record{}, errors.Join(append([]error{&ProfileNotFoundError{Name: name}}, errs...)...)
}
