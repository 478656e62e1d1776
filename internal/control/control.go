// Package control enables and disables profiles on the supplicant.
package control

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"x-netctl/internal/catalog"
)

// Scope selects one profile or every network of every interface
type Scope int

const (
	Single Scope = iota
	All
)

// Controller applies enable/disable actions without waiting for the
// resulting association
type Controller struct {
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// New creates a controller over the catalog's interface set
func New(cat *catalog.Catalog, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{catalog: cat, logger: logger.Named("control")}
}

// SetEnabled enables or disables name (Single) or all networks (All).
// Enabling is followed by a reassociate so the supplicant re-evaluates
// immediately instead of on its next background scan.
func (c *Controller) SetEnabled(ctx context.Context, scope Scope, enabled bool, name string) error {
	switch scope {
	case Single:
		return c.setOne(ctx, name, enabled)
	case All:
		return c.setAll(ctx, enabled)
	default:
		return fmt.Errorf("unknown scope %d", scope)
	}
}

// Enable enables one profile
func (c *Controller) Enable(ctx context.Context, name string) error {
	return c.SetEnabled(ctx, Single, true, name)
}

// Disable disables one profile
func (c *Controller) Disable(ctx context.Context, name string) error {
	return c.SetEnabled(ctx, Single, false, name)
}

// EnableAll enables every network on every interface
func (c *Controller) EnableAll(ctx context.Context) error {
	return c.SetEnabled(ctx, All, true, "")
}

// DisableAll disables every network on every interface
func (c *Controller) DisableAll(ctx context.Context) error {
	return c.SetEnabled(ctx, All, false, "")
}

func (c *Controller) setOne(ctx context.Context, name string, enabled bool) error {
	rec, err := c.catalog.Resolve(ctx, name)
	if err != nil {
		return err
	}

	client, err := c.catalog.Dial(ctx, rec.Interface)
	if err != nil {
		return err
	}
	defer client.Close()

	if !enabled {
		return client.DisableNetwork(ctx, rec.NetworkID)
	}
	if err := client.EnableNetwork(ctx, rec.NetworkID); err != nil {
		return err
	}
	return client.Reassociate(ctx)
}

// setAll attempts every interface independently; failures are collected
// and returned once all interfaces have been tried.
func (c *Controller) setAll(ctx context.Context, enabled bool) error {
	var errs []error
	for _, iface := range c.catalog.Interfaces() {
		if err := c.setInterface(ctx, iface, enabled); err != nil {
			c.logger.Warn("failed to update interface",
				zap.String("interface", iface),
				zap.Bool("enabled", enabled),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) setInterface(ctx context.Context, iface string, enabled bool) error {
	client, err := c.catalog.Dial(ctx, iface)
	if err != nil {
		return err
	}
	defer client.Close()

	if !enabled {
		return client.DisableAll(ctx)
	}
	if err := client.EnableAll(ctx); err != nil {
		return err
	}
	return client.Reassociate(ctx)
}
