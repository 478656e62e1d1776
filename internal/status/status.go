// Package status answers read-only questions about profiles.
package status

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"x-netctl/internal/catalog"
)

// Entry is one line of the profile listing
type Entry struct {
	Glyph     rune
	Name      string
	Interface string
	Status    catalog.Status
}

// Glyph is the listing marker of a status
func Glyph(s catalog.Status) rune {
	switch s {
	case catalog.Active:
		return '*'
	case catalog.Disabled:
		return '!'
	default:
		return ' '
	}
}

// Query reads the catalog on every call
type Query struct {
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// New creates a query over cat
func New(cat *catalog.Catalog, logger *zap.Logger) *Query {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Query{catalog: cat, logger: logger.Named("status")}
}

// IsActive reports whether name is the associated profile of its interface
func (q *Query) IsActive(ctx context.Context, name string) (bool, error) {
	rec, err := q.catalog.Resolve(ctx, name)
	if err != nil {
		return false, err
	}
	return rec.Status == catalog.Active, nil
}

// IsEnabled reports whether name is not disabled
func (q *Query) IsEnabled(ctx context.Context, name string) (bool, error) {
	rec, err := q.catalog.Resolve(ctx, name)
	if err != nil {
		return false, err
	}
	return rec.Status != catalog.Disabled, nil
}

// List returns every profile in catalog order. Interfaces that cannot be
// read are skipped; their errors are joined and returned with the entries
// that could be listed.
func (q *Query) List(ctx context.Context) ([]Entry, error) {
	var (
		entries []Entry
		errs    []error
	)
	for rec, err := range q.catalog.Profiles(ctx) {
		if err != nil {
			q.logger.Warn("failed to list profiles", zap.String("interface", rec.Interface), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		entries = append(entries, Entry{
			Glyph:     Glyph(rec.Status),
			Name:      rec.Name,
			Interface: rec.Interface,
			Status:    rec.Status,
		})
	}
	return entries, errors.Join(errs...)
}
