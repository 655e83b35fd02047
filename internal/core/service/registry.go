package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/querygate/querygate/internal/core/domain"
	"github.com/querygate/querygate/internal/core/port"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnknownTable is returned by AddTable when the table does not exist
	// in the database catalog.
	ErrUnknownTable = errors.New("table does not exist in the database")

	// ErrTableNotListed is returned by RemoveTable for a name that was not
	// on the allow-list.
	ErrTableNotListed = errors.New("table is not on the allow-list")
)

const sampleRowLimit = 3

// SchemaRegistry maintains the current SchemaSnapshot and the table
// allow-list, shielding callers from per-request catalog traffic. A warm
// snapshot is served lock-free; a cache miss triggers exactly one catalog
// refresh no matter how many requests arrive during it. All snapshot
// installs are wholesale pointer swaps — readers never observe a partial
// update, and an in-flight validation keeps whichever snapshot it captured.
type SchemaRegistry struct {
	catalog      port.CatalogReader
	ttl          time.Duration
	descriptions map[string]string
	logger       *slog.Logger

	mu      sync.Mutex // guards allowed and serializes snapshot installs
	allowed map[string]struct{}

	snap  atomic.Pointer[domain.SchemaSnapshot]
	group singleflight.Group
}

// NewSchemaRegistry builds a registry over the given catalog. allowedTables
// seeds the allow-list (bare or "public."-qualified names, case-insensitive);
// descriptions carries optional operator-provided table descriptions for
// prompt context. Call Refresh once before serving.
func NewSchemaRegistry(catalog port.CatalogReader, ttl time.Duration, allowedTables []string, descriptions map[string]string, logger *slog.Logger) *SchemaRegistry {
	allowed := make(map[string]struct{}, len(allowedTables))
	for _, name := range allowedTables {
		allowed[normalizeTable(name)] = struct{}{}
	}
	return &SchemaRegistry{
		catalog:      catalog,
		ttl:          ttl,
		descriptions: descriptions,
		logger:       logger,
		allowed:      allowed,
	}
}

// normalizeTable lowercases and strips a schema qualifier; the registry
// works in bare public-schema table names.
func normalizeTable(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Snapshot returns the cached snapshot if younger than the TTL, refreshing
// otherwise. On refresh failure the previous snapshot is returned alongside
// the error; with no previous snapshot the returned snapshot is nil, whose
// allow-list reads as empty — fail closed, never fail open.
func (r *SchemaRegistry) Snapshot(ctx context.Context) (*domain.SchemaSnapshot, error) {
	if s := r.snap.Load(); s != nil && time.Since(s.CapturedAt) < r.ttl {
		return s, nil
	}

	v, err, _ := r.group.Do("refresh", func() (any, error) {
		// Re-check: a concurrent caller may have refreshed while this one
		// waited on the flight group.
		if s := r.snap.Load(); s != nil && time.Since(s.CapturedAt) < r.ttl {
			return s, nil
		}
		return r.Refresh(ctx)
	})
	if err != nil {
		return r.snap.Load(), err
	}
	return v.(*domain.SchemaSnapshot), nil
}

// Refresh queries the catalog for the allow-listed tables and atomically
// installs a new snapshot. Allow-listed names missing from the database are
// dropped from the snapshot's effective allow-list so the "allow-list ⊆
// discovered tables" invariant always holds. Any catalog failure leaves the
// previous snapshot in place.
func (r *SchemaRegistry) Refresh(ctx context.Context) (*domain.SchemaSnapshot, error) {
	r.mu.Lock()
	wanted := make([]string, 0, len(r.allowed))
	for name := range r.allowed {
		wanted = append(wanted, name)
	}
	r.mu.Unlock()
	sort.Strings(wanted)

	names, err := r.catalog.TableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tables: %v", domain.ErrSchemaRefreshFailed, err)
	}
	existing := make(map[string]struct{}, len(names))
	for _, n := range names {
		existing[strings.ToLower(n)] = struct{}{}
	}

	tables := make(map[string]domain.TableSchema, len(wanted))
	effective := make(map[string]struct{}, len(wanted))
	for _, name := range wanted {
		if _, ok := existing[name]; !ok {
			r.logger.Warn("allow-listed table not found in database", slog.String("table", name))
			continue
		}
		cols, err := r.catalog.Columns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("%w: describing %s: %v", domain.ErrSchemaRefreshFailed, name, err)
		}
		samples, err := r.catalog.SampleRows(ctx, name, sampleRowLimit)
		if err != nil {
			// Sample rows are prompt garnish, not required for correctness.
			r.logger.Debug("sampling table failed", slog.String("table", name), slog.Any("error", err))
			samples = nil
		}
		effective[name] = struct{}{}
		tables[name] = domain.TableSchema{
			Name:        name,
			Description: r.descriptions[name],
			Columns:     cols,
			SampleRows:  samples,
		}
	}

	snap := &domain.SchemaSnapshot{
		Tables:     tables,
		Allowed:    effective,
		CapturedAt: time.Now(),
	}

	// The allow-list may have been narrowed while the catalog round-trip was
	// in flight; installing the pre-narrow result would resurrect revoked
	// access. Intersect with the current list under the lock, so the install
	// serializes with any concurrent RemoveTable.
	r.mu.Lock()
	for name := range snap.Allowed {
		if _, ok := r.allowed[name]; !ok {
			delete(snap.Allowed, name)
			delete(snap.Tables, name)
		}
	}
	r.snap.Store(snap)
	r.mu.Unlock()

	r.logger.Info("schema snapshot refreshed",
		slog.Int("tables", len(snap.Allowed)),
		slog.Time("captured_at", snap.CapturedAt),
	)
	return snap, nil
}

// AddTable adds a table to the allow-list after verifying it exists in the
// catalog, then refreshes so the new snapshot carries its metadata.
func (r *SchemaRegistry) AddTable(ctx context.Context, name string) error {
	name = normalizeTable(name)
	if name == "" {
		return fmt.Errorf("empty table name")
	}

	names, err := r.catalog.TableNames(ctx)
	if err != nil {
		return fmt.Errorf("verifying table %q: %w", name, err)
	}
	found := false
	for _, n := range names {
		if strings.ToLower(n) == name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}

	r.mu.Lock()
	r.allowed[name] = struct{}{}
	r.mu.Unlock()

	if _, err := r.Refresh(ctx); err != nil {
		// The widened allow-list takes effect on the next successful
		// refresh; until then the old snapshot stays authoritative.
		return err
	}
	return nil
}

// RemoveTable removes a table from the allow-list and immediately publishes
// a snapshot without it. No catalog round-trip is needed to narrow access.
func (r *SchemaRegistry) RemoveTable(name string) error {
	name = normalizeTable(name)

	// The lock is held through the snapshot install so a concurrent Refresh
	// either sees the narrowed allow-list or installs after this narrow does.
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.allowed[name]; !ok {
		return fmt.Errorf("%w: %s", ErrTableNotListed, name)
	}
	delete(r.allowed, name)
	narrowed := make(map[string]struct{}, len(r.allowed))
	for n := range r.allowed {
		narrowed[n] = struct{}{}
	}

	if s := r.snap.Load(); s != nil {
		next := s.WithAllowed(narrowed)
		// Effective allow-list is the intersection with what the snapshot
		// actually discovered.
		for n := range next.Allowed {
			if _, ok := next.Tables[n]; !ok {
				delete(next.Allowed, n)
			}
		}
		r.snap.Store(next)
	}
	return nil
}

// AllowedTables lists the configured allow-list in sorted order.
func (r *SchemaRegistry) AllowedTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.allowed))
	for n := range r.allowed {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
