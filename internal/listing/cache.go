// Package listing keeps the numbered result of the most recent list or
// search call per record kind.
package listing

import (
	"fmt"
	"sync"

	"github.com/xmubeta/outlook-mcp-server/internal/apperr"
	"github.com/xmubeta/outlook-mcp-server/internal/metrics"
	"github.com/xmubeta/outlook-mcp-server/internal/model"
)

var (
	// ErrEmptyListing is returned by Resolve when no listing of the kind
	// has been installed since the process started.
	ErrEmptyListing = apperr.New(apperr.KindNotFound, "nothing has been listed yet", nil)

	// ErrOrdinalNotFound is returned by Resolve for an ordinal outside
	// the current listing.
	ErrOrdinalNotFound = apperr.New(apperr.KindNotFound, "ordinal not in the current listing", nil)
)

// listing is the live listing of one kind.
type listing struct {
	// req serializes whole requests against this kind.
	req sync.Mutex

	mu        sync.RWMutex
	records   []model.Record
	installed bool
}

// Cache holds one live listing per kind. The zero value is not usable;
// create one with New.
type Cache struct {
	listings map[model.Kind]*listing
}

// New creates an empty cache for email and calendar listings.
func New() *Cache {
	return &Cache{
		listings: map[model.Kind]*listing{
			model.KindEmail:       {},
			model.KindAppointment: {},
		},
	}
}

func (c *Cache) of(kind model.Kind) *listing {
	l, ok := c.listings[kind]
	if !ok {
		panic(fmt.Sprintf("listing: unknown kind %q", kind))
	}
	return l
}

// Lock serializes a whole request against kind's listing. It is held
// around clear, query and install so concurrent callers never
// interleave listings of the same kind.
func (c *Cache) Lock(kind model.Kind) { c.of(kind).req.Lock() }

// Unlock releases the request lock taken by Lock.
func (c *Cache) Unlock(kind model.Kind) { c.of(kind).req.Unlock() }

// Install replaces kind's listing with records, numbered from 1 in
// order. The slice is copied before it becomes visible.
func (c *Cache) Install(kind model.Kind, records []model.Record) {
	fresh := make([]model.Record, len(records))
	copy(fresh, records)

	l := c.of(kind)
	l.mu.Lock()
	l.records = fresh
	l.installed = true
	l.mu.Unlock()

	metrics.SetListingSize(string(kind), len(fresh))
}

// Clear empties kind's listing so no earlier ordinal resolves.
func (c *Cache) Clear(kind model.Kind) {
	l := c.of(kind)
	l.mu.Lock()
	l.records = nil
	l.mu.Unlock()

	metrics.SetListingSize(string(kind), 0)
}

// Resolve returns the record numbered n in kind's listing.
func (c *Cache) Resolve(kind model.Kind, n int) (model.Record, error) {
	l := c.of(kind)
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.installed {
		return nil, ErrEmptyListing
	}
	if n < 1 || n > len(l.records) {
		return nil, fmt.Errorf("%d of %d: %w", n, len(l.records), ErrOrdinalNotFound)
	}
	return l.records[n-1], nil
}

// Len returns the number of records in kind's listing.
func (c *Cache) Len(kind model.Kind) int {
	l := c.of(kind)
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.records)
}
