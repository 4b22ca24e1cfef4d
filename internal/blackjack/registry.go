package blackjack

import (
	"fmt"
	rand "math/rand/v2"
	"sort"
	"sync"

	"github.com/lox/blackjack/internal/ident"
)

// tableEntry pairs a table with the lock that serialises access to it
type tableEntry struct {
	mu      sync.Mutex
	table   *Table
	removed bool
}

// Registry owns the lifetime of every table. Lookups and inserts share one
// RWMutex; play on a table holds only that table's lock.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*tableEntry

	rngMu   sync.Mutex
	rng     *rand.Rand
	newID   func() string
	options []TableOption
}

// NewRegistry creates an empty registry. Each new table draws its shoe
// from rng and is built with opts.
func NewRegistry(rng *rand.Rand, opts ...TableOption) *Registry {
	return &Registry{
		tables:  make(map[string]*tableEntry),
		rng:     rng,
		newID:   ident.TableID,
		options: opts,
	}
}

// SetIDFunc replaces the table ID generator
func (r *Registry) SetIDFunc(fn func() string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newID = fn
}

// CreateTable allocates a new table and returns its ID
func (r *Registry) CreateTable() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for r.tables[id] != nil {
		id = r.newID()
	}

	// Each table gets its own generator so shuffling never races on r.rng.
	r.rngMu.Lock()
	tableRNG := rand.New(rand.NewPCG(r.rng.Uint64(), r.rng.Uint64()))
	r.rngMu.Unlock()

	r.tables[id] = &tableEntry{table: NewTable(id, tableRNG, r.options...)}
	return id
}

// Get returns the table with id. The caller must not mutate it without
// holding the table's lock; prefer With.
func (r *Registry) Get(id string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tables[id]
	if !ok {
		return nil, false
	}
	return e.table, true
}

// Remove deletes a table and reports whether it existed
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.tables[id]
	delete(r.tables, id)
	r.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	return true
}

// RemoveIf deletes a table when check, run under the table's lock, returns
// nil. The check's error is returned and the table kept otherwise.
func (r *Registry) RemoveIf(id string, check func(*Table) error) error {
	r.mu.RLock()
	e, ok := r.tables[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}
	if err := check(e.table); err != nil {
		return err
	}
	e.removed = true

	r.mu.Lock()
	delete(r.tables, id)
	r.mu.Unlock()
	return nil
}

// IDs returns the sorted IDs of every table
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tables))
	for id := range r.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of tables
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}

// With runs fn while holding the table's exclusive lock. Calls for
// different tables run concurrently. A table removed while fn waited for
// the lock is reported as not found.
func (r *Registry) With(id string, fn func(*Table) error) error {
	r.mu.RLock()
	e, ok := r.tables[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}
	return fn(e.table)
}
