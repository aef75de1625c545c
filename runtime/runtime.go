// Package runtime holds the process-wide mutable state the spec calls
// out explicitly rather than hiding behind package-level globals: the
// currently-selected database handle and a generation counter that
// lets long-lived references detect a mid-call database swap.
package runtime

import (
	"sync"

	"github.com/brunobiangulo/docintel/docerr"
	"github.com/brunobiangulo/docintel/store"
)

// Runtime is the single process-wide handle passed through tool
// handlers. It is safe for concurrent use.
type Runtime struct {
	mu         sync.RWMutex
	store      *store.Store
	name       string
	generation int64
}

func New() *Runtime {
	return &Runtime{}
}

// Select swaps the active database, incrementing the generation
// counter so holders of a prior Handle can detect the swap.
func (r *Runtime) Select(name string, s *store.Store) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store != nil {
		r.store.Close()
	}
	r.store = s
	r.name = name
	r.generation++
	return r.generation
}

// Clear closes and releases the active database.
func (r *Runtime) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store != nil {
		r.store.Close()
	}
	r.store = nil
	r.name = ""
	r.generation++
}

// Handle is a snapshot reference to the active database at the time
// it was acquired, stamped with the generation it was acquired at.
type Handle struct {
	Store      *store.Store
	Name       string
	Generation int64
}

// Current returns a Handle to the active database, or
// DATABASE_NOT_SELECTED if none is selected.
func (r *Runtime) Current() (Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.store == nil {
		return Handle{}, docerr.New(docerr.CategoryDatabaseNotSelected, "no database selected")
	}
	return Handle{Store: r.store, Name: r.name, Generation: r.generation}, nil
}

// Generation returns the current generation counter without
// requiring a database to be selected.
func (r *Runtime) Generation() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Stale reports whether h was acquired under an earlier generation
// than the runtime's current one, meaning the database has since been
// swapped or cleared out from under the holder.
func (h Handle) Stale(r *Runtime) bool {
	return h.Generation != r.Generation()
}
