package tracker

import (
	"context"
	"sync"

	"github.com/hupe1980/celltrie"
	"github.com/hupe1980/celltrie/cell"
)

// Grid computes neighbouring cells. Implementations typically wrap an H3
// binding.
type Grid interface {
	// Ring returns the cells at grid distance exactly k from origin.
	Ring(origin cell.Cell, k int) ([]cell.Cell, error)
	// Disk returns the cells within grid distance k of origin, grouped by
	// distance.
	Disk(origin cell.Cell, k int) ([][]cell.Cell, error)
}

// Entry is a tracked entity found by a query.
type Entry[O comparable, V any] struct {
	Key   cell.Key[O]
	Value V
}

// Tracker maps entities to their current cell and value.
//
// Single-entity operations are serialized by a coarse lock so that a Move is
// never observed half done. Queries only hold the lock while taking their
// snapshot.
type Tracker[O comparable, V any] struct {
	mu    sync.RWMutex
	index map[O]cell.Key[O]
	cells *celltrie.Map[O, V]
	grid  Grid
	opts  options
}

// New returns an empty tracker using grid for neighbourhood queries.
func New[O comparable, V any](grid Grid, optFns ...Option) *Tracker[O, V] {
	o := applyOptions(optFns)

	return &Tracker[O, V]{
		index: make(map[O]cell.Key[O]),
		cells: celltrie.New[O, V](o.mapOpts...),
		grid:  grid,
		opts:  o,
	}
}

// Start begins tracking owner at c with value. If owner is already tracked,
// its current value is returned with loaded set and nothing changes.
func (t *Tracker[O, V]) Start(c cell.Cell, owner O, value V) (actual V, loaded bool, err error) {
	ctx := context.Background()

	t.mu.Lock()
	defer t.mu.Unlock()

	if k, ok := t.index[owner]; ok {
		v, _ := t.cells.Get(k)
		return v, true, nil
	}

	k := cell.KeyOf(c, owner)
	if _, _, err := t.cells.Put(k, value); err != nil {
		t.opts.logger.LogTrack(ctx, "start", owner, c, err)
		return actual, false, err
	}

	t.index[owner] = k
	t.opts.logger.LogTrack(ctx, "start", owner, c, nil)

	return value, false, nil
}

// Tracking reports whether owner is tracked.
func (t *Tracker[O, V]) Tracking(owner O) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.index[owner]

	return ok
}

// Location returns the key owner is tracked under.
func (t *Tracker[O, V]) Location(owner O) (cell.Key[O], bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	k, ok := t.index[owner]

	return k, ok
}

// Value returns the value stored for owner.
func (t *Tracker[O, V]) Value(owner O) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	k, ok := t.index[owner]
	if !ok {
		var zero V
		return zero, false
	}

	return t.cells.Get(k)
}

// Update replaces the value of owner. It reports false if owner is not
// tracked.
func (t *Tracker[O, V]) Update(owner O, value V) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k, ok := t.index[owner]
	if !ok {
		return false, nil
	}

	_, replaced, err := t.cells.Replace(k, value)

	return replaced, err
}

// Move relocates owner to the cell to, keeping its value. It reports false
// if owner is not tracked.
func (t *Tracker[O, V]) Move(owner O, to cell.Cell) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	from, ok := t.index[owner]
	if !ok {
		return false, nil
	}

	if from.Cell() == to {
		return true, nil
	}

	ctx := context.Background()

	v, _, err := t.cells.Remove(from)
	if err != nil {
		t.opts.logger.LogMove(ctx, owner, from.Cell(), to, err)
		return false, err
	}

	k := cell.KeyOf(to, owner)
	if _, _, err := t.cells.Put(k, v); err != nil {
		// Put the entity back where it was.
		_, _, _ = t.cells.Put(from, v)
		t.opts.logger.LogMove(ctx, owner, from.Cell(), to, err)

		return false, err
	}

	t.index[owner] = k
	t.opts.logger.LogMove(ctx, owner, from.Cell(), to, nil)

	return true, nil
}

// Finish stops tracking owner and returns its last value.
func (t *Tracker[O, V]) Finish(owner O) (V, bool, error) {
	var zero V

	t.mu.Lock()
	defer t.mu.Unlock()

	k, ok := t.index[owner]
	if !ok {
		return zero, false, nil
	}

	v, _, err := t.cells.Remove(k)
	t.opts.logger.LogTrack(context.Background(), "finish", owner, k.Cell(), err)

	if err != nil {
		return zero, false, err
	}

	delete(t.index, owner)

	return v, true, nil
}

// Len returns the number of tracked entities.
func (t *Tracker[O, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.index)
}

// Locations returns the current key of every tracked entity.
func (t *Tracker[O, V]) Locations() map[O]cell.Key[O] {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[O]cell.Key[O], len(t.index))
	for o, k := range t.index {
		out[o] = k
	}

	return out
}

// Snapshot returns a read-only view of the tracked entities, suitable for
// checkpointing.
func (t *Tracker[O, V]) Snapshot() *celltrie.Map[O, V] {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.cells.ReadOnlySnapshot()
}
