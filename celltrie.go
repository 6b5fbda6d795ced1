package celltrie

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"time"

	"github.com/hupe1980/celltrie/cell"
	"github.com/hupe1980/celltrie/codec"
	"github.com/hupe1980/celltrie/internal/trie"
)

// Map is a concurrent map from spatial keys to values.
//
// All methods are safe for concurrent use and never block on each other.
// Snapshots are constant time; the copy happens lazily on the next write to
// either side.
type Map[O comparable, V any] struct {
	t       *trie.Trie[O, V]
	codec   codec.Codec
	metrics MetricsCollector
	logger  *Logger
}

// New returns an empty writable map.
func New[O comparable, V any](optFns ...Option) *Map[O, V] {
	opts := applyOptions(optFns)

	var equal func(a, b V) bool

	if opts.equal != nil {
		eq, ok := opts.equal.(func(a, b V) bool)
		if !ok {
			panic(fmt.Sprintf("celltrie: WithValueEqual expects func(a, b %s) bool, got %T", reflect.TypeFor[V](), opts.equal))
		}

		equal = eq
	}

	mc := opts.metricsCollector

	return &Map[O, V]{
		t: trie.New[O, V](trie.Config[V]{
			Equal:     equal,
			OnRestart: func(op trie.Op) { mc.RecordRestart(string(op)) },
		}),
		codec:   opts.codec,
		metrics: mc,
		logger:  opts.logger,
	}
}

func (m *Map[O, V]) wrap(t *trie.Trie[O, V]) *Map[O, V] {
	if t == m.t {
		return m
	}

	return &Map[O, V]{t: t, codec: m.codec, metrics: m.metrics, logger: m.logger}
}

func (m *Map[O, V]) checkWritable(op string) error {
	if m.t.ReadOnly() {
		return &ReadOnlyError{Op: op}
	}

	return nil
}

func (m *Map[O, V]) insert(op string, k cell.Key[O], v V, cond trie.Condition, expected V) (V, bool, error) {
	if err := m.checkWritable(op); err != nil {
		var zero V
		return zero, false, err
	}

	start := time.Now()
	prev, loaded := m.t.Insert(k, v, cond, expected)
	m.metrics.RecordPut(time.Since(start), loaded)

	return prev, loaded, nil
}

// Put binds v to k and returns the previous value, if any.
func (m *Map[O, V]) Put(k cell.Key[O], v V) (V, bool, error) {
	var zero V
	return m.insert("put", k, v, trie.Always, zero)
}

// PutIfAbsent binds v to k unless k is already bound. It returns the value
// that was bound before the call and whether there was one.
func (m *Map[O, V]) PutIfAbsent(k cell.Key[O], v V) (V, bool, error) {
	var zero V
	return m.insert("put_if_absent", k, v, trie.IfAbsent, zero)
}

// Replace rebinds k only if it is already bound.
func (m *Map[O, V]) Replace(k cell.Key[O], v V) (V, bool, error) {
	var zero V
	return m.insert("replace", k, v, trie.IfPresent, zero)
}

// CompareAndSwap rebinds k to newV if it is currently bound to a value equal
// to oldV.
func (m *Map[O, V]) CompareAndSwap(k cell.Key[O], oldV, newV V) (bool, error) {
	_, swapped, err := m.insert("compare_and_swap", k, newV, trie.IfEqual, oldV)
	return swapped, err
}

// Remove unbinds k and returns the value it had.
func (m *Map[O, V]) Remove(k cell.Key[O]) (V, bool, error) {
	if err := m.checkWritable("remove"); err != nil {
		var zero V
		return zero, false, err
	}

	start := time.Now()
	prev, ok := m.t.Remove(k)
	m.metrics.RecordRemove(time.Since(start), ok)

	return prev, ok, nil
}

// CompareAndRemove unbinds k if it is bound to a value equal to expected.
func (m *Map[O, V]) CompareAndRemove(k cell.Key[O], expected V) (bool, error) {
	if err := m.checkWritable("compare_and_remove"); err != nil {
		return false, err
	}

	start := time.Now()
	ok := m.t.RemoveIf(k, expected)
	m.metrics.RecordRemove(time.Since(start), ok)

	return ok, nil
}

// Get returns the value bound to k.
func (m *Map[O, V]) Get(k cell.Key[O]) (V, bool) {
	start := time.Now()
	v, ok := m.t.Lookup(k)
	m.metrics.RecordGet(time.Since(start), ok)

	return v, ok
}

// ContainsKey reports whether k is bound.
func (m *Map[O, V]) ContainsKey(k cell.Key[O]) bool {
	_, ok := m.Get(k)
	return ok
}

// Subtree returns a read-only view of the entries whose cell lies inside
// prefix, that is every key at prefix's resolution or finer that shares
// its base cell and digits.
func (m *Map[O, V]) Subtree(prefix cell.Cell) *Map[O, V] {
	start := time.Now()
	sub := m.wrap(m.t.Subtree(prefix))
	m.metrics.RecordSubtree(time.Since(start))

	return sub
}

// Snapshot returns an independent writable copy of m. A read-only map
// returns itself.
func (m *Map[O, V]) Snapshot() *Map[O, V] {
	if m.t.ReadOnly() {
		return m
	}

	snap := m.wrap(m.t.Snapshot())
	m.metrics.RecordSnapshot(false)
	m.logger.LogSnapshot(context.Background(), false)

	return snap
}

// ReadOnlySnapshot returns a read-only view of the current content of m.
// A read-only map returns itself.
func (m *Map[O, V]) ReadOnlySnapshot() *Map[O, V] {
	if m.t.ReadOnly() {
		return m
	}

	snap := m.wrap(m.t.ReadOnlySnapshot())
	m.metrics.RecordSnapshot(true)
	m.logger.LogSnapshot(context.Background(), true)

	return snap
}

// Clear removes all entries at once.
func (m *Map[O, V]) Clear() error {
	if err := m.checkWritable("clear"); err != nil {
		return err
	}

	m.t.Clear()
	m.logger.LogClear(context.Background())

	return nil
}

// Size returns the number of entries. It is exact for the instant at which
// the call takes its snapshot.
func (m *Map[O, V]) Size() int { return m.t.Size() }

// IsEmpty reports whether m holds no entries.
func (m *Map[O, V]) IsEmpty() bool { return m.t.IsEmpty() }

// IsReadOnly reports whether m rejects writes.
func (m *Map[O, V]) IsReadOnly() bool { return m.t.ReadOnly() }

// Iterator returns an iterator over a snapshot of m. Mutations made through
// the iterator are applied to m. On a read-only map it behaves like
// ReadOnlyIterator.
func (m *Map[O, V]) Iterator() *Iterator[O, V] {
	return &Iterator[O, V]{it: m.t.Iterator(), origin: m, live: !m.t.ReadOnly()}
}

// ReadOnlyIterator returns an iterator over a snapshot of m that rejects
// mutations.
func (m *Map[O, V]) ReadOnlyIterator() *Iterator[O, V] {
	return &Iterator[O, V]{it: m.t.Iterator(), origin: m}
}

// All returns a range-over-func sequence of the entries of a snapshot of m.
func (m *Map[O, V]) All() iter.Seq2[cell.Key[O], V] { return m.t.All() }
