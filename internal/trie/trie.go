// Package trie implements the lock-free concurrent hash trie behind
// celltrie.Map.
//
// Every structural pointer goes through an inode whose slot changes only by
// gcas, a compare-and-swap that also checks the root generation. Snapshots
// swap the root with rdcss and give both sides a fresh generation; nodes of
// the older generation are copied lazily on first write. Branches index by
// the base cell at level 0 and by one three-bit digit per deeper level.
package trie

import (
	"reflect"
	"sync/atomic"

	"github.com/hupe1980/celltrie/cell"
)

// Op names a trie operation for restart accounting.
type Op string

const (
	OpLookup   Op = "lookup"
	OpInsert   Op = "insert"
	OpRemove   Op = "remove"
	OpSnapshot Op = "snapshot"
	OpClear    Op = "clear"
)

// Config tunes a Trie.
type Config[V any] struct {
	// Equal compares values for IfEqual inserts and RemoveIf. Defaults to
	// reflect.DeepEqual.
	Equal func(a, b V) bool
	// OnRestart is called whenever an operation restarts from the root.
	OnRestart func(op Op)
}

// Trie is a concurrent map from cell keys to values. All methods are safe
// for concurrent use. Mutating methods must not be called on a read-only
// trie.
type Trie[O comparable, V any] struct {
	root      atomic.Pointer[inode[O, V]]
	readOnly  bool
	equal     func(a, b V) bool
	onRestart func(op Op)
}

// New returns an empty writable trie.
func New[O comparable, V any](cfg Config[V]) *Trie[O, V] {
	equal := cfg.Equal
	if equal == nil {
		equal = func(a, b V) bool { return reflect.DeepEqual(a, b) }
	}

	t := &Trie[O, V]{equal: equal, onRestart: cfg.OnRestart}
	t.root.Store(newRoot[O, V]())

	return t
}

func newRoot[O comparable, V any]() *inode[O, V] {
	gen := &generation{}
	return newInode[O, V](gen, node[O, V](newBranch[O, V](0, gen)))
}

// derive returns a trie rooted at root that shares t's configuration.
func (t *Trie[O, V]) derive(root *inode[O, V], readOnly bool) *Trie[O, V] {
	nt := &Trie[O, V]{readOnly: readOnly, equal: t.equal, onRestart: t.onRestart}
	nt.root.Store(root)

	return nt
}

// ReadOnly reports whether t is a read-only view.
func (t *Trie[O, V]) ReadOnly() bool { return t.readOnly }

func (t *Trie[O, V]) restart(op Op) {
	if t.onRestart != nil {
		t.onRestart(op)
	}
}

// Lookup returns the value bound to k.
func (t *Trie[O, V]) Lookup(k cell.Key[O]) (V, bool) {
	for {
		root := t.readRoot(false)
		if v, ok, done := t.lookup(root, k, root.gen); done {
			return v, ok
		}

		t.restart(OpLookup)
	}
}

func (t *Trie[O, V]) lookup(in *inode[O, V], k cell.Key[O], startGen *generation) (V, bool, bool) {
	var (
		zero   V
		parent *inode[O, V]
	)

	for {
		main := t.gcasRead(in)

		switch n := main.node.(type) {
		case *branch[O, V]:
			s := n.slotOf(k.Cell())
			if !n.present(s) {
				return zero, false, true
			}

			switch child := n.children[s.pos].(type) {
			case *inode[O, V]:
				if t.readOnly || child.gen == startGen {
					parent, in = in, child
					continue
				}

				if t.gcas(in, main, n.renewed(startGen, t)) {
					continue
				}

				return zero, false, false
			case *leaf[O, V]:
				if child.key == k {
					return child.value, true, true
				}

				return zero, false, true
			default:
				panic(invalidState)
			}
		case *tomb[O, V]:
			return t.cleanReadOnly(n, parent, k)
		case *collision[O, V]:
			v, ok := n.lookup(k)
			return v, ok, true
		default:
			panic(invalidState)
		}
	}
}

// cleanReadOnly handles a tomb met during lookup. Read-only views never
// compact, so they answer from the tomb directly.
func (t *Trie[O, V]) cleanReadOnly(tn *tomb[O, V], parent *inode[O, V], k cell.Key[O]) (V, bool, bool) {
	var zero V

	if !t.readOnly {
		t.clean(parent)
		return zero, false, false
	}

	if tn.leaf.key == k {
		return tn.leaf.value, true, true
	}

	return zero, false, true
}

// clean compresses the branch held by in.
func (t *Trie[O, V]) clean(in *inode[O, V]) {
	if in == nil {
		return
	}

	main := t.gcasRead(in)
	if b, ok := main.node.(*branch[O, V]); ok {
		t.gcas(in, main, toCompressed(b, in.gen, t))
	}
}

// cleanParent splices the tomb held by in into parent as a plain leaf.
func (t *Trie[O, V]) cleanParent(parent, in *inode[O, V], k cell.Key[O], startGen *generation) {
	for {
		main := t.gcasRead(in)
		pmain := t.gcasRead(parent)

		pb, ok := pmain.node.(*branch[O, V])
		if !ok {
			return
		}

		s := pb.slotOf(k.Cell())
		if !pb.present(s) {
			return
		}

		if child, ok := pb.children[s.pos].(*inode[O, V]); !ok || child != in {
			return
		}

		tn, ok := main.node.(*tomb[O, V])
		if !ok {
			return
		}

		nb := pb.updatedAt(s.pos, tn.leaf, in.gen)
		if t.gcas(parent, pmain, toContracted(nb)) || t.readRoot(false).gen != startGen {
			return
		}
	}
}

// Snapshot returns a copy of t. Both tries share structure and copy it
// lazily on write. A read-only trie returns itself.
func (t *Trie[O, V]) Snapshot() *Trie[O, V] {
	if t.readOnly {
		return t
	}

	for {
		r := t.readRoot(false)
		expected := t.gcasRead(r)

		if t.rdcssRoot(r, expected, r.copyToGen(&generation{}, t)) {
			return t.derive(r.copyToGen(&generation{}, t), false)
		}

		t.restart(OpSnapshot)
	}
}

// ReadOnlySnapshot returns a read-only view of the current content of t.
// A read-only trie returns itself.
func (t *Trie[O, V]) ReadOnlySnapshot() *Trie[O, V] {
	if t.readOnly {
		return t
	}

	for {
		r := t.readRoot(false)
		expected := t.gcasRead(r)

		if t.rdcssRoot(r, expected, r.copyToGen(&generation{}, t)) {
			return t.derive(r, true)
		}

		t.restart(OpSnapshot)
	}
}

// Clear atomically replaces the content of t with an empty trie.
func (t *Trie[O, V]) Clear() {
	for {
		r := t.readRoot(false)
		expected := t.gcasRead(r)

		if t.rdcssRoot(r, expected, newRoot[O, V]()) {
			return
		}

		t.restart(OpClear)
	}
}

// Size returns the number of entries. On a writable trie it counts a
// read-only snapshot.
func (t *Trie[O, V]) Size() int {
	ro := t.ReadOnlySnapshot()
	return ro.cachedSize(ro.readRoot(false))
}

// IsEmpty reports whether t holds no entries.
func (t *Trie[O, V]) IsEmpty() bool {
	ro := t.ReadOnlySnapshot()
	if b, ok := ro.gcasRead(ro.readRoot(false)).node.(*branch[O, V]); ok && len(b.children) == 0 {
		return true
	}

	return ro.cachedSize(ro.readRoot(false)) == 0
}

func (t *Trie[O, V]) cachedSize(in *inode[O, V]) int {
	switch n := t.gcasRead(in).node.(type) {
	case *branch[O, V]:
		return n.cachedSize(t)
	case *tomb[O, V]:
		return 1
	case *collision[O, V]:
		return len(n.entries)
	default:
		panic(invalidState)
	}
}
