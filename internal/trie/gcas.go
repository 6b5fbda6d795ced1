package trie

import "sync/atomic"

type status = uint32

const (
	committed status = iota
	pending
	aborted
)

// state is what an inode's slot points to. A committed state carries the
// inode's current node. A pending state also carries the state it replaces
// and becomes committed or aborted exactly once; an aborted state is put
// back to prev by whoever sees it next.
type state[O comparable, V any] struct {
	node   node[O, V]
	prev   atomic.Pointer[state[O, V]]
	status atomic.Uint32
}

// inode is the indirection cell every structural pointer goes through.
// Its slot is only ever changed by gcas. An inode with a non-nil desc is a
// root descriptor and never part of the trie.
type inode[O comparable, V any] struct {
	main atomic.Pointer[state[O, V]]
	gen  *generation
	desc *descriptor[O, V]
}

func newInode[O comparable, V any](gen *generation, n node[O, V]) *inode[O, V] {
	in := &inode[O, V]{gen: gen}
	in.main.Store(&state[O, V]{node: n})

	return in
}

// copyToGen returns a new inode in gen holding in's committed node.
func (in *inode[O, V]) copyToGen(gen *generation, t *Trie[O, V]) *inode[O, V] {
	return newInode[O, V](gen, t.gcasRead(in).node)
}

// gcas replaces old with n in the slot of in. It succeeds only if the slot
// still holds old and the root generation is still in's generation when the
// change is decided. A false result means the caller must restart.
func (t *Trie[O, V]) gcas(in *inode[O, V], old *state[O, V], n node[O, V]) bool {
	s := &state[O, V]{node: n}
	s.prev.Store(old)
	s.status.Store(pending)

	if !in.main.CompareAndSwap(old, s) {
		return false
	}

	t.gcasComplete(in, s)

	return s.status.Load() == committed
}

// gcasRead returns the committed state of in, settling any pending change.
func (t *Trie[O, V]) gcasRead(in *inode[O, V]) *state[O, V] {
	s := in.main.Load()
	if s.status.Load() == committed {
		return s
	}

	return t.gcasComplete(in, s)
}

func (t *Trie[O, V]) gcasComplete(in *inode[O, V], s *state[O, V]) *state[O, V] {
	for {
		switch s.status.Load() {
		case committed:
			return s
		case aborted:
			prev := s.prev.Load()
			if in.main.CompareAndSwap(s, prev) {
				return prev
			}

			s = in.main.Load()

			continue
		}

		// The root is read with abort priority so a pending root swap
		// cannot hold this commit up.
		root := t.readRoot(true)
		if root.gen == in.gen && !t.readOnly {
			if s.status.CompareAndSwap(pending, committed) {
				s.prev.Store(nil)
				return s
			}

			continue
		}

		s.status.CompareAndSwap(pending, aborted)
	}
}
