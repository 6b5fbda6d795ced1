package trie

import "sync/atomic"

const (
	undecided int32 = iota
	decidedCommit
	decidedAbort
)

// descriptor is an in-flight root swap: replace old by next provided old
// still holds expected.
type descriptor[O comparable, V any] struct {
	old      *inode[O, V]
	expected *state[O, V]
	next     *inode[O, V]
	decision atomic.Int32
}

// readRoot returns the root inode, finishing any in-flight swap first. With
// abort set, an undecided swap is rolled back instead of checked.
func (t *Trie[O, V]) readRoot(abort bool) *inode[O, V] {
	r := t.root.Load()
	if r.desc == nil {
		return r
	}

	return t.rdcssComplete(abort)
}

// rdcssRoot atomically replaces old by next if old's committed state is
// still expected.
func (t *Trie[O, V]) rdcssRoot(old *inode[O, V], expected *state[O, V], next *inode[O, V]) bool {
	d := &inode[O, V]{desc: &descriptor[O, V]{old: old, expected: expected, next: next}}
	if !t.root.CompareAndSwap(old, d) {
		return false
	}

	t.rdcssComplete(false)

	return d.desc.decision.Load() == decidedCommit
}

func (t *Trie[O, V]) rdcssComplete(abort bool) *inode[O, V] {
	for {
		r := t.root.Load()
		if r.desc == nil {
			return r
		}

		d := r.desc

		switch {
		case abort:
			d.decision.CompareAndSwap(undecided, decidedAbort)
		case t.gcasRead(d.old) == d.expected:
			d.decision.CompareAndSwap(undecided, decidedCommit)
		default:
			d.decision.CompareAndSwap(undecided, decidedAbort)
		}

		target := d.old
		if d.decision.Load() == decidedCommit {
			target = d.next
		}

		if t.root.CompareAndSwap(r, target) {
			return target
		}
	}
}
