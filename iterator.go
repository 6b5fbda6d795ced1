package celltrie

import (
	"github.com/hupe1980/celltrie/cell"
	"github.com/hupe1980/celltrie/internal/trie"
)

// Iterator walks the entries of a map snapshot.
//
//	it := m.Iterator()
//	for it.Next() {
//	    fmt.Println(it.Key(), it.Value())
//	}
//
// An Iterator is not safe for concurrent use.
type Iterator[O comparable, V any] struct {
	it     *trie.Iterator[O, V]
	origin *Map[O, V]
	live   bool

	started bool
	removed bool
}

// Next advances to the next entry and reports whether there is one.
func (it *Iterator[O, V]) Next() bool {
	if !it.it.Next() {
		it.started = false
		return false
	}

	it.started, it.removed = true, false

	return true
}

// Key returns the key of the current entry.
func (it *Iterator[O, V]) Key() cell.Key[O] { return it.it.Key() }

// Value returns the value of the current entry as seen by the snapshot.
func (it *Iterator[O, V]) Value() V { return it.it.Value() }

// SetValue rebinds the current key in the origin map if it is still bound
// there. The snapshot being iterated is not affected.
func (it *Iterator[O, V]) SetValue(v V) (bool, error) {
	if !it.live {
		return false, unsupported
	}

	if !it.started || it.removed {
		return false, ErrIllegalIteratorState
	}

	_, ok, err := it.origin.Replace(it.Key(), v)

	return ok, err
}

// Remove unbinds the current key in the origin map. It fails with
// ErrIllegalIteratorState before the first Next and when called twice for
// the same entry.
func (it *Iterator[O, V]) Remove() error {
	if !it.live {
		return unsupported
	}

	if !it.started || it.removed {
		return ErrIllegalIteratorState
	}

	if _, _, err := it.origin.Remove(it.Key()); err != nil {
		return err
	}

	it.removed = true

	return nil
}
