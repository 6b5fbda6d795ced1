package trie

import (
	"iter"

	"github.com/hupe1980/celltrie/cell"
)

// maxDepth bounds the branch nesting: the base-cell level, one level per
// resolution and one spare.
const maxDepth = cell.MaxResolution + 2

type frame[O comparable, V any] struct {
	children []node[O, V]
	pos      int
}

// Iterator walks a read-only trie depth first.
type Iterator[O comparable, V any] struct {
	t     *Trie[O, V]
	stack [maxDepth]frame[O, V]
	depth int

	// bucket drains a collision or a tomb in place.
	bucket    []*leaf[O, V]
	bucketPos int

	current *leaf[O, V]
}

// Iterator returns an iterator over a read-only snapshot of t.
func (t *Trie[O, V]) Iterator() *Iterator[O, V] {
	ro := t.ReadOnlySnapshot()
	return ro.iterate(ro.readRoot(false))
}

func (t *Trie[O, V]) iterate(in *inode[O, V]) *Iterator[O, V] {
	it := &Iterator[O, V]{t: t, depth: -1}
	it.push(t.gcasRead(in).node)

	return it
}

func (it *Iterator[O, V]) push(n node[O, V]) {
	switch n := n.(type) {
	case *branch[O, V]:
		it.depth++
		it.stack[it.depth] = frame[O, V]{children: n.children}
	case *tomb[O, V]:
		it.bucket, it.bucketPos = []*leaf[O, V]{n.leaf}, 0
	case *collision[O, V]:
		it.bucket, it.bucketPos = n.entries, 0
	default:
		panic(invalidState)
	}
}

// Next advances to the next entry.
func (it *Iterator[O, V]) Next() bool {
	for {
		if it.bucketPos < len(it.bucket) {
			it.current = it.bucket[it.bucketPos]
			it.bucketPos++

			return true
		}

		if it.depth < 0 {
			it.current = nil
			return false
		}

		f := &it.stack[it.depth]
		if f.pos >= len(f.children) {
			it.stack[it.depth] = frame[O, V]{}
			it.depth--

			continue
		}

		child := f.children[f.pos]
		f.pos++

		switch child := child.(type) {
		case *leaf[O, V]:
			it.current = child
			return true
		case *inode[O, V]:
			it.push(it.t.gcasRead(child).node)
		default:
			panic(invalidState)
		}
	}
}

// Key returns the key of the current entry.
func (it *Iterator[O, V]) Key() cell.Key[O] { return it.current.key }

// Value returns the value of the current entry.
func (it *Iterator[O, V]) Value() V { return it.current.value }

// All returns an iterator over a read-only snapshot of t.
func (t *Trie[O, V]) All() iter.Seq2[cell.Key[O], V] {
	return func(yield func(cell.Key[O], V) bool) {
		it := t.Iterator()
		for it.Next() {
			if !yield(it.Key(), it.Value()) {
				return
			}
		}
	}
}
