package trie

import "github.com/hupe1980/celltrie/cell"

// Subtree returns a read-only view of every entry whose cell lies inside p.
// A writable trie is snapshotted first.
func (t *Trie[O, V]) Subtree(p cell.Cell) *Trie[O, V] {
	ro := t.ReadOnlySnapshot()
	res := p.Resolution()
	in := ro.readRoot(false)

	for {
		switch n := ro.gcasRead(in).node.(type) {
		case *branch[O, V]:
			if n.level > res {
				// The view is already finer than p.
				return ro.hosted(p, ro.leaves(in))
			}

			s := n.slotOf(p)
			if !n.present(s) {
				return ro.empty()
			}

			switch child := n.children[s.pos].(type) {
			case *inode[O, V]:
				if n.level == res {
					return ro.derive(child, true)
				}

				in = child
			case *leaf[O, V]:
				return ro.hosted(p, []*leaf[O, V]{child})
			default:
				panic(invalidState)
			}
		case *tomb[O, V]:
			return ro.hosted(p, []*leaf[O, V]{n.leaf})
		case *collision[O, V]:
			return ro.hosted(p, n.entries)
		default:
			panic(invalidState)
		}
	}
}

// hosted builds a read-only view holding the leaves that lie inside p. A
// single leaf gets a one-branch trie at the level below p; anything else is
// replayed into a fresh trie.
func (t *Trie[O, V]) hosted(p cell.Cell, leaves []*leaf[O, V]) *Trie[O, V] {
	matched := leaves[:0:0]
	for _, l := range leaves {
		if l.key.Cell().HasPrefix(p) {
			matched = append(matched, l)
		}
	}

	res := p.Resolution()

	switch {
	case len(matched) == 0:
		return t.empty()
	case len(matched) == 1 && res < cell.MaxResolution:
		gen := &generation{}
		b := newBranch[O, V](res+1, gen)
		b = b.insertedAt(b.slotOf(matched[0].key.Cell()), matched[0], gen)

		return t.derive(newInode[O, V](gen, node[O, V](b)), true)
	}

	fresh := t.derive(newRoot[O, V](), false)
	for _, l := range matched {
		var zero V
		fresh.Insert(l.key, l.value, Always, zero)
	}

	return fresh.ReadOnlySnapshot()
}

func (t *Trie[O, V]) empty() *Trie[O, V] {
	return t.derive(newRoot[O, V](), true)
}

// leaves collects every leaf below in.
func (t *Trie[O, V]) leaves(in *inode[O, V]) []*leaf[O, V] {
	var out []*leaf[O, V]

	it := t.iterate(in)
	for it.Next() {
		out = append(out, it.current)
	}

	return out
}
