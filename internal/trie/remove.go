package trie

import "github.com/hupe1980/celltrie/cell"

// Remove unbinds k and returns the value it was bound to.
func (t *Trie[O, V]) Remove(k cell.Key[O]) (V, bool) {
	var zero V
	return t.remove(k, false, zero)
}

// RemoveIf unbinds k only if it is bound to expected.
func (t *Trie[O, V]) RemoveIf(k cell.Key[O], expected V) bool {
	_, ok := t.remove(k, true, expected)
	return ok
}

func (t *Trie[O, V]) remove(k cell.Key[O], matchValue bool, expected V) (V, bool) {
	for {
		root := t.readRoot(false)
		if v, ok, done := t.iremove(root, k, matchValue, expected, root.gen); done {
			return v, ok
		}

		t.restart(OpRemove)
	}
}

func (t *Trie[O, V]) iremove(in *inode[O, V], k cell.Key[O], matchValue bool, expected V, startGen *generation) (V, bool, bool) {
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
				if child.gen == startGen {
					parent, in = in, child
					continue
				}

				if t.gcas(in, main, n.renewed(startGen, t)) {
					continue
				}

				return zero, false, false
			case *leaf[O, V]:
				if child.key != k || (matchValue && !t.equal(child.value, expected)) {
					return zero, false, true
				}

				if !t.gcas(in, main, toContracted(n.removedAt(s, in.gen))) {
					return zero, false, false
				}

				t.compactAbove(parent, in, k, startGen)

				return child.value, true, true
			default:
				panic(invalidState)
			}
		case *tomb[O, V]:
			t.clean(parent)
			return zero, false, false
		case *collision[O, V]:
			old, found := n.lookup(k)
			if !found || (matchValue && !t.equal(old, expected)) {
				return zero, false, true
			}

			if !t.gcas(in, main, n.removed(k)) {
				return zero, false, false
			}

			t.compactAbove(parent, in, k, startGen)

			return old, true, true
		default:
			panic(invalidState)
		}
	}
}

// compactAbove splices in out of parent when a removal left it holding a
// tomb.
func (t *Trie[O, V]) compactAbove(parent, in *inode[O, V], k cell.Key[O], startGen *generation) {
	if parent == nil {
		return
	}

	if _, ok := t.gcasRead(in).node.(*tomb[O, V]); ok {
		t.cleanParent(parent, in, k, startGen)
	}
}
