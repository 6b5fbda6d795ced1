package trie

import "github.com/hupe1980/celltrie/cell"

// Condition selects when Insert writes.
type Condition int

const (
	// Always binds the value unconditionally.
	Always Condition = iota
	// IfAbsent binds the value only if the key is unbound.
	IfAbsent
	// IfPresent replaces the value only if the key is bound.
	IfPresent
	// IfEqual replaces the value only if the key is bound to the expected
	// value.
	IfEqual
)

// Insert binds k to v when cond holds for the current binding of k. It
// returns the previous binding; for IfAbsent on a bound key that is the
// binding that was kept.
func (t *Trie[O, V]) Insert(k cell.Key[O], v V, cond Condition, expected V) (V, bool) {
	for {
		root := t.readRoot(false)
		if prev, ok, done := t.insert(root, &leaf[O, V]{key: k, value: v}, cond, expected, root.gen); done {
			return prev, ok
		}

		t.restart(OpInsert)
	}
}

func (t *Trie[O, V]) insert(in *inode[O, V], nl *leaf[O, V], cond Condition, expected V, startGen *generation) (V, bool, bool) {
	var (
		zero   V
		parent *inode[O, V]
	)

	for {
		main := t.gcasRead(in)

		switch n := main.node.(type) {
		case *branch[O, V]:
			s := n.slotOf(nl.key.Cell())
			if !n.present(s) {
				if cond == IfPresent || cond == IfEqual {
					return zero, false, true
				}

				rn := n
				if n.gen != in.gen {
					rn = n.renewed(in.gen, t)
				}

				return zero, false, t.gcas(in, main, rn.insertedAt(s, nl, in.gen))
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
				if child.key == nl.key {
					switch {
					case cond == IfAbsent:
						return child.value, true, true
					case cond == IfEqual && !t.equal(child.value, expected):
						return zero, false, true
					}

					if t.gcas(in, main, n.updatedAt(s.pos, nl, in.gen)) {
						return child.value, true, true
					}

					return zero, false, false
				}

				if cond == IfPresent || cond == IfEqual {
					return zero, false, true
				}

				rn := n
				if n.gen != in.gen {
					rn = n.renewed(in.gen, t)
				}

				sub := newInode[O, V](in.gen, dual(child, nl, n.level+1, in.gen))

				return zero, false, t.gcas(in, main, rn.updatedAt(s.pos, sub, in.gen))
			default:
				panic(invalidState)
			}
		case *tomb[O, V]:
			t.clean(parent)
			return zero, false, false
		case *collision[O, V]:
			old, found := n.lookup(nl.key)

			switch cond {
			case IfAbsent:
				if found {
					return old, true, true
				}
			case IfPresent:
				if !found {
					return zero, false, true
				}
			case IfEqual:
				if !found || !t.equal(old, expected) {
					return zero, false, true
				}
			}

			if t.gcas(in, main, n.inserted(nl)) {
				return old, found, true
			}

			return zero, false, false
		default:
			panic(invalidState)
		}
	}
}
