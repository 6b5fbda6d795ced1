package trie

import (
	"math/bits"
	"math/rand/v2"
	"sync/atomic"

	"github.com/hupe1980/celltrie/cell"
)

// generation identifies one epoch of lazy copy-on-write. Only its address
// matters; the field keeps distinct allocations from sharing an address.
type generation struct{ _ bool }

// node is the closed set of trie nodes: *branch, *leaf, *tomb and
// *collision. Branch children are *inode or *leaf; an inode's committed
// node is *branch, *tomb or *collision.
type node[O comparable, V any] interface {
	isNode()
}

type leaf[O comparable, V any] struct {
	key   cell.Key[O]
	value V
}

// tomb is a leaf that is the only remaining child of its branch. The parent
// resurrects it into a plain leaf when it compacts.
type tomb[O comparable, V any] struct {
	leaf *leaf[O, V]
}

// collision holds keys whose digits ran out before they could be told apart.
// It is copied on every write.
type collision[O comparable, V any] struct {
	entries []*leaf[O, V]
}

type branch[O comparable, V any] struct {
	lo, hi   uint64
	children []node[O, V]
	gen      *generation
	level    int

	// size is the memoised entry count plus one; zero means unknown.
	size atomic.Int64
}

func (*leaf[O, V]) isNode()      {}
func (*tomb[O, V]) isNode()      {}
func (*collision[O, V]) isNode() {}
func (*branch[O, V]) isNode()    {}
func (*inode[O, V]) isNode()     {}

const invalidState = "celltrie: trie is in an invalid state"

// slot locates one child position in a branch.
type slot struct {
	flag uint64
	pos  int
	high bool
}

func newBranch[O comparable, V any](level int, gen *generation) *branch[O, V] {
	return &branch[O, V]{gen: gen, level: level}
}

// slotOf returns the bitmap bit and dense array position for c. Level 0
// spreads the 122 base cells over both bitmaps; deeper levels use lo only.
func (b *branch[O, V]) slotOf(c cell.Cell) slot {
	idx := c.Index(b.level)
	if idx >= 64 {
		flag := uint64(1) << (idx - 64)
		return slot{
			flag: flag,
			pos:  bits.OnesCount64(b.lo) + bits.OnesCount64(b.hi&(flag-1)),
			high: true,
		}
	}

	flag := uint64(1) << idx

	return slot{flag: flag, pos: bits.OnesCount64(b.lo & (flag - 1))}
}

func (b *branch[O, V]) present(s slot) bool {
	if s.high {
		return b.hi&s.flag != 0
	}

	return b.lo&s.flag != 0
}

func (b *branch[O, V]) insertedAt(s slot, child node[O, V], gen *generation) *branch[O, V] {
	children := make([]node[O, V], len(b.children)+1)
	copy(children, b.children[:s.pos])
	children[s.pos] = child
	copy(children[s.pos+1:], b.children[s.pos:])

	nb := &branch[O, V]{lo: b.lo, hi: b.hi, children: children, gen: gen, level: b.level}
	if s.high {
		nb.hi |= s.flag
	} else {
		nb.lo |= s.flag
	}

	return nb
}

func (b *branch[O, V]) updatedAt(pos int, child node[O, V], gen *generation) *branch[O, V] {
	children := make([]node[O, V], len(b.children))
	copy(children, b.children)
	children[pos] = child

	return &branch[O, V]{lo: b.lo, hi: b.hi, children: children, gen: gen, level: b.level}
}

func (b *branch[O, V]) removedAt(s slot, gen *generation) *branch[O, V] {
	children := make([]node[O, V], len(b.children)-1)
	copy(children, b.children[:s.pos])
	copy(children[s.pos:], b.children[s.pos+1:])

	nb := &branch[O, V]{lo: b.lo, hi: b.hi, children: children, gen: gen, level: b.level}
	if s.high {
		nb.hi &^= s.flag
	} else {
		nb.lo &^= s.flag
	}

	return nb
}

// renewed copies b into gen, moving every child inode into gen as well.
func (b *branch[O, V]) renewed(gen *generation, t *Trie[O, V]) *branch[O, V] {
	children := make([]node[O, V], len(b.children))
	for i, child := range b.children {
		switch child := child.(type) {
		case *inode[O, V]:
			children[i] = child.copyToGen(gen, t)
		case *leaf[O, V]:
			children[i] = child
		default:
			panic(invalidState)
		}
	}

	return &branch[O, V]{lo: b.lo, hi: b.hi, children: children, gen: gen, level: b.level}
}

// cachedSize counts the entries below b once. Racing goroutines may compute
// it more than once; the result is the same.
func (b *branch[O, V]) cachedSize(t *Trie[O, V]) int {
	if s := b.size.Load(); s > 0 {
		return int(s - 1)
	}

	n := b.computeSize(t)
	b.size.CompareAndSwap(0, int64(n)+1)

	return n
}

func (b *branch[O, V]) computeSize(t *Trie[O, V]) int {
	n := len(b.children)
	if n == 0 {
		return 0
	}

	// Start at a random child so concurrent counters spread over the tree.
	offset := rand.IntN(n)
	size := 0

	for i := range n {
		switch child := b.children[(offset+i)%n].(type) {
		case *leaf[O, V]:
			size++
		case *inode[O, V]:
			size += t.cachedSize(child)
		default:
			panic(invalidState)
		}
	}

	return size
}

// toContracted turns a non-root branch with a single leaf into a tomb.
func toContracted[O comparable, V any](b *branch[O, V]) node[O, V] {
	if b.level > 0 && len(b.children) == 1 {
		if l, ok := b.children[0].(*leaf[O, V]); ok {
			return &tomb[O, V]{leaf: l}
		}
	}

	return b
}

// toCompressed resurrects tombed children of b into leaves and contracts the
// result.
func toCompressed[O comparable, V any](b *branch[O, V], gen *generation, t *Trie[O, V]) node[O, V] {
	children := make([]node[O, V], len(b.children))
	for i, child := range b.children {
		switch child := child.(type) {
		case *inode[O, V]:
			children[i] = resurrect(child, t)
		case *leaf[O, V]:
			children[i] = child
		default:
			panic(invalidState)
		}
	}

	return toContracted(&branch[O, V]{lo: b.lo, hi: b.hi, children: children, gen: gen, level: b.level})
}

func resurrect[O comparable, V any](in *inode[O, V], t *Trie[O, V]) node[O, V] {
	if tn, ok := t.gcasRead(in).node.(*tomb[O, V]); ok {
		return tn.leaf
	}

	return in
}

// dual builds the subtree holding x and y below a branch at level-1. Keys
// that still agree once either runs out of digits share a collision.
func dual[O comparable, V any](x, y *leaf[O, V], level int, gen *generation) node[O, V] {
	if level > min(x.key.Resolution(), y.key.Resolution()) {
		return &collision[O, V]{entries: []*leaf[O, V]{x, y}}
	}

	b := newBranch[O, V](level, gen)
	xs, ys := b.slotOf(x.key.Cell()), b.slotOf(y.key.Cell())

	if xs.flag == ys.flag {
		sub := newInode[O, V](gen, dual(x, y, level+1, gen))
		return b.insertedAt(xs, sub, gen)
	}

	b = b.insertedAt(xs, x, gen)

	return b.insertedAt(b.slotOf(y.key.Cell()), y, gen)
}

func (c *collision[O, V]) lookup(k cell.Key[O]) (V, bool) {
	for _, l := range c.entries {
		if l.key == k {
			return l.value, true
		}
	}

	var zero V

	return zero, false
}

// inserted replaces the entry for l.key or appends l.
func (c *collision[O, V]) inserted(l *leaf[O, V]) *collision[O, V] {
	entries := make([]*leaf[O, V], 0, len(c.entries)+1)

	replaced := false
	for _, e := range c.entries {
		if e.key == l.key {
			entries = append(entries, l)
			replaced = true

			continue
		}

		entries = append(entries, e)
	}

	if !replaced {
		entries = append(entries, l)
	}

	return &collision[O, V]{entries: entries}
}

// removed drops k. A single survivor becomes a tomb.
func (c *collision[O, V]) removed(k cell.Key[O]) node[O, V] {
	entries := make([]*leaf[O, V], 0, len(c.entries))
	for _, e := range c.entries {
		if e.key != k {
			entries = append(entries, e)
		}
	}

	if len(entries) == 1 {
		return &tomb[O, V]{leaf: entries[0]}
	}

	return &collision[O, V]{entries: entries}
}
