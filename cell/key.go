package cell

import "fmt"

// Key is a cell address bound to an owner. Two keys are equal when both the
// address and the owner are equal; the trie branches on the address only.
type Key[O comparable] struct {
	cell  Cell
	owner O
}

// NewKey validates addr and binds it to owner.
func NewKey[O comparable](addr uint64, owner O) (Key[O], error) {
	c, err := NewCell(addr)
	if err != nil {
		return Key[O]{}, err
	}

	return Key[O]{cell: c, owner: owner}, nil
}

// KeyOf binds an already validated cell to owner.
func KeyOf[O comparable](c Cell, owner O) Key[O] {
	return Key[O]{cell: c, owner: owner}
}

// Cell returns the cell address of k.
func (k Key[O]) Cell() Cell { return k.cell }

// Address returns the raw 64-bit address of k.
func (k Key[O]) Address() uint64 { return uint64(k.cell) }

// Owner returns the owner of k.
func (k Key[O]) Owner() O { return k.owner }

// Resolution returns the resolution of k's cell.
func (k Key[O]) Resolution() int { return k.cell.Resolution() }

func (k Key[O]) String() string {
	return fmt.Sprintf("%s/%v", k.cell, k.owner)
}
