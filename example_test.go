package celltrie_test

import (
	"fmt"

	"github.com/hupe1980/celltrie"
	"github.com/hupe1980/celltrie/cell"
)

func Example() {
	m := celltrie.New[string, int]()

	c := cell.MustCell(0x8928308280fffff)
	_, _, _ = m.Put(cell.KeyOf(c, "truck-7"), 42)

	v, ok := m.Get(cell.KeyOf(c, "truck-7"))
	fmt.Println(v, ok)
	// Output: 42 true
}

func ExampleMap_Subtree() {
	m := celltrie.New[string, int]()

	c := cell.MustCell(0x8928308280fffff)
	_, _, _ = m.Put(cell.KeyOf(c, "truck-7"), 42)
	_, _, _ = m.Put(cell.KeyOf(cell.MustCell(0x8928308280bffff), "truck-8"), 7)

	parent, _ := c.Parent(5)
	fmt.Println(parent, m.Subtree(parent).Size())
	fmt.Println(m.Subtree(c).Size())
	// Output:
	// 85283083fffffff 2
	// 1
}

func ExampleMap_Snapshot() {
	m := celltrie.New[string, string]()
	k := cell.KeyOf(cell.MustCell(0x8928308280fffff), "truck-7")
	_, _, _ = m.Put(k, "moving")

	snap := m.Snapshot()
	_, _, _ = m.Put(k, "parked")

	before, _ := snap.Get(k)
	after, _ := m.Get(k)
	fmt.Println(before, after)
	// Output: moving parked
}
