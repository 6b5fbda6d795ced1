// Package cell implements hierarchical 64-bit cell addresses and the owner
// keys stored in a celltrie map.
//
// A cell address packs a base cell (0-121) and up to fifteen three-bit
// digits, one per resolution. A cell at resolution r contains every cell
// whose address agrees with it on the base cell and the first r digits:
//
//	p, _ := cell.ParseCell("85283083fffffff")
//	c, _ := cell.ParseCell("8928308280fffff")
//	c.HasPrefix(p) // true
package cell
