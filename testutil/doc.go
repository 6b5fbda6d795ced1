// Package testutil provides testing utilities for celltrie.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random valid cell addresses and for
// splitting workloads across goroutines.
//
// # Random Cells
//
//	rng := testutil.NewRNG(seed)
//	c := rng.Cell(9)                 // uniform base cell and digits
//	child := rng.CellIn(parent, 12)  // random descendant of parent
//	hot := rng.ZipfCells(1000, 9, 1.5)
//
// # Partitions
//
//	for _, part := range testutil.Partition(keys, goroutines) {
//	    go work(part)
//	}
package testutil
