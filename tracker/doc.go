// Package tracker keeps the current cell of a set of entities in a
// celltrie.Map and answers neighbourhood queries against it.
//
// Geometry is supplied by a Grid; the tracker only turns the candidate cells
// of a ring or disk into Subtree lookups on one read-only snapshot, so every
// query sees a single consistent state of the map.
//
//	t := tracker.New[string, Vehicle](grid)
//	t.Start(c, "vehicle-17", v)
//	near, err := t.WithinDisk(ctx, c, 7, 2)
package tracker
