// Package celltrie provides a lock-free concurrent map keyed by hierarchical
// cell addresses.
//
// Keys pair a 64-bit cell address (see package cell) with an owner. The map
// is a concurrent hash trie: the root branches by base cell and every level
// below by one digit of the address, so all entries inside a cell live in
// one subtree and can be extracted in time proportional to the path length.
//
// # Quick Start
//
//	m := celltrie.New[string, Vehicle]()
//
//	c := cell.MustCell(0x8928308280fffff)
//	_, _, _ = m.Put(cell.KeyOf(c, "truck-7"), Vehicle{Speed: 42})
//
//	v, ok := m.Get(cell.KeyOf(c, "truck-7"))
//
// # Subtree Queries
//
// Subtree returns a read-only view of every entry inside a coarser cell:
//
//	parent, _ := c.Parent(5)
//	for k, v := range m.Subtree(parent).All() {
//	    fmt.Println(k, v)
//	}
//
// # Snapshots
//
// Snapshot and ReadOnlySnapshot run in constant time. A writable snapshot
// is fully independent of its origin; structure is shared and copied lazily
// on the first write to either side. Size and iteration always operate on
// a read-only snapshot and are therefore exact for one instant.
//
// # Persistence
//
// WriteTo writes a snapshot in a compact binary stream and Decode reads one
// back. Owners and values are encoded with the configured codec. Package
// checkpoint builds compressed, checksummed checkpoints on top of it that
// live in any blobstore.BlobStore.
//
// # Tracking
//
// Package tracker keeps one location per moving entity on top of a Map and
// answers ring and disk neighbourhood queries over a single snapshot.
//
// # Observability
//
// Configure WithLogger for structured logs of structural events and
// WithMetricsCollector for per-operation metrics. Package metrics/prom
// exports them to Prometheus.
package celltrie
