// Package checkpoint stores celltrie maps as compressed, checksummed frames in
// a blobstore.BlobStore.
//
// A checkpoint is written under a fresh time-ordered name
// ("checkpoint-<uuid>.ctrie") and becomes current once the PointerStore is
// advanced to it. Older checkpoints stay readable until pruned.
//
// Usage:
//
//	mgr := checkpoint.NewManager(store, checkpoint.WithCompression(checkpoint.CompressionZstd))
//
//	name, err := checkpoint.Save(ctx, mgr, m)
//	...
//	restored, err := checkpoint.Load[string, int](ctx, mgr)
//
// Reads and writes can be throttled with WithRateLimit. The default pointer
// store keeps the current name in a blob called LATEST; blobstore/s3 provides
// a DynamoDB-backed implementation with conditional writes.
package checkpoint
