// Package s3 provides an S3 implementation of the blobstore.BlobStore
// interface and a DynamoDB-backed checkpoint pointer.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("maps/fleet/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	ptr := s3.NewDDBPointerStore(dynamodb.NewFromConfig(cfg), "celltrie-checkpoints", "s3://my-bucket/maps/fleet/")
//	mgr := checkpoint.NewManager(store, checkpoint.WithPointerStore(ptr))
//
// # Features
//
//   - Range reads for streaming checkpoint restores
//   - Multipart uploads with CRC32C validation
//   - Automatic pagination for listing
//   - Conditional pointer updates for concurrent writers
package s3
