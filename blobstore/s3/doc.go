// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("allocators/orders/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	alloc, err := idgo.Open(ctx, "", 1_000_000, idgo.WithBlobStore(store))
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Multipart uploads for large snapshots
//   - CRC32C checksums on every write
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//
// For multi-writer deployments, DDBCommitStore layers DynamoDB conditional
// writes over the CURRENT pointer so concurrent flushes cannot clobber each
// other.
package s3
