// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind the Client interface, which the run archive
// uses to write and read JSON snapshots of committed runs. Both AWS S3 and
// self-hosted MinIO work.
//
// # Client Interface
//
// The Client interface makes storage interactions easy to mock in unit tests
// (see core/storage/mocks).
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	err = storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
package storage
