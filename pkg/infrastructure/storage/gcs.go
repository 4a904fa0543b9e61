package storage

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
)

// ErrNotFound is returned by BlobStore.Read for a missing object.
var ErrNotFound = errors.New("object not found")

// BlobStore reads and writes whole objects.
type BlobStore interface {
	Write(ctx context.Context, bucket, object string, data []byte) error
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}

// StorageAdapter provides blob storage operations using Google Cloud Storage
type StorageAdapter struct {
	Client *storage.Client
}

func (a *StorageAdapter) Write(ctx context.Context, bucketName, objectName string, data []byte) error {
	wc := a.Client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = "application/json"
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}

func (a *StorageAdapter) Read(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	rc, err := a.Client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
