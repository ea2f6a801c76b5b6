// Package storage uploads binary blobs (avatars, song thumbnails) to
// an external store and hands back a public URL.
package storage

import "context"

// BlobStore stores an uploaded file and returns its public URL.
// Uploads are not transactional with database writes: when a later DB
// write fails the blob stays in the store and the DB error is
// returned.
type BlobStore interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (string, error)
}
