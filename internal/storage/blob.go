package storage

import "io"

// BlobStore archives submitted documents so every evaluation stays auditable
// against the exact file the student uploaded.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns the stored key
	Get(key string) (io.ReadCloser, error)
}
