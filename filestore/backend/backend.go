// Package backend defines an optional remote mirror for FileStore blobs,
// grounded on the StorageDriver abstraction in distribution's
// storagedriver package: a small key/value object interface that a cloud
// object store can satisfy, used here to let a repository keep an
// off-machine copy of its content store for disaster recovery, independent
// of location sync.
package backend

import "io"

// Backend is a minimal content-addressed object store: blobs are opaque
// bytes keyed by their hash string ("alg:hex").
type Backend interface {
	// Put uploads the content read from r under key, overwriting any
	// existing object at that key.
	Put(key string, r io.Reader, size int64) error

	// Get opens the object stored at key for reading. The caller must
	// close the returned reader.
	Get(key string) (io.ReadCloser, error)

	// Exists reports whether an object is stored at key.
	Exists(key string) (bool, error)
}
