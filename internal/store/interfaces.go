// Package store persists tenant snapshots in durable object storage.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an object does not exist in the backend
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes one stored object version
type ObjectInfo struct {
	Key        string
	VersionID  string
	Size       int64
	UploadedAt time.Time
}

// PutOptions carries per-upload settings
type PutOptions struct {
	ContentType string
	PublicRead  bool
}

// ObjectStore interface for durable blob operations
type ObjectStore interface {
	// List returns every object version whose key starts with prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Get fetches one object body; an empty versionID means the current version
	Get(ctx context.Context, key, versionID string) ([]byte, error)
	// Put writes an object, replacing the current version under key
	Put(ctx context.Context, key string, body []byte, opts PutOptions) error

	// Health check
	Ping(ctx context.Context) error
	Close()
}
