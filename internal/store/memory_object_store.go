package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryObject is one stored version of an object
type memoryObject struct {
	versionID  string
	body       []byte
	uploadedAt time.Time
}

// MemoryObjectStore keeps objects in process memory. It backs local
// development and tests, and mimics a versioned bucket: every Put appends
// a new version instead of replacing the previous one.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]memoryObject
}

// NewMemoryObjectStore creates an empty in-memory object store
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{
		objects: make(map[string][]memoryObject),
	}
}

// List returns every stored version whose key starts with prefix
func (s *MemoryObjectStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]ObjectInfo, 0)
	for key, versions := range s.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		for _, v := range versions {
			infos = append(infos, ObjectInfo{
				Key:        key,
				VersionID:  v.versionID,
				Size:       int64(len(v.body)),
				UploadedAt: v.uploadedAt,
			})
		}
	}
	return infos, nil
}

// Get fetches a version body, or the most recently stored version when
// versionID is empty
func (s *MemoryObjectStore) Get(ctx context.Context, key, versionID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.objects[key]
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	if versionID == "" {
		latest := versions[len(versions)-1]
		return append([]byte(nil), latest.body...), nil
	}
	for _, v := range versions {
		if v.versionID == versionID {
			return append([]byte(nil), v.body...), nil
		}
	}
	return nil, ErrNotFound
}

// Put appends a new version for key
func (s *MemoryObjectStore) Put(ctx context.Context, key string, body []byte, opts PutOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putVersion(key, body, time.Now())
	return nil
}

// PutVersion stores a version with a fixed upload time and returns its
// version id. Tests use it to shape version histories.
func (s *MemoryObjectStore) PutVersion(key string, body []byte, uploadedAt time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.putVersion(key, body, uploadedAt)
}

func (s *MemoryObjectStore) putVersion(key string, body []byte, uploadedAt time.Time) string {
	version := memoryObject{
		versionID:  uuid.NewString(),
		body:       append([]byte(nil), body...),
		uploadedAt: uploadedAt,
	}
	s.objects[key] = append(s.objects[key], version)
	return version.versionID
}

// Size returns the number of distinct keys held
func (s *MemoryObjectStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Ping always succeeds
func (s *MemoryObjectStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryObjectStore) Close() {}
