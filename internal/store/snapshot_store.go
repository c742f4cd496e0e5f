package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/devrev/docstore/internal/document"
	"github.com/devrev/docstore/internal/metrics"
)

// snapshotContentType is the content type every snapshot is uploaded with
const snapshotContentType = "application/json"

// SnapshotStore persists tenant datasets as JSON objects. Keys follow
// <namespace>/<tenantID>.json.
type SnapshotStore struct {
	objects   ObjectStore
	namespace string
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewSnapshotStore creates a snapshot store on top of an object store
func NewSnapshotStore(objects ObjectStore, namespace string, m *metrics.Metrics, logger *zap.Logger) *SnapshotStore {
	return &SnapshotStore{
		objects:   objects,
		namespace: namespace,
		metrics:   m,
		logger:    logger,
	}
}

// Key returns the canonical object key for a tenant's snapshot
func (s *SnapshotStore) Key(tenantID string) string {
	return s.namespace + "/" + tenantID + ".json"
}

// Load fetches the newest stored snapshot for a tenant. It returns false
// both when no snapshot exists and when the backend or the payload is
// broken; failures are logged, never surfaced to the request path.
func (s *SnapshotStore) Load(ctx context.Context, tenantID string) (document.Dataset, bool) {
	key := s.Key(tenantID)

	infos, err := s.objects.List(ctx, key)
	if err != nil {
		s.logger.Warn("snapshot listing failed, treating tenant as new",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		s.metrics.RecordSnapshotLoad("error")
		return nil, false
	}

	// The listing is a prefix match; keep only the canonical key and pick
	// the newest upload among its versions.
	var latest *ObjectInfo
	for i := range infos {
		if infos[i].Key != key {
			continue
		}
		if latest == nil || infos[i].UploadedAt.After(latest.UploadedAt) {
			latest = &infos[i]
		}
	}
	if latest == nil {
		s.metrics.RecordSnapshotLoad("miss")
		return nil, false
	}

	body, err := s.objects.Get(ctx, latest.Key, latest.VersionID)
	if err != nil {
		s.logger.Warn("snapshot fetch failed, treating tenant as new",
			zap.String("tenant_id", tenantID),
			zap.String("version_id", latest.VersionID),
			zap.Error(err),
		)
		s.metrics.RecordSnapshotLoad("error")
		return nil, false
	}

	ds, err := document.DecodeJSON(body)
	if err != nil {
		s.logger.Warn("snapshot is not a valid dataset, treating tenant as new",
			zap.String("tenant_id", tenantID),
			zap.String("version_id", latest.VersionID),
			zap.Error(err),
		)
		s.metrics.RecordSnapshotLoad("error")
		return nil, false
	}

	s.metrics.RecordSnapshotLoad("hit")
	return ds, true
}

// Save marshals the dataset and overwrites the tenant's snapshot object.
// Snapshots are uploaded world-readable with a JSON content type.
func (s *SnapshotStore) Save(ctx context.Context, tenantID string, ds document.Dataset) error {
	body, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		s.metrics.RecordSnapshotSave("error")
		return fmt.Errorf("failed to encode snapshot for tenant %s: %w", tenantID, err)
	}

	opts := PutOptions{
		ContentType: snapshotContentType,
		PublicRead:  true,
	}
	if err := s.objects.Put(ctx, s.Key(tenantID), body, opts); err != nil {
		s.metrics.RecordSnapshotSave("error")
		return fmt.Errorf("failed to store snapshot for tenant %s: %w", tenantID, err)
	}

	s.metrics.RecordSnapshotSave("ok")
	s.logger.Debug("stored tenant snapshot",
		zap.String("tenant_id", tenantID),
		zap.Int("bytes", len(body)),
	)
	return nil
}
