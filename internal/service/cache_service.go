// Package service implements the tenant dataset lifecycle: lazy
// bootstrap, in-memory serving, and debounced persistence.
package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/devrev/docstore/internal/document"
	"github.com/devrev/docstore/internal/metrics"
	"github.com/devrev/docstore/internal/seed"
	"github.com/devrev/docstore/internal/store"
)

// CacheService owns the per-tenant document stores. A tenant's store is
// hydrated on first touch and then lives for the rest of the process;
// nothing evicts it.
type CacheService struct {
	snapshots *store.SnapshotStore
	seeds     *seed.Loader
	readOnly  bool
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu     sync.RWMutex
	stores map[string]*document.Store
	group  singleflight.Group
}

// NewCacheService creates the tenant cache. In read-only mode snapshots
// may be nil; durable storage is never touched.
func NewCacheService(snapshots *store.SnapshotStore, seeds *seed.Loader, readOnly bool, m *metrics.Metrics, logger *zap.Logger) *CacheService {
	return &CacheService{
		snapshots: snapshots,
		seeds:     seeds,
		readOnly:  readOnly,
		metrics:   m,
		logger:    logger,
		stores:    make(map[string]*document.Store),
	}
}

// GetOrCreate returns the tenant's store, bootstrapping it on first use.
// Concurrent first requests for the same tenant share a single bootstrap.
func (s *CacheService) GetOrCreate(ctx context.Context, tenantID string) (*document.Store, error) {
	s.mu.RLock()
	st, ok := s.stores[tenantID]
	s.mu.RUnlock()
	if ok {
		return st, nil
	}

	v, err, _ := s.group.Do(tenantID, func() (interface{}, error) {
		return s.bootstrap(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*document.Store), nil
}

func (s *CacheService) bootstrap(ctx context.Context, tenantID string) (*document.Store, error) {
	// A racing caller may have completed the bootstrap before this flight
	// started.
	s.mu.RLock()
	st, ok := s.stores[tenantID]
	s.mu.RUnlock()
	if ok {
		return st, nil
	}

	if !s.readOnly {
		if ds, found := s.snapshots.Load(ctx, tenantID); found {
			s.logger.Info("hydrated tenant from durable snapshot",
				zap.String("tenant_id", tenantID),
				zap.Int("collections", len(ds)),
			)
			s.metrics.RecordBootstrap("durable")
			return s.insert(tenantID, ds), nil
		}
	}

	ds, err := s.seeds.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to seed tenant %s: %w", tenantID, err)
	}

	if !s.readOnly {
		// Persist the initial copy so a tenant that never writes still has
		// a durable snapshot. A failed save leaves the tenant serving from
		// memory.
		if err := s.snapshots.Save(ctx, tenantID, ds); err != nil {
			s.logger.Warn("initial snapshot save failed, serving tenant from memory",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("seeded new tenant", zap.String("tenant_id", tenantID))
	s.metrics.RecordBootstrap("seed")
	return s.insert(tenantID, ds), nil
}

func (s *CacheService) insert(tenantID string, ds document.Dataset) *document.Store {
	st := document.NewStore(ds)

	s.mu.Lock()
	s.stores[tenantID] = st
	size := len(s.stores)
	s.mu.Unlock()

	s.metrics.SetCachedTenants(size)
	return st
}

// Size returns the number of cached tenants
func (s *CacheService) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stores)
}
