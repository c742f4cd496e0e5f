package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/devrev/docstore/internal/document"
)

// DocumentService dispatches validated requests onto the tenant's
// in-memory store and schedules a flush after every successful mutation.
type DocumentService struct {
	cache   *CacheService
	flusher *FlushService
	logger  *zap.Logger
}

// NewDocumentService creates the request-facing document service.
func NewDocumentService(cache *CacheService, flusher *FlushService, logger *zap.Logger) *DocumentService {
	return &DocumentService{
		cache:   cache,
		flusher: flusher,
		logger:  logger,
	}
}

// Dataset returns a deep copy of the tenant's full dataset.
func (s *DocumentService) Dataset(ctx context.Context, tenantID string) (document.Dataset, error) {
	st, err := s.cache.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return st.Snapshot(), nil
}

// ListRecords returns all records of one collection.
func (s *DocumentService) ListRecords(ctx context.Context, tenantID, collection string) ([]document.Record, error) {
	st, err := s.cache.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return st.List(collection)
}

// GetRecord returns a single record by id.
func (s *DocumentService) GetRecord(ctx context.Context, tenantID, collection, id string) (document.Record, error) {
	st, err := s.cache.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return st.Get(collection, id)
}

// CreateRecord appends a record and schedules a flush.
func (s *DocumentService) CreateRecord(ctx context.Context, tenantID, collection string, rec document.Record) (document.Record, error) {
	st, err := s.cache.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	created, err := st.Create(collection, rec)
	if err != nil {
		return nil, err
	}
	s.flusher.Schedule(tenantID, st.Snapshot)
	return created, nil
}

// ReplaceRecord replaces a record wholesale and schedules a flush.
func (s *DocumentService) ReplaceRecord(ctx context.Context, tenantID, collection, id string, rec document.Record) (document.Record, error) {
	st, err := s.cache.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	updated, err := st.Replace(collection, id, rec)
	if err != nil {
		return nil, err
	}
	s.flusher.Schedule(tenantID, st.Snapshot)
	return updated, nil
}

// PatchRecord merges fields into a record and schedules a flush.
func (s *DocumentService) PatchRecord(ctx context.Context, tenantID, collection, id string, fields document.Record) (document.Record, error) {
	st, err := s.cache.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	updated, err := st.Patch(collection, id, fields)
	if err != nil {
		return nil, err
	}
	s.flusher.Schedule(tenantID, st.Snapshot)
	return updated, nil
}

// DeleteRecord removes a record and schedules a flush.
func (s *DocumentService) DeleteRecord(ctx context.Context, tenantID, collection, id string) error {
	st, err := s.cache.GetOrCreate(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := st.Delete(collection, id); err != nil {
		return err
	}
	s.flusher.Schedule(tenantID, st.Snapshot)
	return nil
}
