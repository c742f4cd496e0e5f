package service

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/devrev/docstore/internal/document"
	"github.com/devrev/docstore/internal/metrics"
	"github.com/devrev/docstore/internal/store"
)

// DefaultFlushDelay is the quiet period before a mutated tenant is
// persisted.
const DefaultFlushDelay = 1000 * time.Millisecond

// SnapshotFunc returns a point-in-time copy of a tenant's dataset. The
// flush service calls it when the timer fires, not when the flush is
// scheduled, so the freshest state is what gets persisted.
type SnapshotFunc func() document.Dataset

type pendingFlush struct {
	timer    *clock.Timer
	snapshot SnapshotFunc
}

// FlushService persists tenant datasets after a quiet period. Every
// mutation rearms the tenant's timer, so only the last write of a burst
// triggers an upload.
type FlushService struct {
	snapshots *store.SnapshotStore
	delay     time.Duration
	clock     clock.Clock
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu      sync.Mutex
	pending map[string]*pendingFlush
}

// NewFlushService creates the debounced flusher. A non-positive delay
// falls back to DefaultFlushDelay, a nil clk to the wall clock.
func NewFlushService(snapshots *store.SnapshotStore, delay time.Duration, clk clock.Clock, m *metrics.Metrics, logger *zap.Logger) *FlushService {
	if delay <= 0 {
		delay = DefaultFlushDelay
	}
	if clk == nil {
		clk = clock.New()
	}

	return &FlushService{
		snapshots: snapshots,
		delay:     delay,
		clock:     clk,
		metrics:   m,
		logger:    logger,
		pending:   make(map[string]*pendingFlush),
	}
}

// Schedule arms the tenant's flush timer. An already pending flush is
// cancelled first, so the quiet period restarts from the latest mutation.
func (s *FlushService) Schedule(tenantID string, snapshot SnapshotFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.pending[tenantID]; ok {
		prev.timer.Stop()
	}

	p := &pendingFlush{snapshot: snapshot}
	p.timer = s.clock.AfterFunc(s.delay, func() {
		s.flush(tenantID, p)
	})
	s.pending[tenantID] = p
	s.metrics.SetPendingFlushes(len(s.pending))
}

// flush runs when a tenant's timer fires. The pending entry is removed
// only if it still belongs to this firing: a Schedule that raced with the
// save keeps its newer entry.
func (s *FlushService) flush(tenantID string, p *pendingFlush) {
	if err := s.snapshots.Save(context.Background(), tenantID, p.snapshot()); err != nil {
		s.logger.Error("debounced flush failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	} else {
		s.logger.Debug("flushed tenant snapshot", zap.String("tenant_id", tenantID))
	}

	s.mu.Lock()
	if cur, ok := s.pending[tenantID]; ok && cur == p {
		delete(s.pending, tenantID)
	}
	s.metrics.SetPendingFlushes(len(s.pending))
	s.mu.Unlock()
}

// Pending returns the number of tenants with a scheduled flush
func (s *FlushService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// FlushAll stops every pending timer and saves the affected tenants
// concurrently. Failures are logged; shutdown proceeds regardless.
func (s *FlushService) FlushAll(ctx context.Context) {
	s.mu.Lock()
	drained := s.pending
	s.pending = make(map[string]*pendingFlush)
	s.mu.Unlock()
	s.metrics.SetPendingFlushes(0)

	for _, p := range drained {
		p.timer.Stop()
	}
	if len(drained) == 0 {
		return
	}

	s.logger.Info("flushing pending tenants before shutdown", zap.Int("tenants", len(drained)))

	g, gctx := errgroup.WithContext(ctx)
	for tenantID, p := range drained {
		tenantID, p := tenantID, p
		g.Go(func() error {
			if err := s.snapshots.Save(gctx, tenantID, p.snapshot()); err != nil {
				s.logger.Error("final flush failed",
					zap.String("tenant_id", tenantID),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}
