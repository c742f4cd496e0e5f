// Package ratelimit implements a per-source sliding window rate limiter.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// SourceLimiter tracks request timestamps per source over a sliding
// window. State lives in process memory only and resets on restart.
type SourceLimiter struct {
	mu       sync.Mutex
	windows  map[string][]time.Time
	limit    int
	window   time.Duration
	clock    clock.Clock
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSourceLimiter creates a limiter admitting at most limit requests per
// source within any window-sized interval. A nil clk falls back to the
// wall clock.
func NewSourceLimiter(limit int, window time.Duration, clk clock.Clock) *SourceLimiter {
	if clk == nil {
		clk = clock.New()
	}

	limiter := &SourceLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		clock:   clk,
		stop:    make(chan struct{}),
	}

	// Start cleanup goroutine. The ticker is created here, before the
	// goroutine runs, so callers driving a mock clock see it registered
	// as soon as the constructor returns.
	ticker := clk.Ticker(window)
	go limiter.cleanup(ticker)

	return limiter
}

// Allow records a request from source and reports whether it fits the
// window. Timestamps older than the window are pruned on every call, so a
// denied source becomes admissible again as soon as its oldest hit ages
// out.
func (l *SourceLimiter) Allow(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	cutoff := now.Add(-l.window)

	kept := l.windows[source][:0]
	for _, ts := range l.windows[source] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.windows[source] = kept
		return false
	}

	l.windows[source] = append(kept, now)
	return true
}

// Sources returns the number of sources currently tracked
func (l *SourceLimiter) Sources() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (l *SourceLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// cleanup periodically drops sources whose every timestamp has aged out
func (l *SourceLimiter) cleanup(ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			// Re-check stop so a tick racing with Stop never runs a
			// final cleanup pass.
			select {
			case <-l.stop:
				return
			default:
			}
		}

		l.mu.Lock()
		cutoff := l.clock.Now().Add(-l.window)
		for source, timestamps := range l.windows {
			live := false
			for _, ts := range timestamps {
				if ts.After(cutoff) {
					live = true
					break
				}
			}
			if !live {
				delete(l.windows, source)
			}
		}
		l.mu.Unlock()
	}
}

// SourceFromRequest identifies the caller for rate limiting purposes: the
// first hop of X-Forwarded-For when present, otherwise the host part of
// the connection's remote address.
func SourceFromRequest(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := fwd
		if i := strings.Index(fwd, ","); i >= 0 {
			first = fwd[:i]
		}
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
