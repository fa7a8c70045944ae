// Package ratelimit implements the per-client-IP query cap (C12 hardening):
// a flat token-bucket QPS limit, not the fuller RFC-RRL response-category
// model (see SPEC_FULL.md §4.12 and DESIGN.md for why the richer model was
// not used here).
package ratelimit

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahealthydns/ahealthydns/internal/timing"
)

// entry pairs a client's token bucket with the last time it was consulted,
// so idle clients can be evicted individually instead of resetting every
// tracked client at once.
type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter enforces a per-client-IP queries-per-second cap using a token
// bucket per IP, with an idle sweep to bound memory use under sustained
// churn from many distinct clients.
type Limiter struct {
	mu              sync.Mutex
	clients         map[string]*entry
	queriesPerSec   rate.Limit
	burstSize       int
	cleanupInterval time.Duration
	lastSweep       time.Time
}

// Config holds rate limiter configuration.
type Config struct {
	QueriesPerSecond float64
	BurstSize        int
	CleanupInterval  time.Duration
}

// DefaultConfig derives a QPS cap from the zone's own health-check cadence:
// a client legitimately re-resolving a record has no reason to query more
// often than once per TTL, so the cap is set generously above that (a small
// multiple of queries-per-TTL-A-second) rather than an arbitrary constant.
// Idle clients are swept out after ten cache lifetimes.
func DefaultConfig(t timing.Timings) Config {
	perSecond := 10.0 / t.TTLA.Seconds()
	if perSecond < 1 {
		perSecond = 1
	}
	return Config{
		QueriesPerSecond: perSecond,
		BurstSize:        int(perSecond) * 4,
		CleanupInterval:  10 * t.TTLA,
	}
}

// New creates a Limiter from cfg.
func New(cfg Config) *Limiter {
	return &Limiter{
		clients:         make(map[string]*entry),
		queriesPerSec:   rate.Limit(cfg.QueriesPerSecond),
		burstSize:       cfg.BurstSize,
		cleanupInterval: cfg.CleanupInterval,
		lastSweep:       time.Now(),
	}
}

// Allow reports whether a query from ip should proceed.
func (l *Limiter) Allow(ip net.IP) bool {
	ipStr := ip.String()
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.cleanupInterval {
		l.sweepIdle(now)
	}

	e, ok := l.clients[ipStr]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.queriesPerSec, l.burstSize)}
		l.clients[ipStr] = e
	}
	e.lastSeen = now

	return e.limiter.Allow()
}

// sweepIdle drops every client not seen within the last cleanup interval,
// called with mu held.
func (l *Limiter) sweepIdle(now time.Time) {
	for ip, e := range l.clients {
		if now.Sub(e.lastSeen) > l.cleanupInterval {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

// TrackedClients reports how many distinct client IPs currently have a
// limiter allocated, for metrics.
func (l *Limiter) TrackedClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
