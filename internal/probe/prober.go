// Package probe answers "is the backend reachable right now?" with a
// short-lived cached snapshot so bursts of sends don't hammer /health.
package probe

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthFunc performs one health probe with the given timeout.
type HealthFunc func(ctx context.Context, timeout time.Duration) error

const snapshotTTL = 30 * time.Second

// Escalating per-attempt timeouts: a quick first try, then a patient
// second one for slow-but-alive backends.
var probeTimeouts = []time.Duration{3 * time.Second, 7 * time.Second}

// Snapshot is a cached probe result, valid for snapshotTTL.
type Snapshot struct {
	CheckedAt time.Time
	Reachable bool
}

// Prober caches reachability probes. It never returns an error:
// timeouts and transport failures simply mean "unreachable".
type Prober struct {
	health HealthFunc
	logger *zap.Logger

	mu   sync.Mutex
	snap Snapshot
	now  func() time.Time
}

// New creates a prober over the given health probe.
func New(health HealthFunc, logger *zap.Logger) *Prober {
	return &Prober{health: health, logger: logger, now: time.Now}
}

// Reachable reports backend reachability. A snapshot younger than 30s
// is returned without a network call; otherwise up to two probe
// attempts run with escalating timeouts and the result is cached
// either way. Concurrent callers share a single probe.
func (p *Prober) Reachable(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.snap.CheckedAt.IsZero() && p.now().Sub(p.snap.CheckedAt) < snapshotTTL {
		return p.snap.Reachable
	}

	reachable := false
	for _, timeout := range probeTimeouts {
		if err := p.health(ctx, timeout); err == nil {
			reachable = true
			break
		} else {
			p.logger.Debug("health probe failed", zap.Duration("timeout", timeout), zap.Error(err))
		}
	}

	p.snap = Snapshot{CheckedAt: p.now(), Reachable: reachable}
	if !reachable {
		p.logger.Info("backend unreachable", zap.Time("checked_at", p.snap.CheckedAt))
	}
	return reachable
}

// Snapshot returns the current cached result.
func (p *Prober) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Invalidate discards the cached snapshot so the next Reachable call
// probes again. Called when the live channel drops.
func (p *Prober) Invalidate() {
	p.mu.Lock()
	p.snap = Snapshot{}
	p.mu.Unlock()
}
