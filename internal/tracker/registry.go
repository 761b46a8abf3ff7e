// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/metrics"
)

// Registry holds the live page loads by load id.
//
// A load that stops sending beacons for longer than the idle timeout is
// reaped: its background work stops but its unload listeners are kept in
// a tombstone, so an unload that arrives later still releases the session
// marker and ends the visit. Tombstones older than the tombstone TTL are
// dropped with their records left in place.
type Registry struct {
	deps         Deps
	idleTimeout  time.Duration
	reapInterval time.Duration
	tombstoneTTL time.Duration

	mu         sync.RWMutex
	trackers   map[string]*Tracker
	tombstones map[string]tombstone
}

type tombstone struct {
	tracker  *Tracker
	reapedAt time.Time
}

// RegistryConfig controls idle reaping.
type RegistryConfig struct {
	IdleTimeout  time.Duration
	ReapInterval time.Duration
	TombstoneTTL time.Duration
}

// NewRegistry creates an empty Registry building trackers from deps.
func NewRegistry(deps Deps, cfg RegistryConfig) *Registry {
	deps.setDefaults()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 2 * time.Hour
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = time.Minute
	}
	if cfg.TombstoneTTL <= 0 {
		cfg.TombstoneTTL = 24 * time.Hour
	}
	return &Registry{
		deps:         deps,
		idleTimeout:  cfg.IdleTimeout,
		reapInterval: cfg.ReapInterval,
		tombstoneTTL: cfg.TombstoneTTL,
		trackers:     make(map[string]*Tracker),
		tombstones:   make(map[string]tombstone),
	}
}

// Open creates and initializes a tracker for a new page load. On failure
// the tracker is discarded and the load id is still returned for logging.
func (r *Registry) Open(ctx context.Context, hints Hints) (string, *Tracker, error) {
	loadID := ulid.Make().String()
	t := New(loadID, r.deps)

	if err := t.Init(ctx, hints); err != nil {
		t.Stop()
		return loadID, nil, err
	}

	r.mu.Lock()
	r.trackers[loadID] = t
	metrics.TrackersLive.Set(float64(len(r.trackers)))
	r.mu.Unlock()

	return loadID, t, nil
}

// Get returns the tracker for loadID.
func (r *Registry) Get(loadID string) (*Tracker, error) {
	r.mu.RLock()
	t, ok := r.trackers[loadID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLoad, loadID)
	}
	return t, nil
}

// Unload removes the page load, live or reaped, and runs its unload
// listeners.
func (r *Registry) Unload(ctx context.Context, loadID string) error {
	t := r.remove(loadID)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrUnknownLoad, loadID)
	}
	t.Unload(ctx)
	return nil
}

// Len returns the number of live page loads.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trackers)
}

// Tombstones returns the number of reaped loads still awaiting unload.
func (r *Registry) Tombstones() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tombstones)
}

func (r *Registry) remove(loadID string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.trackers[loadID]; ok {
		delete(r.trackers, loadID)
		metrics.TrackersLive.Set(float64(len(r.trackers)))
		return t
	}
	if ts, ok := r.tombstones[loadID]; ok {
		delete(r.tombstones, loadID)
		return ts.tracker
	}
	return nil
}

// Reap stops trackers idle since before now minus the idle timeout and
// keeps them as tombstones until unload or the tombstone TTL. Expired
// tombstones are dropped. It returns the number reaped.
func (r *Registry) Reap(now time.Time) int {
	cutoff := now.Add(-r.idleTimeout)
	expiry := now.Add(-r.tombstoneTTL)

	r.mu.Lock()
	var idle []*Tracker
	for id, t := range r.trackers {
		if t.LastActivity().Before(cutoff) {
			idle = append(idle, t)
			delete(r.trackers, id)
			r.tombstones[id] = tombstone{tracker: t, reapedAt: now}
		}
	}
	for id, ts := range r.tombstones {
		if ts.reapedAt.Before(expiry) {
			delete(r.tombstones, id)
			logging.Debug().Str("load_id", id).Msg("Dropped expired page-load tombstone")
		}
	}
	metrics.TrackersLive.Set(float64(len(r.trackers)))
	r.mu.Unlock()

	for _, t := range idle {
		t.Stop()
		metrics.TrackersReaped.Inc()
		logging.Debug().Str("load_id", t.LoadID()).Msg("Reaped idle page load")
	}
	return len(idle)
}

// Serve runs the idle reaper until ctx is canceled, then stops every
// remaining tracker. It implements suture.Service.
func (r *Registry) Serve(ctx context.Context) error {
	tick, stop := r.deps.Clock.Tick(r.reapInterval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			r.stopAll()
			return ctx.Err()
		case <-tick:
			if n := r.Reap(r.deps.Clock.Now()); n > 0 {
				logging.Info().Int("reaped", n).Int("live", r.Len()).Msg("Reaped idle page loads")
			}
		}
	}
}

func (r *Registry) stopAll() {
	r.mu.Lock()
	all := make([]*Tracker, 0, len(r.trackers))
	for id, t := range r.trackers {
		all = append(all, t)
		delete(r.trackers, id)
	}
	clear(r.tombstones)
	metrics.TrackersLive.Set(0)
	r.mu.Unlock()

	for _, t := range all {
		t.Stop()
	}
}

// String implements fmt.Stringer for suture logging.
func (r *Registry) String() string {
	return "tracker-reaper"
}
