// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/waypost/internal/kvstore"
	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/metrics"
	"github.com/tomtom215/waypost/internal/models"
)

// Broadcaster fans the live unique-visitor count out to dashboards.
type Broadcaster interface {
	BroadcastUniqueCount(date string, count int)
}

// liveCounts shares one unique-users/{date} watch among every tracker of
// that date. The watch starts with the first tracker and stops with the
// last.
type liveCounts struct {
	mu    sync.Mutex
	dates map[string]*dateWatch
}

type dateWatch struct {
	refs int
	stop func()
}

func newLiveCounts() *liveCounts {
	return &liveCounts{dates: make(map[string]*dateWatch)}
}

// acquire joins the watch of date, starting it if needed. The returned
// release is safe to call more than once.
func (c *liveCounts) acquire(store Store, b Broadcaster, date string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.dates[date]
	if !ok {
		stop, err := startWatch(store, b, date)
		if err != nil {
			return nil, err
		}
		w = &dateWatch{stop: stop}
		c.dates[date] = w
	}
	w.refs++

	var once sync.Once
	return func() { once.Do(func() { c.release(date, w) }) }, nil
}

func (c *liveCounts) release(date string, w *dateWatch) {
	c.mu.Lock()
	w.refs--
	last := w.refs == 0
	if last {
		delete(c.dates, date)
	}
	c.mu.Unlock()

	if last {
		w.stop()
	}
}

// watching returns the number of dates with a running watch.
func (c *liveCounts) watching() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dates)
}

func startWatch(store Store, b Broadcaster, date string) (func(), error) {
	path, err := kvstore.Join(models.PathUniqueUsers, date)
	if err != nil {
		return nil, err
	}

	log := logging.WithComponent("livecount").With().Str("date", date).Logger()
	stop, err := store.Watch(context.Background(), path, func(snap kvstore.Snapshot) {
		count := snap.Len()
		log.Debug().Int("count", count).Msg("Total unique users today")
		metrics.SetUniqueVisitors(date, count)
		if b != nil {
			b.BroadcastUniqueCount(date, count)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("watch unique users: %w", err)
	}
	return stop, nil
}

// watchUniqueUsers joins the shared count watch of date until the tracker
// stops.
func (t *Tracker) watchUniqueUsers(date string) error {
	release, err := t.deps.counts.acquire(t.deps.Store, t.deps.Broadcaster, date)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		release()
		return nil
	}
	t.stopWatch = release
	t.mu.Unlock()
	return nil
}
