// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/waypost/internal/logging"
)

// GarbageCollector is satisfied by *kvstore.Store.
type GarbageCollector interface {
	RunGC(discardRatio float64) (bool, error)
}

// StoreGCService runs value log garbage collection on an interval.
type StoreGCService struct {
	store        GarbageCollector
	interval     time.Duration
	discardRatio float64
}

// NewStoreGCService creates the service. A non-positive interval makes
// Serve idle until canceled.
func NewStoreGCService(store GarbageCollector, interval time.Duration, discardRatio float64) *StoreGCService {
	return &StoreGCService{
		store:        store,
		interval:     interval,
		discardRatio: discardRatio,
	}
}

// Serve implements suture.Service. A GC error is returned so the
// supervisor restarts the loop after its backoff.
func (s *StoreGCService) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			rewritten, err := s.store.RunGC(s.discardRatio)
			if err != nil {
				return fmt.Errorf("store gc: %w", err)
			}
			logging.Debug().
				Bool("rewritten", rewritten).
				Dur("took", time.Since(start)).
				Msg("Store value log GC finished")
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *StoreGCService) String() string {
	return "store-gc"
}
