// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package tracker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/metrics"
	"github.com/tomtom215/waypost/internal/models"
)

// VisitID renders a page-load time as the base-36 visit identifier.
func VisitID(loadTime time.Time) string {
	return strconv.FormatInt(loadTime.UnixMilli(), 36)
}

// Visit is the Inactive/Active state machine of one page load's visit
// record. Start and End are idempotent; the state flips before the store
// call so rapid toggling issues at most one write per transition.
type Visit struct {
	store  Store
	clock  Clock
	path   string
	userID string
	loc    models.LocationInfo

	mu     sync.Mutex
	active bool
}

func newVisit(store Store, clock Clock, path, userID string, loc models.LocationInfo) *Visit {
	return &Visit{store: store, clock: clock, path: path, userID: userID, loc: loc}
}

// Active reports the current state.
func (v *Visit) Active() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}

// Start writes the visit record if the visit is inactive.
func (v *Visit) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.active {
		v.mu.Unlock()
		return nil
	}
	v.active = true
	v.mu.Unlock()

	metrics.ActiveVisits.Inc()
	logging.Ctx(ctx).Debug().Str("path", v.path).Msg("Starting visit tracking")

	record := models.VisitRecord{
		UserID:    v.userID,
		Timestamp: v.clock.Now().UnixMilli(),
		Active:    true,
		Location:  v.loc,
	}
	if err := v.store.Set(ctx, v.path, record); err != nil {
		return fmt.Errorf("start visit: %w", err)
	}
	return nil
}

// End deletes the visit record if the visit is active.
func (v *Visit) End(ctx context.Context) error {
	v.mu.Lock()
	if !v.active {
		v.mu.Unlock()
		return nil
	}
	v.active = false
	v.mu.Unlock()

	metrics.ActiveVisits.Dec()
	logging.Ctx(ctx).Debug().Str("path", v.path).Msg("Ending visit tracking")

	if err := v.store.Delete(ctx, v.path); err != nil {
		return fmt.Errorf("end visit: %w", err)
	}
	return nil
}
