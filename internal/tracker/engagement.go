// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package tracker

import (
	"time"

	"github.com/tomtom215/waypost/internal/analytics"
	"github.com/tomtom215/waypost/internal/models"
)

// EngagementTypeUser is the "type" parameter of user_engagement events.
const EngagementTypeUser = "user"

// startEngagement emits user_engagement every interval with the whole
// seconds elapsed since start, until the tracker stops.
func (t *Tracker) startEngagement(start time.Time, visitorID string) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	tick, stopTick := t.deps.Clock.Tick(t.deps.EngagementInterval)
	go func() {
		defer t.wg.Done()
		defer stopTick()

		for {
			select {
			case <-t.bgCtx.Done():
				return
			case <-tick:
				elapsed := int64(t.now().Sub(start) / time.Second)
				_ = t.deps.Sink.LogEvent(t.bgCtx, models.EventUserEngagement, analytics.Params{
					"engagement_time": elapsed,
					"type":            EngagementTypeUser,
					"user_id":         visitorID,
				})
			}
		}
	}()
}
