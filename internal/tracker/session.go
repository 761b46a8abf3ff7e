// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package tracker

import (
	"context"
	"fmt"

	"github.com/tomtom215/waypost/internal/kvstore"
	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/models"
)

// Outcome of reconciling a visitor's daily record.
type Outcome string

const (
	OutcomeFirstVisit      Outcome = "first_visit"
	OutcomeNewSession      Outcome = "new_session"
	OutcomeExistingSession Outcome = "existing_session"
)

// reconcile updates today's VisitorRecord for visitorID. When the record
// already existed it returns the marker path to release on unload.
//
// The read-then-write sequence is not atomic: two tabs opening at once can
// both see no marker and both increment.
func (t *Tracker) reconcile(ctx context.Context, date, visitorID string, loc models.LocationInfo) (Outcome, string, error) {
	log := logging.Ctx(ctx)

	userPath, err := kvstore.Join(models.PathUniqueUsers, date, visitorID)
	if err != nil {
		return "", "", err
	}
	sessionPath, err := kvstore.Join(models.PathActiveSessions, date, visitorID)
	if err != nil {
		return "", "", err
	}

	var visitor models.VisitorRecord
	exists, err := t.deps.Store.Get(ctx, userPath, &visitor)
	if err != nil {
		return "", "", fmt.Errorf("read visitor record: %w", err)
	}

	if !exists {
		log.Info().Msg("First visit ever - creating new entry")
		record := models.VisitorRecord{
			LastSeen: t.now().UnixMilli(),
			Visits:   1,
			Location: loc,
		}
		if err := t.deps.Store.Set(ctx, userPath, record); err != nil {
			return "", "", fmt.Errorf("create visitor record: %w", err)
		}
		return OutcomeFirstVisit, "", nil
	}

	var marker models.ActiveSessionMarker
	hasSession, err := t.deps.Store.Get(ctx, sessionPath, &marker)
	if err != nil {
		return "", "", fmt.Errorf("read session marker: %w", err)
	}

	if !hasSession {
		log.Info().Msg("New session - incrementing visit count")
		if err := t.deps.Store.Update(ctx, userPath, map[string]any{
			models.FieldVisits:   visitor.Visits + 1,
			models.FieldLastSeen: t.now().UnixMilli(),
		}); err != nil {
			return "", "", fmt.Errorf("increment visits: %w", err)
		}
		if err := t.deps.Store.Set(ctx, sessionPath, models.ActiveSessionMarker{
			StartTime: t.now().UnixMilli(),
		}); err != nil {
			return "", "", fmt.Errorf("mark session active: %w", err)
		}
		return OutcomeNewSession, sessionPath, nil
	}

	log.Info().Msg("Existing session - updating last seen time")
	if err := t.deps.Store.Update(ctx, userPath, map[string]any{
		models.FieldLastSeen: t.now().UnixMilli(),
	}); err != nil {
		return "", "", fmt.Errorf("update last seen: %w", err)
	}
	return OutcomeExistingSession, sessionPath, nil
}
