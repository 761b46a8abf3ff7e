// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/waypost/internal/fingerprint"
	"github.com/tomtom215/waypost/internal/locate"
	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/models"
	"github.com/tomtom215/waypost/internal/tracker"
)

// TrackOpen starts tracking a page load. Any failure to initialize is
// reported as tracking:false with status 200; the page keeps working and
// the cause only goes to the logs.
func (h *Handler) TrackOpen(w http.ResponseWriter, r *http.Request) {
	var req models.TrackOpenRequest
	if !parseAndValidate(w, r, &req) {
		return
	}

	ctx := r.Context()
	rw := NewResponseWriter(w, r)

	hints := tracker.Hints{
		Identity: fingerprint.Hints{
			VisitorID:      req.VisitorID,
			UserAgent:      r.UserAgent(),
			AcceptLanguage: r.Header.Get("Accept-Language"),
			ClientIP:       locate.NormalizeIP(r.RemoteAddr),
			Screen:         req.Screen,
			Timezone:       req.Timezone,
		},
		PageTitle:    req.PageTitle,
		PageLocation: req.PageLocation,
	}

	loadID, tr, err := h.loads.Open(ctx, hints)
	if err != nil {
		logging.Ctx(logging.ContextWithLoadID(ctx, loadID)).Warn().Err(err).Msg("Tracking unavailable for page load")
		rw.Success(models.TrackOpenResponse{Tracking: false})
		return
	}

	token, err := h.tokens.Issue(loadID, tr.VisitorID())
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("load_id", loadID).Msg("Failed to issue beacon token")
		// The page cannot report back without a token, so close the load now.
		_ = h.loads.Unload(context.WithoutCancel(ctx), loadID)
		rw.Success(models.TrackOpenResponse{Tracking: false})
		return
	}

	rw.Success(models.TrackOpenResponse{LoadID: loadID, Token: token, Tracking: true})
}

// TrackVisibility starts or ends the visit as the tab is shown or hidden.
func (h *Handler) TrackVisibility(w http.ResponseWriter, r *http.Request) {
	var req models.VisibilityRequest
	if !parseAndValidate(w, r, &req) {
		return
	}
	tr, ok := h.authorizedLoad(w, r, req.Token)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if err := tr.HandleVisibility(ctx, req.State); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("load_id", tr.LoadID()).Str("state", req.State).Msg("Visibility change not recorded")
	}
	NewResponseWriter(w, r).NoContent()
}

// TrackUnload runs the unload listeners of a page load and forgets it. A
// load reaped for inactivity is still unloaded.
func (h *Handler) TrackUnload(w http.ResponseWriter, r *http.Request) {
	var req models.UnloadRequest
	if !parseAndValidate(w, r, &req) {
		return
	}
	loadID, ok := h.verifyBeacon(w, r, req.Token)
	if !ok {
		return
	}

	// The browser does not wait for this response.
	ctx := context.WithoutCancel(r.Context())
	if err := h.loads.Unload(ctx, loadID); err != nil {
		if errors.Is(err, tracker.ErrUnknownLoad) {
			NewResponseWriter(w, r).NotFound("Unknown page load")
			return
		}
		logging.Ctx(ctx).Warn().Err(err).Str("load_id", loadID).Msg("Unload failed")
	}
	NewResponseWriter(w, r).NoContent()
}

// TrackHeartbeat keeps an open page load from being reaped.
func (h *Handler) TrackHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req models.HeartbeatRequest
	if !parseAndValidate(w, r, &req) {
		return
	}
	tr, ok := h.authorizedLoad(w, r, req.Token)
	if !ok {
		return
	}

	tr.KeepAlive()
	NewResponseWriter(w, r).NoContent()
}

// TrackMessage forwards a postMessage from the embedded viewer.
func (h *Handler) TrackMessage(w http.ResponseWriter, r *http.Request) {
	var req models.MessageRequest
	if !parseAndValidate(w, r, &req) {
		return
	}
	tr, ok := h.authorizedLoad(w, r, req.Token)
	if !ok {
		return
	}

	forwarded := tr.HandleMessage(r.Context(), req.Data)
	NewResponseWriter(w, r).Success(map[string]bool{"forwarded": forwarded})
}

// verifyBeacon checks token against the {loadID} route parameter. It
// writes the error response itself.
func (h *Handler) verifyBeacon(w http.ResponseWriter, r *http.Request, token string) (string, bool) {
	loadID := chi.URLParam(r, "loadID")
	if _, err := h.tokens.Verify(token, loadID); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Str("load_id", loadID).Msg("Beacon rejected")
		NewResponseWriter(w, r).Unauthorized("Invalid beacon token")
		return "", false
	}
	return loadID, true
}

// authorizedLoad verifies the beacon token and returns the live tracker.
// It writes the error response itself.
func (h *Handler) authorizedLoad(w http.ResponseWriter, r *http.Request, token string) (*tracker.Tracker, bool) {
	loadID, ok := h.verifyBeacon(w, r, token)
	if !ok {
		return nil, false
	}

	tr, err := h.loads.Get(loadID)
	if err != nil {
		NewResponseWriter(w, r).NotFound("Unknown page load")
		return nil, false
	}
	return tr, true
}
