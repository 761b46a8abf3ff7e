// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/waypost/internal/kvstore"
	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/models"
	"github.com/tomtom215/waypost/internal/validation"
	ws "github.com/tomtom215/waypost/internal/websocket"
)

// UniqueVisitors returns the number of distinct visitors on ?date=,
// today in the tracker time zone when omitted.
func (h *Handler) UniqueVisitors(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	query := models.UniqueVisitorsQuery{Date: r.URL.Query().Get("date")}
	if ve := validation.ValidateStruct(&query); ve != nil {
		rw.ValidationError(ve)
		return
	}
	if query.Date == "" {
		query.Date = h.now().In(h.location).Format(models.DateLayout)
	}

	path, err := kvstore.Join(models.PathUniqueUsers, query.Date)
	if err != nil {
		rw.BadRequest("Invalid date")
		return
	}
	snap, err := h.store.Children(r.Context(), path)
	if err != nil {
		rw.StoreError(err)
		return
	}

	rw.Success(models.UniqueVisitorsResponse{Date: query.Date, Count: snap.Len()})
}

// HealthLive reports that the process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]any{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady reports 200 only while the store answers.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	storeErr := h.store.Ping(r.Context())
	status := map[string]any{
		"store_connected": storeErr == nil,
		"uptime":          time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		status["live_clients"] = h.hub.ClientCount()
	}

	if storeErr != nil {
		logging.Ctx(r.Context()).Warn().Err(storeErr).Msg("Readiness check failed")
		rw.ServiceUnavailable("Store unavailable", status)
		return
	}
	rw.Success(status)
}

// WebSocket upgrades to the live unique-count feed.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Live feed unavailable", nil)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkWebSocketOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// checkWebSocketOrigin accepts same-host pages and the configured CORS
// origins. Browsers always send Origin, so a missing one is refused.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	if sameHost(origin, r.Host) {
		return true
	}
	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
