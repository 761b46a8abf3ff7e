// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypost/internal/beacon"
	"github.com/tomtom215/waypost/internal/config"
	"github.com/tomtom215/waypost/internal/kvstore"
	"github.com/tomtom215/waypost/internal/tracker"
	"github.com/tomtom215/waypost/internal/validation"
	ws "github.com/tomtom215/waypost/internal/websocket"
)

// maxBodyBytes bounds beacon request bodies.
const maxBodyBytes = 16 << 10

// PageLoads is the subset of *tracker.Registry the handlers use.
type PageLoads interface {
	Open(ctx context.Context, hints tracker.Hints) (string, *tracker.Tracker, error)
	Get(loadID string) (*tracker.Tracker, error)
	Unload(ctx context.Context, loadID string) error
}

// Tokens issues and verifies page-load tokens. Satisfied by *beacon.Manager.
type Tokens interface {
	Issue(loadID, visitorID string) (string, error)
	Verify(token, loadID string) (*beacon.Claims, error)
}

// StatsStore is the read side of the store the handlers use.
type StatsStore interface {
	Children(ctx context.Context, path string) (kvstore.Snapshot, error)
	Ping(ctx context.Context) error
}

// Handler serves the shell page and the beacon, stats, live and health
// endpoints.
type Handler struct {
	config    *config.Config
	loads     PageLoads
	tokens    Tokens
	store     StatsStore
	hub       *ws.Hub
	location  *time.Location
	startTime time.Time
	now       func() time.Time
}

// NewHandler wires the handler dependencies. hub may be nil, which
// disables the live feed.
func NewHandler(cfg *config.Config, loads PageLoads, tokens Tokens, store StatsStore, hub *ws.Hub) *Handler {
	return &Handler{
		config:    cfg,
		loads:     loads,
		tokens:    tokens,
		store:     store,
		hub:       hub,
		location:  cfg.Tracker.Location(),
		startTime: time.Now(),
		now:       time.Now,
	}
}

var errEmptyBody = errors.New("empty request body")

// decodeBody reads a JSON body into dst. navigator.sendBeacon posts
// strings as text/plain, so that content type is accepted as JSON too.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return fmt.Errorf("content type: %w", err)
		}
		if mediaType != "application/json" && mediaType != "text/plain" {
			return fmt.Errorf("unsupported content type %q", mediaType)
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// parseAndValidate decodes and validates a request body, writing the
// error response itself. It reports whether the handler should continue.
func parseAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	rw := NewResponseWriter(w, r)
	if err := decodeBody(w, r, dst); err != nil {
		rw.BadRequest("Invalid request body")
		return false
	}
	if ve := validation.ValidateStruct(dst); ve != nil {
		rw.ValidationError(ve)
		return false
	}
	return true
}
