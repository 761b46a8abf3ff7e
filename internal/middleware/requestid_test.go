// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/waypost/internal/logging"
)

func TestRequestID_GeneratesNewID(t *testing.T) {
	var capturedID, capturedCorrelation string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetRequestID(r.Context())
		capturedCorrelation = logging.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	responseID := rec.Header().Get(HeaderRequestID)
	if _, err := uuid.Parse(responseID); err != nil {
		t.Errorf("X-Request-ID %q is not a UUID: %v", responseID, err)
	}
	if capturedID != responseID {
		t.Errorf("context id %q != header id %q", capturedID, responseID)
	}
	if logging.RequestIDFromContext(req.Context()) != "" {
		t.Error("original request context should not be modified")
	}
	if capturedCorrelation == "" || rec.Header().Get(HeaderCorrelationID) != capturedCorrelation {
		t.Errorf("correlation id = %q, header %q", capturedCorrelation, rec.Header().Get(HeaderCorrelationID))
	}
}

func TestRequestID_PreservesUpstreamIDs(t *testing.T) {
	var capturedID, capturedCorrelation string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetRequestID(r.Context())
		capturedCorrelation = logging.CorrelationIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "upstream-id")
	req.Header.Set(HeaderCorrelationID, "trace-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if capturedID != "upstream-id" || rec.Header().Get(HeaderRequestID) != "upstream-id" {
		t.Errorf("request id = %q", capturedID)
	}
	if capturedCorrelation != "trace-42" {
		t.Errorf("correlation id = %q", capturedCorrelation)
	}
}

func TestRequestID_RejectsOversizedUpstreamID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", maxIDLength+1))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if _, err := uuid.Parse(rec.Header().Get(HeaderRequestID)); err != nil {
		t.Error("oversized upstream id should be replaced")
	}
}
