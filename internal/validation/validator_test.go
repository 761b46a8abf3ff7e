// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package validation

import (
	"strings"
	"testing"

	"github.com/tomtom215/waypost/internal/models"
)

func TestValidateTrackOpenRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       models.TrackOpenRequest
		wantField string
		wantTag   string
	}{
		{
			name: "minimal valid",
			req:  models.TrackOpenRequest{PageLocation: "https://example.org/"},
		},
		{
			name: "valid browser id",
			req:  models.TrackOpenRequest{VisitorID: "abc_123-XYZ", PageLocation: "https://example.org/"},
		},
		{
			name:      "missing page location",
			req:       models.TrackOpenRequest{PageTitle: "Viewer"},
			wantField: "page_location",
			wantTag:   "required",
		},
		{
			name:      "malformed browser id",
			req:       models.TrackOpenRequest{VisitorID: "has space", PageLocation: "https://example.org/"},
			wantField: "visitor_id",
			wantTag:   "fingerprint",
		},
		{
			name:      "over-long browser id",
			req:       models.TrackOpenRequest{VisitorID: strings.Repeat("a", 129), PageLocation: "https://example.org/"},
			wantField: "visitor_id",
			wantTag:   "max",
		},
		{
			name:      "over-long screen",
			req:       models.TrackOpenRequest{PageLocation: "https://example.org/", Screen: strings.Repeat("1", 65)},
			wantField: "screen",
			wantTag:   "max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.req)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			f := verr.Fields[0]
			if f.Field != tt.wantField || f.Tag != tt.wantTag {
				t.Errorf("field error = %+v, want %s/%s", f, tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestValidateNestedMessage(t *testing.T) {
	req := models.MessageRequest{
		Token: "t",
		Data:  models.ViewerMessage{Type: "analytics", Label: strings.Repeat("x", 513)},
	}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected label length error")
	}
	if verr.Fields[0].Field != "label" {
		t.Errorf("field = %q, want label", verr.Fields[0].Field)
	}
}

func TestValidateViewerMessageValues(t *testing.T) {
	tests := []struct {
		name string
		msg  models.ViewerMessage
		ok   bool
	}{
		{"strings", models.ViewerMessage{Type: "analytics", Action: "click", Category: "map"}, true},
		{"number action", models.ViewerMessage{Type: "analytics", Action: float64(3)}, true},
		{"object category", models.ViewerMessage{Type: "analytics", Category: map[string]any{"layer": "ndvi"}}, true},
		{"all missing", models.ViewerMessage{}, true},
		{"long action", models.ViewerMessage{Type: "analytics", Action: strings.Repeat("x", 257)}, false},
		{"multibyte at limit", models.ViewerMessage{Type: strings.Repeat("é", 64)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&models.MessageRequest{Token: "t", Data: tt.msg})
			if (verr == nil) != tt.ok {
				t.Fatalf("ValidateStruct() = %v, want ok=%v", verr, tt.ok)
			}
			if verr != nil && verr.Fields[0].Tag != "textmax" {
				t.Errorf("tag = %q, want textmax", verr.Fields[0].Tag)
			}
		})
	}
}

func TestValidateUniqueVisitorsQuery(t *testing.T) {
	for date, ok := range map[string]bool{
		"":           true,
		"2026-03-14": true,
		"2026-3-14":  false,
		"14/03/2026": false,
		"2026-02-30": false,
	} {
		verr := ValidateStruct(&models.UniqueVisitorsQuery{Date: date})
		if (verr == nil) != ok {
			t.Errorf("date %q: ValidateStruct() = %v, want ok=%v", date, verr, ok)
		}
	}
}

func TestToAPIError(t *testing.T) {
	single := ValidateStruct(&models.UnloadRequest{})
	if single == nil {
		t.Fatal("expected error")
	}
	apiErr := single.ToAPIError()
	if apiErr.Code != CodeValidationError || apiErr.Message != "token is required" {
		t.Errorf("single = %+v", apiErr)
	}
	if apiErr.Details["field"] != "token" {
		t.Errorf("details = %v", apiErr.Details)
	}

	multi := ValidateStruct(&models.VisibilityRequest{})
	if multi == nil || len(multi.Fields) != 2 {
		t.Fatalf("expected two field errors, got %v", multi)
	}
	apiErr = multi.ToAPIError()
	if !strings.Contains(apiErr.Message, "token is required") || !strings.Contains(apiErr.Message, "state is required") {
		t.Errorf("multi message = %q", apiErr.Message)
	}
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Errorf("multi details = %v", apiErr.Details)
	}

	if (&RequestValidationError{}).ToAPIError().Message != "Validation failed" {
		t.Error("empty error should have a generic message")
	}
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator should return the same instance")
	}
}
