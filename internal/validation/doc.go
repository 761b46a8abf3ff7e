// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

// Package validation validates API request bodies with go-playground/validator v10.
//
// A single validator instance is shared by all handlers. It reports fields
// by their JSON names and adds the "fingerprint" tag for browser-supplied
// visitor ids.
//
// Example:
//
//	var req models.TrackOpenRequest
//	if verr := validation.ValidateStruct(&req); verr != nil {
//		apiErr := verr.ToAPIError()
//		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//		return
//	}
package validation
