// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

// Package beacon issues the tokens that bind follow-up beacons
// (visibility, unload, viewer messages) to the page load that opened them.
//
// Tokens are HS256 JWTs whose subject is the page-load id and whose "vid"
// claim is the visitor fingerprint.
package beacon
