// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

// Package websocket streams the live unique-visitor count to dashboards.
//
// Every open page load watches unique-users/{date} and reports the child
// count to the Hub, which forwards it as
//
//	{"type":"unique_count","data":{"date":"2026-03-14","count":42}}
//
// only when the count changed. A newly connected client receives the last
// known count of each date on registration. Clients may send
// {"type":"ping"} and get {"type":"pong"} back.
package websocket
