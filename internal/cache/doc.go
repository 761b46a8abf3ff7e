// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

// Package cache provides a generic in-process LRU cache with TTL, used to
// avoid repeating geolocation lookups for the same address.
//
//	c := cache.NewLRU[string, models.LocationInfo](10000, 24*time.Hour)
//	c.Add(ip, loc)
//	if loc, ok := c.Get(ip); ok { ... }
package cache
