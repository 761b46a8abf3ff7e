// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
)

var (
	webSchemes  = []string{"http", "https"}
	natsSchemes = []string{"nats", "tls", "ws", "wss"}
)

// validateURL checks that raw parses, uses one of schemes and names a host.
// Paths and query strings are allowed; the viewer and lookup endpoints use
// both.
func validateURL(field, raw string, schemes []string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if !slices.Contains(schemes, u.Scheme) {
		return fmt.Errorf("%s: scheme %q not in %v", field, u.Scheme, schemes)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: host is required", field)
	}
	return nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
