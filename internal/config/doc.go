// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

/*
Package config provides centralized configuration management for Waypost.

# Configuration Sources

Configuration is layered with koanf, each layer overriding the previous:

 1. Struct defaults (defaultConfig)
 2. YAML file: $CONFIG_PATH, ./config.yaml or /etc/waypost/config.yaml
 3. Environment variables, mapped explicitly in envMappings

# Configuration Structure

  - ViewerConfig: embedded viewer URL and title
  - ServerConfig: HTTP listener
  - StoreConfig: Badger directory, in-memory mode, value log GC
  - GeoConfig: IP and geolocation endpoints, cache, rate limit, breaker
  - AnalyticsConfig: event bus transport (channel or nats)
  - TrackerConfig: engagement interval, idle reaping, date time zone
  - SecurityConfig: CORS, rate limiting, beacon token secret and TTL
  - LoggingConfig: zerolog level, format, caller

# Example

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

Comma-separated values are accepted for CORS_ORIGINS:

	CORS_ORIGINS=https://a.example,https://b.example
*/
package config
