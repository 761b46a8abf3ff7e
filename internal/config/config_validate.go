// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package config

import (
	"fmt"
	"strings"
	"time"
)

// Analytics transports.
const (
	TransportChannel = "channel"
	TransportNATS    = "nats"
)

// minBeaconSecretLength matches the HS256 key size recommendation.
const minBeaconSecretLength = 32

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateViewer(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateGeo(); err != nil {
		return err
	}

	if err := c.validateAnalytics(); err != nil {
		return err
	}

	if err := c.validateTracker(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateViewer() error {
	if c.Viewer.URL == "" {
		return fmt.Errorf("VIEWER_URL is required")
	}
	if err := validateURL("VIEWER_URL", c.Viewer.URL, webSchemes); err != nil {
		return err
	}
	if strings.TrimSpace(c.Viewer.Title) == "" {
		return fmt.Errorf("VIEWER_TITLE must not be empty")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required unless STORE_IN_MEMORY=true")
	}
	if c.Store.GCDiscardRatio <= 0 || c.Store.GCDiscardRatio >= 1 {
		return fmt.Errorf("STORE_GC_DISCARD_RATIO must be in (0, 1), got %v", c.Store.GCDiscardRatio)
	}
	return nil
}

func (c *Config) validateGeo() error {
	if err := validateURL("GEO_IP_URL", c.Geo.IPURL, webSchemes); err != nil {
		return err
	}
	if err := validateURL("GEO_LOOKUP_URL", strings.ReplaceAll(c.Geo.LookupURL, "{ip}", "0.0.0.0"), webSchemes); err != nil {
		return err
	}
	if !strings.Contains(c.Geo.LookupURL, "{ip}") {
		return fmt.Errorf("GEO_LOOKUP_URL must contain the {ip} placeholder")
	}
	if c.Geo.Timeout <= 0 {
		return fmt.Errorf("GEO_TIMEOUT must be positive")
	}
	if c.Geo.CacheSize < 0 {
		return fmt.Errorf("GEO_CACHE_SIZE must not be negative")
	}
	if c.Geo.RateLimit <= 0 || c.Geo.RateBurst < 1 {
		return fmt.Errorf("GEO_RATE_LIMIT must be positive and GEO_RATE_BURST at least 1")
	}
	return nil
}

func (c *Config) validateAnalytics() error {
	switch c.Analytics.Transport {
	case TransportChannel:
	case TransportNATS:
		if c.Analytics.Embedded {
			break
		}
		if err := validateURL("NATS_URL", c.Analytics.NATSURL, natsSchemes); err != nil {
			return err
		}
	default:
		return fmt.Errorf("ANALYTICS_TRANSPORT must be %q or %q, got %q",
			TransportChannel, TransportNATS, c.Analytics.Transport)
	}
	if c.Analytics.Topic == "" {
		return fmt.Errorf("ANALYTICS_TOPIC is required")
	}
	return nil
}

func (c *Config) validateTracker() error {
	if c.Tracker.EngagementInterval < time.Second {
		return fmt.Errorf("TRACKER_ENGAGEMENT_INTERVAL must be at least 1s, got %v", c.Tracker.EngagementInterval)
	}
	if c.Tracker.IdleTimeout <= 0 || c.Tracker.ReapInterval <= 0 {
		return fmt.Errorf("TRACKER_IDLE_TIMEOUT and TRACKER_REAP_INTERVAL must be positive")
	}
	if c.Tracker.HeartbeatInterval <= 0 || c.Tracker.HeartbeatInterval >= c.Tracker.IdleTimeout {
		return fmt.Errorf("TRACKER_HEARTBEAT_INTERVAL must be positive and shorter than TRACKER_IDLE_TIMEOUT, got %v", c.Tracker.HeartbeatInterval)
	}
	if c.Tracker.TombstoneTTL <= 0 {
		return fmt.Errorf("TRACKER_TOMBSTONE_TTL must be positive")
	}
	if c.Tracker.Timezone != "" {
		if _, err := time.LoadLocation(c.Tracker.Timezone); err != nil {
			return fmt.Errorf("TRACKER_TIMEZONE is invalid: %w", err)
		}
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitRequests < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Security.RateLimitWindow < time.Second {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s")
		}
	}
	if c.Security.BeaconSecret != "" && len(c.Security.BeaconSecret) < minBeaconSecretLength {
		return fmt.Errorf("BEACON_SECRET must be at least %d characters", minBeaconSecretLength)
	}
	if c.Security.BeaconTTL <= 0 {
		return fmt.Errorf("BEACON_TTL must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// HasWildcardCORS reports whether any allowed origin is "*".
func (c *Config) HasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}
