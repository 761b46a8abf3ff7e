// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package config

import (
	"time"
)

// Config is the complete Waypost configuration.
type Config struct {
	Viewer    ViewerConfig    `koanf:"viewer"`
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Geo       GeoConfig       `koanf:"geo"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Tracker   TrackerConfig   `koanf:"tracker"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ViewerConfig describes the embedded geospatial viewer.
type ViewerConfig struct {
	URL   string `koanf:"url"`
	Title string `koanf:"title"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StoreConfig configures the Badger-backed hierarchical store.
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// GCInterval is how often the value log GC runs. Zero disables it.
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCDiscardRatio is passed to badger's RunValueLogGC.
	GCDiscardRatio float64 `koanf:"gc_discard_ratio"`
}

// GeoConfig configures the best-effort geolocation lookup.
type GeoConfig struct {
	// IPURL returns the caller's public IP as {"ip": "..."}.
	IPURL string `koanf:"ip_url"`

	// LookupURL is a template; "{ip}" is replaced with the address.
	LookupURL string `koanf:"lookup_url"`

	Timeout time.Duration `koanf:"timeout"`

	// TrustClientIP uses the request's public client IP instead of
	// asking IPURL. IPURL reports the server's own address otherwise.
	TrustClientIP bool `koanf:"trust_client_ip"`

	CacheSize int           `koanf:"cache_size"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`

	// RateLimit is the sustained lookups per second allowed against LookupURL.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// AnalyticsConfig selects the event bus transport.
type AnalyticsConfig struct {
	// Transport is "channel" (in-process) or "nats".
	Transport string `koanf:"transport"`
	Topic     string `koanf:"topic"`

	NATSURL string `koanf:"nats_url"`

	// Embedded starts an in-process NATS server on EmbeddedHost:EmbeddedPort
	// and connects to it instead of NATSURL.
	Embedded     bool   `koanf:"embedded"`
	EmbeddedHost string `koanf:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port"`
}

// TrackerConfig tunes per-page-load trackers.
type TrackerConfig struct {
	EngagementInterval time.Duration `koanf:"engagement_interval"`
	IdleTimeout        time.Duration `koanf:"idle_timeout"`
	ReapInterval       time.Duration `koanf:"reap_interval"`

	// HeartbeatInterval is how often the shell reports an open page. It
	// must be shorter than IdleTimeout.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// TombstoneTTL is how long a reaped load can still be unloaded.
	TombstoneTTL time.Duration `koanf:"tombstone_ttl"`

	// Timezone names the IANA zone used for date partitions.
	Timezone string `koanf:"timezone"`
}

// SecurityConfig holds CORS, rate limiting and beacon token settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// BeaconSecret signs page-load tokens. Empty means a random
	// per-process secret, which invalidates tokens on restart.
	BeaconSecret string        `koanf:"beacon_secret"`
	BeaconTTL    time.Duration `koanf:"beacon_ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// Location returns the configured tracker time zone, UTC when unset.
// Validate has already rejected unknown zone names.
func (t TrackerConfig) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}
