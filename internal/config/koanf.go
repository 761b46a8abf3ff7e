// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/waypost/config.yaml",
	"/etc/waypost/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultViewerURL is the geospatial application embedded when none is configured.
const DefaultViewerURL = "https://our-axon-435300-d4.projects.earthengine.app/view/agroclimate-v1"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Viewer: ViewerConfig{
			URL:   DefaultViewerURL,
			Title: "Agroclimate Viewer",
		},
		Server: ServerConfig{
			Port:            3857,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Path:           "/data/waypost",
			InMemory:       false,
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Geo: GeoConfig{
			IPURL:              "https://api.ipify.org?format=json",
			LookupURL:          "https://ipapi.co/{ip}/json/",
			Timeout:            10 * time.Second,
			TrustClientIP:      true,
			CacheSize:          10000,
			CacheTTL:           24 * time.Hour,
			RateLimit:          1,
			RateBurst:          10,
			BreakerMaxFailures: 5,
			BreakerTimeout:     60 * time.Second,
		},
		Analytics: AnalyticsConfig{
			Transport:    "channel",
			Topic:        "analytics.events",
			NATSURL:      "nats://127.0.0.1:4222",
			Embedded:     false,
			EmbeddedHost: "127.0.0.1",
			EmbeddedPort: 4222,
		},
		Tracker: TrackerConfig{
			EngagementInterval: 60 * time.Second,
			IdleTimeout:        2 * time.Hour,
			ReapInterval:       time.Minute,
			HeartbeatInterval:  5 * time.Minute,
			TombstoneTTL:       24 * time.Hour,
			Timezone:           "UTC",
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			BeaconSecret:      "",
			BeaconTTL:         24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration in three layers: struct defaults, an
// optional YAML file, then environment variables (highest priority).
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Environment variables
	// VIEWER_URL -> viewer.url, NATS_URL -> analytics.nats_url
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Load is the entry point used by cmd/server.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// findConfigFile returns the first existing config file, or "" if none.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are koanf paths that accept comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated strings from env vars into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"viewer_url":   "viewer.url",
	"viewer_title": "viewer.title",

	"http_host":        "server.host",
	"http_port":        "server.port",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",

	"store_path":             "store.path",
	"store_in_memory":        "store.in_memory",
	"store_gc_interval":      "store.gc_interval",
	"store_gc_discard_ratio": "store.gc_discard_ratio",

	"geo_ip_url":               "geo.ip_url",
	"geo_lookup_url":           "geo.lookup_url",
	"geo_timeout":              "geo.timeout",
	"geo_trust_client_ip":      "geo.trust_client_ip",
	"geo_cache_size":           "geo.cache_size",
	"geo_cache_ttl":            "geo.cache_ttl",
	"geo_rate_limit":           "geo.rate_limit",
	"geo_rate_burst":           "geo.rate_burst",
	"geo_breaker_max_failures": "geo.breaker_max_failures",
	"geo_breaker_timeout":      "geo.breaker_timeout",

	"analytics_transport": "analytics.transport",
	"analytics_topic":     "analytics.topic",
	"nats_url":            "analytics.nats_url",
	"nats_embedded":       "analytics.embedded",
	"nats_embedded_host":  "analytics.embedded_host",
	"nats_embedded_port":  "analytics.embedded_port",

	"tracker_engagement_interval": "tracker.engagement_interval",
	"tracker_idle_timeout":        "tracker.idle_timeout",
	"tracker_reap_interval":       "tracker.reap_interval",
	"tracker_heartbeat_interval":  "tracker.heartbeat_interval",
	"tracker_tombstone_ttl":       "tracker.tombstone_ttl",
	"tracker_timezone":            "tracker.timezone",

	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"beacon_secret":       "security.beacon_secret",
	"beacon_ttl":          "security.beacon_ttl",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable to its koanf path.
// Unmapped variables return "" and are ignored, so unrelated process
// environment never leaks into the config tree.
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
