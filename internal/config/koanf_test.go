// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Viewer.URL != DefaultViewerURL {
		t.Errorf("Viewer.URL = %q, want %q", cfg.Viewer.URL, DefaultViewerURL)
	}
	if cfg.Viewer.Title != "Agroclimate Viewer" {
		t.Errorf("Viewer.Title = %q, want Agroclimate Viewer", cfg.Viewer.Title)
	}
	if cfg.Geo.IPURL != "https://api.ipify.org?format=json" {
		t.Errorf("Geo.IPURL = %q", cfg.Geo.IPURL)
	}
	if cfg.Geo.LookupURL != "https://ipapi.co/{ip}/json/" {
		t.Errorf("Geo.LookupURL = %q", cfg.Geo.LookupURL)
	}
	if cfg.Tracker.EngagementInterval != 60*time.Second {
		t.Errorf("Tracker.EngagementInterval = %v, want 60s", cfg.Tracker.EngagementInterval)
	}
	if cfg.Tracker.HeartbeatInterval != 5*time.Minute || cfg.Tracker.TombstoneTTL != 24*time.Hour {
		t.Errorf("Tracker heartbeat/tombstone = %v/%v, want 5m/24h", cfg.Tracker.HeartbeatInterval, cfg.Tracker.TombstoneTTL)
	}
	if cfg.Analytics.Transport != TransportChannel {
		t.Errorf("Analytics.Transport = %q, want channel", cfg.Analytics.Transport)
	}
	if cfg.Security.BeaconTTL != 24*time.Hour {
		t.Errorf("Security.BeaconTTL = %v, want 24h", cfg.Security.BeaconTTL)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("VIEWER_TITLE", "Test Viewer")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("STORE_IN_MEMORY", "true")
	t.Setenv("TRACKER_ENGAGEMENT_INTERVAL", "5s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Viewer.Title != "Test Viewer" {
		t.Errorf("Viewer.Title = %q, want Test Viewer", cfg.Viewer.Title)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if !cfg.Store.InMemory {
		t.Error("Store.InMemory should be true")
	}
	if cfg.Tracker.EngagementInterval != 5*time.Second {
		t.Errorf("Tracker.EngagementInterval = %v, want 5s", cfg.Tracker.EngagementInterval)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Security.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Security.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Security.CORSOrigins[i], want[i])
		}
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadWithKoanf_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
viewer:
  title: From File
analytics:
  transport: nats
  nats_url: nats://10.0.0.5:4222
tracker:
  timezone: Europe/Athens
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("VIEWER_TITLE", "From Env")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Viewer.Title != "From Env" {
		t.Errorf("env should override file: Viewer.Title = %q", cfg.Viewer.Title)
	}
	if cfg.Analytics.Transport != TransportNATS {
		t.Errorf("Analytics.Transport = %q, want nats", cfg.Analytics.Transport)
	}
	if cfg.Analytics.NATSURL != "nats://10.0.0.5:4222" {
		t.Errorf("Analytics.NATSURL = %q", cfg.Analytics.NATSURL)
	}
	if got := cfg.Tracker.Location().String(); got != "Europe/Athens" {
		t.Errorf("Tracker.Location() = %q, want Europe/Athens", got)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"VIEWER_URL", "viewer.url"},
		{"NATS_URL", "analytics.nats_url"},
		{"BEACON_SECRET", "security.beacon_secret"},
		{"GEO_TRUST_CLIENT_IP", "geo.trust_client_ip"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := envTransformFunc(tt.key); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"empty viewer url", func(c *Config) { c.Viewer.URL = "" }, "VIEWER_URL"},
		{"non-http viewer url", func(c *Config) { c.Viewer.URL = "ftp://example.com" }, "VIEWER_URL"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"missing store path", func(c *Config) { c.Store.Path = "" }, "STORE_PATH"},
		{"in-memory store without path", func(c *Config) { c.Store.Path = ""; c.Store.InMemory = true }, ""},
		{"lookup url without placeholder", func(c *Config) { c.Geo.LookupURL = "https://ipapi.co/json/" }, "{ip}"},
		{"unknown transport", func(c *Config) { c.Analytics.Transport = "kafka" }, "ANALYTICS_TRANSPORT"},
		{"bad nats url", func(c *Config) {
			c.Analytics.Transport = TransportNATS
			c.Analytics.NATSURL = "http://localhost:4222"
		}, "NATS_URL"},
		{"embedded nats ignores url", func(c *Config) {
			c.Analytics.Transport = TransportNATS
			c.Analytics.NATSURL = ""
			c.Analytics.Embedded = true
		}, ""},
		{"engagement too short", func(c *Config) { c.Tracker.EngagementInterval = time.Millisecond }, "TRACKER_ENGAGEMENT_INTERVAL"},
		{"unknown timezone", func(c *Config) { c.Tracker.Timezone = "Mars/Olympus" }, "TRACKER_TIMEZONE"},
		{"heartbeat not below idle timeout", func(c *Config) { c.Tracker.HeartbeatInterval = c.Tracker.IdleTimeout }, "TRACKER_HEARTBEAT_INTERVAL"},
		{"zero tombstone ttl", func(c *Config) { c.Tracker.TombstoneTTL = 0 }, "TRACKER_TOMBSTONE_TTL"},
		{"short beacon secret", func(c *Config) { c.Security.BeaconSecret = "short" }, "BEACON_SECRET"},
		{"rate limit disabled skips checks", func(c *Config) {
			c.Security.RateLimitDisabled = true
			c.Security.RateLimitRequests = 0
		}, ""},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 3857}
	if got := s.Addr(); got != "127.0.0.1:3857" {
		t.Errorf("Addr() = %q, want 127.0.0.1:3857", got)
	}
}
