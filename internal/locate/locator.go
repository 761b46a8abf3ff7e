// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package locate

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/waypost/internal/cache"
	"github.com/tomtom215/waypost/internal/config"
	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/metrics"
	"github.com/tomtom215/waypost/internal/models"
)

// Lookup outcomes recorded in metrics.
const (
	outcomeResolved    = "resolved"
	outcomeCached      = "cached"
	outcomeIPFailed    = "ip_failed"
	outcomeGeoFailed   = "geo_failed"
	outcomeRateLimited = "rate_limited"
)

// Locator resolves an approximate location for a page load. It never
// fails: any error yields models.UnknownLocation, keeping the resolved IP
// when only the geolocation step failed.
type Locator struct {
	ips           IPSource
	geo           GeoProvider
	cache         *cache.LRU[string, models.LocationInfo]
	trustClientIP bool
}

// Option customizes a Locator.
type Option func(*Locator)

// WithCache caches successful lookups per IP.
func WithCache(c *cache.LRU[string, models.LocationInfo]) Option {
	return func(l *Locator) { l.cache = c }
}

// WithTrustedClientIP uses a public client IP when one is supplied instead
// of asking the IP source.
func WithTrustedClientIP(trust bool) Option {
	return func(l *Locator) { l.trustClientIP = trust }
}

// NewLocator builds a Locator from its two providers.
func NewLocator(ips IPSource, geo GeoProvider, opts ...Option) *Locator {
	l := &Locator{ips: ips, geo: geo}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewFromConfig wires the HTTP providers, breaker, limiter and cache.
func NewFromConfig(cfg config.GeoConfig) *Locator {
	geo := NewResilientProvider(
		NewHTTPGeoProvider(cfg.LookupURL, cfg.Timeout),
		ResilienceConfig{
			Name:        "geolocation-api",
			MaxFailures: cfg.BreakerMaxFailures,
			OpenTimeout: cfg.BreakerTimeout,
			RatePerSec:  cfg.RateLimit,
			Burst:       cfg.RateBurst,
		},
	)

	opts := []Option{WithTrustedClientIP(cfg.TrustClientIP)}
	if cfg.CacheSize > 0 {
		opts = append(opts, WithCache(cache.NewLRU[string, models.LocationInfo](cfg.CacheSize, cfg.CacheTTL)))
	}

	return NewLocator(NewHTTPIPSource(cfg.IPURL, cfg.Timeout), geo, opts...)
}

// Locate resolves clientIP (or the IP source's answer) to a location.
func (l *Locator) Locate(ctx context.Context, clientIP string) models.LocationInfo {
	log := logging.Ctx(ctx)
	log.Debug().Msg("Fetching location data...")

	ip, err := l.resolveIP(ctx, clientIP)
	if err != nil {
		log.Warn().Err(err).Msg("Error getting location")
		metrics.RecordGeolocationLookup(outcomeIPFailed)
		return models.UnknownLocation()
	}
	log.Debug().Str("ip", ip).Msg("User IP")

	if l.cache != nil {
		if loc, ok := l.cache.Get(ip); ok {
			metrics.GeolocationCacheHits.Inc()
			metrics.RecordGeolocationLookup(outcomeCached)
			return loc
		}
		metrics.GeolocationCacheMisses.Inc()
	}

	start := time.Now()
	loc, err := l.geo.Lookup(ctx, ip)
	if err != nil {
		outcome := outcomeGeoFailed
		if errors.Is(err, ErrRateLimited) {
			outcome = outcomeRateLimited
		}
		metrics.RecordGeolocationLookup(outcome)
		log.Warn().Err(err).Str("ip", ip).Msg("Error getting location")

		fallback := models.UnknownLocation()
		fallback.IP = ip
		return fallback
	}

	metrics.RecordGeolocationLookup(outcomeResolved)
	log.Debug().
		Str("country", loc.Country).
		Str("city", loc.City).
		Dur("duration", time.Since(start)).
		Msg("Location Data")

	if l.cache != nil {
		l.cache.Add(ip, loc)
	}
	return loc
}

func (l *Locator) resolveIP(ctx context.Context, clientIP string) (string, error) {
	if l.trustClientIP {
		if ip := NormalizeIP(clientIP); IsValidPublicIP(ip) {
			return ip, nil
		}
	}
	return l.ips.PublicIP(ctx)
}
