// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package locate

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/metrics"
	"github.com/tomtom215/waypost/internal/models"
)

// ErrRateLimited is returned when the local lookup budget is exhausted.
var ErrRateLimited = errors.New("geolocation rate limit exceeded")

// ResilienceConfig tunes the breaker and limiter around a GeoProvider.
type ResilienceConfig struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
	RatePerSec  float64
	Burst       int
}

// ResilientProvider wraps a GeoProvider with a token-bucket limiter and a
// circuit breaker. Rejected lookups (error bodies) count as successful
// calls for the breaker since the provider is healthy.
type ResilientProvider struct {
	next    GeoProvider
	cb      *gobreaker.CircuitBreaker[models.LocationInfo]
	limiter *rate.Limiter
	name    string
}

// NewResilientProvider wraps next.
//
// Breaker configuration:
//   - Opens after MaxFailures consecutive failures
//   - Waits OpenTimeout before probing in half-open state
//   - Allows 1 probe request in half-open state
func NewResilientProvider(next GeoProvider, cfg ResilienceConfig) *ResilientProvider {
	if cfg.Name == "" {
		cfg.Name = "geolocation-api"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	limit := rate.Limit(cfg.RatePerSec)
	if cfg.RatePerSec <= 0 {
		limit = rate.Inf
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[models.LocationInfo](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= cfg.MaxFailures
			if shouldTrip {
				logging.Warn().
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrLookupRejected) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &ResilientProvider{
		next:    next,
		cb:      cb,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		name:    cfg.Name,
	}
}

// Lookup applies the limiter, then runs the wrapped lookup through the breaker.
func (p *ResilientProvider) Lookup(ctx context.Context, ip string) (models.LocationInfo, error) {
	if !p.limiter.Allow() {
		return models.LocationInfo{}, ErrRateLimited
	}

	loc, err := p.cb.Execute(func() (models.LocationInfo, error) {
		return p.next.Lookup(ctx, ip)
	})

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(p.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(p.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(p.name, "failure").Inc()
	}
	return loc, err
}

// State returns the breaker state name.
func (p *ResilientProvider) State() string {
	return stateToString(p.cb.State())
}

// stateToFloat converts circuit breaker state to a gauge value
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
