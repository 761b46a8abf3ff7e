// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package locate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypost/internal/metrics"
	"github.com/tomtom215/waypost/internal/models"
)

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 64 << 10

// ErrLookupRejected means the provider answered but reported an error in
// the body (reserved address, quota exhausted). It does not trip the breaker.
var ErrLookupRejected = errors.New("geolocation lookup rejected")

// IPSource reports the caller's public IP address.
type IPSource interface {
	PublicIP(ctx context.Context) (string, error)
}

// GeoProvider resolves an IP address to an approximate location.
type GeoProvider interface {
	Lookup(ctx context.Context, ip string) (models.LocationInfo, error)
}

// HTTPIPSource queries an ipify-compatible endpoint returning {"ip": "..."}.
type HTTPIPSource struct {
	client *http.Client
	url    string
}

// NewHTTPIPSource creates an IPSource for endpoint.
func NewHTTPIPSource(endpoint string, timeout time.Duration) *HTTPIPSource {
	return &HTTPIPSource{
		client: &http.Client{Timeout: timeout},
		url:    endpoint,
	}
}

type ipResponse struct {
	IP string `json:"ip"`
}

// PublicIP fetches and validates the reported address.
func (s *HTTPIPSource) PublicIP(ctx context.Context) (string, error) {
	var result ipResponse
	status, err := getJSON(ctx, s.client, s.url, "ip", &result)
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", fmt.Errorf("ip endpoint returned status %d", status)
	}
	if net.ParseIP(result.IP) == nil {
		return "", fmt.Errorf("ip endpoint returned invalid address %q", result.IP)
	}
	return result.IP, nil
}

// HTTPGeoProvider queries an ipapi.co-compatible endpoint. The URL template
// must contain "{ip}".
type HTTPGeoProvider struct {
	client   *http.Client
	template string
}

// NewHTTPGeoProvider creates a GeoProvider for the URL template.
func NewHTTPGeoProvider(template string, timeout time.Duration) *HTTPGeoProvider {
	return &HTTPGeoProvider{
		client:   &http.Client{Timeout: timeout},
		template: template,
	}
}

// geoResponse is the subset of the ipapi.co body we use.
type geoResponse struct {
	CountryName string   `json:"country_name"`
	Region      string   `json:"region"`
	City        string   `json:"city"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Error       bool     `json:"error"`
	Reason      string   `json:"reason"`
}

// Lookup resolves ip. Missing fields come back as models.Unknown.
func (p *HTTPGeoProvider) Lookup(ctx context.Context, ip string) (models.LocationInfo, error) {
	endpoint := strings.ReplaceAll(p.template, "{ip}", url.PathEscape(ip))

	var result geoResponse
	status, err := getJSON(ctx, p.client, endpoint, "geo", &result)
	if err != nil {
		return models.LocationInfo{}, err
	}
	if result.Error {
		return models.LocationInfo{}, fmt.Errorf("%w: %s", ErrLookupRejected, result.Reason)
	}
	if !isSuccess(status) {
		return models.LocationInfo{}, fmt.Errorf("geo endpoint returned status %d", status)
	}

	loc := models.LocationInfo{
		Country: models.OrUnknown(result.CountryName),
		Region:  models.OrUnknown(result.Region),
		City:    models.OrUnknown(result.City),
		IP:      ip,
	}
	if result.Latitude != nil {
		loc.Latitude = models.KnownCoordinate(*result.Latitude)
	}
	if result.Longitude != nil {
		loc.Longitude = models.KnownCoordinate(*result.Longitude)
	}
	return loc, nil
}

// getJSON performs a GET and decodes a JSON body into dst, returning the
// HTTP status. Bodies of 4xx responses are still decoded since ipapi.co
// reports errors as JSON; 5xx and undecodable bodies are errors.
func getJSON(ctx context.Context, client *http.Client, endpoint, label string, dst any) (int, error) {
	start := time.Now()
	defer func() {
		metrics.GeolocationAPICallDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s request: %w", label, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to query %s endpoint: %w", label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return resp.StatusCode, fmt.Errorf("%s endpoint returned status %d", label, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read %s response: %w", label, err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		if !isSuccess(resp.StatusCode) {
			return resp.StatusCode, fmt.Errorf("%s endpoint returned status %d", label, resp.StatusCode)
		}
		return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", label, err)
	}
	return resp.StatusCode, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}
