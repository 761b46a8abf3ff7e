// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package models

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// Unknown is the sentinel stored for any location field that could not be resolved.
const Unknown = "Unknown"

// Coordinate is a latitude or longitude that may be unknown.
// It encodes as a JSON number when known and as "Unknown" otherwise.
type Coordinate struct {
	Value float64
	Known bool
}

// KnownCoordinate returns a known coordinate. Zero is treated as unknown,
// matching how the geolocation provider reports missing positions.
func KnownCoordinate(v float64) Coordinate {
	if v == 0 {
		return Coordinate{}
	}
	return Coordinate{Value: v, Known: true}
}

// String returns the decimal value or Unknown.
func (c Coordinate) String() string {
	if !c.Known {
		return Unknown
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

// MarshalJSON implements json.Marshaler.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.Known {
		return []byte(`"` + Unknown + `"`), nil
	}
	return json.Marshal(c.Value)
}

// UnmarshalJSON accepts a number, a numeric string or the Unknown sentinel.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Coordinate{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("coordinate: %w", err)
		}
		if s == "" || s == Unknown {
			*c = Coordinate{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("coordinate: %q is not a number", s)
		}
		*c = KnownCoordinate(v)
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("coordinate: %w", err)
	}
	*c = KnownCoordinate(v)
	return nil
}

// LocationInfo is the approximate location attached to visitor and visit records.
type LocationInfo struct {
	Country   string     `json:"country"`
	Region    string     `json:"region"`
	City      string     `json:"city"`
	Latitude  Coordinate `json:"latitude"`
	Longitude Coordinate `json:"longitude"`
	IP        string     `json:"ip"`
}

// UnknownLocation returns a LocationInfo with every field set to Unknown.
func UnknownLocation() LocationInfo {
	return LocationInfo{
		Country: Unknown,
		Region:  Unknown,
		City:    Unknown,
		IP:      Unknown,
	}
}

// IsUnknown reports whether nothing beyond possibly the IP was resolved.
func (l LocationInfo) IsUnknown() bool {
	return l.Country == Unknown && l.Region == Unknown && l.City == Unknown &&
		!l.Latitude.Known && !l.Longitude.Known
}

// OrUnknown returns s, or Unknown when s is empty.
func OrUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
