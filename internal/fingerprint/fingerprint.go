// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ErrNoComponents is returned when no identifying component is available.
var ErrNoComponents = errors.New("fingerprint: no components to identify the browser")

// visitorIDPattern is the accepted shape of a browser-computed visitor id.
var visitorIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Result is the outcome of identifying a browser.
type Result struct {
	VisitorID string

	// Derived is true when the id was computed from request components
	// rather than supplied by the browser.
	Derived bool
}

// Agent identifies one browser.
type Agent interface {
	Get(ctx context.Context) (Result, error)
}

// Provider loads an Agent. Loading is separate from identification so a
// provider backed by a remote service can prepare once per page load.
type Provider interface {
	Load(ctx context.Context) (Agent, error)
}

// Hints are the identifying components reported for a page load.
type Hints struct {
	// VisitorID is the id computed in the browser, if any.
	VisitorID string

	UserAgent      string
	AcceptLanguage string
	ClientIP       string
	Screen         string
	Timezone       string
}

// ValidVisitorID reports whether id is an acceptable browser-supplied id.
func ValidVisitorID(id string) bool {
	return visitorIDPattern.MatchString(id)
}

// HintsProvider identifies a browser from Hints.
type HintsProvider struct {
	hints Hints
}

// NewProvider returns a Provider for one page load's hints.
func NewProvider(h Hints) *HintsProvider {
	return &HintsProvider{hints: h}
}

// Load implements Provider.
func (p *HintsProvider) Load(ctx context.Context) (Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return hintsAgent{hints: p.hints}, nil
}

type hintsAgent struct {
	hints Hints
}

// Get returns the browser-supplied id when valid, otherwise an id derived
// from the request components.
func (a hintsAgent) Get(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if ValidVisitorID(a.hints.VisitorID) {
		return Result{VisitorID: a.hints.VisitorID}, nil
	}

	id, err := Derive(a.hints)
	if err != nil {
		return Result{}, err
	}
	return Result{VisitorID: id, Derived: true}, nil
}

// Derive hashes the request components into a 16 hex character id. The
// supplied VisitorID is not part of the hash.
func Derive(h Hints) (string, error) {
	components := []struct{ name, value string }{
		{"ua", h.UserAgent},
		{"lang", h.AcceptLanguage},
		{"ip", h.ClientIP},
		{"screen", h.Screen},
		{"tz", h.Timezone},
	}

	d := xxhash.New()
	used := 0
	for _, c := range components {
		v := strings.TrimSpace(c.value)
		if v == "" {
			continue
		}
		used++
		_, _ = d.WriteString(c.name)
		_, _ = d.WriteString("=")
		_, _ = d.WriteString(v)
		_, _ = d.WriteString("\x00")
	}
	if used == 0 {
		return "", ErrNoComponents
	}
	return fmt.Sprintf("%016x", d.Sum64()), nil
}

// Identify loads an agent from p and returns the visitor id.
func Identify(ctx context.Context, p Provider) (Result, error) {
	agent, err := p.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load fingerprint agent: %w", err)
	}
	res, err := agent.Get(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("get fingerprint: %w", err)
	}
	return res, nil
}
