// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package beacon

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/waypost/internal/config"
	"github.com/tomtom215/waypost/internal/logging"
)

const (
	issuer          = "waypost"
	generatedSecret = 32
	defaultTTL      = 24 * time.Hour
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("beacon: invalid token")

// Claims are carried by a page-load token.
type Claims struct {
	VisitorID string `json:"vid"`
	jwt.RegisteredClaims
}

// LoadID returns the page-load id the token was issued for.
func (c *Claims) LoadID() string {
	return c.Subject
}

// Manager issues and verifies page-load tokens signed with HS256.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a Manager from the security config. An empty secret
// is replaced by a random one, so tokens do not survive a restart.
func NewManager(cfg config.SecurityConfig) (*Manager, error) {
	secret := []byte(cfg.BeaconSecret)
	if len(secret) == 0 {
		secret = make([]byte, generatedSecret)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate beacon secret: %w", err)
		}
		logging.Warn().Msg("BEACON_SECRET not set, using a per-process secret")
	}

	ttl := cfg.BeaconTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Manager{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for a page load.
func (m *Manager) Issue(loadID, visitorID string) (string, error) {
	now := m.now()
	claims := &Claims{
		VisitorID: visitorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   loadID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign beacon token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, expiry and issuer of token and that it was
// issued for loadID.
func (m *Manager) Verify(token, loadID string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.LoadID() != loadID {
		return nil, fmt.Errorf("%w: issued for another page load", ErrInvalidToken)
	}
	return claims, nil
}
