// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package api

import (
	"bytes"
	"crypto/rand"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/tracker"
)

//go:embed templates/shell.html
var templateFS embed.FS

var shellTemplate = template.Must(template.ParseFS(templateFS, "templates/shell.html"))

type shellData struct {
	ViewerURL       string
	ViewerTitle     string
	Nonce           string
	HeartbeatMillis int64
}

// Shell renders the full-viewport page that embeds the viewer and reports
// page-load beacons back to the API.
func (h *Handler) Shell(w http.ResponseWriter, r *http.Request) {
	nonce, err := newNonce()
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to generate CSP nonce")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	err = shellTemplate.Execute(&buf, shellData{
		ViewerURL:   h.config.Viewer.URL,
		ViewerTitle: h.config.Viewer.Title,
		Nonce:       nonce,

		HeartbeatMillis: h.heartbeatInterval().Milliseconds(),
	})
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to execute shell template")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", shellCSP(nonce, h.config.Viewer.URL))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = buf.WriteTo(w)
}

func (h *Handler) heartbeatInterval() time.Duration {
	if d := h.config.Tracker.HeartbeatInterval; d > 0 {
		return d
	}
	return tracker.DefaultHeartbeatInterval
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// shellCSP allows the inline script and style by nonce, beacons to this
// origin, and framing of the viewer origin only.
func shellCSP(nonce, viewerURL string) string {
	frameSrc := "'none'"
	if u, err := url.Parse(viewerURL); err == nil && u.Scheme != "" && u.Host != "" {
		frameSrc = u.Scheme + "://" + u.Host
	}
	return fmt.Sprintf(
		"default-src 'self'; script-src 'nonce-%[1]s'; style-src 'nonce-%[1]s'; connect-src 'self'; frame-src %[2]s; object-src 'none'; base-uri 'none'",
		nonce, frameSrc,
	)
}
