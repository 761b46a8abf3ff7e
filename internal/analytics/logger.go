// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package analytics

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/tomtom215/waypost/internal/logging"
)

// ZerologAdapter implements watermill.LoggerAdapter on zerolog.
type ZerologAdapter struct {
	log zerolog.Logger
}

// NewZerologAdapter returns an adapter tagged with the analytics component.
func NewZerologAdapter() *ZerologAdapter {
	return &ZerologAdapter{log: logging.WithComponent("analytics")}
}

// NewZerologAdapterFrom wraps an existing logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewZerologAdapterFrom(l zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{log: l}
}

func withFields(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}

// Error implements watermill.LoggerAdapter.
func (a *ZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	withFields(a.log.Error().Err(err), fields).Msg(msg)
}

// Info implements watermill.LoggerAdapter. Watermill's info output is
// lifecycle noise, so it is logged at debug.
func (a *ZerologAdapter) Info(msg string, fields watermill.LogFields) {
	withFields(a.log.Debug(), fields).Msg(msg)
}

// Debug implements watermill.LoggerAdapter.
func (a *ZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	withFields(a.log.Trace(), fields).Msg(msg)
}

// Trace implements watermill.LoggerAdapter.
func (a *ZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	withFields(a.log.Trace(), fields).Msg(msg)
}

// With implements watermill.LoggerAdapter.
func (a *ZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := a.log.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &ZerologAdapter{log: ctx.Logger()}
}
