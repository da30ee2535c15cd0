// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package eventstream

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/mindtree-labs/pulseboard/internal/logging"
)

// watermillLogger bridges Watermill's LoggerAdapter onto the process-wide
// zerolog logger so broker internals log in the same format as everything else.
type watermillLogger struct {
	fields watermill.LogFields
}

// NewWatermillLogger returns a LoggerAdapter backed by the global logger.
func NewWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(logging.Error().Err(err), fields).Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(logging.Info(), fields).Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(logging.Debug(), fields).Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(logging.Trace(), fields).Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &watermillLogger{fields: merged}
}

func (l *watermillLogger) event(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	e = e.Str("component", "eventstream")
	for k, v := range l.fields {
		e = e.Interface(k, v)
	}
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
