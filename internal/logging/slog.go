// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// NewSlogLogger returns an slog.Logger that writes through the global
// zerolog logger. Supervision libraries such as sutureslog take an
// *slog.Logger; this bridge keeps their output in the same stream and
// format as everything else.
func NewSlogLogger() *slog.Logger {
	return slog.New(&slogBridge{logger: Logger()})
}

// slogBridge implements slog.Handler on top of a zerolog.Logger.
type slogBridge struct {
	logger zerolog.Logger
	attrs  []slog.Attr
	groups []string
}

func (b *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return b.logger.GetLevel() <= bridgeLevel(level)
}

//nolint:gocritic // slog.Record is passed by value per the Handler contract
func (b *slogBridge) Handle(_ context.Context, record slog.Record) error {
	event := b.logger.WithLevel(bridgeLevel(record.Level))
	for _, attr := range b.attrs {
		event = appendAttr(event, attr, b.groups)
	}
	record.Attrs(func(attr slog.Attr) bool {
		event = appendAttr(event, attr, b.groups)
		return true
	})
	event.Msg(record.Message)
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	merged = append(merged, b.attrs...)
	merged = append(merged, attrs...)
	return &slogBridge{logger: b.logger, attrs: merged, groups: b.groups}
}

func (b *slogBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	groups := make([]string, 0, len(b.groups)+1)
	groups = append(groups, b.groups...)
	groups = append(groups, name)
	return &slogBridge{logger: b.logger, attrs: b.attrs, groups: groups}
}

// appendAttr writes one slog attribute onto a zerolog event, prefixing
// the key with any enclosing group names.
func appendAttr(event *zerolog.Event, attr slog.Attr, groups []string) *zerolog.Event {
	key := attr.Key
	for i := len(groups) - 1; i >= 0; i-- {
		key = groups[i] + "." + key
	}

	switch attr.Value.Kind() {
	case slog.KindString:
		return event.Str(key, attr.Value.String())
	case slog.KindInt64:
		return event.Int64(key, attr.Value.Int64())
	case slog.KindUint64:
		return event.Uint64(key, attr.Value.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, attr.Value.Float64())
	case slog.KindBool:
		return event.Bool(key, attr.Value.Bool())
	case slog.KindDuration:
		return event.Dur(key, attr.Value.Duration())
	case slog.KindTime:
		return event.Time(key, attr.Value.Time())
	case slog.KindGroup:
		for _, nested := range attr.Value.Group() {
			event = appendAttr(event, nested, append(groups, attr.Key))
		}
		return event
	default:
		return event.Interface(key, attr.Value.Any())
	}
}

// bridgeLevel maps slog levels onto zerolog levels.
func bridgeLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelDebug:
		return zerolog.TraceLevel
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
