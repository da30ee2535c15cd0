// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package timefmt maps absolute timestamps to the coarse relative-age labels
// shown on dashboard timeline entries ("Just now", "5m ago", "3mo ago").
package timefmt

import (
	"strconv"
	"time"
)

const (
	minuteMs = int64(time.Minute / time.Millisecond)
	hourMs   = int64(time.Hour / time.Millisecond)
	dayMs    = 24 * hourMs
)

// AgeLabel returns a relative-age label for then as observed at now.
//
// Thresholds (floor division of the millisecond difference, no rounding):
//
//	< 1 minute   "Just now"
//	1-59 minutes "{n}m ago"
//	1-23 hours   "{n}h ago"
//	1-29 days    "{n}d ago"
//	>= 30 days   "{n}mo ago" with n = floor(days/30)
//
// A then in the future (clock skew) clamps to "Just now".
func AgeLabel(now, then time.Time) string {
	diffMs := now.UnixMilli() - then.UnixMilli()
	if diffMs < 0 {
		diffMs = 0
	}

	minutes := diffMs / minuteMs
	hours := diffMs / hourMs
	days := diffMs / dayMs

	switch {
	case minutes < 1:
		return "Just now"
	case minutes < 60:
		return strconv.FormatInt(minutes, 10) + "m ago"
	case hours < 24:
		return strconv.FormatInt(hours, 10) + "h ago"
	case days < 30:
		return strconv.FormatInt(days, 10) + "d ago"
	default:
		return strconv.FormatInt(days/30, 10) + "mo ago"
	}
}
