// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package rollup folds raw view events into the ranked "recent project
// views" summary. The projection is pure: same events and same clock reading
// always produce the same output, which keeps the recompute cycle trivially
// testable and safe to rerun on every change notification.
package rollup

import (
	"sort"
	"strings"
	"time"

	"github.com/mindtree-labs/pulseboard/internal/models"
	"github.com/mindtree-labs/pulseboard/internal/timefmt"
)

// MaxEntries bounds the recent-views ranking shown on the dashboard.
const MaxEntries = 5

// UnknownProject is the display name for paths with no extractable slug.
const UnknownProject = "Unknown"

// group accumulates one project's events during projection.
type group struct {
	name       string
	count      int
	lastViewed time.Time
}

// Project folds events into at most MaxEntries ProjectViewSummary entries,
// sorted descending by last view time. Events are grouped by normalized
// project name, so two path spellings of the same project merge into one
// entry. Only page_view events count; the store query already filters, but
// rows are re-checked so a malformed batch degrades to a smaller rollup
// instead of a wrong one.
//
// Labels are computed against now at projection time, never cached: a
// rollup recomputed an hour later over identical events yields fresh labels.
func Project(events []models.ViewEvent, now time.Time) []models.ProjectViewSummary {
	groups := make(map[string]*group)

	for _, ev := range events {
		if ev.EventType != models.EventPageView {
			continue
		}
		name := NormalizeProjectName(ev.Path)
		g, ok := groups[name]
		if !ok {
			g = &group{name: name}
			groups[name] = g
		}
		g.count++
		if ev.OccurredAt.After(g.lastViewed) {
			g.lastViewed = ev.OccurredAt
		}
	}

	ranked := make([]*group, 0, len(groups))
	for _, g := range groups {
		ranked = append(ranked, g)
	}

	// Most recent first; ties break on name so output is deterministic.
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].lastViewed.Equal(ranked[j].lastViewed) {
			return ranked[i].lastViewed.After(ranked[j].lastViewed)
		}
		return ranked[i].name < ranked[j].name
	})

	if len(ranked) > MaxEntries {
		ranked = ranked[:MaxEntries]
	}

	out := make([]models.ProjectViewSummary, 0, len(ranked))
	for _, g := range ranked {
		out = append(out, models.ProjectViewSummary{
			ProjectName:     g.name,
			ViewCount:       g.count,
			LastViewedAt:    g.lastViewed,
			LastViewedLabel: timefmt.AgeLabel(now, g.lastViewed),
		})
	}
	return out
}

// NormalizeProjectName derives a display name from the trailing segment of a
// project-detail path: "/project/my-cool-app" becomes "My Cool App". The
// normalization is case-insensitive, so distinct encodings of the same slug
// collapse to one name. Paths with no extractable segment map to Unknown.
func NormalizeProjectName(path string) string {
	slug := path[strings.LastIndex(path, "/")+1:]
	if slug == "" {
		return UnknownProject
	}

	words := strings.Split(strings.ToLower(slug), "-")
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		parts = append(parts, strings.ToUpper(w[:1])+w[1:])
	}
	if len(parts) == 0 {
		return UnknownProject
	}
	return strings.Join(parts, " ")
}
