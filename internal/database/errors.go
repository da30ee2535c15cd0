// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package database

import "fmt"

// MalformedRowError records one fetched row that failed shape validation.
// Aggregation skips the row and continues; the anomaly is logged and counted
// but never aborts a recompute cycle.
type MalformedRowError struct {
	Collection string
	Reason     string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed %s row: %s", e.Collection, e.Reason)
}
