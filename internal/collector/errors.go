// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package collector

import (
	"errors"
	"fmt"

	"github.com/mindtree-labs/pulseboard/internal/models"
)

// ErrAlreadyStarted is returned when Run is called on a running collector.
var ErrAlreadyStarted = errors.New("collector already started")

// TransientFetchError wraps a failed requery. The previous snapshot values
// for the collection stay in place and the feed is marked degraded until a
// later requery succeeds.
type TransientFetchError struct {
	Collection models.Collection
	Err        error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("refresh %s: %v", e.Collection, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// SubscriptionSetupError wraps a failure to establish a change subscription.
// Setup errors are fatal for the collector run, unlike transient fetch errors.
type SubscriptionSetupError struct {
	Collection models.Collection
	Err        error
}

func (e *SubscriptionSetupError) Error() string {
	return fmt.Sprintf("subscribe %s: %v", e.Collection, e.Err)
}

func (e *SubscriptionSetupError) Unwrap() error {
	return e.Err
}
