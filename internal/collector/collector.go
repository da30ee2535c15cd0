// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package collector keeps the metric snapshot consistent with the database.
//
// One worker goroutine per tracked collection consumes change notifications
// and requeries full collection state. Each worker's notify channel has
// capacity one, so notifications arriving while a requery is in flight
// collapse into a single pending refresh. A requery always runs strictly
// after the notification that triggered it, which rules out a stale result
// overwriting a newer one.
package collector

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/metrics"
	"github.com/mindtree-labs/pulseboard/internal/models"
	"github.com/mindtree-labs/pulseboard/internal/rollup"
	"github.com/mindtree-labs/pulseboard/internal/snapshot"
)

// Queries is the database surface the collector refreshes from.
// *database.DB satisfies it; tests substitute fakes.
type Queries interface {
	ProjectCounts(ctx context.Context) (total, visible int, err error)
	MessageCounts(ctx context.Context) (total, unread int, err error)
	AnalyticsTotals(ctx context.Context) (totalViews, profileVisits int, err error)
	RecentProjectViewEvents(ctx context.Context, limit int) ([]models.ViewEvent, error)
	MediaCount(ctx context.Context) (int, error)
}

// ChangeSource delivers per-collection change notification channels.
// *eventstream.Subscriber satisfies it. The returned channel may or may
// not be closed when ctx is canceled; workers stop on cancellation either
// way and never require a close.
type ChangeSource interface {
	Subscribe(ctx context.Context, collection models.Collection) (<-chan *message.Message, error)
}

// Config holds collector tuning.
type Config struct {
	// RecentEventLimit caps how many page view events feed the rollup.
	RecentEventLimit int

	// LaunchDate anchors the page_live_days counter.
	LaunchDate time.Time

	// UptimeInterval is how often page_live_days is recomputed.
	UptimeInterval time.Duration
}

// Collector subscribes to collection changes and folds requery results
// into the snapshot store.
type Collector struct {
	queries Queries
	snap    *snapshot.Store
	source  ChangeSource
	cfg     Config
	now     func() time.Time

	breakers map[models.Collection]*gobreaker.CircuitBreaker[struct{}]

	started atomic.Bool

	mu       sync.Mutex
	degraded map[models.Collection]bool
}

// New creates a collector. The snapshot store and change source are owned
// by the caller.
func New(queries Queries, snap *snapshot.Store, source ChangeSource, cfg Config) *Collector {
	if cfg.RecentEventLimit <= 0 {
		cfg.RecentEventLimit = 50
	}
	if cfg.UptimeInterval <= 0 {
		cfg.UptimeInterval = time.Hour
	}

	breakers := make(map[models.Collection]*gobreaker.CircuitBreaker[struct{}], len(models.Collections()))
	for _, collection := range models.Collections() {
		collection := collection
		breakers[collection] = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:     "requery-" + string(collection),
			Interval: time.Minute,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.BreakerState.WithLabelValues(string(collection)).Set(float64(to))
				logging.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state change")
			},
		})
	}

	return &Collector{
		queries:  queries,
		snap:     snap,
		source:   source,
		cfg:      cfg,
		now:      time.Now,
		breakers: breakers,
		degraded: make(map[models.Collection]bool),
	}
}

// String identifies the collector in supervisor logs.
func (c *Collector) String() string {
	return "metric-collector"
}

// Run performs the initial full load, then consumes change notifications
// until the context is canceled. A second concurrent Run returns
// ErrAlreadyStarted.
func (c *Collector) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer c.started.Store(false)

	// Subscriptions are established before the initial load so changes
	// landing during the load still trigger a refresh afterwards.
	channels := make(map[models.Collection]<-chan *message.Message, len(models.Collections()))
	for _, collection := range models.Collections() {
		msgs, err := c.source.Subscribe(ctx, collection)
		if err != nil {
			// The snapshot keeps serving its last known values; the
			// degraded marker tells readers this collection is stale
			// until a restarted Run resubscribes and refreshes it.
			c.setDegraded(collection, true)
			return &SubscriptionSetupError{Collection: collection, Err: err}
		}
		channels[collection] = msgs
	}

	c.refreshAll(ctx)
	c.updatePageLiveDays()

	var wg sync.WaitGroup
	for _, collection := range models.Collections() {
		wg.Add(1)
		go func(collection models.Collection, msgs <-chan *message.Message) {
			defer wg.Done()
			c.runWorker(ctx, collection, msgs)
		}(collection, channels[collection])
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.runUptimeWorker(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// runWorker serializes refreshes for one collection. The notify channel's
// single slot is the coalescing dirty flag.
func (c *Collector) runWorker(ctx context.Context, collection models.Collection, msgs <-chan *message.Message) {
	notify := make(chan struct{}, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				metrics.NotificationsReceived.WithLabelValues(string(collection)).Inc()
				select {
				case notify <- struct{}{}:
				default:
					metrics.NotificationsCoalesced.WithLabelValues(string(collection)).Inc()
				}
				msg.Ack()
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-notify:
			if err := c.refresh(ctx, collection); err != nil {
				logging.Error().Err(err).Str("collection", string(collection)).Msg("refresh failed")
			}
		}
	}
}

// refreshAll loads every collection once. Failures leave the collection
// degraded with its zero-value snapshot fields intact.
func (c *Collector) refreshAll(ctx context.Context) {
	for _, collection := range models.Collections() {
		if err := c.refresh(ctx, collection); err != nil {
			logging.Error().Err(err).Str("collection", string(collection)).Msg("initial load failed")
		}
	}
}

// refresh requeries one collection and applies the result to the snapshot.
// The requery runs inside the collection's circuit breaker.
func (c *Collector) refresh(ctx context.Context, collection models.Collection) error {
	start := c.now()
	_, err := c.breakers[collection].Execute(func() (struct{}, error) {
		return struct{}{}, c.apply(ctx, collection)
	})
	metrics.ObserveRequery(string(collection), c.now().Sub(start), err)

	c.setDegraded(collection, err != nil)
	if err != nil {
		return &TransientFetchError{Collection: collection, Err: err}
	}
	return nil
}

func (c *Collector) apply(ctx context.Context, collection models.Collection) error {
	switch collection {
	case models.CollectionProjects:
		total, visible, err := c.queries.ProjectCounts(ctx)
		if err != nil {
			return err
		}
		c.snap.SetProjectCounts(total, visible)

	case models.CollectionMessages:
		total, unread, err := c.queries.MessageCounts(ctx)
		if err != nil {
			return err
		}
		c.snap.SetMessageCounts(total, unread)

	case models.CollectionAnalytics:
		totalViews, profileVisits, err := c.queries.AnalyticsTotals(ctx)
		if err != nil {
			return err
		}
		events, err := c.queries.RecentProjectViewEvents(ctx, c.cfg.RecentEventLimit)
		if err != nil {
			return err
		}
		recent := rollup.Project(events, c.now())
		c.snap.SetAnalytics(totalViews, profileVisits, recent)

	case models.CollectionMedia:
		count, err := c.queries.MediaCount(ctx)
		if err != nil {
			return err
		}
		c.snap.SetMediaCount(count)
	}
	return nil
}

// setDegraded maintains the sorted list of collections whose last requery
// failed. The snapshot is only touched when membership changes.
func (c *Collector) setDegraded(collection models.Collection, degraded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.degraded[collection] == degraded {
		return
	}
	if degraded {
		c.degraded[collection] = true
	} else {
		delete(c.degraded, collection)
	}

	names := make([]string, 0, len(c.degraded))
	for col := range c.degraded {
		names = append(names, string(col))
	}
	sort.Strings(names)
	c.snap.SetDegraded(names)
}

// runUptimeWorker recomputes page_live_days on a fixed interval so the
// counter rolls over without any traffic.
func (c *Collector) runUptimeWorker(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.UptimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.updatePageLiveDays()
		}
	}
}

func (c *Collector) updatePageLiveDays() {
	if c.cfg.LaunchDate.IsZero() {
		return
	}
	days := int(c.now().Sub(c.cfg.LaunchDate).Hours() / 24)
	if days < 0 {
		days = 0
	}
	c.snap.SetPageLiveDays(days)
}
