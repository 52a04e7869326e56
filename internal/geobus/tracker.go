// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/logger"
	"github.com/wneessen/mapscreen/internal/permission"
)

// TrackerKey is the bus key the tracker publishes and subscribes under.
const TrackerKey = "mapscreen"

const subscriptionBuffer = 32

// ErrNoProviders is returned by Watch when no geolocation provider is configured.
var ErrNoProviders = errors.New("no geolocation providers configured")

// Tracker is the location service of the map screen. It asks for permission and turns the
// results of the configured providers into a filtered stream of positions.
type Tracker struct {
	bus        *GeoBus
	logger     *logger.Logger
	permission permission.Requester
	providers  []Provider
}

// Subscription is an active position watch.
type Subscription struct {
	cancel context.CancelFunc
	unsub  func()
	done   chan struct{}
	once   sync.Once
}

// NewTracker returns a Tracker publishing the results of providers to bus.
func NewTracker(bus *GeoBus, requester permission.Requester, providers []Provider) (*Tracker, error) {
	if bus == nil {
		return nil, errors.New("geobus is required")
	}
	if requester == nil {
		return nil, errors.New("permission requester is required")
	}
	return &Tracker{
		bus:        bus,
		logger:     bus.logger,
		permission: requester,
		providers:  providers,
	}, nil
}

// RequestPermission asks for foreground location access.
func (t *Tracker) RequestPermission(ctx context.Context) (permission.Status, error) {
	return t.permission.RequestForegroundPermission(ctx)
}

// Watch starts all providers and calls fn for every position that satisfies opts. fn is called
// from a single goroutine. The watch ends when ctx is cancelled or the subscription is removed.
func (t *Tracker) Watch(ctx context.Context, opts WatchOptions, fn func(geo.Position)) (*Subscription, error) {
	if len(t.providers) == 0 {
		return nil, ErrNoProviders
	}
	if fn == nil {
		return nil, errors.New("position callback is required")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	results, unsub := t.bus.Subscribe(TrackerKey, subscriptionBuffer)
	sub := &Subscription{cancel: cancel, unsub: unsub, done: make(chan struct{})}

	go t.bus.NewOrchestrator(t.providers).Track(watchCtx, TrackerKey)
	go func() {
		defer close(sub.done)
		filter := &watchFilter{opts: opts}
		for {
			select {
			case <-watchCtx.Done():
				return
			case r, ok := <-results:
				if !ok {
					return
				}
				if !filter.accept(r) {
					continue
				}
				t.logger.Debug("position update", slog.Float64("lat", r.Lat), slog.Float64("lon", r.Lon),
					slog.Float64("accuracy", r.AccuracyMeters), slog.String("source", r.Source))
				fn(r.Coordinate().Position())
			}
		}
	}()

	t.logger.Debug("started position watch", slog.String("accuracy", opts.Accuracy.String()),
		slog.Duration("time_interval", opts.TimeInterval), slog.Float64("distance_interval", opts.DistanceInterval))
	return sub, nil
}

// Remove stops the watch and releases the bus subscription. After Remove returns, the position
// callback is not called anymore. Calling Remove more than once has no further effect.
func (s *Subscription) Remove() {
	s.once.Do(func() {
		s.cancel()
		s.unsub()
		<-s.done
	})
}
