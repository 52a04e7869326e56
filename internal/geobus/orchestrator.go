// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wneessen/mapscreen/internal/logger"
)

// Orchestrator runs a set of providers and publishes everything they find to a GeoBus.
type Orchestrator struct {
	Bus       *GeoBus
	Providers []Provider
}

// Track runs all providers of the Orchestrator for the given key until ctx is cancelled. It
// returns once every provider goroutine has stopped.
func (o *Orchestrator) Track(ctx context.Context, key string) {
	var wg sync.WaitGroup
	for _, p := range o.Providers {
		wg.Go(func() { o.runProvider(ctx, p, key) })
	}
	wg.Wait()
}

// runProvider keeps a provider streaming. A stream that ends or cannot be started is restarted
// after a pause that doubles up to maxBackoff. A published result resets the pause.
func (o *Orchestrator) runProvider(ctx context.Context, p Provider, key string) {
	backoff := initialBackoff
	for ctx.Err() == nil {
		published, err := o.stream(ctx, p, key)
		if err != nil {
			o.Bus.logger.Debug("geolocation provider unavailable, backing off", slog.String("provider", p.Name()),
				slog.Duration("backoff", backoff), logger.Err(err))
		}
		if published {
			backoff = initialBackoff
		}
		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

// stream publishes the results of a single LookupStream call until the stream is closed or ctx
// is cancelled.
func (o *Orchestrator) stream(ctx context.Context, p Provider, key string) (published bool, err error) {
	results, err := o.safeLookup(ctx, p, key)
	if err != nil {
		return false, err
	}
	if results == nil {
		return false, fmt.Errorf("geolocation provider %s returned no stream", p.Name())
	}
	for {
		select {
		case <-ctx.Done():
			return published, nil
		case r, ok := <-results:
			if !ok {
				return published, nil
			}
			o.Bus.Publish(r)
			published = true
		}
	}
}

// safeLookup starts the provider's stream and turns a panic into an error.
func (o *Orchestrator) safeLookup(ctx context.Context, provider Provider, key string) (ch <-chan Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("geolocation provider %s panicked: %v", provider.Name(), rec)
		}
	}()
	return provider.LookupStream(ctx, key), nil
}
