// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/wneessen/mapscreen/internal/logger"
	"github.com/wneessen/mapscreen/internal/places"
)

// ErrSuperseded is returned by Query and Resolve when a newer query, selection or clear replaced
// them before their results arrived.
var ErrSuperseded = errors.New("search query superseded")

// Controller runs the two search phases against a places provider. A new query cancels the
// query in flight, and results of a superseded query are never applied, so the last query issued
// wins. All requests pass a shared rate limiter.
type Controller struct {
	provider places.Provider
	limiter  *rate.Limiter
	logger   *logger.Logger

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewController returns a Controller for provider allowing limit requests per second with the
// given burst.
func NewController(provider places.Provider, log *logger.Logger, limit rate.Limit, burst int) (*Controller, error) {
	if provider == nil {
		return nil, errors.New("places provider is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if burst < 1 {
		burst = 1
	}
	return &Controller{
		provider: provider,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   log,
	}, nil
}

// Query runs the autocomplete phase for text and hands the predictions to apply. Blank text
// clears the results without a request. apply is not called when the query fails or was
// superseded, and it is called with the Controller lock held, so it must not call back into
// the Controller.
func (c *Controller) Query(ctx context.Context, text string, apply func([]places.Prediction)) error {
	seq, ctx, cancel := c.begin(ctx)
	defer cancel()

	if strings.TrimSpace(text) == "" {
		return c.finish(seq, func() { apply([]places.Prediction{}) })
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if c.superseded(seq) {
			return ErrSuperseded
		}
		return fmt.Errorf("search rate limit: %w", err)
	}
	predictions, err := c.provider.Autocomplete(ctx, text)
	if c.superseded(seq) {
		c.logger.Debug("dropping superseded search results", slog.String("query", text))
		return ErrSuperseded
	}
	if err != nil {
		c.logger.Error("autocomplete request failed", slog.String("provider", c.provider.Name()),
			slog.String("query", text), logger.Err(err))
		return err
	}
	return c.finish(seq, func() { apply(predictions) })
}

// Resolve runs the details phase for placeID and hands the place to apply. Like a query, it
// supersedes the query or resolution in flight, so late results cannot overwrite the selection,
// and it is dropped with ErrSuperseded when a newer query, selection or clear arrives first.
// apply is called with the Controller lock held.
func (c *Controller) Resolve(ctx context.Context, placeID string, apply func(places.Place)) (places.Place, error) {
	seq, ctx, cancel := c.begin(ctx)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		if c.superseded(seq) {
			return places.Place{}, ErrSuperseded
		}
		return places.Place{}, fmt.Errorf("search rate limit: %w", err)
	}
	place, err := c.provider.Details(ctx, placeID)
	if c.superseded(seq) {
		c.logger.Debug("dropping superseded place details", slog.String("place_id", placeID))
		return places.Place{}, ErrSuperseded
	}
	if err != nil {
		c.logger.Error("place details request failed", slog.String("provider", c.provider.Name()),
			slog.String("place_id", placeID), logger.Err(err))
		return places.Place{}, err
	}
	if err = c.finish(seq, func() { apply(place) }); err != nil {
		return places.Place{}, err
	}
	c.logger.Debug("resolved place", slog.String("place_id", placeID), slog.String("address", place.FormattedAddress))
	return place, nil
}

// Cancel supersedes the query in flight, if any.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) begin(ctx context.Context) (uint64, context.Context, context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return c.seq, ctx, cancel
}

func (c *Controller) superseded(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq != c.seq
}

func (c *Controller) finish(seq uint64, fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return ErrSuperseded
	}
	fn()
	return nil
}
