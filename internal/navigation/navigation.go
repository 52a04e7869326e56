// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/logger"
)

// DirectionsBaseURL is the base of the external maps deep link.
const DirectionsBaseURL = "https://www.google.com/maps/dir/"

// ErrUnsupportedDeepLink is returned when no handler for the deep link is available.
var ErrUnsupportedDeepLink = errors.New("deep link not supported")

// Opener dispatches URLs to the platform.
type Opener interface {
	Name() string
	CanOpen(ctx context.Context, uri string) bool
	Open(ctx context.Context, uri string) error
}

// DirectionsURL returns the deep link that opens turn-by-turn directions to dest in an external
// maps app.
func DirectionsURL(dest geo.Position) string {
	return DirectionsBaseURL + "?api=1&destination=" + strconv.FormatFloat(dest.Latitude, 'f', -1, 64) +
		"," + strconv.FormatFloat(dest.Longitude, 'f', -1, 64)
}

// Dispatcher opens directions deep links through an Opener.
type Dispatcher struct {
	opener Opener
	logger *logger.Logger
}

func NewDispatcher(opener Opener, log *logger.Logger) (*Dispatcher, error) {
	if opener == nil {
		return nil, errors.New("opener is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &Dispatcher{opener: opener, logger: log}, nil
}

// OpenDirections opens directions to dest. It returns the deep link along with any error, so
// callers can show the link when dispatch failed.
func (d *Dispatcher) OpenDirections(ctx context.Context, dest geo.Position) (string, error) {
	uri := DirectionsURL(dest)
	if !d.opener.CanOpen(ctx, uri) {
		d.logger.Error("cannot open deep link", slog.String("opener", d.opener.Name()), slog.String("url", uri))
		return uri, ErrUnsupportedDeepLink
	}
	if err := d.opener.Open(ctx, uri); err != nil {
		d.logger.Error("failed to open deep link", slog.String("opener", d.opener.Name()), slog.String("url", uri),
			logger.Err(err))
		return uri, fmt.Errorf("failed to open deep link: %w", err)
	}
	d.logger.Debug("opened deep link", slog.String("opener", d.opener.Name()), slog.String("url", uri))
	return uri, nil
}
