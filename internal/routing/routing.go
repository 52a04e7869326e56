// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/logger"
	"github.com/wneessen/mapscreen/internal/vartype"
)

const (
	ProfileDrivingCar     = "driving-car"
	ProfileCyclingRegular = "cycling-regular"
	ProfileFootWalking    = "foot-walking"
)

var (
	// ErrNoOrigin is returned when a route is requested without a known origin.
	ErrNoOrigin = errors.New("no origin position available")

	// ErrInvalidDestination is returned when the destination is not a valid position.
	ErrInvalidDestination = errors.New("invalid destination position")

	// ErrEmptyRoute is returned by a Router when the response carries no route geometry.
	ErrEmptyRoute = errors.New("routing provider returned no route")

	// ErrNoRoute is returned by the Fetcher when no profile produced a route.
	ErrNoRoute = errors.New("no route found for any travel profile")
)

// Route is a path between two positions as returned by a routing provider. Coordinates are in
// latitude/longitude field order.
type Route struct {
	Profile     string
	Coordinates []geo.Position
	Distance    float64 // meters
	Duration    float64 // seconds
}

// Router fetches a single route for a travel profile.
type Router interface {
	Name() string
	Route(ctx context.Context, profile string, origin, dest geo.Position) (Route, error)
}

// Fetcher requests routes from a Router. It tries the primary profile first and the fallback
// profiles in order when the primary one yields no route.
type Fetcher struct {
	router   Router
	logger   *logger.Logger
	profiles []string
}

// NewFetcher returns a Fetcher for the given router and profiles.
func NewFetcher(router Router, log *logger.Logger, primary string, fallback ...string) (*Fetcher, error) {
	if router == nil {
		return nil, errors.New("router is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if primary == "" {
		primary = ProfileDrivingCar
	}

	profiles := []string{primary}
	seen := map[string]struct{}{primary: {}}
	for _, profile := range fallback {
		if _, ok := seen[profile]; ok || profile == "" {
			continue
		}
		seen[profile] = struct{}{}
		profiles = append(profiles, profile)
	}
	return &Fetcher{router: router, logger: log, profiles: profiles}, nil
}

// Profiles returns the profiles the Fetcher tries, in order.
func (f *Fetcher) Profiles() []string {
	return append([]string(nil), f.profiles...)
}

// Fetch returns a route from origin to dest. An unset or invalid origin fails with ErrNoOrigin
// before any request is made. Each profile is tried in order until one returns a non-empty route.
func (f *Fetcher) Fetch(ctx context.Context, origin vartype.Variable[geo.Position], dest geo.Position) (Route, error) {
	from, ok := origin.Get()
	if !ok || !from.Valid() {
		return Route{}, ErrNoOrigin
	}
	if !dest.Valid() {
		return Route{}, ErrInvalidDestination
	}

	var errs []error
	for i, profile := range f.profiles {
		route, err := f.router.Route(ctx, profile, from, dest)
		if err == nil && len(route.Coordinates) == 0 {
			err = ErrEmptyRoute
		}
		if err == nil {
			route.Profile = profile
			return route, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Route{}, ctxErr
		}
		errs = append(errs, fmt.Errorf("%s: %w", profile, err))

		attrs := []any{slog.String("provider", f.router.Name()), slog.String("profile", profile), logger.Err(err)}
		if i+1 < len(f.profiles) {
			attrs = append(attrs, slog.String("next_profile", f.profiles[i+1]))
			f.logger.Info("route unavailable, trying alternate profile", attrs...)
			continue
		}
		f.logger.Info("route unavailable", attrs...)
	}
	return Route{}, fmt.Errorf("%w: %w", ErrNoRoute, errors.Join(errs...))
}
