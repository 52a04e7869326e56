// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package screen implements the map screen: it owns the screen state and reacts to location
// updates, map and marker taps, and search input.
package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/geobus"
	"github.com/wneessen/mapscreen/internal/logger"
	"github.com/wneessen/mapscreen/internal/permission"
	"github.com/wneessen/mapscreen/internal/places"
	"github.com/wneessen/mapscreen/internal/routing"
	"github.com/wneessen/mapscreen/internal/vartype"
)

var (
	// ErrAlreadyMounted is returned by Mount when the screen is mounted.
	ErrAlreadyMounted = errors.New("screen is already mounted")

	// ErrInvalidCoordinate is returned when a tap carries a position outside the valid bounds.
	ErrInvalidCoordinate = errors.New("invalid tap coordinate")
)

// Subscription is an active location subscription.
type Subscription interface {
	Remove()
}

// Locator is the platform location service.
type Locator interface {
	RequestPermission(ctx context.Context) (permission.Status, error)
	Watch(ctx context.Context, opts geobus.WatchOptions, fn func(geo.Position)) (Subscription, error)
}

// RouteFetcher fetches a route between the current position and a destination.
type RouteFetcher interface {
	Fetch(ctx context.Context, origin vartype.Variable[geo.Position], dest geo.Position) (routing.Route, error)
}

// Searcher runs the autocomplete and details phases of the place search.
type Searcher interface {
	Query(ctx context.Context, text string, apply func([]places.Prediction)) error
	Resolve(ctx context.Context, placeID string, apply func(places.Place)) (places.Place, error)
	Cancel()
}

// Navigator hands a destination to an external navigation app.
type Navigator interface {
	OpenDirections(ctx context.Context, dest geo.Position) (string, error)
}

// Options configures the behaviour of a Screen.
type Options struct {
	Watch geobus.WatchOptions

	// RouteToDestination fetches a route to a resolved search result.
	RouteToDestination bool
}

// DefaultOptions returns the watch defaults and routing to search destinations.
func DefaultOptions() Options {
	return Options{
		Watch:              geobus.DefaultWatchOptions(),
		RouteToDestination: true,
	}
}

// Screen is the map screen. All methods are safe for concurrent use. Observers registered with
// OnChange are called with the screen lock held and must not call back into the Screen.
type Screen struct {
	locator   Locator
	router    RouteFetcher
	search    Searcher
	navigator Navigator
	logger    *logger.Logger
	opts      Options
	now       func() time.Time

	mu        sync.Mutex
	state     State
	mounted   bool
	sub       Subscription
	routeGen  uint64
	lastID    int64
	observers []func(State)

	wg sync.WaitGroup
}

// New returns an unmounted Screen wired to its collaborators.
func New(locator Locator, router RouteFetcher, search Searcher, navigator Navigator, log *logger.Logger,
	opts Options,
) (*Screen, error) {
	switch {
	case locator == nil:
		return nil, errors.New("locator is required")
	case router == nil:
		return nil, errors.New("route fetcher is required")
	case search == nil:
		return nil, errors.New("searcher is required")
	case navigator == nil:
		return nil, errors.New("navigator is required")
	case log == nil:
		return nil, errors.New("logger is required")
	}
	return &Screen{
		locator:   locator,
		router:    router,
		search:    search,
		navigator: navigator,
		logger:    log,
		opts:      opts,
		now:       time.Now,
		state:     NewState(),
	}, nil
}

// OnChange registers fn to be called with a snapshot of the state after every change.
func (s *Screen) OnChange(fn func(State)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// State returns a snapshot of the current state.
func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Mount resets the state and starts location tracking. A denied permission is not an error:
// the screen keeps working without a position for the rest of the session.
func (s *Screen) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return ErrAlreadyMounted
	}
	s.mounted = true
	s.routeGen++
	s.update(NewState())
	s.mu.Unlock()

	status, err := s.locator.RequestPermission(ctx)
	if err != nil {
		s.logger.Error("location permission request failed", logger.Err(err))
		status = permission.StatusDenied
	}
	s.mu.Lock()
	s.update(s.state.WithPermission(status))
	s.mu.Unlock()
	if status != permission.StatusGranted {
		s.logger.Info("location permission not granted, continuing without position",
			slog.String("status", string(status)))
		return nil
	}

	sub, err := s.locator.Watch(ctx, s.opts.Watch, s.updatePosition)
	if err != nil {
		s.logger.Error("failed to start location tracking", logger.Err(err))
		return nil
	}

	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		sub.Remove()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// Unmount stops location tracking and discards the results of route fetches in flight. Position
// updates arriving after Unmount are ignored.
func (s *Screen) Unmount() {
	s.search.Cancel()

	s.mu.Lock()
	s.mounted = false
	s.routeGen++
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Remove()
		s.logger.Debug("location tracking stopped")
	}
}

// RestartTracking replaces the location subscription of a mounted screen with a new one, so the
// providers start over. It does nothing when the location permission was not granted.
func (s *Screen) RestartTracking(ctx context.Context) error {
	s.mu.Lock()
	if !s.mounted || s.state.Permission != permission.StatusGranted {
		s.mu.Unlock()
		return nil
	}
	old := s.sub
	s.sub = nil
	s.mu.Unlock()

	if old != nil {
		old.Remove()
	}
	sub, err := s.locator.Watch(ctx, s.opts.Watch, s.updatePosition)
	if err != nil {
		s.logger.Error("failed to restart location tracking", logger.Err(err))
		return err
	}

	s.mu.Lock()
	if !s.mounted || s.sub != nil {
		s.mu.Unlock()
		sub.Remove()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()
	s.logger.Debug("location tracking restarted")
	return nil
}

// Wait blocks until all route fetches started by the screen have returned.
func (s *Screen) Wait() {
	s.wg.Wait()
}

// TapMap drops a new marker at pos, replacing the previous one, selects it, focuses the camera
// on it and starts a route fetch from the current position in the background.
func (s *Screen) TapMap(ctx context.Context, pos geo.Position) (Marker, error) {
	if !pos.Valid() {
		return Marker{}, fmt.Errorf("%w: %s", ErrInvalidCoordinate, pos)
	}

	s.mu.Lock()
	marker := Marker{ID: s.nextMarkerID(), Coordinate: pos}
	s.update(s.state.WithMapTap(marker))
	s.routeGen++
	gen := s.routeGen
	origin := s.state.Position
	s.mu.Unlock()

	s.logger.Debug("marker placed", slog.Int64("marker_id", marker.ID), slog.String("coordinate", pos.String()))
	s.fetchRoute(ctx, gen, origin, pos)
	return marker, nil
}

// TapMarker selects the marker with the given id and clears the route. It never fetches a route,
// and the results of route fetches in flight are discarded.
func (s *Screen) TapMarker(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.state.WithMarkerTap(id)
	if err != nil {
		return fmt.Errorf("%w: %d", err, id)
	}
	s.routeGen++
	s.update(next)
	return nil
}

// GetDirections opens external navigation to the selected marker and returns the deep link.
func (s *Screen) GetDirections(ctx context.Context) (string, error) {
	s.mu.Lock()
	selected, ok := s.state.SelectedMarker.Get()
	s.mu.Unlock()
	if !ok {
		return "", ErrNoMarkerSelected
	}
	return s.navigator.OpenDirections(ctx, selected.Coordinate)
}

// ChangeQuery sets the query text and runs the autocomplete phase. It blocks until the results
// were applied, the query failed or a newer query superseded it.
func (s *Screen) ChangeQuery(ctx context.Context, text string) error {
	s.mu.Lock()
	s.update(s.state.WithQuery(text))
	s.mu.Unlock()

	return s.search.Query(ctx, text, func(results []places.Prediction) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.update(s.state.WithResults(results))
	})
}

// SelectResult resolves the place with the given id and makes it the destination. On failure,
// or when a newer query or clear superseded the selection, the state is left unchanged.
func (s *Screen) SelectResult(ctx context.Context, placeID string) (places.Place, error) {
	var gen uint64
	var origin vartype.Variable[geo.Position]
	place, err := s.search.Resolve(ctx, placeID, func(place places.Place) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.update(s.state.WithPlace(place))
		s.routeGen++
		gen = s.routeGen
		origin = s.state.Position
	})
	if err != nil {
		return places.Place{}, err
	}

	if s.opts.RouteToDestination {
		s.fetchRoute(ctx, gen, origin, place.Position)
	}
	return place, nil
}

// CancelSearch supersedes a query in flight without touching the state.
func (s *Screen) CancelSearch() {
	s.search.Cancel()
}

// ClearSearch empties the query and the results and supersedes a query in flight.
func (s *Screen) ClearSearch() {
	s.search.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.update(s.state.WithSearchCleared())
}

func (s *Screen) updatePosition(pos geo.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	s.update(s.state.WithPosition(pos))
}

// fetchRoute starts a route fetch in the background. Its result is only applied when no other
// route changing event happened in the meantime.
func (s *Screen) fetchRoute(ctx context.Context, gen uint64, origin vartype.Variable[geo.Position],
	dest geo.Position,
) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		route, err := s.router.Fetch(ctx, origin, dest)
		if err != nil {
			if errors.Is(err, routing.ErrNoOrigin) {
				s.logger.Info("no current position, route not requested", slog.String("destination", dest.String()))
				return
			}
			s.logger.Debug("route fetch failed", logger.Err(err))
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.routeGen {
			s.logger.Debug("discarding stale route", slog.String("profile", route.Profile))
			return
		}
		s.update(s.state.WithRoute(route.Coordinates))
		s.logger.Debug("route updated", slog.String("profile", route.Profile),
			slog.Int("points", len(route.Coordinates)))
	}()
}

// nextMarkerID returns the creation time in milliseconds, bumped to stay strictly increasing.
// It must be called with the lock held.
func (s *Screen) nextMarkerID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// update replaces the state and notifies the observers. It must be called with the lock held.
func (s *Screen) update(next State) {
	s.state = next
	if len(s.observers) == 0 {
		return
	}
	snapshot := s.state.Clone()
	for _, fn := range s.observers {
		fn(snapshot)
	}
}
