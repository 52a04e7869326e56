// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package screen

import (
	"errors"
	"slices"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/permission"
	"github.com/wneessen/mapscreen/internal/places"
	"github.com/wneessen/mapscreen/internal/vartype"
)

const (
	// PositionLatitudeDelta and PositionLongitudeDelta span the region shown around the
	// current position.
	PositionLatitudeDelta  = 0.0922
	PositionLongitudeDelta = 0.0421

	// FocusDelta spans the region shown around a tapped marker.
	FocusDelta = 0.02
)

var (
	// ErrUnknownMarker is returned when a tapped marker is not on the map.
	ErrUnknownMarker = errors.New("unknown marker")

	// ErrNoMarkerSelected is returned by actions that need a selected marker.
	ErrNoMarkerSelected = errors.New("no marker selected")
)

// Marker is a pinned destination candidate. Its ID is the creation time in milliseconds.
type Marker struct {
	ID         int64        `json:"id"`
	Coordinate geo.Position `json:"coordinate"`
}

// Camera is the visible map region.
type Camera struct {
	Center         geo.Position `json:"center"`
	LatitudeDelta  float64      `json:"latitude_delta"`
	LongitudeDelta float64      `json:"longitude_delta"`
	Animated       bool         `json:"animated"`

	// FollowsPosition is set while the camera tracks the current position. A map tap moves the
	// focus to the marker and ends following.
	FollowsPosition bool `json:"follows_position"`
}

// State is the complete state of the map screen. The With* methods are pure: they never modify
// the receiver and return the updated copy.
type State struct {
	Permission     permission.Status              `json:"permission"`
	Position       vartype.Variable[geo.Position] `json:"position"`
	Camera         vartype.Variable[Camera]       `json:"camera"`
	Marker         vartype.Variable[Marker]       `json:"marker"`
	SelectedMarker vartype.Variable[Marker]       `json:"selected_marker"`
	Route          []geo.Position                 `json:"route"`
	Query          string                         `json:"query"`
	Results        []places.Prediction            `json:"results"`
	Destination    vartype.Variable[geo.Position] `json:"destination"`
}

// NewState returns the state of a freshly mounted screen.
func NewState() State {
	return State{
		Permission: permission.StatusUndetermined,
		Route:      []geo.Position{},
		Results:    []places.Prediction{},
	}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	s.Route = slices.Clone(s.Route)
	s.Results = slices.Clone(s.Results)
	if s.Route == nil {
		s.Route = []geo.Position{}
	}
	if s.Results == nil {
		s.Results = []places.Prediction{}
	}
	return s
}

func (s State) WithPermission(status permission.Status) State {
	s = s.Clone()
	s.Permission = status
	return s
}

// WithPosition replaces the current position. The camera follows it until the user focuses a
// marker.
func (s State) WithPosition(pos geo.Position) State {
	s = s.Clone()
	s.Position.Set(pos)
	if camera, ok := s.Camera.Get(); !ok || camera.FollowsPosition {
		s.Camera.Set(Camera{
			Center:          pos,
			LatitudeDelta:   PositionLatitudeDelta,
			LongitudeDelta:  PositionLongitudeDelta,
			FollowsPosition: true,
		})
	}
	return s
}

// WithMapTap replaces any marker with m, selects it and focuses the camera on it.
func (s State) WithMapTap(m Marker) State {
	s = s.Clone()
	s.Marker.Set(m)
	s.SelectedMarker.Set(m)
	s.Camera.Set(Camera{
		Center:         m.Coordinate,
		LatitudeDelta:  FocusDelta,
		LongitudeDelta: FocusDelta,
		Animated:       true,
	})
	return s
}

// WithMarkerTap selects the marker with the given id and clears the route.
func (s State) WithMarkerTap(id int64) (State, error) {
	marker, ok := s.Marker.Get()
	if !ok || marker.ID != id {
		return s, ErrUnknownMarker
	}
	s = s.Clone()
	s.SelectedMarker.Set(marker)
	s.Route = []geo.Position{}
	return s, nil
}

// WithRoute replaces the route wholesale.
func (s State) WithRoute(route []geo.Position) State {
	s = s.Clone()
	s.Route = slices.Clone(route)
	if s.Route == nil {
		s.Route = []geo.Position{}
	}
	return s
}

func (s State) WithQuery(text string) State {
	s = s.Clone()
	s.Query = text
	return s
}

// WithResults replaces the search results, keeping the order of the provider.
func (s State) WithResults(results []places.Prediction) State {
	s = s.Clone()
	s.Results = slices.Clone(results)
	if s.Results == nil {
		s.Results = []places.Prediction{}
	}
	return s
}

// WithPlace makes a resolved place the destination. The route is cleared, the query shows the
// formatted address and the results are emptied.
func (s State) WithPlace(place places.Place) State {
	s = s.Clone()
	s.Destination.Set(place.Position)
	s.Route = []geo.Position{}
	s.Query = place.FormattedAddress
	s.Results = []places.Prediction{}
	return s
}

func (s State) WithSearchCleared() State {
	s = s.Clone()
	s.Query = ""
	s.Results = []places.Prediction{}
	return s
}
