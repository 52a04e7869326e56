// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geo holds the position type shared by the tracker, the routing and places back ends
// and the screen.
package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// ErrInvalidPair is returned when a coordinate pair does not consist of exactly two values.
var ErrInvalidPair = errors.New("coordinate pair must have exactly two values")

// Position is a latitude/longitude pair in the order the map layer expects.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid checks if the position is valid according to the EPSG:4326 bounds.
func (p Position) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Point returns the position as an orb.Point, which is longitude first.
func (p Position) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// LngLat returns the position as a longitude-first pair as routing APIs expect it.
func (p Position) LngLat() []float64 {
	return []float64{p.Longitude, p.Latitude}
}

// DistanceTo returns the great-circle distance to other in meters.
func (p Position) DistanceTo(other Position) float64 {
	return orbgeo.DistanceHaversine(p.Point(), other.Point())
}

// String implements fmt.Stringer.
func (p Position) String() string {
	return fmt.Sprintf("%f,%f", p.Latitude, p.Longitude)
}

// FromPoint converts a longitude-first orb.Point into a Position.
func FromPoint(point orb.Point) Position {
	return Position{Latitude: point.Lat(), Longitude: point.Lon()}
}

// FromLngLat converts a longitude-first coordinate pair into a Position.
func FromLngLat(pair []float64) (Position, error) {
	if len(pair) != 2 {
		return Position{}, fmt.Errorf("%w: got %d", ErrInvalidPair, len(pair))
	}
	return Position{Latitude: pair[1], Longitude: pair[0]}, nil
}

// FromLineString converts every point of a line string into a Position, preserving the order.
func FromLineString(line orb.LineString) []Position {
	positions := make([]Position, 0, len(line))
	for _, point := range line {
		positions = append(positions, FromPoint(point))
	}
	return positions
}

// PathLength returns the length of the path through all positions in meters.
func PathLength(path []Position) float64 {
	if len(path) < 2 {
		return 0
	}
	line := make(orb.LineString, 0, len(path))
	for _, p := range path {
		line = append(line, p.Point())
	}
	return orbgeo.LengthHaversine(line)
}
