// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"github.com/wneessen/mapscreen/internal/geo"
)

// Coordinate represents a geographic coordinate as reported by a provider, including its
// accuracy radius in meters.
type Coordinate struct {
	Lat float64
	Lon float64
	Acc float64
}

// Position returns the coordinate as a geo.Position.
func (c Coordinate) Position() geo.Position {
	return geo.Position{Latitude: c.Lat, Longitude: c.Lon}
}

// Valid checks if the coordinate is valid according to the EPSG logic
func (c Coordinate) Valid() bool {
	return c.Position().Valid()
}
