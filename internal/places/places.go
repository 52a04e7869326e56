// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package places

import (
	"context"
	"errors"

	"github.com/wneessen/mapscreen/internal/geo"
)

// ErrNoResult is returned when a provider has no place for the given identifier.
var ErrNoResult = errors.New("no place found")

// Prediction is an autocomplete candidate. It has to be resolved through Details before it can
// be used as a destination.
type Prediction struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

// Place is a resolved place.
type Place struct {
	PlaceID          string       `json:"place_id"`
	FormattedAddress string       `json:"formatted_address"`
	Position         geo.Position `json:"position"`
	CacheHit         bool         `json:"-"`
}

// Provider is a place search back end.
type Provider interface {
	Name() string
	Autocomplete(ctx context.Context, input string) ([]Prediction, error)
	Details(ctx context.Context, placeID string) (Place, error)
}
