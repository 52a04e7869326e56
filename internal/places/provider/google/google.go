// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package google

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/http"
	"github.com/wneessen/mapscreen/internal/places"
)

const (
	APIAutocompleteEndpoint = "https://maps.googleapis.com/maps/api/place/autocomplete/json"
	APIDetailsEndpoint      = "https://maps.googleapis.com/maps/api/place/details/json"
	APITimeout              = time.Second * 10
	name                    = "google"

	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
	statusNotFound    = "NOT_FOUND"
)

// ErrAPIStatus is returned when the Places API answers with an error status.
var ErrAPIStatus = errors.New("google places API returned an error status")

// Google resolves places through the Google Places API. Autocomplete requests and the details
// request that concludes them share a session token, which is rotated after every details lookup.
type Google struct {
	apikey       string
	autocomplete string
	details      string
	http         *http.Client
	lang         language.Tag

	mu    sync.Mutex
	token uuid.UUID
}

type AutocompleteResponse struct {
	Predictions  []Prediction `json:"predictions"`
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

type Prediction struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

type DetailsResponse struct {
	Result       *Result `json:"result"`
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

type Result struct {
	PlaceID          string `json:"place_id"`
	FormattedAddress string `json:"formatted_address"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// New returns a Google Places provider. Empty endpoints select the public API endpoints.
func New(client *http.Client, lang language.Tag, apikey, autocomplete, details string) (*Google, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	if apikey == "" {
		return nil, errors.New("google places API key is required")
	}
	if autocomplete == "" {
		autocomplete = APIAutocompleteEndpoint
	}
	if details == "" {
		details = APIDetailsEndpoint
	}
	return &Google{
		apikey:       apikey,
		autocomplete: autocomplete,
		details:      details,
		http:         client,
		lang:         lang,
		token:        uuid.New(),
	}, nil
}

func (g *Google) Name() string {
	return name
}

func (g *Google) Autocomplete(ctx context.Context, input string) ([]places.Prediction, error) {
	var response AutocompleteResponse

	query := url.Values{}
	query.Set("input", input)
	query.Set("types", "geocode")
	query.Set("key", g.apikey)
	query.Set("language", g.lang.String())
	query.Set("sessiontoken", g.sessionToken(false))

	if _, err := g.http.GetWithTimeout(ctx, g.autocomplete, &response, query, nil, APITimeout); err != nil {
		return nil, fmt.Errorf("failed to retrieve predictions from Google Places API: %w", err)
	}
	switch response.Status {
	case statusOK:
	case statusZeroResults:
		return []places.Prediction{}, nil
	default:
		return nil, statusError(response.Status, response.ErrorMessage)
	}

	predictions := make([]places.Prediction, 0, len(response.Predictions))
	for _, p := range response.Predictions {
		predictions = append(predictions, places.Prediction{PlaceID: p.PlaceID, Description: p.Description})
	}
	return predictions, nil
}

func (g *Google) Details(ctx context.Context, placeID string) (places.Place, error) {
	var response DetailsResponse

	query := url.Values{}
	query.Set("placeid", placeID)
	query.Set("key", g.apikey)
	query.Set("language", g.lang.String())
	query.Set("fields", "place_id,formatted_address,geometry/location")
	query.Set("sessiontoken", g.sessionToken(true))

	if _, err := g.http.GetWithTimeout(ctx, g.details, &response, query, nil, APITimeout); err != nil {
		return places.Place{}, fmt.Errorf("failed to retrieve place details from Google Places API: %w", err)
	}
	switch response.Status {
	case statusOK:
	case statusZeroResults, statusNotFound:
		return places.Place{}, places.ErrNoResult
	default:
		return places.Place{}, statusError(response.Status, response.ErrorMessage)
	}
	if response.Result == nil {
		return places.Place{}, places.ErrNoResult
	}

	place := places.Place{
		PlaceID:          placeID,
		FormattedAddress: response.Result.FormattedAddress,
		Position: geo.Position{
			Latitude:  response.Result.Geometry.Location.Lat,
			Longitude: response.Result.Geometry.Location.Lng,
		},
	}
	if !place.Position.Valid() {
		return places.Place{}, fmt.Errorf("invalid position in place details: %s", place.Position)
	}
	return place, nil
}

// sessionToken returns the current session token. With rotate set the session ends and the next
// call gets a new token.
func (g *Google) sessionToken(rotate bool) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	token := g.token.String()
	if rotate {
		g.token = uuid.New()
	}
	return token
}

func statusError(status, message string) error {
	if message != "" {
		return fmt.Errorf("%w: %s: %s", ErrAPIStatus, status, message)
	}
	return fmt.Errorf("%w: %s", ErrAPIStatus, status)
}
