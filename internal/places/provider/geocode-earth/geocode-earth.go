// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocodeearth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/text/language"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/http"
	"github.com/wneessen/mapscreen/internal/places"
)

const (
	APIEndpoint = "https://api.geocode.earth/v1"
	APITimeout  = time.Second * 10
	name        = "geocode-earth"
)

// GeocodeEarth resolves places through the Pelias based geocode.earth API. Pelias answers with
// GeoJSON feature collections; the feature gid serves as place ID.
type GeocodeEarth struct {
	apikey   string
	endpoint string
	http     *http.Client
	lang     language.Tag
}

func New(client *http.Client, lang language.Tag, apikey, endpoint string) (*GeocodeEarth, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	if apikey == "" {
		return nil, errors.New("geocode.earth API key is required")
	}
	if endpoint == "" {
		endpoint = APIEndpoint
	}
	return &GeocodeEarth{
		apikey:   apikey,
		endpoint: endpoint,
		lang:     lang,
		http:     client,
	}, nil
}

func (g *GeocodeEarth) Name() string {
	return name
}

func (g *GeocodeEarth) Autocomplete(ctx context.Context, input string) ([]places.Prediction, error) {
	query := url.Values{}
	query.Set("api_key", g.apikey)
	query.Set("text", input)
	query.Set("lang", g.lang.String())

	collection, err := g.fetch(ctx, "autocomplete", query)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve predictions from geocode.earth API: %w", err)
	}

	predictions := make([]places.Prediction, 0, len(collection.Features))
	for _, feature := range collection.Features {
		id := feature.Properties.MustString("gid", "")
		if id == "" {
			continue
		}
		predictions = append(predictions, places.Prediction{
			PlaceID:     id,
			Description: feature.Properties.MustString("label", ""),
		})
	}
	return predictions, nil
}

func (g *GeocodeEarth) Details(ctx context.Context, placeID string) (places.Place, error) {
	query := url.Values{}
	query.Set("api_key", g.apikey)
	query.Set("ids", placeID)
	query.Set("lang", g.lang.String())

	collection, err := g.fetch(ctx, "place", query)
	if err != nil {
		return places.Place{}, fmt.Errorf("failed to retrieve place details from geocode.earth API: %w", err)
	}
	if len(collection.Features) < 1 {
		return places.Place{}, places.ErrNoResult
	}

	feature := collection.Features[0]
	point, ok := feature.Geometry.(orb.Point)
	if !ok {
		return places.Place{}, fmt.Errorf("unexpected geometry type for place %q", placeID)
	}
	return places.Place{
		PlaceID:          placeID,
		FormattedAddress: feature.Properties.MustString("label", ""),
		Position:         geo.FromPoint(point),
	}, nil
}

func (g *GeocodeEarth) fetch(ctx context.Context, path string, query url.Values) (*geojson.FeatureCollection, error) {
	endpoint, err := url.JoinPath(g.endpoint, path)
	if err != nil {
		return nil, fmt.Errorf("failed to build API URL: %w", err)
	}
	collection := geojson.NewFeatureCollection()
	if _, err = g.http.GetWithTimeout(ctx, endpoint, collection, query, nil, APITimeout); err != nil {
		return nil, err
	}
	return collection, nil
}
