// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package openrouteservice

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/http"
	"github.com/wneessen/mapscreen/internal/routing"
)

const (
	APIEndpoint = "https://api.openrouteservice.org/v2/directions"
	APITimeout  = time.Second * 10
	name        = "openrouteservice"
)

// OpenRouteService fetches routes from the openrouteservice directions API in GeoJSON format.
type OpenRouteService struct {
	apikey   string
	endpoint string
	http     *http.Client
	timeout  time.Duration
}

type request struct {
	Coordinates  [][]float64 `json:"coordinates"`
	Instructions bool        `json:"instructions"`
}

func New(client *http.Client, endpoint, apikey string, timeout time.Duration) (*OpenRouteService, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	if apikey == "" {
		return nil, errors.New("openrouteservice API key is required")
	}
	if endpoint == "" {
		endpoint = APIEndpoint
	}
	if timeout <= 0 {
		timeout = APITimeout
	}
	return &OpenRouteService{
		apikey:   apikey,
		endpoint: endpoint,
		http:     client,
		timeout:  timeout,
	}, nil
}

func (o *OpenRouteService) Name() string {
	return name
}

// Route requests the route from origin to dest for the given profile. The coordinates of the
// first feature are returned in latitude/longitude order.
func (o *OpenRouteService) Route(ctx context.Context, profile string, origin, dest geo.Position) (routing.Route, error) {
	endpoint, err := url.JoinPath(o.endpoint, profile, "geojson")
	if err != nil {
		return routing.Route{}, fmt.Errorf("failed to build directions URL: %w", err)
	}
	body := request{Coordinates: [][]float64{origin.LngLat(), dest.LngLat()}}
	headers := map[string]string{
		"Authorization": o.apikey,
		"Accept":        "application/json, application/geo+json",
	}

	collection := geojson.NewFeatureCollection()
	if _, err = o.http.PostJSON(ctx, endpoint, collection, body, headers, o.timeout); err != nil {
		return routing.Route{}, fmt.Errorf("failed to retrieve route from openrouteservice API: %w", err)
	}
	if len(collection.Features) < 1 {
		return routing.Route{}, routing.ErrEmptyRoute
	}

	feature := collection.Features[0]
	line, ok := feature.Geometry.(orb.LineString)
	if !ok {
		return routing.Route{}, fmt.Errorf("%w: unexpected geometry type", routing.ErrEmptyRoute)
	}
	if len(line) == 0 {
		return routing.Route{}, routing.ErrEmptyRoute
	}

	route := routing.Route{Coordinates: geo.FromLineString(line)}
	if summary, ok := feature.Properties["summary"].(map[string]any); ok {
		route.Distance, _ = summary["distance"].(float64)
		route.Duration, _ = summary["duration"].(float64)
	}
	if route.Distance == 0 {
		route.Distance = geo.PathLength(route.Coordinates)
	}
	return route, nil
}
