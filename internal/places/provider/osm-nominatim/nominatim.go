// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package nominatim

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/http"
	"github.com/wneessen/mapscreen/internal/places"
)

const (
	APIEndpoint = "https://nominatim.openstreetmap.org"
	APITimeout  = time.Second * 10
	name        = "osm-nominatim"

	searchLimit = 10
)

// Nominatim resolves places through the OpenStreetMap Nominatim API. Place IDs are OSM IDs with
// their type prefix (N, W or R), as expected by the lookup endpoint.
type Nominatim struct {
	endpoint string
	http     *http.Client
	lang     language.Tag
}

type Result struct {
	APILat      string `json:"lat"`
	APILon      string `json:"lon"`
	OSMType     string `json:"osm_type"`
	OSMID       int64  `json:"osm_id"`
	DisplayName string `json:"display_name"`
}

func New(client *http.Client, lang language.Tag, endpoint string) (*Nominatim, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	if endpoint == "" {
		endpoint = APIEndpoint
	}
	return &Nominatim{
		endpoint: endpoint,
		lang:     lang,
		http:     client,
	}, nil
}

func (n *Nominatim) Name() string {
	return name
}

func (n *Nominatim) Autocomplete(ctx context.Context, input string) ([]places.Prediction, error) {
	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("q", input)
	query.Set("limit", strconv.Itoa(searchLimit))
	query.Set("accept-language", n.lang.String())

	results, err := n.fetch(ctx, "search", query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch search results from Nominatim API: %w", err)
	}

	predictions := make([]places.Prediction, 0, len(results))
	for _, result := range results {
		id, ok := placeID(result)
		if !ok {
			continue
		}
		predictions = append(predictions, places.Prediction{PlaceID: id, Description: result.DisplayName})
	}
	return predictions, nil
}

func (n *Nominatim) Details(ctx context.Context, id string) (places.Place, error) {
	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("osm_ids", id)
	query.Set("accept-language", n.lang.String())

	results, err := n.fetch(ctx, "lookup", query)
	if err != nil {
		return places.Place{}, fmt.Errorf("failed to fetch place details from Nominatim API: %w", err)
	}
	if len(results) < 1 {
		return places.Place{}, places.ErrNoResult
	}

	var pos geo.Position
	pos.Latitude, err = strconv.ParseFloat(results[0].APILat, 64)
	if err != nil {
		return places.Place{}, fmt.Errorf("failed to parse latitude from Nominatim API response: %w", err)
	}
	pos.Longitude, err = strconv.ParseFloat(results[0].APILon, 64)
	if err != nil {
		return places.Place{}, fmt.Errorf("failed to parse longitude from Nominatim API response: %w", err)
	}
	return places.Place{PlaceID: id, FormattedAddress: results[0].DisplayName, Position: pos}, nil
}

func (n *Nominatim) fetch(ctx context.Context, path string, query url.Values) ([]Result, error) {
	endpoint, err := url.JoinPath(n.endpoint, path)
	if err != nil {
		return nil, fmt.Errorf("failed to build API URL: %w", err)
	}
	var results []Result
	if _, err = n.http.GetWithTimeout(ctx, endpoint, &results, query, nil, APITimeout); err != nil {
		return nil, err
	}
	return results, nil
}

// placeID returns the prefixed OSM ID of a search result.
func placeID(result Result) (string, bool) {
	if result.OSMType == "" || result.OSMID == 0 {
		return "", false
	}
	return strings.ToUpper(result.OSMType[:1]) + strconv.FormatInt(result.OSMID, 10), true
}
