// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/wneessen/mapscreen/internal/geobus"
	"github.com/wneessen/mapscreen/internal/geobus/provider/geoapi"
	"github.com/wneessen/mapscreen/internal/geobus/provider/geolocation_file"
	"github.com/wneessen/mapscreen/internal/geobus/provider/gpsd"
	"github.com/wneessen/mapscreen/internal/geobus/provider/ichnaea"
	"github.com/wneessen/mapscreen/internal/logger"
	"github.com/wneessen/mapscreen/internal/navigation"
	"github.com/wneessen/mapscreen/internal/permission"
	"github.com/wneessen/mapscreen/internal/places"
	geocodeearth "github.com/wneessen/mapscreen/internal/places/provider/geocode-earth"
	"github.com/wneessen/mapscreen/internal/places/provider/google"
	nominatim "github.com/wneessen/mapscreen/internal/places/provider/osm-nominatim"
	"github.com/wneessen/mapscreen/internal/routing"
	"github.com/wneessen/mapscreen/internal/routing/provider/openrouteservice"
)

var ErrNoGeolocationProviders = errors.New("no geolocation providers enabled")

func (s *Service) selectPermissionRequester() (permission.Requester, error) {
	switch mode := strings.ToLower(s.config.GeoLocation.Permission); mode {
	case "geoclue":
		return permission.NewGeoClue(""), nil
	default:
		return permission.NewStatic(mode)
	}
}

func (s *Service) selectGeobusProviders() ([]geobus.Provider, error) {
	var provider []geobus.Provider

	if !s.config.GeoLocation.DisableGeolocationFile {
		provider = append(provider, geolocation_file.NewGeolocationFileProvider(s.config.GeoLocation.File, 0))
	}

	if !s.config.GeoLocation.DisableGPSD {
		provider = append(provider, gpsd.NewGeolocationGPSDProvider(s.config.GeoLocation.GPSDAddress, s.logger))
	}

	if !s.config.GeoLocation.DisableGeoAPI {
		gap, err := geoapi.NewGeolocationGeoAPIProvider(s.httpClient, s.config.GeoLocation.GeoAPIEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to create GeoAPI provider: %w", err)
		}
		provider = append(provider, gap)
	}

	if !s.config.GeoLocation.DisableICHNAEA {
		mls, err := ichnaea.NewGeolocationICHNAEAProvider(s.httpClient, s.config.GeoLocation.ICHNAEAEndpoint,
			s.logger)
		if err != nil {
			s.logger.Error("failed to create ICHNAEA provider", logger.Err(err))
		} else {
			provider = append(provider, mls)
		}
	}
	if len(provider) == 0 {
		return nil, ErrNoGeolocationProviders
	}

	return provider, nil
}

func (s *Service) selectRouter() (routing.Router, error) {
	conf := s.config.Routing
	switch strings.ToLower(conf.Provider) {
	case "openrouteservice":
		return openrouteservice.New(s.httpClient, conf.Endpoint, conf.APIKey, conf.Timeout)
	default:
		return nil, fmt.Errorf("unsupported routing provider: %s", conf.Provider)
	}
}

func (s *Service) selectPlacesProvider(lang language.Tag) (places.Provider, error) {
	conf := s.config.Places
	switch strings.ToLower(conf.Provider) {
	case "google":
		return google.New(s.httpClient, lang, conf.APIKey, conf.AutocompleteEndpoint, conf.DetailsEndpoint)
	case "geocode-earth":
		return geocodeearth.New(s.httpClient, lang, conf.APIKey, conf.Endpoint)
	case "nominatim":
		return nominatim.New(s.httpClient, lang, conf.Endpoint)
	default:
		return nil, fmt.Errorf("unsupported places provider: %s", conf.Provider)
	}
}

func (s *Service) selectOpener() (navigation.Opener, error) {
	switch strings.ToLower(s.config.Navigation.Opener) {
	case "portal":
		return navigation.NewPortal(), nil
	case "print":
		return navigation.NewWriter(s.out), nil
	case "none":
		return navigation.Unsupported{}, nil
	default:
		return nil, fmt.Errorf("unsupported navigation opener: %s", s.config.Navigation.Opener)
	}
}
