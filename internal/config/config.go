// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"
)

const (
	configEnv      = "MAPSCREEN"
	DefaultTextTpl = `{{if .Region}}{{loc "center"}}: {{coord .Region.Center}} ({{.Theme}}){{else}}{{loc "nolocation"}}{{end}}
{{range .Pins}}{{loc .Kind}}: {{coord .Position}}
{{end}}{{with .Polyline}}{{loc "route"}}: {{distance .LengthMeters}}, {{len .Coordinates}} {{loc "points"}}
{{end}}{{loc "search"}}: {{.Search.Query}}
{{range $i, $r := .Results}}{{$i}}. {{truncate $r.Description 48}} [{{$r.PlaceID}}]
{{end}}{{loc "updated"}}: {{localizedTime .UpdatedAt}}
`
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	GeoLocation struct {
		// Allowed values: granted, denied, geoclue
		Permission       string        `fig:"permission" default:"geoclue"`
		Accuracy         string        `fig:"accuracy" default:"high"`
		TimeInterval     time.Duration `fig:"time_interval" default:"1s"`
		DistanceInterval float64       `fig:"distance_interval" default:"10"`

		File                   string `fig:"file"`
		GPSDAddress            string `fig:"gpsd_address" default:"localhost:2947"`
		GeoAPIEndpoint         string `fig:"geoapi_endpoint"`
		ICHNAEAEndpoint        string `fig:"ichnaea_endpoint"`
		DisableGeolocationFile bool   `fig:"disable_geolocation_file"`
		DisableGPSD            bool   `fig:"disable_gpsd"`
		DisableGeoAPI          bool   `fig:"disable_geoapi"`
		DisableICHNAEA         bool   `fig:"disable_ichnaea"`
		DisableResumeMonitor   bool   `fig:"disable_resume_monitor"`
	} `fig:"geolocation"`

	Routing struct {
		// Allowed values: openrouteservice
		Provider         string        `fig:"provider" default:"openrouteservice"`
		Endpoint         string        `fig:"endpoint"`
		APIKey           string        `fig:"apikey"`
		Profile          string        `fig:"profile" default:"driving-car"`
		FallbackProfiles []string      `fig:"fallback_profiles" default:"[cycling-regular,foot-walking]"`
		Timeout          time.Duration `fig:"timeout" default:"10s"`
	} `fig:"routing"`

	Places struct {
		// Allowed values: google, geocode-earth, nominatim
		Provider             string        `fig:"provider" default:"google"`
		APIKey               string        `fig:"apikey"`
		Endpoint             string        `fig:"endpoint"`
		AutocompleteEndpoint string        `fig:"autocomplete_endpoint"`
		DetailsEndpoint      string        `fig:"details_endpoint"`
		RateLimit            float64       `fig:"rate_limit" default:"5"`
		RateBurst            int           `fig:"rate_burst" default:"1"`
		CacheHitTTL          time.Duration `fig:"cache_hit_ttl" default:"1h"`
		CacheMissTTL         time.Duration `fig:"cache_miss_ttl" default:"5m"`

		// Do not fetch a route to a selected search result
		DisableDestinationRoute bool `fig:"disable_destination_route"`
	} `fig:"places"`

	Navigation struct {
		// Allowed values: portal, print, none
		Opener string `fig:"opener" default:"portal"`
	} `fig:"navigation"`

	Intervals struct {
		Output     time.Duration `fig:"output" default:"30s"`
		CachePurge time.Duration `fig:"cache_purge" default:"10m"`
	} `fig:"intervals"`

	Output struct {
		// Allowed values: json, text
		Format string `fig:"format" default:"json"`
	} `fig:"output"`

	Templates struct {
		Text string `fig:"text"`
	} `fig:"templates"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

// Validate checks the configuration and fills in defaults that depend on the environment.
// API keys are only accepted from the configuration, so providers that need one fail here when
// it is missing.
func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = getLocale()
	}

	switch strings.ToLower(c.GeoLocation.Permission) {
	case "granted", "denied", "geoclue":
	default:
		return fmt.Errorf("invalid geolocation permission mode: %s", c.GeoLocation.Permission)
	}
	if c.GeoLocation.TimeInterval < 0 {
		return fmt.Errorf("invalid geolocation time interval: %s", c.GeoLocation.TimeInterval)
	}
	if c.GeoLocation.DistanceInterval < 0 {
		return fmt.Errorf("invalid geolocation distance interval: %f", c.GeoLocation.DistanceInterval)
	}
	if c.Intervals.CachePurge <= 0 {
		return fmt.Errorf("invalid cache purge interval: %s", c.Intervals.CachePurge)
	}
	if c.GeoLocation.File == "" {
		home, _ := os.UserHomeDir()
		c.GeoLocation.File = filepath.Join(home, ".config", "mapscreen", "geolocation")
	}

	switch strings.ToLower(c.Routing.Provider) {
	case "openrouteservice":
		if c.Routing.APIKey == "" {
			return fmt.Errorf("openrouteservice routing requires an API key")
		}
	default:
		return fmt.Errorf("unsupported routing provider: %s", c.Routing.Provider)
	}
	if c.Routing.Profile == "" {
		return fmt.Errorf("routing profile must not be empty")
	}

	switch strings.ToLower(c.Places.Provider) {
	case "google", "geocode-earth":
		if c.Places.APIKey == "" {
			return fmt.Errorf("%s places provider requires an API key", c.Places.Provider)
		}
	case "nominatim":
	default:
		return fmt.Errorf("unsupported places provider: %s", c.Places.Provider)
	}
	if c.Places.RateLimit <= 0 {
		return fmt.Errorf("invalid places rate limit: %f", c.Places.RateLimit)
	}

	switch strings.ToLower(c.Navigation.Opener) {
	case "portal", "print", "none":
	default:
		return fmt.Errorf("unsupported navigation opener: %s", c.Navigation.Opener)
	}

	switch strings.ToLower(c.Output.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported output format: %s", c.Output.Format)
	}
	if c.Templates.Text == "" {
		c.Templates.Text = DefaultTextTpl
	}

	return nil
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}
