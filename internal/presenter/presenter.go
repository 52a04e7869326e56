// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package presenter turns screen state into render frames for a map surface or a terminal.
package presenter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/nathan-osman/go-sunrise"
	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/de"
	"github.com/vorlif/spreak"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/places"
	"github.com/wneessen/mapscreen/internal/screen"
)

const (
	marchEquinoxDay     = 80
	septemberEquinoxDay = 266
)

const (
	ThemeDay   = "day"
	ThemeNight = "night"

	PinPosition    = "position"
	PinMarker      = "marker"
	PinSelected    = "selected"
	PinDestination = "destination"

	ColorPosition    = "blue"
	ColorMarker      = "#ff6347"
	ColorSelected    = "red"
	ColorDestination = "green"
	ColorRoute       = "#FF0000"
	RouteWidth       = 2
)

// Pin is a single point drawn on the map.
type Pin struct {
	Kind     string       `json:"kind"`
	Position geo.Position `json:"position"`
	Color    string       `json:"color"`
	MarkerID int64        `json:"marker_id,omitempty"`
}

// Polyline is the route overlay.
type Polyline struct {
	Coordinates  []geo.Position `json:"coordinates"`
	Color        string         `json:"color"`
	Width        int            `json:"width"`
	LengthMeters float64        `json:"length_meters"`
}

// SearchBar is the search input.
type SearchBar struct {
	Placeholder string `json:"placeholder"`
	Query       string `json:"query"`
}

// Frame is everything a map surface needs to draw the screen.
type Frame struct {
	Theme     string              `json:"theme"`
	Region    *screen.Camera      `json:"region"`
	Pins      []Pin               `json:"pins"`
	Polyline  *Polyline           `json:"polyline,omitempty"`
	Search    SearchBar           `json:"search"`
	Results   []places.Prediction `json:"results,omitempty"`
	Status    string              `json:"status,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type Presenter struct {
	humanizer *humanize.Humanizer
	localizer *spreak.Localizer
	text      *template.Template
	now       func() time.Time
}

// New returns a Presenter rendering text frames with the given template. The template is
// checked by rendering an empty frame.
func New(textTpl string, loc *spreak.Localizer) (*Presenter, error) {
	if loc == nil {
		return nil, errors.New("localizer is required")
	}
	collection, err := humanize.New(humanize.WithLocale(de.New()))
	if err != nil {
		return nil, fmt.Errorf("failed to create humanizer: %w", err)
	}
	pres := &Presenter{
		humanizer: collection.CreateHumanizer(loc.Language()),
		localizer: loc,
		now:       time.Now,
	}

	tpl, err := template.New("text").Funcs(pres.templateFuncMap()).Parse(textTpl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse text template: %w", err)
	}
	pres.text = tpl
	if err = pres.WriteText(io.Discard, pres.Build(screen.NewState())); err != nil {
		return nil, err
	}

	return pres, nil
}

// Build derives a Frame from a state snapshot.
func (p *Presenter) Build(state screen.State) Frame {
	now := p.now()
	frame := Frame{
		Theme:     ThemeDay,
		Pins:      make([]Pin, 0, 3),
		Search:    SearchBar{Placeholder: p.localizer.Get("Search for a place"), Query: state.Query},
		UpdatedAt: now,
	}

	if camera, ok := state.Camera.Get(); ok {
		frame.Region = &camera
		frame.Theme = theme(camera.Center, now)
	}
	if !state.Position.IsSet() {
		frame.Status = p.localizer.Get("Location unavailable")
	}

	if pos, ok := state.Position.Get(); ok {
		frame.Pins = append(frame.Pins, Pin{Kind: PinPosition, Position: pos, Color: ColorPosition})
	}
	if marker, ok := state.Marker.Get(); ok {
		pin := Pin{Kind: PinMarker, Position: marker.Coordinate, Color: ColorMarker, MarkerID: marker.ID}
		if selected, ok := state.SelectedMarker.Get(); ok && selected.ID == marker.ID {
			pin.Kind, pin.Color = PinSelected, ColorSelected
		}
		frame.Pins = append(frame.Pins, pin)
	}
	if dest, ok := state.Destination.Get(); ok {
		frame.Pins = append(frame.Pins, Pin{Kind: PinDestination, Position: dest, Color: ColorDestination})
	}

	if len(state.Route) > 0 {
		frame.Polyline = &Polyline{
			Coordinates:  state.Route,
			Color:        ColorRoute,
			Width:        RouteWidth,
			LengthMeters: geo.PathLength(state.Route),
		}
	}
	if len(state.Results) > 0 {
		frame.Results = state.Results
	}

	return frame
}

// WriteJSON writes the frame as a single line of JSON.
func (p *Presenter) WriteJSON(w io.Writer, frame Frame) error {
	if err := json.NewEncoder(w).Encode(frame); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return nil
}

// WriteText renders the frame through the text template.
func (p *Presenter) WriteText(w io.Writer, frame Frame) error {
	buf := bytes.NewBuffer(nil)
	if err := p.text.Execute(buf, frame); err != nil {
		return fmt.Errorf("failed to render text template: %w", err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// theme picks the map style from the sun at the given position.
func theme(pos geo.Position, now time.Time) string {
	now = now.UTC()
	rise, set := sunrise.SunriseSunset(pos.Latitude, pos.Longitude, now.Year(), now.Month(), now.Day())
	if rise.IsZero() || set.IsZero() {
		if polarDay(pos.Latitude, now) {
			return ThemeDay
		}
		return ThemeNight
	}
	if now.Before(rise) || now.After(set) {
		return ThemeNight
	}
	return ThemeDay
}

// polarDay reports whether a day without sunrise and sunset is a polar day. The sun stays up in
// the summer half of the year of the hemisphere, which lies between the equinoxes.
func polarDay(lat float64, now time.Time) bool {
	day := now.YearDay()
	northernSummer := day >= marchEquinoxDay && day < septemberEquinoxDay
	return (lat >= 0) == northernSummer
}
