// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/vorlif/humanize"
	"github.com/vorlif/spreak/localize"

	"github.com/wneessen/mapscreen/internal/geo"
)

var i18nVars = map[string]localize.MsgID{
	"center":      "Map center",
	"nolocation":  "Location unavailable",
	"position":    "Current position",
	"marker":      "Marker",
	"selected":    "Selected marker",
	"destination": "Destination",
	"route":       "Route",
	"points":      "points",
	"search":      "Search",
	"directions":  "Get directions",
	"updated":     "Updated",
}

func (p *Presenter) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"timeFormat":    p.timeFormat,
		"localizedTime": p.localizedTime,
		"floatFormat":   p.floatFormat,
		"coord":         coord,
		"distance":      distance,
		"truncate":      truncate,
		"loc":           p.loc,
		"lc":            strings.ToLower,
		"uc":            strings.ToUpper,
	}
}

func (p *Presenter) loc(val string) string {
	val = strings.ToLower(val)
	if raw, ok := i18nVars[val]; ok {
		return p.localizer.Get(raw)
	}
	return val
}

func (p *Presenter) localizedTime(val time.Time) string {
	return p.humanizer.FormatTime(val, humanize.TimeFormat)
}

func (p *Presenter) timeFormat(val time.Time, fmt string) string {
	return val.Format(fmt)
}

func (p *Presenter) floatFormat(val float64, precision int) string {
	pow := math.Pow(10, float64(precision))
	return fmt.Sprintf("%.*f", precision, math.Trunc(val*pow)/pow)
}

func coord(pos geo.Position) string {
	return strconv.FormatFloat(pos.Latitude, 'f', 6, 64) + ", " + strconv.FormatFloat(pos.Longitude, 'f', 6, 64)
}

// distance formats meters as meters below one kilometer and as kilometers above.
func distance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// truncate shortens val to width terminal cells.
func truncate(val string, width int) string {
	return runewidth.Truncate(val, width, "…")
}
