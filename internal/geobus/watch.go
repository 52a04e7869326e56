// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"fmt"
	"strings"
	"time"
)

// Accuracy is the requested accuracy level of a position watch.
type Accuracy int

const (
	AccuracyLowest Accuracy = iota + 1
	AccuracyLow
	AccuracyBalanced
	AccuracyHigh
	AccuracyHighest
)

var accuracyNames = map[Accuracy]string{
	AccuracyLowest:   "lowest",
	AccuracyLow:      "low",
	AccuracyBalanced: "balanced",
	AccuracyHigh:     "high",
	AccuracyHighest:  "highest",
}

// ParseAccuracy parses an accuracy level name.
func ParseAccuracy(name string) (Accuracy, error) {
	for level, levelName := range accuracyNames {
		if strings.EqualFold(name, levelName) {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unsupported accuracy level: %q", name)
}

// String implements fmt.Stringer.
func (a Accuracy) String() string {
	if name, ok := accuracyNames[a]; ok {
		return name
	}
	return "unknown"
}

// MaxRadius returns the largest accuracy radius in meters a result may have to satisfy the level.
// Zero means any radius satisfies it.
func (a Accuracy) MaxRadius() float64 {
	switch a {
	case AccuracyLow:
		return AccuracyCity
	case AccuracyBalanced:
		return AccuracyZip
	case AccuracyHigh:
		return 100
	case AccuracyHighest:
		return 10
	default:
		return 0
	}
}

// Satisfied reports whether an accuracy radius in meters meets the level.
func (a Accuracy) Satisfied(radius float64) bool {
	maxRadius := a.MaxRadius()
	return maxRadius == 0 || radius <= maxRadius
}

// WatchOptions configures a continuous position watch.
type WatchOptions struct {
	Accuracy         Accuracy
	TimeInterval     time.Duration
	DistanceInterval float64 // meters
}

// DefaultWatchOptions returns high accuracy with a one second and ten meter minimum interval.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Accuracy:         AccuracyHigh,
		TimeInterval:     time.Second,
		DistanceInterval: 10,
	}
}

// watchFilter decides which bus results are delivered to a watcher. The accuracy level is a
// preference: coarse positions are delivered until a fix that satisfies the level arrives, and
// are only held back while such a fix is still fresh.
type watchFilter struct {
	opts     WatchOptions
	last     Result
	haveLast bool
}

// accept reports whether r should be delivered. The first valid result is always accepted. A
// result that is more accurate than an unsatisfying last one is a refinement and is accepted
// right away. Everything else needs both the time and the distance interval to have passed
// since the last accepted result.
func (f *watchFilter) accept(r Result) bool {
	coord := r.Coordinate()
	if !coord.Valid() {
		return false
	}
	if !f.haveLast || f.refines(r) {
		f.take(r)
		return true
	}
	if r.At.Sub(f.last.At) < f.opts.TimeInterval {
		return false
	}
	if !f.opts.Accuracy.Satisfied(r.AccuracyMeters) && f.opts.Accuracy.Satisfied(f.last.AccuracyMeters) &&
		!f.lastExpiredAt(r.At) {
		return false
	}
	if coord.Position().DistanceTo(f.last.Coordinate().Position()) < f.opts.DistanceInterval {
		return false
	}
	f.take(r)
	return true
}

func (f *watchFilter) refines(r Result) bool {
	return !f.opts.Accuracy.Satisfied(f.last.AccuracyMeters) &&
		r.AccuracyMeters < f.last.AccuracyMeters-accuracyEpsilon
}

func (f *watchFilter) lastExpiredAt(at time.Time) bool {
	return f.last.TTL > 0 && at.Sub(f.last.At) > f.last.TTL
}

func (f *watchFilter) take(r Result) {
	f.last = r
	f.haveLast = true
}
