// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/permission"
)

func testRequester(t *testing.T, status string) permission.Requester {
	t.Helper()
	requester, err := permission.NewStatic(status)
	if err != nil {
		t.Fatalf("failed to create permission requester: %s", err)
	}
	return requester
}

func TestParseAccuracy(t *testing.T) {
	for _, name := range []string{"lowest", "low", "Balanced", "HIGH", "highest"} {
		level, err := ParseAccuracy(name)
		if err != nil {
			t.Errorf("failed to parse accuracy %q: %s", name, err)
		}
		if level.String() == "unknown" {
			t.Errorf("expected %q to map to a known level", name)
		}
	}
	if _, err := ParseAccuracy("best-for-navigation"); err == nil {
		t.Error("expected unsupported accuracy to fail")
	}
}

func TestAccuracy_MaxRadius(t *testing.T) {
	if AccuracyLowest.MaxRadius() != 0 {
		t.Error("expected lowest accuracy to accept any radius")
	}
	if AccuracyHigh.MaxRadius() >= AccuracyBalanced.MaxRadius() {
		t.Error("expected high accuracy to be stricter than balanced")
	}
	if AccuracyHighest.MaxRadius() >= AccuracyHigh.MaxRadius() {
		t.Error("expected highest accuracy to be stricter than high")
	}
}

func TestAccuracy_Satisfied(t *testing.T) {
	if !AccuracyHigh.Satisfied(100) {
		t.Error("expected 100 meters to satisfy high accuracy")
	}
	if AccuracyHigh.Satisfied(AccuracyZip) {
		t.Error("expected zip code accuracy not to satisfy high accuracy")
	}
	if !AccuracyLowest.Satisfied(AccuracyCountry) {
		t.Error("expected any radius to satisfy lowest accuracy")
	}
}

func TestWatchFilter_accept(t *testing.T) {
	base := time.Now()
	origin := Result{Lat: 52.5200, Lon: 13.4050, AccuracyMeters: 5, At: base}
	// 0.001 degrees of latitude are roughly 111 meters
	moved := Result{Lat: 52.5210, Lon: 13.4050, AccuracyMeters: 5}
	// 0.00002 degrees of latitude are roughly 2 meters
	jitter := Result{Lat: 52.52002, Lon: 13.4050, AccuracyMeters: 5}

	t.Run("first result is accepted", func(t *testing.T) {
		filter := &watchFilter{opts: DefaultWatchOptions()}
		if !filter.accept(origin) {
			t.Error("expected first result to be accepted")
		}
	})
	t.Run("coarse first result is accepted", func(t *testing.T) {
		filter := &watchFilter{opts: DefaultWatchOptions()}
		coarse := origin
		coarse.AccuracyMeters = AccuracyZip
		if !filter.accept(coarse) {
			t.Error("expected zip code accuracy to be accepted as the first result")
		}
	})
	t.Run("more accurate results refine a coarse one", func(t *testing.T) {
		filter := &watchFilter{opts: DefaultWatchOptions()}
		coarse := origin
		coarse.AccuracyMeters = AccuracyCity
		filter.accept(coarse)

		// refinements skip the time and the distance interval
		finer := origin
		finer.AccuracyMeters = AccuracyZip
		finer.At = base.Add(time.Millisecond * 100)
		if !filter.accept(finer) {
			t.Error("expected more accurate result to refine the coarse one")
		}
		same := finer
		same.At = base.Add(time.Millisecond * 200)
		if filter.accept(same) {
			t.Error("expected equally accurate result to need the intervals")
		}
	})
	t.Run("coarse results do not replace a fresh accurate one", func(t *testing.T) {
		filter := &watchFilter{opts: DefaultWatchOptions()}
		precise := origin
		precise.TTL = time.Minute
		filter.accept(precise)

		coarse := moved
		coarse.AccuracyMeters = AccuracyZip
		coarse.At = base.Add(time.Second * 5)
		if filter.accept(coarse) {
			t.Error("expected coarse result to be held back while the accurate one is fresh")
		}
		coarse.At = base.Add(time.Minute * 2)
		if !filter.accept(coarse) {
			t.Error("expected coarse result to be accepted once the accurate one expired")
		}
	})
	t.Run("invalid coordinates are rejected", func(t *testing.T) {
		filter := &watchFilter{opts: DefaultWatchOptions()}
		if filter.accept(Result{Lat: 100, Lon: 0, AccuracyMeters: 5, At: base}) {
			t.Error("expected invalid coordinate to be rejected")
		}
	})
	t.Run("time and distance intervals apply", func(t *testing.T) {
		tests := []struct {
			name   string
			r      Result
			offset time.Duration
			want   bool
		}{
			{"moved too early", moved, time.Millisecond * 500, false},
			{"jitter after interval", jitter, time.Second * 2, false},
			{"moved after interval", moved, time.Second * 2, true},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				filter := &watchFilter{opts: DefaultWatchOptions()}
				filter.accept(origin)
				r := tc.r
				r.At = base.Add(tc.offset)
				if filter.accept(r) != tc.want {
					t.Errorf("expected accept to be %t", tc.want)
				}
			})
		}
	})
}

func TestNewTracker(t *testing.T) {
	t.Run("new tracker succeeds", func(t *testing.T) {
		tracker, err := NewTracker(testBus(t), testRequester(t, "granted"), nil)
		if err != nil {
			t.Fatalf("failed to create tracker: %s", err)
		}
		status, err := tracker.RequestPermission(t.Context())
		if err != nil {
			t.Fatalf("failed to request permission: %s", err)
		}
		if status != permission.StatusGranted {
			t.Errorf("expected permission to be granted, got %s", status)
		}
	})
	t.Run("missing dependencies fail", func(t *testing.T) {
		if _, err := NewTracker(nil, testRequester(t, "granted"), nil); err == nil {
			t.Error("expected tracker without bus to fail")
		}
		if _, err := NewTracker(testBus(t), nil, nil); err == nil {
			t.Error("expected tracker without permission requester to fail")
		}
	})
}

func TestTracker_Watch(t *testing.T) {
	t.Run("positions are filtered and delivered in order", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			base := time.Now()
			provider := &mockProvider{name: "gpsd", results: []Result{
				{Lat: 52.5200, Lon: 13.4050, AccuracyMeters: 5, At: base},
				{Lat: 52.5210, Lon: 13.4050, AccuracyMeters: 5, At: base.Add(time.Millisecond * 200)},
				{Lat: 52.52002, Lon: 13.4050, AccuracyMeters: 5, At: base.Add(time.Second * 2)},
				{Lat: 52.5220, Lon: 13.4050, AccuracyMeters: 5, At: base.Add(time.Second * 3)},
			}}
			tracker, err := NewTracker(testBus(t), testRequester(t, "granted"), []Provider{provider})
			if err != nil {
				t.Fatalf("failed to create tracker: %s", err)
			}

			var mu sync.Mutex
			var got []geo.Position
			sub, err := tracker.Watch(t.Context(), DefaultWatchOptions(), func(pos geo.Position) {
				mu.Lock()
				got = append(got, pos)
				mu.Unlock()
			})
			if err != nil {
				t.Fatalf("failed to start watch: %s", err)
			}
			synctest.Wait()
			sub.Remove()
			sub.Remove()
			synctest.Wait()

			mu.Lock()
			defer mu.Unlock()
			want := []geo.Position{
				{Latitude: 52.5200, Longitude: 13.4050},
				{Latitude: 52.5220, Longitude: 13.4050},
			}
			if len(got) != len(want) {
				t.Fatalf("expected %d positions, got %d: %v", len(want), len(got), got)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
				}
			}
		})
	})
	t.Run("network only positions are delivered with default options", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			base := time.Now()
			provider := &mockProvider{name: "geoapi", results: []Result{
				{Lat: 52.5200, Lon: 13.4050, AccuracyMeters: AccuracyZip, At: base},
				{Lat: 52.5170, Lon: 13.3889, AccuracyMeters: 150, At: base.Add(time.Millisecond * 10)},
			}}
			tracker, err := NewTracker(testBus(t), testRequester(t, "granted"), []Provider{provider})
			if err != nil {
				t.Fatalf("failed to create tracker: %s", err)
			}

			var mu sync.Mutex
			var got []geo.Position
			sub, err := tracker.Watch(t.Context(), DefaultWatchOptions(), func(pos geo.Position) {
				mu.Lock()
				got = append(got, pos)
				mu.Unlock()
			})
			if err != nil {
				t.Fatalf("failed to start watch: %s", err)
			}
			synctest.Wait()
			sub.Remove()

			mu.Lock()
			defer mu.Unlock()
			want := []geo.Position{
				{Latitude: 52.5200, Longitude: 13.4050},
				{Latitude: 52.5170, Longitude: 13.3889},
			}
			if len(got) != len(want) {
				t.Fatalf("expected %d positions, got %d: %v", len(want), len(got), got)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
				}
			}
		})
	})
	t.Run("watch without providers fails", func(t *testing.T) {
		tracker, err := NewTracker(testBus(t), testRequester(t, "granted"), nil)
		if err != nil {
			t.Fatalf("failed to create tracker: %s", err)
		}
		_, err = tracker.Watch(t.Context(), DefaultWatchOptions(), func(geo.Position) {})
		if !errors.Is(err, ErrNoProviders) {
			t.Errorf("expected error to be %s, got %s", ErrNoProviders, err)
		}
	})
	t.Run("watch without callback fails", func(t *testing.T) {
		tracker, err := NewTracker(testBus(t), testRequester(t, "granted"), []Provider{&mockProvider{name: "m"}})
		if err != nil {
			t.Fatalf("failed to create tracker: %s", err)
		}
		if _, err = tracker.Watch(t.Context(), DefaultWatchOptions(), nil); err == nil {
			t.Error("expected watch without callback to fail")
		}
	})
}
