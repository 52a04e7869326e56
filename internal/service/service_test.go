// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	stdhttp "net/http"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"testing/synctest"
	"time"

	"github.com/vorlif/spreak"

	"github.com/wneessen/mapscreen/internal/config"
	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/i18n"
	"github.com/wneessen/mapscreen/internal/logger"
	"github.com/wneessen/mapscreen/internal/navigation"
	"github.com/wneessen/mapscreen/internal/permission"
	"github.com/wneessen/mapscreen/internal/presenter"
	"github.com/wneessen/mapscreen/internal/testhelper"
)

const (
	testRouteFile  = "../../testdata/ors_route.json"
	testSearchFile = "../../testdata/nominatim_search.json"
	testLookupFile = "../../testdata/nominatim_lookup.json"
	testGeoFile    = "../../testdata/geolocation"
)

func TestNew(t *testing.T) {
	testEnv(t)
	t.Run("new service succeeds", func(t *testing.T) {
		_ = testService(t)
	})
	t.Run("new service with nil config fails", func(t *testing.T) {
		_, err := New(nil, logger.NewLogger(slog.LevelDebug, io.Discard), testLocalizer(t))
		if err == nil {
			t.Fatal("expected service creation to fail")
		}
	})
	t.Run("new service with nil logger fails", func(t *testing.T) {
		_, err := New(testConfig(t), nil, testLocalizer(t))
		if err == nil {
			t.Fatal("expected service creation to fail")
		}
	})
	t.Run("new service with nil localizer fails", func(t *testing.T) {
		_, err := New(testConfig(t), logger.NewLogger(slog.LevelDebug, io.Discard), nil)
		if err == nil {
			t.Fatal("expected service creation to fail")
		}
	})
	t.Run("new service with broken template fails", func(t *testing.T) {
		conf := testConfig(t)
		conf.Templates.Text = "{{.Invalid"
		_, err := New(conf, logger.NewLogger(slog.LevelDebug, io.Discard), testLocalizer(t))
		if err == nil {
			t.Fatal("expected service creation to fail")
		}
		wantErr := "failed to create presenter"
		if !strings.Contains(err.Error(), wantErr) {
			t.Errorf("expected error to contain %q, got %q", wantErr, err)
		}
	})
	t.Run("new service with invalid accuracy fails", func(t *testing.T) {
		conf := testConfig(t)
		conf.GeoLocation.Accuracy = "perfect"
		_, err := New(conf, logger.NewLogger(slog.LevelDebug, io.Discard), testLocalizer(t))
		if err == nil {
			t.Fatal("expected service creation to fail")
		}
		wantErr := "failed to parse geolocation accuracy"
		if !strings.Contains(err.Error(), wantErr) {
			t.Errorf("expected error to contain %q, got %q", wantErr, err)
		}
	})
	t.Run("new service without geolocation providers fails", func(t *testing.T) {
		conf := testConfig(t)
		conf.GeoLocation.DisableGeolocationFile = true
		_, err := New(conf, logger.NewLogger(slog.LevelDebug, io.Discard), testLocalizer(t))
		if !errors.Is(err, ErrNoGeolocationProviders) {
			t.Errorf("expected error to be %s, got %s", ErrNoGeolocationProviders, err)
		}
	})
	t.Run("new service with unsupported places provider fails", func(t *testing.T) {
		conf := testConfig(t)
		conf.Places.Provider = "invalid"
		_, err := New(conf, logger.NewLogger(slog.LevelDebug, io.Discard), testLocalizer(t))
		if err == nil {
			t.Fatal("expected service creation to fail")
		}
		wantErr := "unsupported places provider: invalid"
		if !strings.Contains(err.Error(), wantErr) {
			t.Errorf("expected error to contain %q, got %q", wantErr, err)
		}
	})
}

func TestService_selectProvider(t *testing.T) {
	testEnv(t)
	t.Run("places providers", func(t *testing.T) {
		tests := []struct {
			name       string
			provider   string
			apikey     string
			wantName   string
			shouldFail bool
		}{
			{"google with api key", "google", "abc", "google", false},
			{"google without api key", "google", "", "", true},
			{"geocode-earth with api key", "geocode-earth", "abc", "geocode-earth", false},
			{"geocode-earth without api key", "geocode-earth", "", "", true},
			{"nominatim", "nominatim", "", "osm-nominatim", false},
			{"unsupported", "invalid", "", "", true},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				serv := testService(t)
				serv.config.Places.Provider = tc.provider
				serv.config.Places.APIKey = tc.apikey
				provider, err := serv.selectPlacesProvider(i18n.Tag("en"))
				if tc.shouldFail {
					if err == nil {
						t.Fatal("expected select provider to fail")
					}
					return
				}
				if err != nil {
					t.Fatalf("failed to select provider: %s", err)
				}
				if provider.Name() != tc.wantName {
					t.Errorf("expected provider name to be %q, got %q", tc.wantName, provider.Name())
				}
			})
		}
	})
	t.Run("routing providers", func(t *testing.T) {
		serv := testService(t)
		router, err := serv.selectRouter()
		if err != nil {
			t.Fatalf("failed to select router: %s", err)
		}
		if router.Name() != "openrouteservice" {
			t.Errorf("expected router name to be %q, got %q", "openrouteservice", router.Name())
		}

		serv.config.Routing.APIKey = ""
		if _, err = serv.selectRouter(); err == nil {
			t.Error("expected router without api key to fail")
		}
		serv.config.Routing.Provider = "invalid"
		if _, err = serv.selectRouter(); err == nil {
			t.Error("expected unsupported router to fail")
		}
	})
	t.Run("navigation openers", func(t *testing.T) {
		tests := []struct {
			opener     string
			wantName   string
			shouldFail bool
		}{
			{"portal", "xdg-portal", false},
			{"print", "writer", false},
			{"none", "none", false},
			{"invalid", "", true},
		}
		for _, tc := range tests {
			t.Run(tc.opener, func(t *testing.T) {
				serv := testService(t)
				serv.config.Navigation.Opener = tc.opener
				opener, err := serv.selectOpener()
				if tc.shouldFail {
					if err == nil {
						t.Fatal("expected select opener to fail")
					}
					return
				}
				if err != nil {
					t.Fatalf("failed to select opener: %s", err)
				}
				if opener.Name() != tc.wantName {
					t.Errorf("expected opener name to be %q, got %q", tc.wantName, opener.Name())
				}
			})
		}
	})
	t.Run("permission requesters", func(t *testing.T) {
		serv := testService(t)
		serv.config.GeoLocation.Permission = "geoclue"
		requester, err := serv.selectPermissionRequester()
		if err != nil {
			t.Fatalf("failed to select permission requester: %s", err)
		}
		if _, ok := requester.(*permission.GeoClue); !ok {
			t.Errorf("expected GeoClue requester, got %T", requester)
		}

		serv.config.GeoLocation.Permission = "denied"
		requester, err = serv.selectPermissionRequester()
		if err != nil {
			t.Fatalf("failed to select permission requester: %s", err)
		}
		status, err := requester.RequestForegroundPermission(t.Context())
		if err != nil {
			t.Fatalf("failed to request permission: %s", err)
		}
		if status != permission.StatusDenied {
			t.Errorf("expected status to be %q, got %q", permission.StatusDenied, status)
		}

		serv.config.GeoLocation.Permission = "maybe"
		if _, err = serv.selectPermissionRequester(); err == nil {
			t.Error("expected unsupported permission mode to fail")
		}
	})
	t.Run("geobus providers", func(t *testing.T) {
		serv := testService(t)
		serv.config.GeoLocation.DisableGPSD = false
		serv.config.GeoLocation.DisableGeoAPI = false
		providers, err := serv.selectGeobusProviders()
		if err != nil {
			t.Fatalf("failed to select geobus providers: %s", err)
		}
		want := []string{"geolocation_file", "gpsd", "geoapi"}
		if len(providers) != len(want) {
			t.Fatalf("expected %d providers, got %d", len(want), len(providers))
		}
		for i, provider := range providers {
			if provider.Name() != want[i] {
				t.Errorf("expected provider %d to be %q, got %q", i, want[i], provider.Name())
			}
		}
	})
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    command
		wantErr error
	}{
		{"empty line", "   ", command{}, nil},
		{"comment", "# tap 1 2", command{}, nil},
		{"tap", "tap 52.52 13.405", command{name: cmdTap, position: geo.Position{Latitude: 52.52, Longitude: 13.405}}, nil},
		{"tap with comma", "TAP 52.52,13.405", command{name: cmdTap, position: geo.Position{Latitude: 52.52, Longitude: 13.405}}, nil},
		{"tap without longitude", "tap 52.52", command{name: cmdTap}, ErrInvalidArgs},
		{"tap with broken latitude", "tap north 13.405", command{name: cmdTap}, ErrInvalidArgs},
		{"tap with broken longitude", "tap 52.52 east", command{name: cmdTap}, ErrInvalidArgs},
		{"marker", "marker 1700000000000", command{name: cmdMarker, markerID: 1700000000000}, nil},
		{"marker without id", "marker", command{name: cmdMarker}, ErrInvalidArgs},
		{"search keeps inner spaces", "search  Unter den  Linden ", command{name: cmdSearch, text: "Unter den  Linden"}, nil},
		{"blank search", "search", command{name: cmdSearch}, nil},
		{"select", "select W20517133", command{name: cmdSelect, text: "W20517133"}, nil},
		{"select without id", "select", command{name: cmdSelect}, ErrInvalidArgs},
		{"directions", "directions", command{name: cmdDirections}, nil},
		{"clear", "clear", command{name: cmdClear}, nil},
		{"refresh", "refresh", command{name: cmdRefresh}, nil},
		{"quit", "quit", command{name: cmdQuit}, nil},
		{"exit", "exit", command{name: cmdExit}, nil},
		{"unknown", "fly 1 2", command{name: "fly"}, ErrUnknownCommand},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseCommand(tc.line)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error to be %s, got %s", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("failed to parse command: %s", err)
			}
			if got != tc.want {
				t.Errorf("expected command to be %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestService_Run(t *testing.T) {
	testEnv(t)
	t.Run("a full session from tap to directions", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			serv := testService(t)
			serv.httpClient.Transport = testhelper.MockRoundTripper{Fn: mockAPI(t)}
			reader, writer := io.Pipe()
			out := &syncBuffer{buf: bytes.NewBuffer(nil)}

			errChan := make(chan error, 1)
			go func() {
				errChan <- serv.Run(t.Context(), reader, out)
			}()
			synctest.Wait()

			pos, ok := serv.screen.State().Position.Get()
			if !ok {
				t.Fatal("expected position to be set after mount")
			}
			if pos.Latitude != 40.7185 || pos.Longitude != -74.0025 {
				t.Errorf("expected position to be 40.7185,-74.0025, got %s", pos)
			}

			sendCommand(t, writer, "tap 40.7306 -73.9866")
			state := serv.screen.State()
			marker, ok := state.Marker.Get()
			if !ok {
				t.Fatal("expected marker to be set after tap")
			}
			if selected, _ := state.SelectedMarker.Get(); selected.ID != marker.ID {
				t.Errorf("expected marker %d to be selected, got %d", marker.ID, selected.ID)
			}
			if len(state.Route) == 0 {
				t.Error("expected route to be set after tap")
			}

			sendCommand(t, writer, "directions")
			if !strings.Contains(out.String(), navigation.DirectionsBaseURL) {
				t.Errorf("expected output to contain deep link, got %q", out.String())
			}

			sendCommand(t, writer, "search Friedrichstraße")
			state = serv.screen.State()
			if len(state.Results) == 0 {
				t.Fatal("expected search results")
			}
			if state.Results[0].PlaceID != "W20517133" {
				t.Errorf("expected first result to be %q, got %q", "W20517133", state.Results[0].PlaceID)
			}

			sendCommand(t, writer, "select W20517133")
			state = serv.screen.State()
			dest, ok := state.Destination.Get()
			if !ok {
				t.Fatal("expected destination to be set after select")
			}
			if dest.Latitude != 52.5147128 || dest.Longitude != 13.3889868 {
				t.Errorf("expected destination to be 52.5147128,13.3889868, got %s", dest)
			}
			if len(state.Results) != 0 {
				t.Errorf("expected results to be empty after select, got %d", len(state.Results))
			}

			sendCommand(t, writer, "clear")
			if query := serv.screen.State().Query; query != "" {
				t.Errorf("expected query to be empty after clear, got %q", query)
			}

			if err := writer.Close(); err != nil {
				t.Fatalf("failed to close input: %s", err)
			}
			if err := <-errChan; err != nil {
				t.Fatalf("failed to run service: %s", err)
			}

			frame := lastFrame(t, out.String())
			if frame.Region == nil {
				t.Fatal("expected last frame to have a region")
			}
			var kinds []string
			for _, pin := range frame.Pins {
				kinds = append(kinds, pin.Kind)
			}
			for _, want := range []string{presenter.PinPosition, presenter.PinSelected, presenter.PinDestination} {
				if !strings.Contains(strings.Join(kinds, ","), want) {
					t.Errorf("expected last frame to have a %q pin, got %v", want, kinds)
				}
			}
		})
	})
	t.Run("quit ends the session", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			serv := testService(t)
			serv.httpClient.Transport = testhelper.MockRoundTripper{Fn: mockAPI(t)}
			out := &syncBuffer{buf: bytes.NewBuffer(nil)}
			in := strings.NewReader("quit\ntap 40.7306 -73.9866\n")
			if err := serv.Run(t.Context(), in, out); err != nil {
				t.Fatalf("failed to run service: %s", err)
			}
			if serv.screen.State().Marker.IsSet() {
				t.Error("expected commands after quit to be ignored")
			}
			if out.String() == "" {
				t.Error("expected a final frame to be written")
			}
		})
	})
	t.Run("cancelling the context ends the session", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			serv := testService(t)
			reader, writer := io.Pipe()
			defer func() { _ = writer.Close() }()

			errChan := make(chan error, 1)
			go func() {
				errChan <- serv.Run(ctx, reader, io.Discard)
			}()
			synctest.Wait()
			cancel()
			if err := <-errChan; err != nil {
				t.Errorf("expected no error on cancellation, got %s", err)
			}
		})
	})
	t.Run("the places cache is purged at the purge interval", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			conf := testConfig(t)
			conf.Intervals.CachePurge = time.Minute
			logs := &syncBuffer{buf: bytes.NewBuffer(nil)}
			serv, err := New(conf, logger.NewLogger(slog.LevelDebug, logs), testLocalizer(t))
			if err != nil {
				t.Fatalf("failed to create service: %s", err)
			}
			serv.SignalSrc = nopSignalSource{}
			reader, writer := io.Pipe()

			errChan := make(chan error, 1)
			go func() {
				errChan <- serv.Run(t.Context(), reader, io.Discard)
			}()
			synctest.Wait()
			if strings.Contains(logs.String(), "purged expired place details") {
				t.Error("expected no purge before the interval elapsed")
			}

			time.Sleep(time.Minute + time.Second)
			synctest.Wait()
			if !strings.Contains(logs.String(), "purged expired place details") {
				t.Errorf("expected cache purge after the interval, got logs %q", logs.String())
			}

			if err = writer.Close(); err != nil {
				t.Fatalf("failed to close input: %s", err)
			}
			if err = <-errChan; err != nil {
				t.Fatalf("failed to run service: %s", err)
			}
		})
	})
	t.Run("denied permission runs in degraded mode", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			conf := testConfig(t)
			conf.GeoLocation.Permission = "denied"
			serv := newTestService(t, conf)
			out := &syncBuffer{buf: bytes.NewBuffer(nil)}
			if err := serv.Run(t.Context(), strings.NewReader(""), out); err != nil {
				t.Fatalf("failed to run service: %s", err)
			}
			state := serv.screen.State()
			if state.Permission != permission.StatusDenied {
				t.Errorf("expected permission to be %q, got %q", permission.StatusDenied, state.Permission)
			}
			if state.Position.IsSet() {
				t.Error("expected position to be unset")
			}
			frame := lastFrame(t, out.String())
			if frame.Status == "" {
				t.Error("expected last frame to carry a status")
			}
		})
	})
}

func TestService_HandleSignals(t *testing.T) {
	testEnv(t)
	t.Run("USR1 signal writes a frame", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			serv := testService(t)
			out := &syncBuffer{buf: bytes.NewBuffer(nil)}
			serv.out.set(out)
			go serv.output.Start(ctx)

			sigChan := make(chan os.Signal, 1)
			go serv.HandleSignals(ctx, sigChan)
			sigChan <- syscall.SIGUSR1
			synctest.Wait()

			if !strings.Contains(out.String(), `"pins"`) {
				t.Errorf("expected a frame to be written, got %q", out.String())
			}
		})
	})
	t.Run("USR2 signal logs the state", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			serv := testService(t)
			buf := &syncBuffer{buf: bytes.NewBuffer(nil)}
			serv.logger = logger.NewLogger(slog.LevelInfo, buf)

			sigChan := make(chan os.Signal, 1)
			go serv.HandleSignals(ctx, sigChan)
			sigChan <- syscall.SIGUSR2
			synctest.Wait()

			wantLog := `msg="current screen state" permission=undetermined`
			if !strings.Contains(buf.String(), wantLog) {
				t.Errorf("expected log to contain %q, got %q", wantLog, buf.String())
			}
		})
	})
}

func TestService_writeFrame(t *testing.T) {
	testEnv(t)
	t.Run("text output", func(t *testing.T) {
		serv := testService(t)
		serv.config.Output.Format = "text"
		out := &syncBuffer{buf: bytes.NewBuffer(nil)}
		serv.out.set(out)
		serv.writeFrame(t.Context())
		if !strings.Contains(out.String(), "Location unavailable") {
			t.Errorf("expected text frame to report missing location, got %q", out.String())
		}
	})
	t.Run("failing writer is logged", func(t *testing.T) {
		serv := testService(t)
		buf := &syncBuffer{buf: bytes.NewBuffer(nil)}
		serv.logger = logger.NewLogger(slog.LevelError, buf)
		serv.out.set(failWriter{})
		serv.writeFrame(t.Context())
		if !strings.Contains(buf.String(), "failed to write frame") {
			t.Errorf("expected log to contain write error, got %q", buf.String())
		}
	})
}

// testEnv sets the API keys the default configuration requires.
func testEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MAPSCREEN_ROUTING_APIKEY", "test-key")
	t.Setenv("MAPSCREEN_PLACES_PROVIDER", "nominatim")
	t.Setenv("MAPSCREEN_LOCALE", "en")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	conf, err := config.New()
	if err != nil {
		t.Fatalf("failed to load config: %s", err)
	}
	conf.GeoLocation.Permission = "granted"
	conf.GeoLocation.File = testGeoFile
	conf.GeoLocation.DisableGPSD = true
	conf.GeoLocation.DisableGeoAPI = true
	conf.GeoLocation.DisableICHNAEA = true
	conf.GeoLocation.DisableResumeMonitor = true
	conf.Navigation.Opener = "print"
	return conf
}

func testLocalizer(t *testing.T) *spreak.Localizer {
	t.Helper()
	loc, err := i18n.New("en")
	if err != nil {
		t.Fatalf("failed to create localizer: %s", err)
	}
	return loc
}

func testService(t *testing.T) *Service {
	t.Helper()
	return newTestService(t, testConfig(t))
}

func newTestService(t *testing.T, conf *config.Config) *Service {
	t.Helper()
	serv, err := New(conf, logger.NewLogger(slog.LevelDebug, io.Discard), testLocalizer(t))
	if err != nil {
		t.Fatalf("failed to create service: %s", err)
	}
	serv.SignalSrc = nopSignalSource{}
	return serv
}

// mockAPI answers routing and place requests with the fixtures in testdata.
func mockAPI(t *testing.T) func(*stdhttp.Request) (*stdhttp.Response, error) {
	t.Helper()
	route := testhelper.JSONResponseFromFile(t, testRouteFile, stdhttp.StatusOK)
	search := testhelper.JSONResponseFromFile(t, testSearchFile, stdhttp.StatusOK)
	lookup := testhelper.JSONResponseFromFile(t, testLookupFile, stdhttp.StatusOK)
	return func(req *stdhttp.Request) (*stdhttp.Response, error) {
		switch {
		case strings.Contains(req.URL.Path, "/directions/"):
			return route(req)
		case strings.HasSuffix(req.URL.Path, "/search"):
			return search(req)
		case strings.HasSuffix(req.URL.Path, "/lookup"):
			return lookup(req)
		default:
			return nil, errors.New("unexpected request: " + req.URL.String())
		}
	}
}

// sendCommand writes a command line and waits until everything it started has settled. The
// clock moves on by a second, so the search rate limiter never holds a request back.
func sendCommand(t *testing.T, w io.Writer, line string) {
	t.Helper()
	if _, err := io.WriteString(w, line+"\n"); err != nil {
		t.Fatalf("failed to send command %q: %s", line, err)
	}
	synctest.Wait()
	time.Sleep(time.Second)
	synctest.Wait()
}

// lastFrame returns the last JSON frame written to the output.
func lastFrame(t *testing.T, output string) presenter.Frame {
	t.Helper()
	var frame presenter.Frame
	found := false
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			t.Fatalf("failed to decode frame: %s", err)
		}
		found = true
	}
	if !found {
		t.Fatalf("no frame found in output: %q", output)
	}
	return frame
}

type (
	failWriter      struct{}
	nopSignalSource struct{}
	syncBuffer      struct {
		mu  sync.Mutex
		buf *bytes.Buffer
	}
)

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("failed to write") }

func (nopSignalSource) Notify(chan<- os.Signal, ...os.Signal) {}
func (nopSignalSource) Stop(chan<- os.Signal)                 {}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
