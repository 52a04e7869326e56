// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vorlif/spreak"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wneessen/mapscreen/internal/config"
	"github.com/wneessen/mapscreen/internal/geobus"
	"github.com/wneessen/mapscreen/internal/http"
	"github.com/wneessen/mapscreen/internal/i18n"
	"github.com/wneessen/mapscreen/internal/job"
	"github.com/wneessen/mapscreen/internal/logger"
	"github.com/wneessen/mapscreen/internal/navigation"
	"github.com/wneessen/mapscreen/internal/places"
	"github.com/wneessen/mapscreen/internal/presenter"
	"github.com/wneessen/mapscreen/internal/routing"
	"github.com/wneessen/mapscreen/internal/screen"
	"github.com/wneessen/mapscreen/internal/search"
)

// Service wires the map screen to its providers, reads commands and writes render frames.
type Service struct {
	config     *config.Config
	httpClient *http.Client
	logger     *logger.Logger
	places     *places.CachedProvider
	presenter  *presenter.Presenter
	screen     *screen.Screen
	output     *job.Job
	out        *syncWriter

	wakeupDelay time.Duration
	SignalSrc   signalSource
}

// New creates a Service from the configuration. Providers are selected and created here, so
// configuration errors surface before anything runs.
func New(conf *config.Config, log *logger.Logger, loc *spreak.Localizer) (*Service, error) {
	if conf == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if loc == nil {
		return nil, errors.New("localizer is required")
	}

	pres, err := presenter.New(conf.Templates.Text, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	service := &Service{
		config:     conf,
		httpClient: http.New(log),
		logger:     log,
		presenter:  pres,
		out:        &syncWriter{w: io.Discard},

		wakeupDelay: networkWakeupDelay,
		SignalSrc:   stdLibSignalSource{},
	}
	service.output = job.New(conf.Intervals.Output, service.writeFrame)

	if err = service.createScreen(); err != nil {
		return nil, err
	}
	return service, nil
}

func (s *Service) createScreen() error {
	requester, err := s.selectPermissionRequester()
	if err != nil {
		return fmt.Errorf("failed to create permission requester: %w", err)
	}
	providers, err := s.selectGeobusProviders()
	if err != nil {
		return fmt.Errorf("failed to create geobus providers: %w", err)
	}
	bus, err := geobus.New(s.logger)
	if err != nil {
		return fmt.Errorf("failed to create geobus: %w", err)
	}
	tracker, err := geobus.NewTracker(bus, requester, providers)
	if err != nil {
		return fmt.Errorf("failed to create location tracker: %w", err)
	}
	accuracy, err := geobus.ParseAccuracy(s.config.GeoLocation.Accuracy)
	if err != nil {
		return fmt.Errorf("failed to parse geolocation accuracy: %w", err)
	}

	router, err := s.selectRouter()
	if err != nil {
		return fmt.Errorf("failed to create routing provider: %w", err)
	}
	fetcher, err := routing.NewFetcher(router, s.logger, s.config.Routing.Profile, s.config.Routing.FallbackProfiles...)
	if err != nil {
		return fmt.Errorf("failed to create route fetcher: %w", err)
	}

	provider, err := s.selectPlacesProvider(i18n.Tag(s.config.Locale))
	if err != nil {
		return fmt.Errorf("failed to create places provider: %w", err)
	}
	s.places = places.NewCachedProvider(provider, s.config.Places.CacheHitTTL, s.config.Places.CacheMissTTL)
	controller, err := search.NewController(s.places, s.logger, rate.Limit(s.config.Places.RateLimit),
		s.config.Places.RateBurst)
	if err != nil {
		return fmt.Errorf("failed to create search controller: %w", err)
	}

	opener, err := s.selectOpener()
	if err != nil {
		return fmt.Errorf("failed to create navigation opener: %w", err)
	}
	dispatcher, err := navigation.NewDispatcher(opener, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create navigation dispatcher: %w", err)
	}

	opts := screen.Options{
		Watch: geobus.WatchOptions{
			Accuracy:         accuracy,
			TimeInterval:     s.config.GeoLocation.TimeInterval,
			DistanceInterval: s.config.GeoLocation.DistanceInterval,
		},
		RouteToDestination: !s.config.Places.DisableDestinationRoute,
	}
	s.screen, err = screen.New(screen.TrackerLocator{Tracker: tracker}, fetcher, controller, dispatcher, s.logger, opts)
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	s.screen.OnChange(func(screen.State) { s.output.Trigger() })
	return nil
}

// Run mounts the screen, executes the commands read from in and writes a frame to out after
// every state change and at the output interval. It returns when the context is cancelled, or
// when the input ended or a quit command was read and the pending operations finished. The
// screen is unmounted and a final frame is written before Run returns.
func (s *Service) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	s.out.set(out)
	defer s.out.set(io.Discard)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			s.logger.Error("failed to shut down scheduler", logger.Err(err))
		}
	}()
	if err = s.createScheduledJob(ctx, scheduler, s.config.Intervals.CachePurge, s.purgeCache,
		"places_cache_purge_job"); err != nil {
		return err
	}
	scheduler.Start()

	if err = s.screen.Mount(ctx); err != nil {
		return fmt.Errorf("failed to mount screen: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	s.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	defer s.SignalSrc.Stop(sigChan)

	ops := make(chan func(context.Context))
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.output.Start(gctx)
		return nil
	})
	group.Go(func() error {
		s.HandleSignals(gctx, sigChan)
		return nil
	})
	group.Go(func() error {
		s.runSearchOps(gctx, ops, cancel)
		return nil
	})
	if !s.config.GeoLocation.DisableResumeMonitor {
		group.Go(func() error {
			s.monitorSleepResume(gctx)
			return nil
		})
	}
	group.Go(func() error {
		defer close(ops)
		return s.processCommands(gctx, readLines(gctx, in), ops)
	})
	s.output.Trigger()

	err = group.Wait()
	s.screen.Unmount()
	s.screen.Wait()
	s.writeFrame(context.Background())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// writeFrame renders the current state to the output.
func (s *Service) writeFrame(context.Context) {
	frame := s.presenter.Build(s.screen.State())

	var err error
	switch strings.ToLower(s.config.Output.Format) {
	case "text":
		err = s.presenter.WriteText(s.out, frame)
	default:
		err = s.presenter.WriteJSON(s.out, frame)
	}
	if err != nil {
		s.logger.Error("failed to write frame", logger.Err(err))
	}
}

func (s *Service) createScheduledJob(ctx context.Context, scheduler gocron.Scheduler, interval time.Duration,
	task func(context.Context), jobName string,
) error {
	_, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

func (s *Service) purgeCache(context.Context) {
	purged := s.places.Purge()
	s.logger.Debug("purged expired place details from cache", slog.Int("entries", purged))
}

// runSearchOps executes the search operations in the order they were issued. Once ops is closed
// and the route fetches in flight have returned, the session ends.
func (s *Service) runSearchOps(ctx context.Context, ops <-chan func(context.Context), done context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case op, ok := <-ops:
			if !ok {
				s.screen.Wait()
				done()
				return
			}
			op(ctx)
		}
	}
}

// logState logs the current screen state at info level.
func (s *Service) logState() {
	state := s.screen.State()
	s.logger.Info("current screen state", slog.String("permission", string(state.Permission)),
		slog.String("position", state.Position.String()), slog.String("marker", state.Marker.String()),
		slog.String("destination", state.Destination.String()), slog.Int("route_points", len(state.Route)),
		slog.String("query", state.Query), slog.Int("results", len(state.Results)))
}

// syncWriter serializes writes of frames and deep links to the same output.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *syncWriter) set(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}
