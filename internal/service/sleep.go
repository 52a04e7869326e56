// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/mapscreen/internal/logger"
)

const (
	dbusInterface   = "org.freedesktop.login1.Manager"
	dbusWatchMember = "PrepareForSleep"

	debounceWindow   = 2 * time.Second
	signalBufferSize = 8

	networkWakeupDelay = 10 * time.Second
	resubscribeDelay   = 5 * time.Second
)

var errBusClosed = errors.New("system bus connection closed")

// resumeMonitor listens for logind's PrepareForSleep signal and calls onResume once the system
// woke up again.
type resumeMonitor struct {
	logger   *logger.Logger
	connect  func() (*dbus.Conn, error)
	onResume func(context.Context)
	delay    time.Duration
	last     time.Time
}

// monitorSleepResume restarts location tracking whenever the system resumes from suspend. It
// runs until the context is cancelled and reconnects to the system bus when the connection
// drops.
func (s *Service) monitorSleepResume(ctx context.Context) {
	monitor := &resumeMonitor{
		logger:  s.logger,
		connect: func() (*dbus.Conn, error) { return dbus.ConnectSystemBus() },
		onResume: func(ctx context.Context) {
			s.logger.Debug("resuming from sleep, restarting location tracking")
			_ = s.screen.RestartTracking(ctx)
		},
		delay: s.wakeupDelay,
	}
	monitor.run(ctx)
}

func (m *resumeMonitor) run(ctx context.Context) {
	for {
		if err := m.watch(ctx); err != nil {
			m.logger.Error("sleep monitor interrupted", logger.Err(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
		}
	}
}

// watch subscribes to the sleep signal on a fresh connection and handles signals until the
// context is cancelled or the connection is lost.
func (m *resumeMonitor) watch(ctx context.Context) error {
	conn, err := m.connect()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			m.logger.Error("failed to close system bus connection", logger.Err(err))
		}
	}()

	if err = conn.AddMatchSignal(dbus.WithMatchInterface(dbusInterface),
		dbus.WithMatchMember(dbusWatchMember)); err != nil {
		return fmt.Errorf("failed to subscribe to %s.%s: %w", dbusInterface, dbusWatchMember, err)
	}
	signals := make(chan *dbus.Signal, signalBufferSize)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)
	m.logger.Debug("subscribed to dbus signal", slog.String("interface", dbusInterface),
		slog.String("member", dbusWatchMember))

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return errBusClosed
			}
			if resumed(sig) && m.debounce(time.Now()) {
				m.resume(ctx)
			}
		}
	}
}

// resume gives the network some time to come back before calling onResume.
func (m *resumeMonitor) resume(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.delay):
	}
	m.onResume(ctx)
}

// debounce reports whether a resume at now is far enough from the previous one to be handled.
func (m *resumeMonitor) debounce(now time.Time) bool {
	if !m.last.IsZero() && now.Sub(m.last) < debounceWindow {
		return false
	}
	m.last = now
	return true
}

// resumed reports whether sig announces the end of a suspend. logind sends PrepareForSleep(true)
// before suspending and PrepareForSleep(false) after waking up.
func resumed(sig *dbus.Signal) bool {
	if sig == nil || sig.Name != dbusInterface+"."+dbusWatchMember || len(sig.Body) != 1 {
		return false
	}
	sleeping, ok := sig.Body[0].(bool)
	return ok && !sleeping
}
