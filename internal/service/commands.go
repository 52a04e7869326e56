// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/logger"
	"github.com/wneessen/mapscreen/internal/search"
)

const (
	cmdTap        = "tap"
	cmdMarker     = "marker"
	cmdDirections = "directions"
	cmdSearch     = "search"
	cmdSelect     = "select"
	cmdClear      = "clear"
	cmdRefresh    = "refresh"
	cmdQuit       = "quit"
	cmdExit       = "exit"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidArgs    = errors.New("invalid command arguments")
)

// command is a single parsed input line.
type command struct {
	name     string
	position geo.Position
	markerID int64
	text     string
}

// parseCommand parses one line of input. Empty lines and lines starting with # yield a command
// with an empty name.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return command{}, nil
	}
	name, rest, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	rest = strings.TrimSpace(rest)
	cmd := command{name: name}

	switch name {
	case cmdTap:
		fields := strings.Fields(strings.ReplaceAll(rest, ",", " "))
		if len(fields) != 2 {
			return cmd, fmt.Errorf("%w: %s expects <lat> <lng>", ErrInvalidArgs, name)
		}
		lat, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return cmd, fmt.Errorf("%w: invalid latitude: %s", ErrInvalidArgs, fields[0])
		}
		lng, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return cmd, fmt.Errorf("%w: invalid longitude: %s", ErrInvalidArgs, fields[1])
		}
		cmd.position = geo.Position{Latitude: lat, Longitude: lng}
	case cmdMarker:
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return cmd, fmt.Errorf("%w: %s expects a marker id", ErrInvalidArgs, name)
		}
		cmd.markerID = id
	case cmdSearch:
		cmd.text = rest
	case cmdSelect:
		if rest == "" {
			return cmd, fmt.Errorf("%w: %s expects a place id", ErrInvalidArgs, name)
		}
		cmd.text = rest
	case cmdDirections, cmdClear, cmdRefresh, cmdQuit, cmdExit:
	default:
		return cmd, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return cmd, nil
}

// readLines streams the lines of in. The channel is closed when the input ends.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// processCommands executes the commands read from lines until the input ends, a quit command
// arrives or the context is cancelled. Search operations are handed to the search worker through
// ops, after superseding the one in flight.
func (s *Service) processCommands(ctx context.Context, lines <-chan string, ops chan<- func(context.Context)) error {
	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
			if !ok {
				s.logger.Debug("end of input reached")
				return nil
			}
		}

		cmd, err := parseCommand(line)
		if err != nil {
			s.logger.Warn("ignoring invalid command", slog.String("line", line), logger.Err(err))
			continue
		}
		if cmd.name == cmdQuit || cmd.name == cmdExit {
			return nil
		}

		op := s.execute(ctx, cmd)
		if op == nil {
			continue
		}
		s.screen.CancelSearch()
		select {
		case ops <- op:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// execute runs cmd. Search operations are not run but returned, so they can be queued in order.
func (s *Service) execute(ctx context.Context, cmd command) func(context.Context) {
	switch cmd.name {
	case cmdTap:
		marker, err := s.screen.TapMap(ctx, cmd.position)
		if err != nil {
			s.logger.Warn("failed to place marker", logger.Err(err))
			return nil
		}
		s.logger.Info("marker placed", slog.Int64("marker_id", marker.ID))
	case cmdMarker:
		if err := s.screen.TapMarker(cmd.markerID); err != nil {
			s.logger.Warn("failed to select marker", logger.Err(err))
		}
	case cmdDirections:
		uri, err := s.screen.GetDirections(ctx)
		if err != nil {
			s.logger.Warn("failed to open directions", logger.Err(err))
			return nil
		}
		s.logger.Info("directions opened", slog.String("uri", uri))
	case cmdRefresh:
		s.output.Trigger()
	case cmdSearch:
		text := cmd.text
		return func(ctx context.Context) {
			err := s.screen.ChangeQuery(ctx, text)
			if errors.Is(err, search.ErrSuperseded) {
				return
			}
			if err != nil {
				s.logger.Debug("search query failed", slog.String("query", text), logger.Err(err))
			}
		}
	case cmdSelect:
		placeID := cmd.text
		return func(ctx context.Context) {
			place, err := s.screen.SelectResult(ctx, placeID)
			if errors.Is(err, search.ErrSuperseded) {
				return
			}
			if err != nil {
				s.logger.Debug("failed to select search result", slog.String("place_id", placeID),
					logger.Err(err))
				return
			}
			s.logger.Info("destination selected", slog.String("address", place.FormattedAddress))
		}
	case cmdClear:
		return func(context.Context) { s.screen.ClearSearch() }
	}
	return nil
}
