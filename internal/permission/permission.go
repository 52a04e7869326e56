// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package permission decides whether the screen may access the user's location.
package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Status is the outcome of a foreground location permission request.
type Status string

const (
	StatusGranted      Status = "granted"
	StatusDenied       Status = "denied"
	StatusUndetermined Status = "undetermined"
)

// ErrDenied is returned by location consumers when the permission was not granted.
var ErrDenied = errors.New("location permission denied")

// Requester asks the platform for foreground location access.
type Requester interface {
	RequestForegroundPermission(ctx context.Context) (Status, error)
}

// Static answers every request with a fixed status.
type Static struct {
	status Status
}

// NewStatic returns a Static requester for the given status string.
func NewStatic(status string) (*Static, error) {
	switch s := Status(strings.ToLower(status)); s {
	case StatusGranted, StatusDenied:
		return &Static{status: s}, nil
	default:
		return nil, fmt.Errorf("unsupported static permission status: %q", status)
	}
}

// RequestForegroundPermission implements Requester.
func (s *Static) RequestForegroundPermission(context.Context) (Status, error) {
	return s.status, nil
}
