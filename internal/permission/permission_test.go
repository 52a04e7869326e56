// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package permission

import (
	"context"
	"errors"
	"testing"
)

func TestNewStatic(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		want     Status
		wantFail bool
	}{
		{"granted", "granted", StatusGranted, false},
		{"denied upper case", "DENIED", StatusDenied, false},
		{"undetermined is not static", "undetermined", "", true},
		{"invalid", "maybe", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			requester, err := NewStatic(tc.status)
			if tc.wantFail {
				if err == nil {
					t.Fatal("expected static requester creation to fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("failed to create static requester: %s", err)
			}
			got, err := requester.RequestForegroundPermission(t.Context())
			if err != nil {
				t.Fatalf("permission request failed: %s", err)
			}
			if got != tc.want {
				t.Errorf("expected status to be %s, got %s", tc.want, got)
			}
		})
	}
}

func TestGeoClue_RequestForegroundPermission(t *testing.T) {
	tests := []struct {
		name     string
		names    []string
		listErr  error
		want     Status
		wantFail bool
	}{
		{
			"agent registered",
			[]string{"org.freedesktop.DBus", ":1.42", GeoClueAgentDBusName},
			nil, StatusGranted, false,
		},
		{"agent missing", []string{"org.freedesktop.DBus"}, nil, StatusDenied, false},
		{"bus unavailable", nil, errors.New("intentionally failing"), StatusUndetermined, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			requester := NewGeoClue("")
			requester.listFunc = func(context.Context) ([]string, error) {
				return tc.names, tc.listErr
			}
			got, err := requester.RequestForegroundPermission(t.Context())
			if tc.wantFail && err == nil {
				t.Fatal("expected permission request to fail")
			}
			if !tc.wantFail && err != nil {
				t.Fatalf("permission request failed: %s", err)
			}
			if got != tc.want {
				t.Errorf("expected status to be %s, got %s", tc.want, got)
			}
		})
	}
	t.Run("custom agent name", func(t *testing.T) {
		requester := NewGeoClue("org.gnome.Shell.GeoClueAgent")
		requester.listFunc = func(context.Context) ([]string, error) {
			return []string{"org.gnome.Shell.GeoClueAgent"}, nil
		}
		got, err := requester.RequestForegroundPermission(t.Context())
		if err != nil {
			t.Fatalf("permission request failed: %s", err)
		}
		if got != StatusGranted {
			t.Errorf("expected status to be %s, got %s", StatusGranted, got)
		}
	})
}
