// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package permission

import (
	"context"
	"fmt"

	"github.com/wneessen/mapscreen/internal/sessionbus"
)

const GeoClueAgentDBusName = "org.freedesktop.GeoClue2.DemoAgent"

// GeoClue grants location access if a GeoClue agent is registered on the session bus. The agent
// is the component that authorizes applications for GeoClue on a desktop session.
type GeoClue struct {
	agent    string
	listFunc func(ctx context.Context) ([]string, error)
}

// NewGeoClue returns a GeoClue requester. An empty agent name selects the GeoClue demo agent.
func NewGeoClue(agent string) *GeoClue {
	if agent == "" {
		agent = GeoClueAgentDBusName
	}
	return &GeoClue{agent: agent, listFunc: sessionbus.ListNames}
}

// RequestForegroundPermission implements Requester.
func (g *GeoClue) RequestForegroundPermission(ctx context.Context) (Status, error) {
	names, err := g.listFunc(ctx)
	if err != nil {
		return StatusUndetermined, fmt.Errorf("failed to look up GeoClue agent: %w", err)
	}
	if sessionbus.Contains(names, g.agent) {
		return StatusGranted, nil
	}
	return StatusDenied, nil
}
