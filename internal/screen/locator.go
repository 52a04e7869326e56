// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package screen

import (
	"context"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/geobus"
)

// TrackerLocator adapts a geobus.Tracker to the Locator interface.
type TrackerLocator struct {
	*geobus.Tracker
}

func (l TrackerLocator) Watch(ctx context.Context, opts geobus.WatchOptions, fn func(geo.Position)) (Subscription, error) {
	sub, err := l.Tracker.Watch(ctx, opts, fn)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
