// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package navigation

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/mapscreen/internal/sessionbus"
)

const (
	PortalDBusName   = "org.freedesktop.portal.Desktop"
	PortalObjectPath = "/org/freedesktop/portal/desktop"
	PortalOpenURI    = "org.freedesktop.portal.OpenURI.OpenURI"
)

// Portal opens URLs through the OpenURI interface of the XDG desktop portal.
type Portal struct {
	hasName func(ctx context.Context, name string) (bool, error)
	call    func(ctx context.Context, uri string) error
}

func NewPortal() *Portal {
	return &Portal{
		hasName: sessionbus.HasName,
		call: func(ctx context.Context, uri string) error {
			var handle dbus.ObjectPath
			return sessionbus.Call(ctx, PortalDBusName, PortalObjectPath, PortalOpenURI, &handle,
				"", uri, map[string]dbus.Variant{})
		},
	}
}

func (p *Portal) Name() string {
	return "xdg-portal"
}

// CanOpen reports whether the desktop portal is running on the session bus.
func (p *Portal) CanOpen(ctx context.Context, _ string) bool {
	ok, err := p.hasName(ctx, PortalDBusName)
	return err == nil && ok
}

func (p *Portal) Open(ctx context.Context, uri string) error {
	return p.call(ctx, uri)
}

// Writer "opens" URLs by writing them to an io.Writer, one per line. It serves terminals and
// other headless sessions.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) Name() string {
	return "writer"
}

func (w *Writer) CanOpen(context.Context, string) bool {
	return w.out != nil
}

func (w *Writer) Open(_ context.Context, uri string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintln(w.out, uri); err != nil {
		return fmt.Errorf("failed to write deep link: %w", err)
	}
	return nil
}

// Unsupported is the Opener of a platform without URL dispatch.
type Unsupported struct{}

func (Unsupported) Name() string                         { return "none" }
func (Unsupported) CanOpen(context.Context, string) bool { return false }
func (Unsupported) Open(context.Context, string) error   { return ErrUnsupportedDeepLink }
