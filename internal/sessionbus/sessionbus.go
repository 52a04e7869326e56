// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package sessionbus wraps the few D-Bus session bus calls used by the desktop integrations.
package sessionbus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const listNamesMethod = "org.freedesktop.DBus.ListNames"

// ListNames returns all names currently registered on the session bus.
func ListNames(ctx context.Context) (list []string, err error) {
	err = withConn(ctx, func(conn *dbus.Conn) error {
		if callErr := conn.BusObject().CallWithContext(ctx, listNamesMethod, 0).Store(&list); callErr != nil {
			return fmt.Errorf("failed to call DBus ListNames: %w", callErr)
		}
		return nil
	})
	return list, err
}

// HasName reports whether name is registered on the session bus.
func HasName(ctx context.Context, name string) (bool, error) {
	names, err := ListNames(ctx)
	if err != nil {
		return false, err
	}
	return Contains(names, name), nil
}

// Contains reports whether names contains name, ignoring case.
func Contains(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Call invokes method on the object at path of dest and stores the reply in ret, unless ret
// is nil.
func Call(ctx context.Context, dest string, path dbus.ObjectPath, method string, ret any, args ...any) error {
	return withConn(ctx, func(conn *dbus.Conn) error {
		call := conn.Object(dest, path).CallWithContext(ctx, method, 0, args...)
		if call.Err != nil {
			return fmt.Errorf("failed to call %s: %w", method, call.Err)
		}
		if ret == nil {
			return nil
		}
		if err := call.Store(ret); err != nil {
			return fmt.Errorf("failed to read reply of %s: %w", method, err)
		}
		return nil
	})
}

func withConn(ctx context.Context, fn func(conn *dbus.Conn) error) (err error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close session bus: %w", closeErr))
		}
	}()
	return fn(conn)
}
