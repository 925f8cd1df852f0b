package delivery

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/nhle/cfish-notify/internal/model"
)

const (
	notificationsService = "org.freedesktop.Notifications"
	notificationsPath    = "/org/freedesktop/Notifications"
)

// DBusNotifier shows desktop notifications through the freedesktop
// notification service on the session bus. Permission is granted when
// the service is present; there is no interactive prompt.
type DBusNotifier struct {
	appName string
	icon    string

	mu      sync.Mutex
	conn    *dbus.Conn
	connect func() (*dbus.Conn, error)
}

// NewDBusNotifier creates a notifier that labels notifications with
// appName. The bus connection is opened lazily.
func NewDBusNotifier(appName, icon string) *DBusNotifier {
	return &DBusNotifier{
		appName: appName,
		icon:    icon,
		connect: func() (*dbus.Conn, error) { return dbus.ConnectSessionBus() },
	}
}

func (d *DBusNotifier) bus() (*dbus.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil && d.conn.Connected() {
		return d.conn, nil
	}
	conn, err := d.connect()
	if err != nil {
		return nil, fmt.Errorf("connecting session bus: %w", err)
	}
	d.conn = conn
	return conn, nil
}

// Permission reports granted when a notification service owns its bus
// name.
func (d *DBusNotifier) Permission(ctx context.Context) Permission {
	conn, err := d.bus()
	if err != nil {
		return PermissionDenied
	}

	var owned bool
	err = conn.BusObject().
		CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, notificationsService).
		Store(&owned)
	if err != nil || !owned {
		return PermissionDenied
	}
	return PermissionGranted
}

// RequestPermission behaves like Permission; desktop sessions do not prompt.
func (d *DBusNotifier) RequestPermission(ctx context.Context) (Permission, error) {
	return d.Permission(ctx), nil
}

// Show sends n to the notification service.
func (d *DBusNotifier) Show(ctx context.Context, n model.Notification) error {
	conn, err := d.bus()
	if err != nil {
		return err
	}

	obj := conn.Object(notificationsService, notificationsPath)
	call := obj.CallWithContext(ctx, notificationsService+".Notify", 0,
		d.appName,
		uint32(0),
		d.icon,
		n.Title,
		n.Message,
		[]string{},
		map[string]dbus.Variant{
			"category": dbus.MakeVariant(string(n.Type)),
		},
		int32(-1),
	)
	if call.Err != nil {
		return fmt.Errorf("showing desktop notification: %w", call.Err)
	}
	return nil
}

// Close releases the bus connection.
func (d *DBusNotifier) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}
