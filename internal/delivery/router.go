package delivery

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nhle/cfish-notify/internal/logging"
	"github.com/nhle/cfish-notify/internal/metrics"
	"github.com/nhle/cfish-notify/internal/model"
)

// Permission is the runtime's answer to "may we show desktop notifications".
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Adder records an admitted event.
type Adder interface {
	Add(ev model.Event) model.Notification
}

// SettingsSource exposes the current settings.
type SettingsSource interface {
	Get() model.Settings
}

// SoundPlayer plays the notification cue. Play must not block on
// playback.
type SoundPlayer interface {
	Play(ctx context.Context) error
}

// DesktopNotifier shows OS-level notifications.
type DesktopNotifier interface {
	// Permission reports the current permission without prompting.
	Permission(ctx context.Context) Permission

	// RequestPermission asks for permission and returns the outcome.
	RequestPermission(ctx context.Context) (Permission, error)

	// Show displays n.
	Show(ctx context.Context, n model.Notification) error
}

// Option configures a Router.
type Option func(*Router)

// WithSound sets the sound channel.
func WithSound(p SoundPlayer) Option {
	return func(r *Router) { r.sound = p }
}

// WithDesktop sets the desktop notification channel.
func WithDesktop(d DesktopNotifier) Option {
	return func(r *Router) { r.desktop = d }
}

// WithLogger sets the router logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Router) { r.log = l }
}

// WithMetrics records admission counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// Router decides whether an incoming event enters the store and fans it
// out to the enabled delivery channels. The store is authoritative;
// channels are best effort and their failures are swallowed.
type Router struct {
	store    Adder
	settings SettingsSource
	sound    SoundPlayer
	desktop  DesktopNotifier
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
}

// NewRouter creates a router admitting into store according to settings.
// Channels default to no-ops.
func NewRouter(store Adder, settings SettingsSource, opts ...Option) *Router {
	r := &Router{
		store:    store,
		settings: settings,
		sound:    NopSound{},
		desktop:  NopDesktop{},
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Admit gates ev on its category and, when admitted, records it and
// triggers the delivery channels. Unknown categories are dropped.
func (r *Router) Admit(ctx context.Context, ev model.Event) (model.Notification, bool) {
	cur := r.settings.Get()
	entry := r.log.WithField("type", ev.Type)

	if !ev.Type.IsKnown() {
		entry.Debug("dropping event of unknown type")
		r.metrics.Dropped(metrics.ReasonUnknownType)
		return model.Notification{}, false
	}
	if !cur.Enabled(ev.Type) {
		entry.Debug("dropping event of disabled type")
		r.metrics.Dropped(metrics.ReasonDisabled)
		return model.Notification{}, false
	}

	n := r.store.Add(ev)
	r.metrics.Admitted(string(ev.Type))

	if cur.Sound {
		if err := safely(func() error { return r.sound.Play(ctx) }); err != nil {
			entry.WithError(err).Debug("notification sound failed")
			r.metrics.ChannelFailed("sound")
		}
	}

	if cur.PushEnabled && r.desktop.Permission(ctx) == PermissionGranted {
		if err := safely(func() error { return r.desktop.Show(ctx, n) }); err != nil {
			entry.WithError(err).Debug("desktop notification failed")
			r.metrics.ChannelFailed("desktop")
		}
	}

	return n, true
}

// safely runs fn, turning a panic into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("channel panic: %v", p)
		}
	}()
	return fn()
}
