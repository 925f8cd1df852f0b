package push

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nhle/cfish-notify/internal/delivery"
	"github.com/nhle/cfish-notify/internal/logging"
	"github.com/nhle/cfish-notify/internal/metrics"
	"github.com/nhle/cfish-notify/internal/model"
)

var (
	// ErrBusy is returned when a transition is already in flight.
	ErrBusy = errors.New("push subscription change already in progress")

	// ErrUnsupported is returned when the device has no push service.
	ErrUnsupported = errors.New("push notifications are not supported on this device")

	// ErrPermissionDenied is returned when the user refuses notifications.
	ErrPermissionDenied = errors.New("notification permission denied")
)

// State is the subscription lifecycle position.
type State int

const (
	StateUnsubscribed State = iota
	StateSubscribing
	StateSubscribed
	StateUnsubscribing
)

func (s State) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	case StateUnsubscribing:
		return "unsubscribing"
	default:
		return "unsubscribed"
	}
}

// Service is the device's push service.
type Service interface {
	// Supported reports whether push is available at all.
	Supported() bool

	// Ready blocks until the service can accept subscriptions.
	Ready(ctx context.Context) error

	// Existing returns the current subscription, or nil when there is none.
	Existing(ctx context.Context) (*model.PushSubscription, error)

	// Subscribe creates a subscription bound to applicationServerKey.
	Subscribe(ctx context.Context, applicationServerKey []byte) (*model.PushSubscription, error)

	// Cancel invalidates sub at the push service.
	Cancel(ctx context.Context, sub model.PushSubscription) error
}

// Backend records subscriptions so the server can push to them.
type Backend interface {
	RegisterSubscription(ctx context.Context, wallet string, sub model.PushSubscription) error
	UnregisterSubscription(ctx context.Context, wallet, endpoint string) error
}

// SettingsWriter is the settings surface the manager owns.
type SettingsWriter interface {
	Get() model.Settings
	SetPush(ctx context.Context, sub *model.PushSubscription, enabled bool) model.Settings
}

// Notices receives outcome notices. They bypass category filtering.
type Notices interface {
	Add(ev model.Event) model.Notification
}

// PermissionAsker prompts for desktop notification permission.
type PermissionAsker interface {
	RequestPermission(ctx context.Context) (delivery.Permission, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithApplicationKey sets the base64url application server key.
func WithApplicationKey(key string) Option {
	return func(m *Manager) { m.appKey = key }
}

// WithWallet sets the function returning the connected wallet.
func WithWallet(fn func() string) Option {
	return func(m *Manager) { m.wallet = fn }
}

// WithPermissions sets the permission prompt.
func WithPermissions(p PermissionAsker) Option {
	return func(m *Manager) { m.perms = p }
}

// WithLogger sets the manager logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

// WithMetrics records transition outcomes.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// Manager drives the push subscription lifecycle. pushEnabled and the
// subscription are only changed here, and always together.
type Manager struct {
	service  Service
	backend  Backend
	settings SettingsWriter
	notices  Notices
	perms    PermissionAsker

	appKey  string
	wallet  func() string
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	mu    sync.Mutex
	state State
	busy  bool
}

// NewManager creates a manager in the unsubscribed state. Call Restore
// at startup to adopt an existing subscription.
func NewManager(service Service, backend Backend, settings SettingsWriter, notices Notices, opts ...Option) *Manager {
	m := &Manager{
		service:  service,
		backend:  backend,
		settings: settings,
		notices:  notices,
		perms:    delivery.NopDesktop{Perm: delivery.PermissionGranted},
		wallet:   func() string { return "" },
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) begin(transitional State) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return m.state, ErrBusy
	}
	prev := m.state
	m.state = transitional
	m.busy = true
	return prev, nil
}

func (m *Manager) end(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	m.busy = false
}

// Restore adopts an existing device subscription without re-subscribing.
// Without one, pushEnabled is forced off.
func (m *Manager) Restore(ctx context.Context) error {
	if _, err := m.begin(StateSubscribing); err != nil {
		return err
	}

	var sub *model.PushSubscription
	var err error
	if m.service.Supported() {
		sub, err = m.service.Existing(ctx)
	}
	if err != nil || sub == nil {
		if err != nil {
			m.log.WithError(err).Warn("could not look up existing push subscription")
		}
		m.settings.SetPush(ctx, nil, false)
		m.end(StateUnsubscribed)
		m.metrics.PushTransition("restore", "none")
		return err
	}

	m.settings.SetPush(ctx, sub, true)
	m.end(StateSubscribed)
	m.metrics.PushTransition("restore", "adopted")
	m.log.WithField("endpoint", sub.Endpoint).Info("adopted existing push subscription")
	return nil
}

// RequestPermission asks for desktop notification permission and
// subscribes when granted. A refusal turns push off without an error
// notice.
func (m *Manager) RequestPermission(ctx context.Context) error {
	perm, err := m.perms.RequestPermission(ctx)
	if err == nil && perm == delivery.PermissionGranted {
		return m.Subscribe(ctx)
	}

	if m.State() != StateSubscribed {
		cur := m.settings.Get()
		if cur.PushEnabled || cur.PushSubscription != nil {
			m.settings.SetPush(ctx, nil, false)
		}
	}
	m.metrics.PushTransition("permission", "denied")
	if err != nil {
		return fmt.Errorf("requesting permission: %w", err)
	}
	return ErrPermissionDenied
}

// Subscribe creates a push subscription and registers it with the
// backend. Any failure leaves push disabled with no subscription.
// Subscribing while subscribed is a no-op.
func (m *Manager) Subscribe(ctx context.Context) error {
	prev, err := m.begin(StateSubscribing)
	if err != nil {
		return err
	}
	if prev == StateSubscribed {
		m.end(StateSubscribed)
		return nil
	}

	sub, err := m.subscribe(ctx)
	if err != nil {
		m.settings.SetPush(ctx, nil, false)
		m.end(StateUnsubscribed)
		m.metrics.PushTransition("subscribe", "error")
		m.log.WithError(err).Warn("push subscribe failed")

		msg := "Failed to subscribe to push notifications. Please try again."
		if errors.Is(err, ErrUnsupported) {
			msg = "Push notifications are not supported on this device."
		}
		m.notice(model.TypeError, "Error", msg)
		return err
	}

	m.settings.SetPush(ctx, sub, true)
	m.end(StateSubscribed)
	m.metrics.PushTransition("subscribe", "ok")
	m.log.WithField("endpoint", sub.Endpoint).Info("subscribed to push notifications")
	m.notice(model.TypeSuccess, "Success", "Successfully subscribed to push notifications!")
	return nil
}

func (m *Manager) subscribe(ctx context.Context) (*model.PushSubscription, error) {
	if !m.service.Supported() {
		return nil, ErrUnsupported
	}
	if err := m.service.Ready(ctx); err != nil {
		return nil, fmt.Errorf("waiting for push service: %w", err)
	}
	key, err := DecodeApplicationKey(m.appKey)
	if err != nil {
		return nil, err
	}

	sub, err := m.service.Subscribe(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("creating push subscription: %w", err)
	}

	if err := m.backend.RegisterSubscription(ctx, m.wallet(), *sub); err != nil {
		if cerr := m.service.Cancel(ctx, *sub); cerr != nil {
			m.log.WithError(cerr).Warn("could not cancel unregistered push subscription")
		}
		return nil, fmt.Errorf("registering push subscription: %w", err)
	}
	return sub, nil
}

// Unsubscribe cancels the subscription and tells the backend. Without
// an active subscription it only posts a notice. When the device
// subscription cannot be cancelled the previous subscribed state is
// kept. Once it is cancelled, push is turned off locally even if the
// backend call then fails, since the stored subscription is no longer
// valid.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	prev, err := m.begin(StateUnsubscribing)
	if err != nil {
		return err
	}

	sub := m.settings.Get().PushSubscription
	if sub == nil {
		m.end(prev)
		m.notice(model.TypeWarning, "Info", "Not subscribed to push notifications.")
		return nil
	}

	if err := m.service.Cancel(ctx, *sub); err != nil {
		m.end(prev)
		m.metrics.PushTransition("unsubscribe", "error")
		m.log.WithError(err).Warn("push unsubscribe failed")
		m.notice(model.TypeError, "Error", "Failed to unsubscribe from push notifications. Please try again.")
		return fmt.Errorf("cancelling push subscription: %w", err)
	}

	m.settings.SetPush(ctx, nil, false)
	err = m.backend.UnregisterSubscription(ctx, m.wallet(), sub.Endpoint)
	m.end(StateUnsubscribed)
	if err != nil {
		m.metrics.PushTransition("unsubscribe", "partial")
		m.log.WithError(err).WithField("endpoint", sub.Endpoint).Warn("push cancelled but backend registration remains")
		m.notice(model.TypeError, "Error", "Push notifications were turned off on this device, but the server could not be updated.")
		return fmt.Errorf("unregistering push subscription: %w", err)
	}

	m.metrics.PushTransition("unsubscribe", "ok")
	m.notice(model.TypeSuccess, "Success", "Successfully unsubscribed from push notifications.")
	return nil
}

func (m *Manager) notice(t model.NotificationType, title, msg string) {
	m.notices.Add(model.Event{Type: t, Title: title, Message: msg})
}
