package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/cfish-notify/internal/metrics"
	"github.com/nhle/cfish-notify/internal/model"
	"github.com/nhle/cfish-notify/internal/notification"
	"github.com/nhle/cfish-notify/internal/settings"
)

type countingSound struct {
	mu    sync.Mutex
	plays int
	err   error
	panic bool
}

func (s *countingSound) Play(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
	if s.panic {
		panic("audio device gone")
	}
	return s.err
}

type recordingDesktop struct {
	perm  Permission
	shown []model.Notification
	err   error
}

func (d *recordingDesktop) Permission(context.Context) Permission { return d.perm }

func (d *recordingDesktop) RequestPermission(context.Context) (Permission, error) {
	return d.perm, nil
}

func (d *recordingDesktop) Show(_ context.Context, n model.Notification) error {
	d.shown = append(d.shown, n)
	return d.err
}

type fixture struct {
	notes    *notification.Store
	settings *settings.Store
	sound    *countingSound
	desktop  *recordingDesktop
	metrics  *metrics.Metrics
	router   *Router
}

func newFixture() *fixture {
	f := &fixture{
		notes:    notification.NewStore(),
		settings: settings.NewStore(nil, nil),
		sound:    &countingSound{},
		desktop:  &recordingDesktop{perm: PermissionGranted},
		metrics:  metrics.New(),
	}
	f.router = NewRouter(f.notes, f.settings,
		WithSound(f.sound),
		WithDesktop(f.desktop),
		WithMetrics(f.metrics),
	)
	return f
}

func TestAdmitEnabledCategory(t *testing.T) {
	f := newFixture()

	n, ok := f.router.Admit(context.Background(), model.Event{Type: model.TypeTrade, Title: "Sale", Message: "sold"})

	require.True(t, ok)
	assert.Equal(t, 1, f.notes.Len())
	assert.Equal(t, 1, f.notes.UnreadCount())
	assert.Equal(t, "Sale", n.Title)
	assert.Equal(t, 1, f.sound.plays)
	assert.Empty(t, f.desktop.shown, "push disabled by default")

	series, err := testutil.GatherAndCount(f.metrics.Registry(), "cfish_notify_admitted_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}

func TestAdmitDisabledCategoryIsDropped(t *testing.T) {
	f := newFixture()
	f.settings.Update(context.Background(), settings.Patch{
		Types: map[model.NotificationType]bool{model.TypeTrade: false},
	})

	_, ok := f.router.Admit(context.Background(), model.Event{Type: model.TypeTrade, Title: "Sale"})

	assert.False(t, ok)
	assert.Equal(t, 0, f.notes.Len())
	assert.Equal(t, 0, f.sound.plays)
}

func TestDisabledCategoryStaysOutUntilReenabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.settings.Update(ctx, settings.Patch{
		Types: map[model.NotificationType]bool{model.TypeTrade: false},
	})

	for i := 0; i < 5; i++ {
		_, ok := f.router.Admit(ctx, model.Event{Type: model.TypeTrade, Title: "Sale"})
		assert.False(t, ok)
	}
	require.Equal(t, 0, f.notes.Len())
	require.Equal(t, 0, f.sound.plays)

	f.settings.Update(ctx, settings.Patch{
		Types: map[model.NotificationType]bool{model.TypeTrade: true},
	})
	n, ok := f.router.Admit(ctx, model.Event{Type: model.TypeTrade, Title: "Sale after"})

	require.True(t, ok)
	assert.Equal(t, 1, f.notes.Len())
	assert.Equal(t, "Sale after", n.Title)
	assert.Equal(t, 1, f.sound.plays)
}

func TestAdmitDefaultDisabledCategory(t *testing.T) {
	f := newFixture()

	_, ok := f.router.Admit(context.Background(), model.Event{Type: model.TypeLike, Title: "Liked"})

	assert.False(t, ok)
	assert.Equal(t, 0, f.notes.Len())
}

func TestAdmitUnknownCategoryIsDropped(t *testing.T) {
	f := newFixture()

	_, ok := f.router.Admit(context.Background(), model.Event{Type: "mystery", Title: "?"})

	assert.False(t, ok)
	assert.Equal(t, 0, f.notes.Len())

	series, err := testutil.GatherAndCount(f.metrics.Registry(), "cfish_notify_dropped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}

func TestAdmitWithoutSound(t *testing.T) {
	f := newFixture()
	f.settings.Update(context.Background(), settings.Patch{Sound: settings.Bool(false)})

	_, ok := f.router.Admit(context.Background(), model.Event{Type: model.TypeSystem, Title: "Maintenance"})

	assert.True(t, ok)
	assert.Equal(t, 0, f.sound.plays)
}

func TestSoundFailureIsSwallowed(t *testing.T) {
	for name, snd := range map[string]*countingSound{
		"error": {err: errors.New("no device")},
		"panic": {panic: true},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			f.router.sound = snd

			_, ok := f.router.Admit(context.Background(), model.Event{Type: model.TypeTrade, Title: "Sale"})

			assert.True(t, ok)
			assert.Equal(t, 1, f.notes.Len())
			assert.Equal(t, 1, snd.plays)
		})
	}
}

func TestDesktopShownWhenPushEnabledAndGranted(t *testing.T) {
	f := newFixture()
	sub := &model.PushSubscription{Endpoint: "https://push.example/abc"}
	f.settings.SetPush(context.Background(), sub, true)

	n, ok := f.router.Admit(context.Background(), model.Event{Type: model.TypeBidReceived, Title: "New bid"})

	require.True(t, ok)
	require.Len(t, f.desktop.shown, 1)
	assert.Equal(t, n.ID, f.desktop.shown[0].ID)
}

func TestDesktopSkippedWithoutPermission(t *testing.T) {
	f := newFixture()
	f.desktop.perm = PermissionDenied
	f.settings.SetPush(context.Background(), &model.PushSubscription{Endpoint: "https://push.example/abc"}, true)

	_, ok := f.router.Admit(context.Background(), model.Event{Type: model.TypeTrade, Title: "Sale"})

	assert.True(t, ok)
	assert.Empty(t, f.desktop.shown)
}

func TestDesktopFailureIsSwallowed(t *testing.T) {
	f := newFixture()
	f.desktop.err = errors.New("bus closed")
	f.settings.SetPush(context.Background(), &model.PushSubscription{Endpoint: "https://push.example/abc"}, true)

	_, ok := f.router.Admit(context.Background(), model.Event{Type: model.TypeTrade, Title: "Sale"})

	assert.True(t, ok)
	assert.Equal(t, 1, f.notes.Len())
	assert.Len(t, f.desktop.shown, 1)
}

func TestNopDesktopDeniesByDefault(t *testing.T) {
	assert.Equal(t, PermissionDenied, NopDesktop{}.Permission(context.Background()))
	assert.Equal(t, PermissionGranted, NopDesktop{Perm: PermissionGranted}.Permission(context.Background()))
}
