package settings

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/cfish-notify/internal/model"
	"github.com/nhle/cfish-notify/internal/store"
)

func newPersisted(t *testing.T) (*Store, *store.MemoryKV) {
	t.Helper()
	kv := store.NewMemoryKV()
	return NewStore(store.NewAdapter(kv, nil), nil), kv
}

func TestDefaults(t *testing.T) {
	s := NewStore(nil, nil)
	got := s.Get()

	assert.True(t, got.Sound)
	assert.False(t, got.PushEnabled)
	assert.False(t, got.EmailEnabled)
	assert.Nil(t, got.PushSubscription)
	assert.True(t, got.Enabled(model.TypeTrade))
	assert.True(t, got.Enabled(model.TypeNFTSold))
	assert.False(t, got.Enabled(model.TypeLike))
	assert.False(t, got.Enabled("mystery"))
}

func TestLoadCorruptBlobGivesDefaults(t *testing.T) {
	ctx := context.Background()
	s, kv := newPersisted(t)
	require.NoError(t, kv.Set(ctx, store.SettingsKey, `{"types": {"trade": fal`))

	var got model.Settings
	require.NotPanics(t, func() { got = s.Load(ctx) })

	assert.Equal(t, model.DefaultSettings(), got)
}

func TestLoadWrongTypedBlobGivesDefaults(t *testing.T) {
	ctx := context.Background()
	s, kv := newPersisted(t)
	require.NoError(t, kv.Set(ctx, store.SettingsKey, `{"sound": "loud", "types": {"trade": false}}`))

	assert.Equal(t, model.DefaultSettings(), s.Load(ctx))
}

func TestLoadMergesWithDefaults(t *testing.T) {
	ctx := context.Background()
	s, kv := newPersisted(t)
	require.NoError(t, kv.Set(ctx, store.SettingsKey,
		`{"types": {"social": false, "bogus": true}, "sound": false, "futureFlag": 1}`))

	got := s.Load(ctx)

	assert.False(t, got.Enabled(model.TypeSocial))
	assert.True(t, got.Enabled(model.TypeTrade))
	assert.False(t, got.Sound)
	_, hasBogus := got.Types["bogus"]
	assert.False(t, hasBogus)
}

func TestUpdatePersistsImmediately(t *testing.T) {
	ctx := context.Background()
	s, kv := newPersisted(t)

	s.Update(ctx, Patch{
		Types: map[model.NotificationType]bool{model.TypeSocial: false},
		Sound: Bool(false),
	})

	raw, err := kv.Get(ctx, store.SettingsKey)
	require.NoError(t, err)

	var persisted map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Equal(t, false, persisted["sound"])
	assert.Equal(t, false, persisted["types"].(map[string]any)["social"])

	fresh := NewStore(store.NewAdapter(kv, nil), nil)
	got := fresh.Load(ctx)
	assert.False(t, got.Enabled(model.TypeSocial))
	assert.False(t, got.Sound)
}

func TestUpdateOnlyTouchesGivenKeys(t *testing.T) {
	s := NewStore(nil, nil)
	got := s.Update(context.Background(), Patch{EmailEnabled: Bool(true)})

	assert.True(t, got.EmailEnabled)
	assert.True(t, got.Sound)
	assert.Equal(t, model.DefaultSettings().Types, got.Types)
}

func TestParsePatchIgnoresUnknownAndMistyped(t *testing.T) {
	p := ParsePatch(map[string]any{
		"types":        map[string]any{"trade": false, "nope": false, "social": "no"},
		"activity":     false,
		"sound":        "off",
		"emailEnabled": true,
		"pushEnabled":  true,
		"theme":        "dark",
	})

	assert.Equal(t, map[model.NotificationType]bool{
		model.TypeTrade:    false,
		model.TypeActivity: false,
	}, p.Types)
	assert.Nil(t, p.Sound)
	require.NotNil(t, p.EmailEnabled)
	assert.True(t, *p.EmailEnabled)

	s := NewStore(nil, nil)
	got := s.Update(context.Background(), p)
	assert.False(t, got.PushEnabled)
	assert.False(t, got.Enabled(model.TypeTrade))
	assert.True(t, got.Enabled(model.TypeSocial))
}

func TestSetPushChangesFlagAndSubscriptionTogether(t *testing.T) {
	ctx := context.Background()
	s, kv := newPersisted(t)
	sub := &model.PushSubscription{Endpoint: "https://push.example/1"}

	got := s.SetPush(ctx, sub, true)
	assert.True(t, got.PushEnabled)
	require.NotNil(t, got.PushSubscription)
	assert.Equal(t, sub.Endpoint, got.PushSubscription.Endpoint)

	raw, err := kv.Get(ctx, store.SettingsKey)
	require.NoError(t, err)
	assert.NotContains(t, raw, "push.example", "subscription is not serialized")

	got = s.SetPush(ctx, nil, true)
	assert.False(t, got.PushEnabled)
	assert.Nil(t, got.PushSubscription)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore(nil, nil)
	got := s.Get()
	got.Types[model.TypeTrade] = false

	assert.True(t, s.Get().Enabled(model.TypeTrade))
}

func TestObservers(t *testing.T) {
	s := NewStore(nil, nil)
	var sounds []bool
	cancel := s.Subscribe(func(cur model.Settings) { sounds = append(sounds, cur.Sound) })

	s.Update(context.Background(), Patch{Sound: Bool(false)})
	cancel()
	s.Update(context.Background(), Patch{Sound: Bool(true)})

	assert.Equal(t, []bool{false}, sounds)
}
