package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/cfish-notify/internal/store"
	"github.com/nhle/cfish-notify/tests/testutil"
)

func TestSQLiteStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", "v1"))
	require.NoError(t, s.Set(ctx, "k", "v2"))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLiteStoreReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/state.db"

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", "persisted"))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got)
}

func TestAdapterLoadMissing(t *testing.T) {
	a, _ := testutil.NewTestAdapter(t)

	var dst map[string]int
	assert.False(t, a.Load(context.Background(), "nothing", &dst))
}

func TestAdapterSaveLoad(t *testing.T) {
	ctx := context.Background()
	a, _ := testutil.NewTestAdapter(t)

	type blob struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, a.Save(ctx, "blob", blob{Name: "x", Count: 3}))

	var got blob
	require.True(t, a.Load(ctx, "blob", &got))
	assert.Equal(t, blob{Name: "x", Count: 3}, got)
}

func TestAdapterDiscardsCorruptBlob(t *testing.T) {
	ctx := context.Background()
	a, kv := testutil.NewTestAdapter(t)

	require.NoError(t, kv.Set(ctx, store.SettingsKey, "{not json"))
	require.NoError(t, kv.Set(ctx, store.NotificationsKey, `{"owner":"w"}`))

	var dst map[string]any
	assert.False(t, a.Load(ctx, store.SettingsKey, &dst))

	_, err := kv.Get(ctx, store.SettingsKey)
	assert.ErrorIs(t, err, store.ErrNotFound, "corrupt blob is deleted")

	// The other key is untouched.
	var other map[string]any
	assert.True(t, a.Load(ctx, store.NotificationsKey, &other))
	assert.Equal(t, "w", other["owner"])
}

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()

	require.NoError(t, kv.Set(ctx, "a", "1"))
	got, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	require.NoError(t, kv.Delete(ctx, "a"))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
