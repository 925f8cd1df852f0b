package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/cfish-notify/internal/model"
	"github.com/nhle/cfish-notify/internal/notification"
	"github.com/nhle/cfish-notify/internal/store"
)

type stubFetcher struct {
	byWallet map[string][]model.Notification
	err      error
	calls    []string
}

func (f *stubFetcher) FetchNotifications(_ context.Context, wallet string) ([]model.Notification, error) {
	f.calls = append(f.calls, wallet)
	if f.err != nil {
		return nil, f.err
	}
	return f.byWallet[wallet], nil
}

func at(min int) time.Time {
	return time.Date(2025, 1, 1, 12, min, 0, 0, time.UTC)
}

func newSession(t *testing.T, fetch *stubFetcher) (*Session, *notification.Store, *store.Adapter) {
	t.Helper()
	adapter := store.NewAdapter(store.NewMemoryKV(), nil)
	notes := notification.NewStore(notification.WithSaver(adapter))
	return New(notes, fetch, adapter, nil), notes, adapter
}

func TestConnectHydratesFromBackend(t *testing.T) {
	fetch := &stubFetcher{byWallet: map[string][]model.Notification{
		"A": {
			{ID: "1", Type: model.TypeTrade, Title: "old", Timestamp: at(1), IsRead: true},
			{ID: "2", Type: model.TypeTrade, Title: "new", Timestamp: at(2)},
		},
	}}
	s, notes, _ := newSession(t, fetch)

	require.NoError(t, s.Connect(context.Background(), "A"))

	assert.Equal(t, "A", s.Wallet())
	assert.Equal(t, "A", notes.Owner())
	list := notes.List(model.FilterAll)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].Title)
	assert.Equal(t, 1, notes.UnreadCount())
}

func TestConnectDifferentWalletNeverLeaks(t *testing.T) {
	fetch := &stubFetcher{byWallet: map[string][]model.Notification{
		"A": {{ID: "a1", Type: model.TypeTrade, Title: "for A", Timestamp: at(1)}},
	}}
	s, notes, _ := newSession(t, fetch)
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx, "A"))
	notes.Add(model.Event{Type: model.TypeSystem, Title: "local"})

	fetch.err = errors.New("offline")
	require.Error(t, s.Connect(ctx, "B"))

	assert.Equal(t, 0, notes.Len(), "nothing from A is visible to B")
	assert.Equal(t, 0, notes.UnreadCount())
}

func TestConnectRestoresCacheForSameOwnerOnly(t *testing.T) {
	ctx := context.Background()
	adapter := store.NewAdapter(store.NewMemoryKV(), nil)

	first := notification.NewStore(notification.WithSaver(adapter))
	first.Replace("A", []model.Notification{{ID: "c1", Type: model.TypeTrade, Title: "cached", Timestamp: at(1)}})

	offline := &stubFetcher{err: errors.New("offline")}

	notes := notification.NewStore(notification.WithSaver(adapter))
	s := New(notes, offline, adapter, nil)
	require.Error(t, s.Connect(ctx, "A"))
	require.Equal(t, 1, notes.Len())
	assert.Equal(t, "cached", notes.List(model.FilterAll)[0].Title)

	other := notification.NewStore()
	s2 := New(other, offline, adapter, nil)
	require.Error(t, s2.Connect(ctx, "B"))
	assert.Equal(t, 0, other.Len())
}

func TestRefreshReplacesList(t *testing.T) {
	fetch := &stubFetcher{byWallet: map[string][]model.Notification{
		"A": {{ID: "1", Type: model.TypeTrade, Title: "one", Timestamp: at(1)}},
	}}
	s, notes, _ := newSession(t, fetch)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx, "A"))

	fetch.byWallet["A"] = append(fetch.byWallet["A"], model.Notification{ID: "2", Type: model.TypeTrade, Title: "two", Timestamp: at(2)})
	require.NoError(t, s.Refresh(ctx))

	assert.Equal(t, 2, notes.Len())
	assert.Equal(t, []string{"A", "A"}, fetch.calls)
}

func TestRefreshWithoutWallet(t *testing.T) {
	s, _, _ := newSession(t, &stubFetcher{})
	assert.ErrorIs(t, s.Refresh(context.Background()), ErrNotConnected)
}

func TestDisconnectClears(t *testing.T) {
	fetch := &stubFetcher{byWallet: map[string][]model.Notification{
		"A": {{ID: "1", Type: model.TypeTrade, Title: "one", Timestamp: at(1)}},
	}}
	s, notes, adapter := newSession(t, fetch)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx, "A"))

	s.Disconnect()

	assert.Empty(t, s.Wallet())
	assert.Equal(t, 0, notes.Len())
	assert.Equal(t, "", notes.Owner())

	var snap notification.Snapshot
	require.True(t, adapter.Load(ctx, store.NotificationsKey, &snap))
	assert.Empty(t, snap.Notifications)
	assert.Empty(t, snap.Owner)
}

func TestConnectEmptyWalletDisconnects(t *testing.T) {
	s, notes, _ := newSession(t, &stubFetcher{})
	notes.Add(model.Event{Type: model.TypeTrade, Title: "x"})

	require.NoError(t, s.Connect(context.Background(), ""))
	assert.Equal(t, 0, notes.Len())
}

func TestResumeRestoresAnonymousCache(t *testing.T) {
	ctx := context.Background()
	adapter := store.NewAdapter(store.NewMemoryKV(), nil)

	first := notification.NewStore(notification.WithSaver(adapter))
	first.Add(model.Event{Type: model.TypeTrade, Title: "simulated"})

	notes := notification.NewStore(notification.WithSaver(adapter))
	New(notes, &stubFetcher{}, adapter, nil).Resume(ctx)

	require.Equal(t, 1, notes.Len())
	assert.Equal(t, "simulated", notes.List(model.FilterAll)[0].Title)
}

func TestResumeIgnoresWalletCache(t *testing.T) {
	ctx := context.Background()
	adapter := store.NewAdapter(store.NewMemoryKV(), nil)

	first := notification.NewStore(notification.WithSaver(adapter))
	first.Replace("A", []model.Notification{{ID: "1", Type: model.TypeTrade, Title: "for A", Timestamp: at(1)}})

	notes := notification.NewStore()
	New(notes, &stubFetcher{}, adapter, nil).Resume(ctx)

	assert.Equal(t, 0, notes.Len())
}

type fetchFunc func(ctx context.Context, wallet string) ([]model.Notification, error)

func (f fetchFunc) FetchNotifications(ctx context.Context, wallet string) ([]model.Notification, error) {
	return f(ctx, wallet)
}

// restart opens a fresh store over the same persisted state and resumes
// without a wallet, as a wallet-less startup does.
func restart(adapter *store.Adapter) *notification.Store {
	notes := notification.NewStore(notification.WithSaver(adapter))
	New(notes, &stubFetcher{}, adapter, nil).Resume(context.Background())
	return notes
}

func TestConnectFailedFetchStillOwnsLaterEntries(t *testing.T) {
	s, notes, adapter := newSession(t, &stubFetcher{err: errors.New("offline")})

	require.Error(t, s.Connect(context.Background(), "WalletA"))
	notes.Add(model.Event{Type: model.TypeTrade, Title: "A private"})

	assert.Equal(t, "WalletA", notes.Owner())
	assert.Equal(t, 0, restart(adapter).Len(), "wallet entries never come back as anonymous")
}

func TestClearEntriesThenAddStaysWithWallet(t *testing.T) {
	fetch := &stubFetcher{byWallet: map[string][]model.Notification{
		"WalletA": {{ID: "1", Type: model.TypeTrade, Title: "one", Timestamp: at(1)}},
	}}
	s, notes, adapter := newSession(t, fetch)
	require.NoError(t, s.Connect(context.Background(), "WalletA"))

	notes.ClearEntries()
	notes.Add(model.Event{Type: model.TypeTrade, Title: "A private"})

	assert.Equal(t, 0, restart(adapter).Len())
}

func TestRefreshDropsListOfPreviousWallet(t *testing.T) {
	var s *Session
	switched := false
	fetch := fetchFunc(func(ctx context.Context, wallet string) ([]model.Notification, error) {
		if wallet == "A" && !switched {
			switched = true
			require.NoError(t, s.Connect(ctx, "B"))
		}
		return []model.Notification{{ID: wallet + "1", Type: model.TypeTrade, Title: "for " + wallet, Timestamp: at(1)}}, nil
	})
	notes := notification.NewStore()
	s = New(notes, fetch, nil, nil)

	require.NoError(t, s.Connect(context.Background(), "A"))

	assert.Equal(t, "B", s.Wallet())
	assert.Equal(t, "B", notes.Owner())
	list := notes.List(model.FilterAll)
	require.Len(t, list, 1)
	assert.Equal(t, "for B", list[0].Title)
}

func TestConcurrentRefreshAndConnectAgreeOnOwner(t *testing.T) {
	fetch := fetchFunc(func(_ context.Context, wallet string) ([]model.Notification, error) {
		return []model.Notification{{ID: wallet + "1", Type: model.TypeTrade, Title: "for " + wallet, Timestamp: at(1)}}, nil
	})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		notes := notification.NewStore()
		s := New(notes, fetch, nil, nil)
		require.NoError(t, s.Connect(ctx, "A"))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Refresh(ctx)
		}()
		go func() {
			defer wg.Done()
			_ = s.Connect(ctx, "B")
		}()
		wg.Wait()

		require.Equal(t, "B", notes.Owner())
		for _, n := range notes.List(model.FilterAll) {
			require.Equal(t, "for B", n.Title)
		}
	}
}
