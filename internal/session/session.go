package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nhle/cfish-notify/internal/logging"
	"github.com/nhle/cfish-notify/internal/model"
	"github.com/nhle/cfish-notify/internal/notification"
	"github.com/nhle/cfish-notify/internal/store"
)

// ErrNotConnected is returned by Refresh without a connected wallet.
var ErrNotConnected = errors.New("no wallet connected")

// Fetcher loads a wallet's notifications from the backend.
type Fetcher interface {
	FetchNotifications(ctx context.Context, wallet string) ([]model.Notification, error)
}

// Loader reads a persisted value.
type Loader interface {
	Load(ctx context.Context, key string, dst any) bool
}

// Session binds the notification store to one wallet at a time.
type Session struct {
	notes *notification.Store
	fetch Fetcher
	cache Loader
	log   logrus.FieldLogger

	// swap serializes changes of the store's owner so a slow Refresh
	// cannot install one wallet's list after another wallet connected.
	swap sync.Mutex

	mu     sync.Mutex
	wallet string
}

// New creates a disconnected session. cache may be nil.
func New(notes *notification.Store, fetch Fetcher, cache Loader, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logging.Discard()
	}
	return &Session{notes: notes, fetch: fetch, cache: cache, log: log}
}

// Wallet returns the connected wallet address, or "".
func (s *Session) Wallet() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallet
}

// Connect switches to wallet. State belonging to another wallet is
// cleared, the cached snapshot is restored when it belongs to wallet,
// and the list is then fetched from the backend. The store is owned by
// wallet from here on even when the fetch fails; the error is returned
// and the cached list stays in place.
func (s *Session) Connect(ctx context.Context, wallet string) error {
	if wallet == "" {
		s.Disconnect()
		return nil
	}

	entry := s.log.WithField("wallet", wallet)
	s.swap.Lock()
	s.mu.Lock()
	s.wallet = wallet
	s.mu.Unlock()

	if s.notes.Owner() != wallet {
		// Read the cache before Replace overwrites it.
		var snap notification.Snapshot
		var restored []model.Notification
		if s.cache != nil && s.cache.Load(ctx, store.NotificationsKey, &snap) && snap.Owner == wallet {
			restored = snap.Notifications
			entry.WithField("count", len(restored)).Debug("restored cached notifications")
		}
		s.notes.Replace(wallet, restored)
	}
	s.swap.Unlock()
	entry.Info("wallet connected")

	return s.Refresh(ctx)
}

// Resume restores the cached list of a session that never connected a
// wallet. Cached lists of a wallet stay on disk until that wallet
// connects again.
func (s *Session) Resume(ctx context.Context) {
	s.swap.Lock()
	defer s.swap.Unlock()
	if s.cache == nil || s.Wallet() != "" {
		return
	}
	var snap notification.Snapshot
	if !s.cache.Load(ctx, store.NotificationsKey, &snap) || snap.Owner != "" {
		return
	}
	s.notes.Replace("", snap.Notifications)
}

// Refresh re-fetches the connected wallet's notifications and replaces
// the list with them.
func (s *Session) Refresh(ctx context.Context) error {
	wallet := s.Wallet()
	if wallet == "" {
		return ErrNotConnected
	}
	if s.fetch == nil {
		return nil
	}

	items, err := s.fetch.FetchNotifications(ctx, wallet)
	if err != nil {
		s.log.WithError(err).WithField("wallet", wallet).Warn("failed to fetch notifications")
		return fmt.Errorf("fetching notifications: %w", err)
	}

	s.swap.Lock()
	defer s.swap.Unlock()
	// The wallet may have changed while the request was in flight.
	if s.Wallet() != wallet {
		return nil
	}
	s.notes.Replace(wallet, items)
	return nil
}

// Disconnect forgets the wallet and clears its notifications.
func (s *Session) Disconnect() {
	s.swap.Lock()
	defer s.swap.Unlock()

	s.mu.Lock()
	was := s.wallet
	s.wallet = ""
	s.mu.Unlock()

	s.notes.Clear()
	if was != "" {
		s.log.WithField("wallet", was).Info("wallet disconnected")
	}
}
