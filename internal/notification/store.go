package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/cfish-notify/internal/logging"
	"github.com/nhle/cfish-notify/internal/model"
	"github.com/nhle/cfish-notify/internal/store"
)

// DefaultMaxEntries is the retention cap; older entries are evicted first.
const DefaultMaxEntries = 50

// Saver persists a JSON-encodable value under a key.
type Saver interface {
	Save(ctx context.Context, key string, v any) error
}

// Snapshot is the persisted and observed state of the store.
type Snapshot struct {
	// Owner is the wallet the notifications belong to.
	Owner string `json:"owner"`

	// Notifications is ordered most recent first.
	Notifications []model.Notification `json:"notifications"`

	// UnreadCount is derived from Notifications and not persisted.
	UnreadCount int `json:"-"`
}

// Observer is called after every mutation with a copy of the new state.
type Observer func(Snapshot)

// Option configures a Store.
type Option func(*Store)

// WithMaxEntries sets the retention cap.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithSaver persists every mutation through sv.
func WithSaver(sv Saver) Option {
	return func(s *Store) { s.saver = sv }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDFunc overrides id generation.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// Store is the single owner of notifications. All mutations go through
// mutate, which recomputes the unread count from the list, persists the
// snapshot and then notifies observers.
type Store struct {
	mu     sync.Mutex
	items  []model.Notification
	unread int
	owner  string

	max   int
	saver Saver
	now   func() time.Time
	newID func() string
	log   logrus.FieldLogger

	obsMu     sync.Mutex
	observers []observerEntry
	nextObsID int
}

type observerEntry struct {
	id int
	fn Observer
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		max:   DefaultMaxEntries,
		now:   time.Now,
		newID: newID,
		log:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newID returns a timestamp-ordered UUID with random bits.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Add records ev as a new unread notification at the head of the list.
// Admission decisions are the caller's job.
func (s *Store) Add(ev model.Event) model.Notification {
	var added model.Notification
	s.mutate(func() bool {
		added = model.Notification{
			ID:        s.newID(),
			Type:      ev.Type,
			Title:     ev.Title,
			Message:   ev.Message,
			Data:      ev.Data,
			Timestamp: s.now(),
		}
		s.items = append([]model.Notification{added}, s.items...)
		if len(s.items) > s.max {
			s.items = s.items[:s.max]
		}
		return true
	})
	return added
}

// MarkAsRead marks the notification with id as read. An unknown id is a
// no-op, since it may have just been removed.
func (s *Store) MarkAsRead(id string) {
	s.mutate(func() bool {
		for i := range s.items {
			if s.items[i].ID == id {
				if s.items[i].IsRead {
					return false
				}
				s.items[i].IsRead = true
				return true
			}
		}
		return false
	})
}

// MarkAllAsRead marks every notification read.
func (s *Store) MarkAllAsRead() {
	s.mutate(func() bool {
		changed := false
		for i := range s.items {
			if !s.items[i].IsRead {
				s.items[i].IsRead = true
				changed = true
			}
		}
		return changed
	})
}

// Remove deletes the notification with id. An unknown id leaves the
// store untouched.
func (s *Store) Remove(id string) {
	s.mutate(func() bool {
		for i := range s.items {
			if s.items[i].ID == id {
				s.items = append(s.items[:i:i], s.items[i+1:]...)
				return true
			}
		}
		return false
	})
}

// Clear empties the store and forgets the owner. It runs on wallet
// disconnect so nothing leaks into the next session.
func (s *Store) Clear() {
	s.mutate(func() bool {
		s.items = nil
		s.owner = ""
		return true
	})
}

// ClearEntries empties the list but keeps the owner, so entries added
// afterwards are still persisted under the same wallet.
func (s *Store) ClearEntries() {
	s.mutate(func() bool {
		s.items = nil
		return true
	})
}

// Replace swaps the whole list for items owned by owner. Duplicate ids
// keep their first occurrence, entries are ordered most recent first and
// the retention cap applies.
func (s *Store) Replace(owner string, items []model.Notification) {
	s.mutate(func() bool {
		seen := make(map[string]bool, len(items))
		next := make([]model.Notification, 0, len(items))
		for _, n := range items {
			if n.ID == "" {
				n.ID = s.newID()
			}
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			if n.Timestamp.IsZero() {
				n.Timestamp = s.now()
			}
			next = append(next, n)
		}
		sort.SliceStable(next, func(i, j int) bool {
			return next[i].Timestamp.After(next[j].Timestamp)
		})
		if len(next) > s.max {
			next = next[:s.max]
		}
		s.items = next
		s.owner = owner
		return true
	})
}

// List returns a copy of the notifications matching filter, most recent
// first.
func (s *Store) List(filter model.ReadFilter) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Notification, 0, len(s.items))
	for _, n := range s.items {
		if filter.Matches(n) {
			out = append(out, n)
		}
	}
	return out
}

// Get returns the notification with id.
func (s *Store) Get(id string) (model.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.items {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Len returns the number of stored notifications.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Owner returns the wallet the current list belongs to.
func (s *Store) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn Observer) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	id := s.nextObsID
	s.nextObsID++
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// mutate applies fn under the lock. When fn reports a change, the unread
// count is recomputed, the snapshot persisted and observers notified
// outside the lock.
func (s *Store) mutate(fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.unread = countUnread(s.items)
	snap := s.snapshotLocked()
	s.persistLocked(snap)
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) snapshotLocked() Snapshot {
	items := make([]model.Notification, len(s.items))
	copy(items, s.items)
	return Snapshot{
		Owner:         s.owner,
		Notifications: items,
		UnreadCount:   s.unread,
	}
}

// persistLocked saves under the store lock so saves land in mutation order.
func (s *Store) persistLocked(snap Snapshot) {
	if s.saver == nil {
		return
	}
	if err := s.saver.Save(context.Background(), store.NotificationsKey, snap); err != nil {
		s.log.WithError(err).Warn("persisting notifications")
	}
}

func (s *Store) notify(snap Snapshot) {
	s.obsMu.Lock()
	observers := make([]Observer, len(s.observers))
	for i, o := range s.observers {
		observers[i] = o.fn
	}
	s.obsMu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

func countUnread(items []model.Notification) int {
	n := 0
	for _, it := range items {
		if !it.IsRead {
			n++
		}
	}
	return n
}
