package settings

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nhle/cfish-notify/internal/logging"
	"github.com/nhle/cfish-notify/internal/model"
	"github.com/nhle/cfish-notify/internal/store"
)

// Persister saves and loads JSON blobs by key.
type Persister interface {
	Save(ctx context.Context, key string, v any) error
	Load(ctx context.Context, key string, dst any) bool
}

// Store holds the current notification settings. Every change is
// persisted immediately and announced to observers.
type Store struct {
	mu  sync.Mutex
	cur model.Settings

	persist Persister
	log     logrus.FieldLogger

	obsMu     sync.Mutex
	observers map[int]func(model.Settings)
	nextObsID int
}

// NewStore returns a store holding the default settings. persist may be
// nil for a purely in-memory store.
func NewStore(persist Persister, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logging.Discard()
	}
	return &Store{
		cur:       model.DefaultSettings(),
		persist:   persist,
		log:       log,
		observers: make(map[int]func(model.Settings)),
	}
}

// Load replaces the current settings with the persisted ones. A missing
// or corrupt blob yields the defaults. The push subscription is never
// persisted, so a restored pushEnabled=true waits for the push manager to
// re-adopt or reset it.
func (s *Store) Load(ctx context.Context) model.Settings {
	loaded := model.DefaultSettings()
	if s.persist != nil {
		scratch := model.DefaultSettings()
		if s.persist.Load(ctx, store.SettingsKey, &scratch) {
			loaded = sanitize(scratch)
		}
	}

	s.mu.Lock()
	loaded.PushSubscription = s.cur.PushSubscription
	s.cur = loaded
	out := s.cur.Clone()
	s.mu.Unlock()

	s.notify(out)
	return out
}

// sanitize restores defaults for missing categories and drops unknown ones.
func sanitize(in model.Settings) model.Settings {
	out := in
	defaults := model.DefaultSettings()
	out.Types = make(map[model.NotificationType]bool, len(defaults.Types))
	for t, def := range defaults.Types {
		if v, ok := in.Types[t]; ok {
			out.Types[t] = v
		} else {
			out.Types[t] = def
		}
	}
	out.PushSubscription = nil
	return out
}

// Get returns a copy of the current settings.
func (s *Store) Get() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.Clone()
}

// Update merges p into the current settings and persists the result.
func (s *Store) Update(ctx context.Context, p Patch) model.Settings {
	return s.change(ctx, func(cur *model.Settings) {
		p.apply(cur)
	})
}

// SetPush sets pushEnabled and the subscription as one change. Enabling
// without a subscription is refused and leaves push disabled.
func (s *Store) SetPush(ctx context.Context, sub *model.PushSubscription, enabled bool) model.Settings {
	return s.change(ctx, func(cur *model.Settings) {
		if sub == nil {
			enabled = false
		}
		cur.PushEnabled = enabled
		if enabled {
			cp := *sub
			cur.PushSubscription = &cp
		} else {
			cur.PushSubscription = nil
		}
	})
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(model.Settings)) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) change(ctx context.Context, fn func(*model.Settings)) model.Settings {
	s.mu.Lock()
	fn(&s.cur)
	out := s.cur.Clone()
	if s.persist != nil {
		if err := s.persist.Save(ctx, store.SettingsKey, out); err != nil {
			s.log.WithError(err).Warn("persisting notification settings")
		}
	}
	s.mu.Unlock()

	s.notify(out)
	return out
}

func (s *Store) notify(cur model.Settings) {
	s.obsMu.Lock()
	fns := make([]func(model.Settings), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(cur.Clone())
	}
}
