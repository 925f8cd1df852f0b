package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nhle/cfish-notify/internal/logging"
)

// Adapter serializes values as JSON into a KV. Loading never fails hard:
// a missing or unparseable blob reports false so callers fall back to
// defaults, and a corrupt blob is deleted.
type Adapter struct {
	kv  KV
	log logrus.FieldLogger
}

// NewAdapter wraps kv. A nil logger discards output.
func NewAdapter(kv KV, log logrus.FieldLogger) *Adapter {
	if log == nil {
		log = logging.Discard()
	}
	return &Adapter{kv: kv, log: log}
}

// Save JSON-encodes v and stores it under key.
func (a *Adapter) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	if err := a.kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

// Load decodes the blob stored under key into dst and reports whether it
// did. dst may be partially written when false is returned, so callers
// decode into a scratch value.
func (a *Adapter) Load(ctx context.Context, key string, dst any) bool {
	raw, err := a.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		a.log.WithError(err).WithField("key", key).Warn("reading persisted state")
		return false
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		a.log.WithError(err).WithField("key", key).Warn("discarding corrupt persisted state")
		if delErr := a.kv.Delete(ctx, key); delErr != nil {
			a.log.WithError(delErr).WithField("key", key).Warn("deleting corrupt persisted state")
		}
		return false
	}
	return true
}

// Delete removes the blob stored under key.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	return a.kv.Delete(ctx, key)
}
