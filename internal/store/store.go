package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by KV.Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// Keys of the persisted blobs. Settings and the notification snapshot are
// kept apart so a corrupt one never affects the other.
const (
	SettingsKey      = "cfish-notification-settings"
	NotificationsKey = "cfish-notifications"
)

// KV is a durable local key-value store of string values.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
