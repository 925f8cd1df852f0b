package model

import "time"

// PushKeys holds the client key material of a push subscription.
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription identifies this device to the push service for
// server-initiated delivery. Its shape follows the web-push subscription
// object so the backend can use it unchanged.
type PushSubscription struct {
	Endpoint       string     `json:"endpoint"`
	ExpirationTime *time.Time `json:"expirationTime"`
	Keys           PushKeys   `json:"keys"`
}

// Settings holds the per-category admission flags and the delivery
// channel toggles.
type Settings struct {
	// Types enables or disables admission per category.
	Types map[NotificationType]bool `json:"types"`

	// Sound plays an audible cue when a notification is admitted.
	Sound bool `json:"sound"`

	// PushEnabled shows desktop notifications and keeps a push subscription.
	PushEnabled bool `json:"pushEnabled"`

	// EmailEnabled and SMSEnabled are server-mediated channels; the client
	// only stores the preference.
	EmailEnabled bool `json:"emailEnabled"`
	SMSEnabled   bool `json:"smsEnabled"`

	// PushSubscription is the live subscription handle. It is never
	// serialized with the settings blob.
	PushSubscription *PushSubscription `json:"-"`
}

// DefaultSettings returns the settings used when nothing is persisted.
func DefaultSettings() Settings {
	types := make(map[NotificationType]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		types[t] = true
	}
	types[TypeLike] = false

	return Settings{
		Types: types,
		Sound: true,
	}
}

// Enabled reports whether admission of category t is on. Unknown
// categories are never enabled.
func (s Settings) Enabled(t NotificationType) bool {
	if !t.IsKnown() {
		return false
	}
	return s.Types[t]
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	out := s
	out.Types = make(map[NotificationType]bool, len(s.Types))
	for k, v := range s.Types {
		out.Types[k] = v
	}
	if s.PushSubscription != nil {
		sub := *s.PushSubscription
		if sub.ExpirationTime != nil {
			exp := *sub.ExpirationTime
			sub.ExpirationTime = &exp
		}
		out.PushSubscription = &sub
	}
	return out
}
