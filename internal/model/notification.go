package model

import (
	"encoding/json"
	"time"
)

// NotificationType is the category a notification belongs to. Categories
// are the unit of per-kind enable/disable settings.
type NotificationType string

// Marketplace activity categories.
const (
	TypeTrade    NotificationType = "trade"
	TypeSystem   NotificationType = "system"
	TypeActivity NotificationType = "activity"
	TypeSocial   NotificationType = "social"
)

// Outcome notices raised by the subsystem itself.
const (
	TypeSuccess NotificationType = "success"
	TypeError   NotificationType = "error"
	TypeWarning NotificationType = "warning"
	TypeInfo    NotificationType = "info"
)

// Fine-grained marketplace event categories.
const (
	TypeNFTSold       NotificationType = "nft_sold"
	TypeNFTPurchased  NotificationType = "nft_purchased"
	TypeBidReceived   NotificationType = "bid_received"
	TypeBidOutbid     NotificationType = "bid_outbid"
	TypeAuctionEnding NotificationType = "auction_ending"
	TypeFollow        NotificationType = "follow"
	TypeLike          NotificationType = "like"
	TypeComment       NotificationType = "comment"
)

// KnownTypes lists every recognized category in display order.
var KnownTypes = []NotificationType{
	TypeTrade, TypeSystem, TypeActivity, TypeSocial,
	TypeNFTSold, TypeNFTPurchased, TypeBidReceived, TypeBidOutbid,
	TypeAuctionEnding, TypeFollow, TypeLike, TypeComment,
	TypeSuccess, TypeError, TypeWarning, TypeInfo,
}

var knownTypeSet = func() map[NotificationType]bool {
	m := make(map[NotificationType]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		m[t] = true
	}
	return m
}()

// IsKnown reports whether t is one of the recognized categories.
func (t NotificationType) IsKnown() bool {
	return knownTypeSet[t]
}

// Notification is a single entry in the notification center.
type Notification struct {
	// ID is unique for the lifetime of the store.
	ID string `json:"id"`

	// Type is the category used for admission settings.
	Type NotificationType `json:"type"`

	// Title is the short headline.
	Title string `json:"title"`

	// Message is the human-readable body text.
	Message string `json:"message"`

	// Data carries event-specific identifiers (nftId, amount, ...).
	Data json.RawMessage `json:"data,omitempty"`

	// Timestamp is when the notification was created.
	Timestamp time.Time `json:"timestamp"`

	// IsRead indicates whether the user has seen this notification.
	IsRead bool `json:"isRead"`
}

// Event is a raw incoming notification before admission.
type Event struct {
	Type    NotificationType `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	Data    json.RawMessage  `json:"data,omitempty"`
}

// ReadFilter selects notifications by read state.
type ReadFilter string

const (
	FilterAll    ReadFilter = "all"
	FilterUnread ReadFilter = "unread"
	FilterRead   ReadFilter = "read"
)

// Next cycles all -> unread -> read -> all.
func (f ReadFilter) Next() ReadFilter {
	switch f {
	case FilterAll, "":
		return FilterUnread
	case FilterUnread:
		return FilterRead
	default:
		return FilterAll
	}
}

// Matches reports whether n passes the filter.
func (f ReadFilter) Matches(n Notification) bool {
	switch f {
	case FilterUnread:
		return !n.IsRead
	case FilterRead:
		return n.IsRead
	default:
		return true
	}
}
