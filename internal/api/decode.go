package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nhle/cfish-notify/internal/model"
)

// wireNotification accepts the field spellings seen from the backend.
type wireNotification struct {
	ID        json.RawMessage `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
	CreatedAt string          `json:"created_at"`
	IsRead    *bool           `json:"isRead"`
	IsReadAlt *bool           `json:"is_read"`
	Read      *bool           `json:"read"`
}

type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Data    struct {
		Notifications []wireNotification `json:"notifications"`
	} `json:"data"`
	Notifications []wireNotification `json:"notifications"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func decodeNotifications(raw []byte) ([]model.Notification, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty notifications response")
	}

	var items []wireNotification
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decoding notifications: %w", err)
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("decoding notifications envelope: %w", err)
		}
		if env.Success != nil && !*env.Success {
			msg := env.Error
			if msg == "" {
				msg = env.Message
			}
			return nil, fmt.Errorf("backend reported failure: %s", msg)
		}
		items = env.Data.Notifications
		if items == nil {
			items = env.Notifications
		}
	default:
		return nil, fmt.Errorf("unexpected notifications payload starting with %q", trimmed[0])
	}

	out := make([]model.Notification, 0, len(items))
	for _, w := range items {
		out = append(out, w.toModel())
	}
	return out, nil
}

func (w wireNotification) toModel() model.Notification {
	n := model.Notification{
		ID:      decodeID(w.ID),
		Type:    model.NotificationType(w.Type),
		Title:   w.Title,
		Message: w.Message,
	}
	if len(w.Data) > 0 && !bytes.Equal(w.Data, []byte("null")) {
		n.Data = w.Data
	}

	switch {
	case w.IsRead != nil:
		n.IsRead = *w.IsRead
	case w.IsReadAlt != nil:
		n.IsRead = *w.IsReadAlt
	case w.Read != nil:
		n.IsRead = *w.Read
	}

	ts := w.Timestamp
	if ts == "" {
		ts = w.CreatedAt
	}
	n.Timestamp = parseTime(ts)
	return n
}

// decodeID accepts string and numeric ids.
func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var num json.Number
	if json.Unmarshal(raw, &num) == nil {
		return num.String()
	}
	return ""
}

// parseTime returns the zero time for empty or unparseable input; the
// store stamps those entries on ingest. Times without a zone are UTC.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}
