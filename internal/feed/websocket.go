package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nhle/cfish-notify/internal/logging"
	"github.com/nhle/cfish-notify/internal/model"
)

// frame is a message on the live feed. It is either an event or a push
// payload carrying icon, badge and url.
type frame struct {
	Type    string          `json:"type"`
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Body    string          `json:"body"`
	Data    json.RawMessage `json:"data"`
	Icon    string          `json:"icon"`
	Badge   string          `json:"badge"`
	URL     string          `json:"url"`
}

// ParseFrame decodes a feed message into an event.
func ParseFrame(raw []byte) (model.Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return model.Event{}, fmt.Errorf("decoding feed frame: %w", err)
	}
	msg := f.Message
	if msg == "" {
		msg = f.Body
	}
	if f.Title == "" && msg == "" {
		return model.Event{}, errors.New("feed frame has no title or message")
	}

	ev := model.Event{
		Type:    model.NotificationType(f.Type),
		Title:   f.Title,
		Message: msg,
	}
	if len(f.Data) > 0 && string(f.Data) != "null" {
		ev.Data = f.Data
	}

	if f.Type == "" {
		ev.Type = model.TypeInfo
		if ev.Title == "" {
			ev.Title = "CFish Notification"
		}
		extra := map[string]string{}
		for k, v := range map[string]string{"url": f.URL, "icon": f.Icon, "badge": f.Badge} {
			if v != "" {
				extra[k] = v
			}
		}
		if len(extra) > 0 && ev.Data == nil {
			ev.Data, _ = json.Marshal(extra)
		}
	}
	return ev, nil
}

// WebSocketSource reads events from a WebSocket and reconnects after a
// delay when the connection drops.
type WebSocketSource struct {
	url       string
	header    func() http.Header
	reconnect time.Duration
	dialer    *websocket.Dialer
	log       logrus.FieldLogger
}

// WebSocketOption configures a WebSocketSource.
type WebSocketOption func(*WebSocketSource)

// WithHeader sets a function supplying handshake headers, evaluated on
// every dial.
func WithHeader(fn func() http.Header) WebSocketOption {
	return func(s *WebSocketSource) { s.header = fn }
}

// WithReconnectDelay sets the wait between connection attempts.
func WithReconnectDelay(d time.Duration) WebSocketOption {
	return func(s *WebSocketSource) { s.reconnect = d }
}

// WithSourceLogger sets the source logger.
func WithSourceLogger(l logrus.FieldLogger) WebSocketOption {
	return func(s *WebSocketSource) { s.log = l }
}

// NewWebSocketSource creates a live feed reading from url.
func NewWebSocketSource(url string, opts ...WebSocketOption) *WebSocketSource {
	s := &WebSocketSource{
		url:       url,
		header:    func() http.Header { return nil },
		reconnect: 10 * time.Second,
		dialer:    websocket.DefaultDialer,
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WebSocketSource) Name() string { return "websocket" }

// Run connects and reads until ctx is cancelled.
func (s *WebSocketSource) Run(ctx context.Context, out chan<- Arrival) error {
	for {
		err := s.session(ctx, out)
		if ctx.Err() != nil {
			return nil
		}
		s.log.WithError(err).WithField("retry_in", s.reconnect).Warn("live feed disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.reconnect):
		}
	}
}

func (s *WebSocketSource) session(ctx context.Context, out chan<- Arrival) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, s.header())
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dialing %s: %w", s.url, err)
	}
	defer conn.Close()
	s.log.WithField("url", s.url).Info("live feed connected")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading live feed: %w", err)
		}

		ev, err := ParseFrame(raw)
		if err != nil {
			s.log.WithError(err).Debug("skipping feed frame")
			continue
		}
		if !send(ctx, out, Arrival{Source: s.Name(), Event: ev}) {
			return ctx.Err()
		}
	}
}
