package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/cfish-notify/internal/model"
)

func TestFetchNotificationsArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/notifications", r.URL.Path)
		assert.Equal(t, "Wallet111", r.Header.Get(WalletHeader))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"a","type":"trade","title":"Sale","message":"sold","timestamp":"2025-03-01T10:00:00Z","isRead":true},
			{"id":"b","type":"bid_received","title":"Bid","message":"new bid","timestamp":"2025-03-01T09:00:00Z"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, WithToken("secret"))
	got, err := c.FetchNotifications(context.Background(), "Wallet111")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, model.TypeTrade, got[0].Type)
	assert.True(t, got[0].IsRead)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), got[0].Timestamp.UTC())
	assert.False(t, got[1].IsRead)
}

func TestFetchNotificationsEnvelopeAndAlternateSpellings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"notifications":[
			{"id":42,"type":"nft_sold","title":"Sold","message":"m","created_at":"2025-03-01T10:00:00.123456","is_read":true,"data":{"price":2}}
		]}}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, time.Second).FetchNotifications(context.Background(), "w")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "42", got[0].ID)
	assert.True(t, got[0].IsRead)
	assert.Equal(t, 2025, got[0].Timestamp.Year())
	assert.JSONEq(t, `{"price":2}`, string(got[0].Data))
}

func TestFetchNotificationsEnvelopeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"wallet not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).FetchNotifications(context.Background(), "w")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet not found")
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		status       int
		transient    bool
		unauthorized bool
	}{
		{http.StatusInternalServerError, true, false},
		{http.StatusTooManyRequests, true, false},
		{http.StatusUnauthorized, false, true},
		{http.StatusBadRequest, false, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).FetchNotifications(context.Background(), "w")
			require.Error(t, err)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, "nope", se.Body)
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, tt.unauthorized, IsUnauthorized(err))
		})
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).FetchNotifications(context.Background(), "w")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestRegisterAndUnregisterSubscription(t *testing.T) {
	var paths []string
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	sub := model.PushSubscription{
		Endpoint: "https://push.example/sub/1",
		Keys:     model.PushKeys{P256dh: "pk", Auth: "au"},
	}
	require.NoError(t, c.RegisterSubscription(context.Background(), "w", sub))
	require.NoError(t, c.UnregisterSubscription(context.Background(), "w", sub.Endpoint))

	assert.Equal(t, []string{"/notifications/subscribe", "/notifications/unsubscribe"}, paths)
	assert.Equal(t, "https://push.example/sub/1", bodies[0]["endpoint"])
	assert.Equal(t, map[string]any{"p256dh": "pk", "auth": "au"}, bodies[0]["keys"])
	assert.Equal(t, map[string]any{"endpoint": "https://push.example/sub/1"}, bodies[1])
}

func TestIsTransientNil(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("plain")))
}
