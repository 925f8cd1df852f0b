package sync

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/cfish-notify/internal/api"
	"github.com/nhle/cfish-notify/internal/session"
)

type fakeRefresher struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRefresher) Refresh(context.Context) error {
	f.calls.Add(1)
	return f.err
}

func waitResult(t *testing.T, p *Poller) SyncResultMsg {
	t.Helper()
	done := make(chan SyncResultMsg, 1)
	go func() {
		if msg, ok := p.WaitForNextResult()().(SyncResultMsg); ok {
			done <- msg
		}
	}()
	select {
	case msg := <-done:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no sync result")
		return SyncResultMsg{}
	}
}

func TestRefreshNowPublishesResult(t *testing.T) {
	r := &fakeRefresher{}
	p := New(r, 0, nil)
	p.Start()
	defer p.Stop()

	p.RefreshNow()
	msg := waitResult(t, p)

	assert.NoError(t, msg.Error)
	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, SyncIdle, p.Status().State)
	assert.False(t, p.Status().LastSync.IsZero())
}

func TestRefreshErrorIsReported(t *testing.T) {
	r := &fakeRefresher{err: &api.StatusError{Method: http.MethodGet, Path: "/notifications", StatusCode: http.StatusUnauthorized}}
	p := New(r, 0, nil)
	p.Start()
	defer p.Stop()

	p.RefreshNow()
	msg := waitResult(t, p)

	require.Error(t, msg.Error)
	assert.True(t, msg.Unauthorized)
	assert.Equal(t, SyncError, p.Status().State)
}

func TestNotConnectedIsSilent(t *testing.T) {
	r := &fakeRefresher{err: session.ErrNotConnected}
	p := New(r, 0, nil)
	p.Start()
	defer p.Stop()

	p.RefreshNow()
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return p.Status().State == SyncIdle }, time.Second, 5*time.Millisecond)
	assert.NoError(t, p.Status().Error)

	select {
	case msg := <-p.resultCh:
		t.Fatalf("unexpected result %+v", msg)
	default:
	}
}

func TestIntervalTriggersRefresh(t *testing.T) {
	r := &fakeRefresher{err: errors.New("offline")}
	p := New(r, 10*time.Millisecond, nil)
	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestStartTwiceIsNoop(t *testing.T) {
	p := New(&fakeRefresher{}, 0, nil)
	assert.NotNil(t, p.Start())
	assert.Nil(t, p.Start())
	p.Stop()
	p.Stop()
}

func TestRestartAfterStop(t *testing.T) {
	r := &fakeRefresher{}
	p := New(r, 0, nil)
	p.Start()
	p.Stop()

	require.NotNil(t, p.Start())
	defer p.Stop()

	p.RefreshNow()
	msg := waitResult(t, p)

	assert.NoError(t, msg.Error)
	assert.Equal(t, int32(1), r.calls.Load())
}
