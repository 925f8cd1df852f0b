package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/cfish-notify/internal/api"
	"github.com/nhle/cfish-notify/internal/logging"
	"github.com/nhle/cfish-notify/internal/session"
)

// SyncState represents the state of the backend refresh.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus is a point-in-time view of the poller.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a refresh completes.
type SyncResultMsg struct {
	Error error

	// Unauthorized is set when the backend rejected the credentials.
	Unauthorized bool
}

// fetchTimeout is the maximum time allowed for a single refresh.
const fetchTimeout = 30 * time.Second

// Refresher re-fetches the connected wallet's notifications.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Poller refreshes the notification list from the backend on an
// interval and on demand. Refreshes never overlap.
type Poller struct {
	refresh   Refresher
	interval  time.Duration
	log       logrus.FieldLogger
	status    SyncStatus
	resultCh  chan SyncResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool

	// fetchMu keeps a loop that is still finishing after Stop from
	// overlapping with the loop of a later Start.
	fetchMu gosync.Mutex
}

// New creates a Poller. A non-positive interval disables the timer;
// RefreshNow still works once started.
func New(r Refresher, interval time.Duration, log logrus.FieldLogger) *Poller {
	if log == nil {
		log = logging.Discard()
	}
	return &Poller{
		refresh:   r,
		interval:  interval,
		log:       log,
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
	}
}

// Start launches the polling goroutine and returns a command waiting for
// the first result. Calling Start while running is a no-op; a stopped
// poller can be started again.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	stop := make(chan struct{})
	p.stopCh = stop
	p.mu.Unlock()

	go p.loop(stop)
	return p.WaitForNextResult()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false
}

// RefreshNow asks for an immediate refresh. Requests made while one is
// already pending collapse into it.
func (p *Poller) RefreshNow() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the current sync status.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop(stop <-chan struct{}) {
	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-stop:
			return
		case <-tick:
			p.fetch()
		case <-p.triggerCh:
			p.fetch()
		}
	}
}

// fetch runs one refresh and publishes its outcome.
func (p *Poller) fetch() {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	err := p.refresh.Refresh(ctx)
	switch {
	case errors.Is(err, session.ErrNotConnected):
		// Nothing to sync without a wallet.
		p.setStatus(SyncIdle, nil)
		return
	case err != nil:
		p.log.WithError(err).Warn("refreshing notifications")
		p.setStatus(SyncError, err)
		p.sendResult(SyncResultMsg{Error: err, Unauthorized: api.IsUnauthorized(err)})
		return
	}

	p.setStatus(SyncIdle, nil)
	p.sendResult(SyncResultMsg{})
}

func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle && err == nil {
		p.status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// Call it again after handling a SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}
