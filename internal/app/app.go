package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/cfish-notify/internal/keys"
	"github.com/nhle/cfish-notify/internal/logging"
	"github.com/nhle/cfish-notify/internal/notification"
	"github.com/nhle/cfish-notify/internal/push"
	"github.com/nhle/cfish-notify/internal/settings"
	appsync "github.com/nhle/cfish-notify/internal/sync"
	"github.com/nhle/cfish-notify/internal/ui"
	"github.com/nhle/cfish-notify/internal/ui/command"
	"github.com/nhle/cfish-notify/internal/ui/detail"
	helpview "github.com/nhle/cfish-notify/internal/ui/help"
	"github.com/nhle/cfish-notify/internal/ui/notiflist"
	"github.com/nhle/cfish-notify/internal/ui/settingsform"
)

// pushTimeout bounds one subscribe or unsubscribe round trip.
const pushTimeout = 30 * time.Second

// PushControl is the part of the push manager the UI drives.
type PushControl interface {
	State() push.State
	RequestPermission(ctx context.Context) error
	Unsubscribe(ctx context.Context) error
}

// Wallets connects and disconnects the wallet session.
type Wallets interface {
	Wallet() string
	Connect(ctx context.Context, wallet string) error
	Disconnect()
}

// Services are the long-lived objects the UI observes and drives.
type Services struct {
	Notes    *notification.Store
	Settings *settings.Store
	Push     PushControl
	Session  Wallets
	Poller   *appsync.Poller
	Log      logrus.FieldLogger
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewSettings
	ViewHelp
	ViewCommand
)

// pushResultMsg reports a finished push transition.
type pushResultMsg struct {
	subscribing bool
	err         error
}

// connectResultMsg reports a finished wallet connect.
type connectResultMsg struct {
	wallet string
	err    error
}

// Model is the root Bubble Tea model: the notification center.
type Model struct {
	svc          Services
	log          logrus.FieldLogger
	keys         *keys.KeyMap
	watch        *watcher
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	list         notiflist.Model
	detail       detail.Model
	settingsForm settingsform.Model
	helpView     helpview.Model
	commandView  command.Model
	unread       int
	flash        string
	ready        bool
}

// New creates the root model and starts observing the stores.
func New(svc Services) Model {
	k := keys.DefaultKeyMap()
	log := svc.Log
	if log == nil {
		log = logging.Discard()
	}

	m := Model{
		svc:          svc,
		log:          log,
		keys:         k,
		watch:        newWatcher(svc.Notes, svc.Settings),
		currentView:  ViewList,
		layout:       ui.NewLayout(80, 24),
		list:         notiflist.New(k, 80, 22),
		detail:       detail.New(k, 80, 22),
		settingsForm: settingsform.New(80, 22),
		helpView:     helpview.New(k, 80, 22),
		commandView:  command.New(80, 22),
	}
	m.reload()
	return m
}

// Close stops observing the stores.
func (m Model) Close() {
	m.watch.close()
}

// Init starts the store watch and the background refresh.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.watch.wait(), m.svc.Poller.Start())
}

// reload copies the current store state into the views.
func (m *Model) reload() tea.Cmd {
	snap := m.svc.Notes.Snapshot()
	m.unread = snap.UnreadCount
	if m.currentView == ViewDetail {
		if n, ok := m.svc.Notes.Get(m.detail.Current().ID); ok {
			m.detail.Show(n)
		}
	}
	return m.list.SetNotifications(snap.Notifications)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := msg.Width, m.layout.ContentHeight()
		m.list.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.settingsForm.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		// Forward to the active view so huh forms can lay out.
		return m.updateActiveView(msg)

	case storeChangedMsg:
		return m, tea.Batch(m.reload(), m.watch.wait())

	case appsync.SyncResultMsg:
		switch {
		case msg.Unauthorized:
			m.flash = "Backend rejected the API token; update it in the keyring."
		case msg.Error != nil:
			m.flash = "Could not refresh notifications."
		}
		return m, m.svc.Poller.WaitForNextResult()

	case notiflist.OpenMsg:
		n, ok := m.svc.Notes.Get(msg.ID)
		if !ok {
			return m, nil
		}
		m.svc.Notes.MarkAsRead(n.ID)
		n.IsRead = true
		m.detail.Show(n)
		m.previousView = m.currentView
		m.currentView = ViewDetail
		return m, nil

	case notiflist.MarkReadMsg:
		m.svc.Notes.MarkAsRead(msg.ID)
		return m, nil

	case notiflist.RemoveMsg:
		m.svc.Notes.Remove(msg.ID)
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case settingsform.SavedMsg:
		m.svc.Settings.Update(context.Background(), msg.Patch)
		m.currentView = ViewList
		m.flash = "Settings saved."
		return m, nil

	case settingsform.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(command.Command(msg))

	case command.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case pushResultMsg:
		switch {
		case errors.Is(msg.err, push.ErrBusy):
			m.flash = "A push change is already in progress."
		case errors.Is(msg.err, push.ErrPermissionDenied):
			m.flash = "Desktop notifications are not available."
		case msg.err != nil:
			m.log.WithError(msg.err).Warn("push transition failed")
		}
		return m, nil

	case connectResultMsg:
		if msg.err != nil {
			m.log.WithError(msg.err).WithField("wallet", msg.wallet).Warn("wallet connect")
			m.flash = "Connected, but the notification list could not be fetched."
		} else if msg.wallet != "" {
			m.flash = "Connected " + shortWallet(msg.wallet) + "."
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		m.flash = ""
		if m.currentView == ViewList {
			if next, cmd, handled := m.handleListKey(msg); handled {
				return next, cmd
			}
		}
		if m.currentView == ViewHelp && (key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back)) {
			m.currentView = m.previousView
			return m, nil
		}
		if m.currentView == ViewSettings && key.Matches(msg, m.keys.Back) {
			m.currentView = ViewList
			return m, nil
		}
	}

	return m.updateActiveView(msg)
}

// handleListKey handles the global keys of the list view.
func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		next, cmd := m.quit()
		return next.(Model), cmd, true

	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		return m, m.openCommand(""), true

	case key.Matches(msg, m.keys.Wallet):
		if m.svc.Session.Wallet() != "" {
			return m, m.openCommand("disconnect"), true
		}
		return m, m.openCommand("connect "), true

	case key.Matches(msg, m.keys.MarkAllRead):
		m.svc.Notes.MarkAllAsRead()
		return m, nil, true

	case key.Matches(msg, m.keys.ClearAll):
		m.svc.Notes.ClearEntries()
		return m, nil, true

	case key.Matches(msg, m.keys.Refresh):
		if m.svc.Session.Wallet() == "" {
			m.flash = "Connect a wallet first (w)."
			return m, nil, true
		}
		m.svc.Poller.RefreshNow()
		m.flash = "Refreshing..."
		return m, nil, true

	case key.Matches(msg, m.keys.Settings):
		m.previousView = m.currentView
		m.currentView = ViewSettings
		return m, m.settingsForm.Start(m.svc.Settings.Get()), true

	case key.Matches(msg, m.keys.TogglePush):
		return m, m.togglePush(), true
	}
	return m, nil, false
}

func (m *Model) openCommand(prefill string) tea.Cmd {
	m.previousView = m.currentView
	m.currentView = ViewCommand
	return m.commandView.Open(prefill)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.svc.Poller.Stop()
	return m, tea.Quit
}

// togglePush subscribes when push is off and unsubscribes when it is on.
func (m Model) togglePush() tea.Cmd {
	if m.svc.Settings.Get().PushEnabled {
		return m.runPush(false)
	}
	return m.runPush(true)
}

func (m Model) runPush(subscribe bool) tea.Cmd {
	p := m.svc.Push
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		var err error
		if subscribe {
			err = p.RequestPermission(ctx)
		} else {
			err = p.Unsubscribe(ctx)
		}
		return pushResultMsg{subscribing: subscribe, err: err}
	}
}

// executeCommand runs a parsed palette command.
func (m *Model) executeCommand(c command.Command) tea.Cmd {
	switch c.Verb {
	case command.VerbConnect:
		s := m.svc.Session
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
			defer cancel()
			return connectResultMsg{wallet: c.Arg, err: s.Connect(ctx, c.Arg)}
		}
	case command.VerbDisconnect:
		m.svc.Session.Disconnect()
		m.flash = "Wallet disconnected."
	case command.VerbSubscribe:
		return m.runPush(true)
	case command.VerbUnsubscribe:
		return m.runPush(false)
	case command.VerbRefresh:
		m.svc.Poller.RefreshNow()
	case command.VerbClear:
		m.svc.Notes.ClearEntries()
	case command.VerbReadAll:
		m.svc.Notes.MarkAllAsRead()
	case command.VerbSettings:
		m.currentView = ViewSettings
		return m.settingsForm.Start(m.svc.Settings.Get())
	}
	return nil
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.list, cmd = m.list.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewSettings:
		m.settingsForm, cmd = m.settingsForm.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("CFish Notifications", notiflist.Badge(m.unread), m.status())
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.flash)
	return m.layout.Frame(header, m.renderContent(), statusBar)
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewDetail:
		return m.detail.View()
	case ViewSettings:
		return m.settingsForm.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return m.list.View()
	}
}

// status summarizes push, wallet and sync state for the header.
func (m Model) status() string {
	pushLabel := "push off"
	switch st := m.svc.Push.State(); {
	case st == push.StateSubscribing || st == push.StateUnsubscribing:
		pushLabel = "push " + st.String() + "..."
	case m.svc.Settings.Get().PushEnabled:
		pushLabel = "push on"
	}

	wallet := m.svc.Session.Wallet()
	if wallet == "" {
		return pushLabel + " | no wallet"
	}

	sync := ""
	switch st := m.svc.Poller.Status(); st.State {
	case appsync.SyncRunning:
		sync = " | syncing"
	case appsync.SyncError:
		sync = " | offline"
	default:
		if !st.LastSync.IsZero() {
			sync = " | synced " + notiflist.RelativeTime(st.LastSync, time.Now())
		}
	}
	return fmt.Sprintf("%s | %s%s", pushLabel, shortWallet(wallet), sync)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc cancel"
	case ViewDetail:
		return "esc back | j/k scroll"
	case ViewSettings:
		return "space toggle | enter next | esc cancel"
	default:
		return "q quit | ? help | m read | M read all | d remove | tab filter | s settings | p push | w wallet"
	}
}

// shortWallet abbreviates a wallet address as "Abcd...wxyz".
func shortWallet(w string) string {
	if len(w) <= 10 {
		return w
	}
	return w[:4] + "..." + w[len(w)-4:]
}
