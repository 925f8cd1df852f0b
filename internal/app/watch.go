package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/cfish-notify/internal/model"
	"github.com/nhle/cfish-notify/internal/notification"
	"github.com/nhle/cfish-notify/internal/settings"
)

// storeChangedMsg tells the UI to re-read the stores.
type storeChangedMsg struct{}

// watcher turns store observer callbacks into Bubble Tea messages.
// Signals coalesce: the UI always reads the latest state, so a pending
// signal covers any number of mutations.
type watcher struct {
	changed chan struct{}
	cancel  []func()
}

func newWatcher(notes *notification.Store, prefs *settings.Store) *watcher {
	w := &watcher{changed: make(chan struct{}, 1)}
	w.cancel = append(w.cancel,
		notes.Subscribe(func(notification.Snapshot) { w.signal() }),
		prefs.Subscribe(func(model.Settings) { w.signal() }),
	)
	return w
}

func (w *watcher) signal() {
	select {
	case w.changed <- struct{}{}:
	default:
	}
}

// wait returns a command resolving on the next change signal.
func (w *watcher) wait() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-w.changed; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

func (w *watcher) close() {
	for _, c := range w.cancel {
		c()
	}
	w.cancel = nil
}
