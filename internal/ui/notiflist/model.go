package notiflist

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/cfish-notify/internal/keys"
	"github.com/nhle/cfish-notify/internal/model"
	"github.com/nhle/cfish-notify/internal/theme"
)

// OpenMsg asks to show one notification in full.
type OpenMsg struct{ ID string }

// MarkReadMsg asks to mark one notification read.
type MarkReadMsg struct{ ID string }

// RemoveMsg asks to remove one notification.
type RemoveMsg struct{ ID string }

var filters = []model.ReadFilter{model.FilterAll, model.FilterUnread, model.FilterRead}

// Model is the notification list with all/unread/read tabs.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	filter model.ReadFilter
	all    []model.Notification
	width  int
	height int
}

// New creates an empty list view.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, Delegate{}, width, height-2)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ShowFullHelp.SetEnabled(false)

	return Model{
		list:   l,
		keys:   k,
		filter: model.FilterAll,
		width:  width,
		height: height,
	}
}

// Filter returns the active read filter.
func (m Model) Filter() model.ReadFilter { return m.filter }

// SetNotifications replaces the full list; the active filter is applied
// for display. The cursor stays on the same notification when possible.
func (m *Model) SetNotifications(all []model.Notification) tea.Cmd {
	m.all = all
	return m.refilter()
}

func (m *Model) refilter() tea.Cmd {
	selected := ""
	if it, ok := m.list.SelectedItem().(Item); ok {
		selected = it.Notification.ID
	}

	items := make([]list.Item, 0, len(m.all))
	cursor := 0
	for _, n := range m.all {
		if !m.filter.Matches(n) {
			continue
		}
		if n.ID == selected {
			cursor = len(items)
		}
		items = append(items, Item{Notification: n})
	}
	cmd := m.list.SetItems(items)
	m.list.Select(cursor)
	return cmd
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update handles list keys and emits intent messages for the app.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		n, has := m.Selected()
		switch {
		case key.Matches(msg, m.keys.CycleFilter):
			m.filter = m.filter.Next()
			return m, m.refilter()

		case key.Matches(msg, m.keys.Select):
			if has {
				return m, emit(OpenMsg{ID: n.ID})
			}
			return m, nil

		case key.Matches(msg, m.keys.MarkRead):
			if has && !n.IsRead {
				return m, emit(MarkReadMsg{ID: n.ID})
			}
			return m, nil

		case key.Matches(msg, m.keys.Remove):
			if has {
				return m, emit(RemoveMsg{ID: n.ID})
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// View renders the filter tabs above the list.
func (m Model) View() string {
	tabs := make([]string, len(filters))
	for i, f := range filters {
		label := strings.ToUpper(string(f[:1])) + string(f[1:])
		if f == m.filter {
			tabs[i] = theme.ActiveTabStyle.Render(label)
		} else {
			tabs[i] = theme.TabStyle.Render(label)
		}
	}
	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	body := m.list.View()
	if len(m.list.Items()) == 0 {
		body = m.renderEmptyState()
	}
	return lipgloss.JoinVertical(lipgloss.Left, tabBar, "", body)
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height-2).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case len(m.all) > 0:
		return style.Render("No " + string(m.filter) + " notifications.")
	default:
		return style.Render("No notifications yet.\n\nPress w to connect a wallet.")
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
