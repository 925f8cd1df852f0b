package detail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/cfish-notify/internal/keys"
	"github.com/nhle/cfish-notify/internal/model"
	"github.com/nhle/cfish-notify/internal/theme"
)

// BackMsg is sent when the user leaves the detail view.
type BackMsg struct{}

// Model shows a single notification in full.
type Model struct {
	keys     *keys.KeyMap
	viewport viewport.Model
	current  model.Notification
	width    int
	height   int
}

// New creates a detail view.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		keys:     k,
		viewport: viewport.New(width-6, height-4),
		width:    width,
		height:   height,
	}
}

// Show loads n into the view.
func (m *Model) Show(n model.Notification) {
	m.current = n
	m.viewport.SetContent(m.render())
	m.viewport.GotoTop()
}

// Current returns the displayed notification.
func (m Model) Current() model.Notification { return m.current }

func (m Model) render() string {
	n := m.current
	label := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(10)

	var b strings.Builder
	b.WriteString(theme.TypeStyle(n.Type).Render(theme.TypeIcon(n.Type)+" "+n.Title) + "\n\n")
	b.WriteString(lipgloss.NewStyle().Width(max(20, m.width-8)).Render(n.Message) + "\n\n")
	b.WriteString(label.Render("Type") + string(n.Type) + "\n")
	if !n.Timestamp.IsZero() {
		b.WriteString(label.Render("Received") + n.Timestamp.Local().Format(time.RFC1123) + "\n")
	}
	status := "unread"
	if n.IsRead {
		status = "read"
	}
	b.WriteString(label.Render("Status") + status + "\n")
	b.WriteString(label.Render("ID") + n.ID + "\n")

	if len(n.Data) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, n.Data, "", "  "); err == nil {
			b.WriteString("\n" + label.Render("Data") + "\n" + pretty.String() + "\n")
		} else {
			b.WriteString(fmt.Sprintf("\n%s%s\n", label.Render("Data"), n.Data))
		}
	}
	return b.String()
}

// Update handles scrolling and back navigation.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg { return BackMsg{} }
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the panel.
func (m Model) View() string {
	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 2).
		Render(m.viewport.View())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 6
	m.viewport.Height = height - 4
	m.viewport.SetContent(m.render())
}
