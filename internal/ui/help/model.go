package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/cfish-notify/internal/keys"
	"github.com/nhle/cfish-notify/internal/model"
	"github.com/nhle/cfish-notify/internal/theme"
)

// Model is the help overlay: key bindings plus the category legend.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a help view.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{keys: k, help: h, width: width, height: height}
}

// Legend lists every notification category with its icon.
func Legend() string {
	rows := make([]string, 0, len(model.KnownTypes))
	for _, t := range model.KnownTypes {
		rows = append(rows, theme.TypeStyle(t).Render(theme.TypeIcon(t))+" "+string(t))
	}
	half := (len(rows) + 1) / 2
	left := strings.Join(rows[:half], "\n")
	right := strings.Join(rows[half:], "\n")
	return lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(24).Render(left), right)
}

// View renders the overlay.
func (m Model) View() string {
	heading := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)

	m.help.Width = m.width - 4
	content := lipgloss.JoinVertical(lipgloss.Left,
		heading.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		heading.Render("Categories"),
		Legend(),
	)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(max(0, m.height-4)).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
