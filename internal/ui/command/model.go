package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/cfish-notify/internal/theme"
)

// Verb names a palette command.
type Verb string

const (
	VerbConnect     Verb = "connect"
	VerbDisconnect  Verb = "disconnect"
	VerbSubscribe   Verb = "subscribe"
	VerbUnsubscribe Verb = "unsubscribe"
	VerbRefresh     Verb = "refresh"
	VerbClear       Verb = "clear"
	VerbReadAll     Verb = "read-all"
	VerbSettings    Verb = "settings"
)

// Command is a parsed palette entry.
type Command struct {
	Verb Verb
	Arg  string
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg Command

// CancelMsg is emitted when the palette is dismissed.
type CancelMsg struct{}

var verbs = map[Verb]bool{
	VerbConnect: true, VerbDisconnect: true, VerbSubscribe: true,
	VerbUnsubscribe: true, VerbRefresh: true, VerbClear: true,
	VerbReadAll: true, VerbSettings: true,
}

// Parse turns palette input into a Command. connect needs a wallet
// address argument; the other verbs take none.
func Parse(input string) (Command, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	verb := Verb(strings.ToLower(fields[0]))
	if !verbs[verb] {
		return Command{}, fmt.Errorf("unknown command %q", fields[0])
	}
	switch {
	case verb == VerbConnect && len(fields) != 2:
		return Command{}, fmt.Errorf("usage: connect <wallet-address>")
	case verb != VerbConnect && len(fields) != 1:
		return Command{}, fmt.Errorf("%s takes no arguments", verb)
	}
	cmd := Command{Verb: verb}
	if len(fields) == 2 {
		cmd.Arg = fields[1]
	}
	return cmd, nil
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    error
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "connect <wallet> | disconnect | subscribe | unsubscribe | refresh | read-all | clear"
	ti.Prompt = ": "
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEnter:
			cmd, err := Parse(m.input.Value())
			if err != nil {
				m.err = err
				return m, nil
			}
			m.input.Reset()
			m.err = nil
			return m, func() tea.Msg { return CommandMsg(cmd) }

		case tea.KeyEsc:
			m.input.Reset()
			m.err = nil
			return m, func() tea.Msg { return CancelMsg{} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Command")

	parts := []string{title, m.input.View()}
	if m.err != nil {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.err.Error()))
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Open focuses the input, optionally prefilled.
func (m *Model) Open(prefill string) tea.Cmd {
	m.err = nil
	m.input.SetValue(prefill)
	m.input.CursorEnd()
	return m.input.Focus()
}
