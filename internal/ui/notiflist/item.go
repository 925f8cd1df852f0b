package notiflist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/cfish-notify/internal/model"
	"github.com/nhle/cfish-notify/internal/theme"
)

// Item wraps a notification for the bubbles list.
type Item struct {
	Notification model.Notification
}

func (i Item) FilterValue() string { return i.Notification.Title }

// Delegate renders one notification per line.
type Delegate struct {
	now func() time.Time
}

func (d Delegate) Height() int { return 2 }

func (d Delegate) Spacing() int { return 0 }

func (d Delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

var (
	unreadDot  = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
	readDot    = " "
	timeStyle  = lipgloss.NewStyle().Foreground(theme.ColorGray)
	msgStyle   = lipgloss.NewStyle().Foreground(theme.ColorGray).PaddingLeft(4)
	readTitle  = lipgloss.NewStyle().Foreground(theme.ColorGray)
	plainStyle = lipgloss.NewStyle().PaddingLeft(2)
)

// Render draws the title line and a truncated message line.
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification
	now := time.Now
	if d.now != nil {
		now = d.now
	}

	dot := readDot
	title := n.Title
	if n.IsRead {
		title = readTitle.Render(title)
	} else {
		dot = unreadDot
		title = lipgloss.NewStyle().Bold(true).Render(title)
	}

	icon := theme.TypeStyle(n.Type).Render(theme.TypeIcon(n.Type))
	line := fmt.Sprintf("%s %s %s  %s", dot, icon, title, timeStyle.Render(RelativeTime(n.Timestamp, now())))

	width := m.Width() - 6
	if width < 10 {
		width = 10
	}
	body := msgStyle.Render(truncate(n.Message, width))

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = plainStyle.Render(line)
	}
	fmt.Fprint(w, line+"\n"+body)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
