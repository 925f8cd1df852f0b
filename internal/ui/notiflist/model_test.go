package notiflist

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/cfish-notify/internal/keys"
	"github.com/nhle/cfish-notify/internal/model"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "Just now"},
		{5 * time.Minute, "5m ago"},
		{59 * time.Minute, "59m ago"},
		{3 * time.Hour, "3h ago"},
		{49 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelativeTime(now.Add(-tt.ago), now))
	}
	assert.Empty(t, RelativeTime(time.Time{}, now))
}

func TestBadge(t *testing.T) {
	assert.Equal(t, "", Badge(0))
	assert.Equal(t, "7", Badge(7))
	assert.Equal(t, "99", Badge(99))
	assert.Equal(t, "99+", Badge(100))
}

func sample() []model.Notification {
	now := time.Now()
	return []model.Notification{
		{ID: "1", Type: model.TypeTrade, Title: "unread one", Timestamp: now},
		{ID: "2", Type: model.TypeFollow, Title: "read one", Timestamp: now.Add(-time.Minute), IsRead: true},
		{ID: "3", Type: model.TypeNFTSold, Title: "unread two", Timestamp: now.Add(-time.Hour)},
	}
}

func press(m Model, k string) (Model, tea.Msg) {
	var msg tea.KeyMsg
	switch k {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	m, cmd := m.Update(msg)
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func TestFilterCycling(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetNotifications(sample())
	assert.Len(t, m.list.Items(), 3)

	m, _ = press(m, "tab")
	assert.Equal(t, model.FilterUnread, m.Filter())
	assert.Len(t, m.list.Items(), 2)

	m, _ = press(m, "tab")
	assert.Equal(t, model.FilterRead, m.Filter())
	require.Len(t, m.list.Items(), 1)
	n, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "2", n.ID)

	m, _ = press(m, "tab")
	assert.Equal(t, model.FilterAll, m.Filter())
}

func TestIntentMessages(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetNotifications(sample())

	_, msg := press(m, "m")
	assert.Equal(t, MarkReadMsg{ID: "1"}, msg)

	_, msg = press(m, "d")
	assert.Equal(t, RemoveMsg{ID: "1"}, msg)

	_, msg = press(m, "enter")
	assert.Equal(t, OpenMsg{ID: "1"}, msg)
}

func TestMarkReadIgnoredForReadEntry(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetNotifications(sample()[1:2])

	_, msg := press(m, "m")
	assert.Nil(t, msg)
}

func TestCursorFollowsSelectionAcrossUpdates(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	items := sample()
	m.SetNotifications(items)
	m.list.Select(2)

	fresh := append([]model.Notification{{ID: "0", Type: model.TypeTrade, Title: "newest", Timestamp: time.Now()}}, items...)
	m.SetNotifications(fresh)

	n, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "3", n.ID)
}
