package settingsform

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/cfish-notify/internal/model"
	"github.com/nhle/cfish-notify/internal/settings"
	"github.com/nhle/cfish-notify/internal/theme"
)

// SavedMsg carries the patch built from the submitted form.
type SavedMsg struct {
	Patch settings.Patch
}

// CancelMsg is sent when the form is aborted.
type CancelMsg struct{}

var typeLabels = map[model.NotificationType]string{
	model.TypeTrade:         "Trades",
	model.TypeSystem:        "System",
	model.TypeActivity:      "Activity",
	model.TypeSocial:        "Social",
	model.TypeSuccess:       "Success notices",
	model.TypeError:         "Error notices",
	model.TypeWarning:       "Warnings",
	model.TypeInfo:          "Info",
	model.TypeNFTSold:       "NFT sold",
	model.TypeNFTPurchased:  "NFT purchased",
	model.TypeBidReceived:   "Bid received",
	model.TypeBidOutbid:     "Outbid",
	model.TypeAuctionEnding: "Auction ending",
	model.TypeFollow:        "New follower",
	model.TypeLike:          "Likes",
	model.TypeComment:       "Comments",
}

// formBindings lives on the heap so huh's value pointers survive model
// copies.
type formBindings struct {
	enabled []model.NotificationType
	sound   bool
	email   bool
	sms     bool
}

// Model edits the notification settings with a huh form. Push is not
// part of the form; it has its own toggle because it subscribes.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates an idle settings form.
func New(width, height int) Model {
	return Model{fb: &formBindings{}, width: width, height: height}
}

// Start fills the form from cur and returns its init command.
func (m *Model) Start(cur model.Settings) tea.Cmd {
	m.fb.enabled = m.fb.enabled[:0]
	for _, t := range model.KnownTypes {
		if cur.Enabled(t) {
			m.fb.enabled = append(m.fb.enabled, t)
		}
	}
	m.fb.sound = cur.Sound
	m.fb.email = cur.EmailEnabled
	m.fb.sms = cur.SMSEnabled

	m.form = m.buildForm()
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	opts := make([]huh.Option[model.NotificationType], 0, len(model.KnownTypes))
	for _, t := range model.KnownTypes {
		opts = append(opts, huh.NewOption(typeLabels[t], t))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[model.NotificationType]().
				Title("Notify me about").
				Options(opts...).
				Height(10).
				Value(&m.fb.enabled),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Play a sound").
				Value(&m.fb.sound),
			huh.NewConfirm().
				Title("Email notifications").
				Value(&m.fb.email),
			huh.NewConfirm().
				Title("SMS notifications").
				Value(&m.fb.sms),
		),
	).WithWidth(m.formWidth()).WithShowHelp(true)
}

// Patch builds the settings patch from the current form values.
func (m Model) Patch() settings.Patch {
	on := make(map[model.NotificationType]bool, len(m.fb.enabled))
	for _, t := range m.fb.enabled {
		on[t] = true
	}
	types := make(map[model.NotificationType]bool, len(model.KnownTypes))
	for _, t := range model.KnownTypes {
		types[t] = on[t]
	}
	return settings.Patch{
		Types:        types,
		Sound:        settings.Bool(m.fb.sound),
		EmailEnabled: settings.Bool(m.fb.email),
		SMSEnabled:   settings.Bool(m.fb.sms),
	}
}

// Update forwards to the form and reports completion.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		patch := m.Patch()
		m.form = nil
		return m, func() tea.Msg { return SavedMsg{Patch: patch} }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Notification Settings")

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(title + "\n" + m.form.View())
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w > 70 {
		w = 70
	}
	if w < 30 {
		w = 30
	}
	return w
}
