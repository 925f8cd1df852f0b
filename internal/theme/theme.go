package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/cfish-notify/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// DetailPanelStyle wraps the detail view content area.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// SelectedItemStyle highlights the focused list row.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BadgeStyle renders the unread counter.
var BadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FFFFFF")).
	Background(ColorRed).
	Padding(0, 1)

// TabStyle and ActiveTabStyle render the read filter tabs.
var (
	TabStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Padding(0, 1)
	ActiveTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBlue).
			Underline(true).
			Padding(0, 1)
)

// TypeStyle returns a color-coded style for a notification category.
func TypeStyle(t model.NotificationType) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch t {
	case model.TypeSuccess, model.TypeNFTSold, model.TypeNFTPurchased:
		return base.Foreground(ColorGreen)
	case model.TypeError:
		return base.Foreground(ColorRed)
	case model.TypeWarning, model.TypeAuctionEnding, model.TypeBidOutbid:
		return base.Foreground(ColorOrange)
	case model.TypeTrade, model.TypeBidReceived:
		return base.Foreground(ColorYellow)
	case model.TypeSocial, model.TypeFollow, model.TypeLike, model.TypeComment:
		return base.Foreground(ColorMagenta)
	case model.TypeInfo, model.TypeSystem, model.TypeActivity:
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}

// TypeIcon returns a one-glyph marker for a notification category.
func TypeIcon(t model.NotificationType) string {
	switch t {
	case model.TypeSuccess:
		return "✔"
	case model.TypeError:
		return "✖"
	case model.TypeWarning:
		return "⚠"
	case model.TypeTrade, model.TypeNFTSold, model.TypeNFTPurchased:
		return "$"
	case model.TypeBidReceived, model.TypeBidOutbid:
		return "↑"
	case model.TypeAuctionEnding:
		return "⏱"
	case model.TypeFollow, model.TypeSocial:
		return "@"
	case model.TypeLike:
		return "♥"
	case model.TypeComment:
		return "✎"
	default:
		return "•"
	}
}
