package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/xonecas/moji/internal/constants"
)

type palette struct {
	brand, brandDim, accent lipgloss.Color
	self, partner, image    lipgloss.Color
	ok, warn, bad, muted    lipgloss.Color
	ink, bar, panel, edge   lipgloss.Color
}

var colors = palette{
	brand:    "#FF5FAF",
	brandDim: "#AF3F7F",
	accent:   "#00D7AF",

	self:    "#00FF87",
	partner: "#5FD7FF",
	image:   "#FFD75F",

	ok:    "#00FF87",
	warn:  "#FF8700",
	bad:   "#FF3366",
	muted: "#6C6C8A",

	ink:   "#0C0C12",
	bar:   "#14141C",
	panel: "#181824",
	edge:  "#3A3A5A",
}

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func boxed(border lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border)
}

func listItem(c lipgloss.Color) lipgloss.Style { return fg(c).Padding(0, 1) }

var (
	headerStyle    = fg(colors.brand).Background(colors.bar).Bold(true)
	statusBarStyle = fg(colors.accent).Background(colors.bar)
	titleStyle     = fg(colors.brand).Bold(true)

	sidebarStyle        = boxed(colors.edge)
	sidebarFocusedStyle = boxed(colors.brandDim)
	chatStyle           = boxed(colors.edge)
	chatFocusedStyle    = boxed(colors.brandDim)
	inputStyle          = boxed(colors.accent).Padding(0, 1)

	partnerItemStyle         = listItem(colors.accent)
	partnerItemOpenStyle     = listItem(colors.brand).Bold(true)
	partnerItemSelectedStyle = listItem(colors.ink).Background(colors.brand).Bold(true)

	selfLabelStyle    = fg(colors.self).Bold(true)
	partnerLabelStyle = fg(colors.partner).Bold(true)
	imageStyle        = fg(colors.image).Italic(true)
	timeStyle         = fg(colors.muted)
	inputPromptStyle  = fg(colors.brand).Bold(true)

	helpStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colors.brand).
			Background(colors.panel).
			Padding(1, 2).
			Margin(1)
	helpKeyStyle  = fg(colors.accent).Bold(true)
	helpDescStyle = fg(colors.muted)

	noticeStyle      = fg(colors.ok)
	noticeErrorStyle = fg(colors.bad).Bold(true)
	panelTitleStyle  = fg(colors.accent).Bold(true)
	dimmedStyle      = fg(colors.muted)
	warningStyle     = fg(colors.warn)
)

// renderSectionTitle draws "◆─── TITLE ───◆" across width.
func renderSectionTitle(title string, width int) string {
	return renderSectionTitleWithSuffix(title, "", width)
}

func renderSectionTitleWithSuffix(title, suffix string, width int) string {
	label := " " + title + " "
	fill := max(width-lipgloss.Width(label)-lipgloss.Width(suffix)-4, 2)
	var b strings.Builder
	b.WriteString("◆─")
	b.WriteString(strings.Repeat("─", fill/2))
	b.WriteString(label)
	b.WriteString(strings.Repeat("─", fill-fill/2))
	b.WriteString("─◆")
	b.WriteString(suffix)
	return panelTitleStyle.Width(width).Render(truncateToWidth(b.String(), width))
}

// truncateToWidth returns the longest prefix of plain text s that fits in
// maxWidth columns.
func truncateToWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	used := 0
	for i, r := range s {
		w := lipgloss.Width(string(r))
		if used+w > maxWidth {
			return s[:i]
		}
		used += w
	}
	return s
}

func truncateWithEllipsis(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if maxWidth <= 3 {
		return ansi.Truncate(s, maxWidth, "")
	}
	return ansi.Truncate(s, maxWidth, "...")
}

// formatMessageTime renders a message timestamp as local HH:MM.
func formatMessageTime(ts time.Time) string {
	if ts.IsZero() {
		return "--:--"
	}
	return ts.Local().Format(constants.MessageTimeFormat)
}
