package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xonecas/moji/internal/chat"
)

// renderHeader renders the banner across the top of the screen.
func renderHeader(me chat.User, width int) string {
	if width < 20 {
		width = 20
	}
	title := " ◆ M O J I ◆ "
	who := "signed in as " + me.DisplayName() + " "
	gap := width - lipgloss.Width(title) - lipgloss.Width(who)
	if gap < 1 {
		who = ""
		gap = width - lipgloss.Width(title)
		if gap < 0 {
			gap = 0
		}
	}
	return headerStyle.Width(width).Render(title + strings.Repeat(" ", gap) + who)
}

// RenderSidebar renders the friend list ordered by recency. openID marks
// the conversation on screen; requests is the number of pending friend
// requests.
func RenderSidebar(entries []chat.User, selectedIdx int, openID string, requests int, focused bool, width, height int) string {
	if width < 12 {
		width = 12
	}
	if height < 3 {
		height = 3
	}
	contentWidth := width - 2

	var lines []string
	lines = append(lines, renderSectionTitle("FRIENDS", contentWidth))

	if len(entries) == 0 {
		lines = append(lines, dimmedStyle.Render(truncateWithEllipsis("No friends yet. 'a' to add.", contentWidth)))
	}

	// Keep the selection visible when the list is longer than the pane.
	listHeight := height - 2 - 2 // borders, title, requests line
	if listHeight < 1 {
		listHeight = 1
	}
	start := 0
	if selectedIdx >= listHeight {
		start = selectedIdx - listHeight + 1
	}
	for i := start; i < len(entries) && i < start+listHeight; i++ {
		lines = append(lines, renderPartnerLine(entries[i], i == selectedIdx, entries[i].ID == openID, contentWidth))
	}

	body := strings.Join(lines, "\n")
	footer := dimmedStyle.Render(truncateWithEllipsis("no pending requests", contentWidth))
	if requests > 0 {
		text := fmt.Sprintf("✉ %d request(s) · 'f' to accept", requests)
		footer = warningStyle.Render(truncateWithEllipsis(text, contentWidth))
	}

	style := sidebarStyle
	if focused {
		style = sidebarFocusedStyle
	}
	inner := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Height(height-3).Render(body),
		footer,
	)
	return style.Width(contentWidth).Height(height - 2).Render(inner)
}

func renderPartnerLine(u chat.User, selected, open bool, width int) string {
	marker := "  "
	if open {
		marker = "▸ "
	}
	// Item styles pad one column each side.
	name := truncateWithEllipsis(marker+u.DisplayName(), width-2)

	switch {
	case selected:
		return partnerItemSelectedStyle.Width(width).Render(name)
	case open:
		return partnerItemOpenStyle.Width(width).Render(name)
	default:
		return partnerItemStyle.Width(width).Render(name)
	}
}

// renderStatusBar renders the bottom line: connection state and the current
// notice.
func renderStatusBar(conn string, notice string, noticeIsError bool, width int) string {
	const helpHint = "[ ? ] HELP"
	hint := dimmedStyle.Render(helpHint)
	text := conn
	if notice != "" {
		style := noticeStyle
		if noticeIsError {
			style = noticeErrorStyle
		}
		room := width - lipgloss.Width(conn) - 2 - len(helpHint) - 1
		text += "  " + style.Render(truncateWithEllipsis(notice, room))
	}
	gap := width - lipgloss.Width(text) - lipgloss.Width(hint)
	if gap < 1 {
		return statusBarStyle.Width(width).Render(text)
	}
	return statusBarStyle.Width(width).Render(text + strings.Repeat(" ", gap) + hint)
}
