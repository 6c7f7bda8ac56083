package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/xonecas/moji/internal/chat"
)

// wrapText wraps text to fit within maxWidth display columns, preserving
// words. Words wider than maxWidth are hard-wrapped.
func wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		maxWidth = 80
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := ""
		for _, word := range words {
			wordWidth := lipgloss.Width(word)

			if wordWidth > maxWidth {
				if current != "" {
					lines = append(lines, current)
					current = ""
				}
				for word != "" {
					chunk := truncateToWidth(word, maxWidth)
					if chunk == "" {
						// A single rune wider than maxWidth.
						chunk = string([]rune(word)[:1])
					}
					lines = append(lines, chunk)
					word = word[len(chunk):]
				}
				continue
			}

			switch {
			case current == "":
				current = word
			case lipgloss.Width(current)+1+wordWidth <= maxWidth:
				current += " " + word
			default:
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}

// renderMessage renders one message as "HH:MM Name: content" with
// continuation lines indented under the content.
func renderMessage(msg chat.Message, me, partner chat.User, width int) []string {
	label := partner.DisplayName()
	labelStyle := partnerLabelStyle
	if msg.SenderID == me.ID {
		label = "You"
		labelStyle = selfLabelStyle
	}

	ts := formatMessageTime(msg.CreatedAt.Time)
	prefix := ts + " " + label + ":"
	prefixWidth := lipgloss.Width(prefix) + 1
	contentWidth := width - prefixWidth
	if contentWidth < 10 {
		contentWidth = 10
	}

	var body []string
	if msg.Content != "" {
		body = wrapText(msg.Content, contentWidth)
	}
	if msg.IsImage() {
		for _, l := range wrapText("[image] "+msg.ImageURL, contentWidth) {
			body = append(body, imageStyle.Render(l))
		}
	}
	if len(body) == 0 {
		body = []string{""}
	}

	styledPrefix := timeStyle.Render(ts) + " " + labelStyle.Render(label+":")
	indent := strings.Repeat(" ", prefixWidth)

	lines := make([]string, 0, len(body))
	for i, l := range body {
		if i == 0 {
			lines = append(lines, styledPrefix+" "+l)
		} else {
			lines = append(lines, indent+l)
		}
	}
	return lines
}

// renderConversation renders the whole message sequence for the viewport and
// returns its height in lines.
func renderConversation(view chat.View, me chat.User, width int) (string, int) {
	if len(view.Messages) == 0 {
		switch {
		case view.Loading:
			return dimmedStyle.Render("Loading messages..."), 1
		case view.Loaded:
			return dimmedStyle.Render("No messages yet. Say hi!"), 1
		}
		return "", 0
	}

	var lines []string
	for _, msg := range view.Messages {
		lines = append(lines, renderMessage(msg, me, view.Partner, width)...)
	}
	return strings.Join(lines, "\n"), len(lines)
}

// tailHeight is the rendered height of the messages after afterID, or 0 when
// afterID is not in the view.
func tailHeight(view chat.View, afterID string, me chat.User, width int) int {
	for i := len(view.Messages) - 1; i >= 0; i-- {
		if view.Messages[i].ID != afterID {
			continue
		}
		height := 0
		for _, msg := range view.Messages[i+1:] {
			height += len(renderMessage(msg, me, view.Partner, width))
		}
		return height
	}
	return 0
}

// chatTitle renders the chat pane title with loading and position hints.
func chatTitle(view chat.View, vp viewport.Model, totalLines int, width int) string {
	if !view.Selected() {
		return renderSectionTitle("CHAT", width)
	}

	var suffix string
	switch {
	case view.Loading:
		suffix = " loading..."
	case view.LoadingMore:
		suffix = " loading older..."
	case !view.HasMore && view.Loaded && totalLines > vp.Height:
		suffix = " start of history"
	}
	if totalLines > vp.Height && !vp.AtBottom() {
		line := vp.YOffset + 1
		suffix += fmt.Sprintf(" %d/%d", line, totalLines)
	}
	return renderSectionTitleWithSuffix(view.Partner.DisplayName(), suffix, width)
}

// RenderChatPane renders the open conversation: title, viewport and
// scrollbar.
func RenderChatPane(view chat.View, vp viewport.Model, totalLines int, focused bool, width, height int) string {
	contentWidth := width - 2
	if contentWidth < 10 {
		contentWidth = 10
	}

	var body string
	if !view.Selected() {
		empty := dimmedStyle.Render("Pick a friend on the left to start chatting.")
		body = lipgloss.NewStyle().Height(height - 3).Render(empty)
	} else {
		scrollLines := strings.Split(renderScrollbar(vp.Height, totalLines, vp.YOffset), "\n")
		vpLines := strings.Split(vp.View(), "\n")

		combined := make([]string, vp.Height)
		for i := 0; i < vp.Height; i++ {
			var content, bar string
			if i < len(vpLines) {
				content = vpLines[i]
			}
			if pad := vp.Width - lipgloss.Width(content); pad > 0 {
				content += strings.Repeat(" ", pad)
			}
			if i < len(scrollLines) {
				bar = scrollLines[i]
			}
			combined[i] = content + " " + bar
		}
		body = strings.Join(combined, "\n")
	}

	style := chatStyle
	if focused {
		style = chatFocusedStyle
	}
	inner := lipgloss.JoinVertical(lipgloss.Left,
		chatTitle(view, vp, totalLines, contentWidth),
		body,
	)
	return style.Width(contentWidth).Height(height - 2).Render(inner)
}
