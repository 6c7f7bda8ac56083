package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type shortcut struct{ keys, action string }

type shortcutGroup struct {
	name  string
	items []shortcut
}

var shortcutGroups = []shortcutGroup{
	{"Moving around", []shortcut{
		{"↑ / ↓", "Select friend / Scroll chat / Browse sent history"},
		{"PgUp / PgDn", "Scroll chat by half a page"},
		{"Wheel", "Scroll chat"},
		{"G / End", "Jump to newest message"},
		{"Tab", "Switch between friends and chat"},
		{"Esc", "Back / Cancel"},
	}},
	{"Chatting", []shortcut{
		{"Enter", "Open or reload conversation"},
		{"i", "Write a message"},
		{"p", "Send an image URL"},
	}},
	{"Friends", []shortcut{
		{"a", "Add friend by user id"},
		{"f", "Accept oldest friend request"},
		{"R", "Reload friends and requests"},
	}},
	{"Session", []shortcut{
		{"r", "Reconnect"},
		{"?", "Toggle help"},
		{"q / Ctrl+C", "Quit"},
	}},
}

// RenderHelp renders the shortcut overlay centered in width x height.
func RenderHelp(width, height int) string {
	var keyCol, descCol []string
	for i, g := range shortcutGroups {
		if i > 0 {
			keyCol = append(keyCol, "")
			descCol = append(descCol, "")
		}
		keyCol = append(keyCol, panelTitleStyle.Render(g.name))
		descCol = append(descCol, "")
		for _, s := range g.items {
			keyCol = append(keyCol, helpKeyStyle.Render(s.keys))
			descCol = append(descCol, helpDescStyle.Render(s.action))
		}
	}

	table := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().PaddingRight(2).Render(strings.Join(keyCol, "\n")),
		strings.Join(descCol, "\n"),
	)
	box := helpStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("⌨ Keyboard Shortcuts"),
		"",
		table,
	))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
