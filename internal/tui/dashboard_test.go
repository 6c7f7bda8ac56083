package tui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/xonecas/moji/internal/chat"
)

func TestTruncateWithEllipsis(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 0, ""},
		{"hello", 2, "he"},
	}
	for _, tt := range tests {
		if got := truncateWithEllipsis(tt.in, tt.width); got != tt.want {
			t.Errorf("truncateWithEllipsis(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestSidebarKeepsSelectionVisible(t *testing.T) {
	var entries []chat.User
	for i := 0; i < 30; i++ {
		entries = append(entries, chat.User{ID: fmt.Sprintf("u-%02d", i), Username: fmt.Sprintf("friend%02d", i)})
	}

	out := stripANSI(RenderSidebar(entries, 25, "", 0, true, 28, 12))
	if !strings.Contains(out, "friend25") {
		t.Error("expected the selected friend in view")
	}
	if strings.Contains(out, "friend00") {
		t.Error("expected the top of the list scrolled away")
	}
	if !strings.Contains(out, "no pending requests") {
		t.Error("expected the requests footer")
	}
}

func TestSidebarMarksOpenConversation(t *testing.T) {
	out := stripANSI(RenderSidebar([]chat.User{testAlice, testBob}, 0, testBob.ID, 2, false, 28, 10))
	if !strings.Contains(out, "▸ bob") {
		t.Errorf("expected open marker on bob, got:\n%s", out)
	}
	if !strings.Contains(out, "2 request") {
		t.Error("expected pending request count")
	}
}

func TestStatusBarFitsWidth(t *testing.T) {
	notice := strings.Repeat("very long notice ", 20)
	bar := renderStatusBar("● ONLINE", notice, true, 60)
	if w := lipgloss.Width(bar); w != 60 {
		t.Errorf("expected width 60, got %d", w)
	}
	if !strings.Contains(stripANSI(bar), "...") {
		t.Error("expected the notice truncated")
	}
}

func TestHeaderShowsUser(t *testing.T) {
	out := stripANSI(renderHeader(testMe, 80))
	if !strings.Contains(out, "M O J I") || !strings.Contains(out, testMe.DisplayName()) {
		t.Errorf("unexpected header %q", out)
	}
	if narrow := stripANSI(renderHeader(testMe, 10)); strings.Contains(narrow, "signed in") {
		t.Error("expected the user dropped on a narrow header")
	}
}

func TestHelpListsEveryShortcut(t *testing.T) {
	out := stripANSI(RenderHelp(100, 40))
	for _, g := range shortcutGroups {
		if !strings.Contains(out, g.name) {
			t.Errorf("expected group %q", g.name)
		}
		for _, s := range g.items {
			if !strings.Contains(out, s.action) {
				t.Errorf("expected action %q", s.action)
			}
		}
	}
}

func TestConnIndicatorStates(t *testing.T) {
	c := NewConnIndicator()
	if !strings.Contains(stripANSI(c.View()), "OFFLINE") {
		t.Error("expected offline by default")
	}

	c.SetState(chat.ConnReconnecting)
	if !strings.Contains(stripANSI(c.View()), "RECONNECTING") {
		t.Error("expected reconnecting label")
	}

	for i := 0; i < c.width; i++ {
		c, _ = c.Update(ConnIndicatorTickMsg(time.Now()))
	}
	if c.position != c.width-2 || c.direction != -1 {
		t.Errorf("expected the bar to bounce back, position %d direction %d", c.position, c.direction)
	}

	c.SetState(chat.ConnConnected)
	before := c.position
	c, cmd := c.Update(ConnIndicatorTickMsg(time.Now()))
	if c.position != before {
		t.Error("expected no animation while connected")
	}
	if cmd == nil {
		t.Error("expected the tick loop to keep running")
	}
	if !strings.Contains(stripANSI(c.View()), "ONLINE") {
		t.Error("expected online label")
	}
}
