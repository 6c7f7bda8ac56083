package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xonecas/moji/internal/chat"
)

// ConnIndicator shows the realtime connection state. While connecting or
// reconnecting it runs a bouncing bar.
type ConnIndicator struct {
	state     chat.ConnState
	position  int // Current position of the "ball" (0-width)
	direction int // 1 = right, -1 = left
	width     int
}

// ConnIndicatorTickMsg animates the indicator.
type ConnIndicatorTickMsg time.Time

// NewConnIndicator creates an indicator in the disconnected state.
func NewConnIndicator() ConnIndicator {
	return ConnIndicator{
		state:     chat.ConnDisconnected,
		direction: 1,
		width:     8,
	}
}

// SetState records the connection state to display.
func (c *ConnIndicator) SetState(state chat.ConnState) {
	c.state = state
}

// State returns the displayed connection state.
func (c ConnIndicator) State() chat.ConnState {
	return c.state
}

func (c ConnIndicator) animating() bool {
	return c.state == chat.ConnConnecting || c.state == chat.ConnReconnecting
}

// Update handles tick messages.
func (c ConnIndicator) Update(msg tea.Msg) (ConnIndicator, tea.Cmd) {
	if _, ok := msg.(ConnIndicatorTickMsg); ok {
		if c.animating() {
			c.position += c.direction
			if c.position >= c.width-1 {
				c.position = c.width - 1
				c.direction = -1
			} else if c.position <= 0 {
				c.position = 0
				c.direction = 1
			}
		}
		return c, c.tick()
	}
	return c, nil
}

func (c ConnIndicator) tick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return ConnIndicatorTickMsg(t)
	})
}

// Init starts the animation loop.
func (c ConnIndicator) Init() tea.Cmd {
	return c.tick()
}

// View renders the indicator.
func (c ConnIndicator) View() string {
	switch c.state {
	case chat.ConnConnected:
		return lipgloss.NewStyle().Foreground(colors.ok).Bold(true).Render("● ONLINE")
	case chat.ConnDisconnected:
		return lipgloss.NewStyle().Foreground(colors.bad).Render("○ OFFLINE")
	}

	label := "◌ CONNECTING"
	style := lipgloss.NewStyle().Foreground(colors.accent).Bold(true)
	if c.state == chat.ConnReconnecting {
		label = "◌ RECONNECTING"
		style = style.Foreground(colors.warn)
	}

	var bar strings.Builder
	bar.WriteString("▐")
	for i := 0; i < c.width; i++ {
		if i >= c.position-1 && i <= c.position+1 {
			bar.WriteString("█")
		} else {
			bar.WriteString("░")
		}
	}
	bar.WriteString("▌")
	return style.Render(label + " " + bar.String())
}
