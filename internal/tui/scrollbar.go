package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	scrollbarThumb = "█"
	scrollbarTrack = "│"
)

var (
	scrollTrackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	scrollThumbStyle = lipgloss.NewStyle().Foreground(colors.brandDim)
)

// scrollThumb returns the first line and size of the thumb for a viewport of
// height lines over totalLines, scrolled to offset.
func scrollThumb(height, totalLines, offset int) (pos, size int) {
	size = (height * height) / totalLines
	if size < 1 {
		size = 1
	}
	if size > height {
		size = height
	}

	ratio := float64(offset) / float64(totalLines-height)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return int(ratio * float64(height-size)), size
}

// renderScrollbar draws a one-column scrollbar, one character per line.
// When everything fits, only the track is drawn.
func renderScrollbar(height, totalLines, offset int) string {
	if height <= 0 {
		return ""
	}

	lines := make([]string, height)
	if totalLines <= height {
		for i := range lines {
			lines[i] = scrollTrackStyle.Render(scrollbarTrack)
		}
		return strings.Join(lines, "\n")
	}

	pos, size := scrollThumb(height, totalLines, offset)
	for i := range lines {
		if i >= pos && i < pos+size {
			lines[i] = scrollThumbStyle.Render(scrollbarThumb)
		} else {
			lines[i] = scrollTrackStyle.Render(scrollbarTrack)
		}
	}
	return strings.Join(lines, "\n")
}
