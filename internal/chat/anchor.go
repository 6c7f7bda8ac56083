package chat

import "github.com/xonecas/moji/internal/constants"

// ScrollAnchor decides where the chat viewport sits after the message
// sequence changes shape. Heights and offsets are in rendered lines.
//
// When older history is requested the content height is recorded. The next
// structural change then shifts the offset by exactly the height that was
// prepended, so the message that was on top stays put. Any other change
// snaps to the bottom.
type ScrollAnchor struct {
	threshold int
	recorded  int
	pending   bool
}

// NewScrollAnchor creates an anchor that asks for older history when the
// offset comes within threshold lines of the top.
func NewScrollAnchor(threshold int) *ScrollAnchor {
	if threshold < 0 {
		threshold = constants.ScrollLoadThreshold
	}
	return &ScrollAnchor{threshold: threshold}
}

// BottomOffset is the offset showing the last line of content.
func BottomOffset(contentHeight, viewportHeight int) int {
	if contentHeight <= viewportHeight {
		return 0
	}
	return contentHeight - viewportHeight
}

// AnchorOffset returns offset shifted by the height added since
// recordedHeight, clamped to the scrollable range.
func AnchorOffset(recordedHeight, offset, newHeight, viewportHeight int) int {
	next := offset + (newHeight - recordedHeight)
	if next < 0 {
		return 0
	}
	if bottom := BottomOffset(newHeight, viewportHeight); next > bottom {
		return bottom
	}
	return next
}

// ShouldLoadOlder reports whether the reader is near enough to the top to
// fetch older history. On true the current content height is recorded for
// the next Apply.
func (a *ScrollAnchor) ShouldLoadOlder(offset, contentHeight int, busy, initialLoaded bool) bool {
	if busy || !initialLoaded || a.pending {
		return false
	}
	if offset >= a.threshold {
		return false
	}
	a.recorded = contentHeight
	a.pending = true
	return true
}

// Pending reports whether a height is recorded.
func (a *ScrollAnchor) Pending() bool {
	return a.pending
}

// Extend adds delta to the recorded height. It accounts for content appended
// at the tail while older history is still in flight, so the eventual Apply
// shifts by the prepended height only.
func (a *ScrollAnchor) Extend(delta int) {
	if a.pending {
		a.recorded += delta
	}
}

// Apply returns the offset to use after a structural change to the content.
func (a *ScrollAnchor) Apply(offset, newContentHeight, viewportHeight int) int {
	if a.pending {
		next := AnchorOffset(a.recorded, offset, newContentHeight, viewportHeight)
		a.Cancel()
		return next
	}
	return BottomOffset(newContentHeight, viewportHeight)
}

// Cancel clears the recorded height, e.g. when the fetch added nothing.
func (a *ScrollAnchor) Cancel() {
	a.recorded = 0
	a.pending = false
}

// Shape is the part of a message sequence that counts as structure: length
// and the identity of both ends.
type Shape struct {
	Len     int
	FirstID string
	LastID  string
}

// ShapeOf computes the shape of msgs.
func ShapeOf(msgs []Message) Shape {
	if len(msgs) == 0 {
		return Shape{}
	}
	return Shape{
		Len:     len(msgs),
		FirstID: msgs[0].ID,
		LastID:  msgs[len(msgs)-1].ID,
	}
}

// Changed reports whether s and other differ structurally.
func (s Shape) Changed(other Shape) bool {
	return s != other
}
