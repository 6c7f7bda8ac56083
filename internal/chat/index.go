package chat

import (
	"sync"
)

// Promote returns a copy of list with partnerID moved to the front and every
// other entry in its original relative order. If partnerID is absent the copy
// is unchanged.
func Promote(list []User, partnerID string) []User {
	out := make([]User, 0, len(list))
	idx := -1
	for i, u := range list {
		if u.ID == partnerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return append(out, list...)
	}
	out = append(out, list[idx])
	out = append(out, list[:idx]...)
	return append(out, list[idx+1:]...)
}

// ConversationIndex is the partner list, most recent traffic first.
type ConversationIndex struct {
	currentUserID string
	bus           *EventBus

	mu      sync.RWMutex
	entries []User
}

// NewConversationIndex creates an empty index for currentUserID.
func NewConversationIndex(currentUserID string, bus *EventBus) *ConversationIndex {
	return &ConversationIndex{
		currentUserID: currentUserID,
		bus:           bus,
	}
}

// Replace sets the partner list. The current user is never listed.
func (x *ConversationIndex) Replace(users []User) {
	entries := make([]User, 0, len(users))
	for _, u := range users {
		if u.ID == "" || u.ID == x.currentUserID {
			continue
		}
		entries = append(entries, u)
	}

	x.mu.Lock()
	x.entries = entries
	x.mu.Unlock()

	if x.bus != nil {
		x.bus.Emit(EventIndexChanged, "", nil)
	}
}

// Entries returns a copy of the list.
func (x *ConversationIndex) Entries() []User {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]User, len(x.entries))
	copy(out, x.entries)
	return out
}

// Touch moves the other participant of msg to the front. Partners not in the
// list are ignored. It reports whether the order changed.
func (x *ConversationIndex) Touch(msg Message) bool {
	partnerID := msg.Partner(x.currentUserID)
	if partnerID == "" || partnerID == x.currentUserID {
		return false
	}

	x.mu.Lock()
	if len(x.entries) == 0 || x.entries[0].ID == partnerID {
		x.mu.Unlock()
		return false
	}
	next := Promote(x.entries, partnerID)
	if next[0].ID != partnerID {
		x.mu.Unlock()
		return false
	}
	x.entries = next
	x.mu.Unlock()

	if x.bus != nil {
		x.bus.Emit(EventIndexChanged, partnerID, nil)
	}
	return true
}

// Consume implements Consumer.
func (x *ConversationIndex) Consume(msg Message) {
	x.Touch(msg)
}
