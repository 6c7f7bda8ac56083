package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func userIDs(users []User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func TestPromote(t *testing.T) {
	list := []User{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}

	tests := []struct {
		name    string
		partner string
		want    []string
	}{
		{"middle", "c", []string{"c", "a", "b", "d"}},
		{"last", "d", []string{"d", "a", "b", "c"}},
		{"already first", "a", []string{"a", "b", "c", "d"}},
		{"absent", "z", []string{"a", "b", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Promote(list, tt.partner)
			assert.Equal(t, tt.want, userIDs(got))
		})
	}

	// The input is never modified.
	assert.Equal(t, []string{"a", "b", "c", "d"}, userIDs(list))
}

func TestPromoteEmpty(t *testing.T) {
	assert.Empty(t, Promote(nil, "a"))
}

func TestIndexTouchInboundAndOutbound(t *testing.T) {
	bus := NewEventBus(0)
	ch := bus.Subscribe()
	x := NewConversationIndex(testMe, bus)
	x.Replace([]User{{ID: testMe}, {ID: "a"}, {ID: testBob}, {ID: testAlice}})
	waitEvent(t, ch, EventIndexChanged)

	assert.Equal(t, []string{"a", testBob, testAlice}, userIDs(x.Entries()), "current user is not listed")

	// Inbound from alice.
	assert.True(t, x.Touch(Message{SenderID: testAlice, ReceiverID: testMe}))
	assert.Equal(t, []string{testAlice, "a", testBob}, userIDs(x.Entries()))
	ev := waitEvent(t, ch, EventIndexChanged)
	assert.Equal(t, testAlice, ev.PartnerID)

	// Outbound to bob.
	assert.True(t, x.Touch(Message{SenderID: testMe, ReceiverID: testBob}))
	assert.Equal(t, []string{testBob, testAlice, "a"}, userIDs(x.Entries()))

	// Unknown partner and already-first partner leave the order alone.
	assert.False(t, x.Touch(Message{SenderID: "stranger", ReceiverID: testMe}))
	assert.False(t, x.Touch(Message{SenderID: testBob, ReceiverID: testMe}))
	assert.Equal(t, []string{testBob, testAlice, "a"}, userIDs(x.Entries()))
}

func TestIndexEntriesIsACopy(t *testing.T) {
	x := NewConversationIndex(testMe, nil)
	x.Replace([]User{{ID: testAlice}, {ID: testBob}})

	entries := x.Entries()
	entries[0] = User{ID: "mutated"}
	assert.Equal(t, []string{testAlice, testBob}, userIDs(x.Entries()))
}
