package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Involves(t *testing.T) {
	const me, alice, bob = "me", "alice", "bob"

	tests := []struct {
		name    string
		msg     Message
		partner string
		want    bool
	}{
		{"partner sent to me", Message{SenderID: alice, ReceiverID: me}, alice, true},
		{"I sent to partner", Message{SenderID: me, ReceiverID: alice}, alice, true},
		{"other partner sent to me", Message{SenderID: bob, ReceiverID: me}, alice, false},
		{"I sent to other partner", Message{SenderID: me, ReceiverID: bob}, alice, false},
		{"third party addressed partner", Message{SenderID: bob, ReceiverID: alice}, alice, false},
		{"nothing selected", Message{SenderID: alice, ReceiverID: me}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Involves(me, tt.partner))
		})
	}
}

func TestMessage_Partner(t *testing.T) {
	assert.Equal(t, "alice", Message{SenderID: "me", ReceiverID: "alice"}.Partner("me"))
	assert.Equal(t, "alice", Message{SenderID: "alice", ReceiverID: "me"}.Partner("me"))
}

func TestUser_DisplayName(t *testing.T) {
	assert.Equal(t, "Alice N", User{ID: "1", Username: "alice", FullName: "Alice N"}.DisplayName())
	assert.Equal(t, "alice", User{ID: "1", Username: "alice"}.DisplayName())
	assert.Equal(t, "1", User{ID: "1"}.DisplayName())
}

func TestTimestamp_ServerFormats(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{`"2025-03-01T09:30:00Z"`, time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)},
		{`"2025-03-01T09:30:00.250000"`, time.Date(2025, 3, 1, 9, 30, 0, 250000000, time.UTC)},
		{`"2025-03-01 09:30:00"`, time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &ts), tt.raw)
		assert.True(t, tt.want.Equal(ts.Time), "%s parsed as %s", tt.raw, ts.Time)
	}
}

func TestTimestamp_EmptyAndNull(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
	require.NoError(t, json.Unmarshal([]byte(`""`), &ts))
	assert.True(t, ts.IsZero())

	out, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestTimestamp_RejectsGarbage(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`42`), &ts))
}

func TestMessage_DecodeServerPayload(t *testing.T) {
	raw := `{"id":"m1","content":"hi","sender_id":"alice","receiver_id":"me","created_at":"2025-03-01T09:30:00.123456","conversation_id":"c1"}`

	var m Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "c1", m.ConversationID)
	assert.False(t, m.IsImage())
	assert.Equal(t, 9, m.CreatedAt.Hour())
}
