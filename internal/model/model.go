// Package model defines the chat entities shared by the REST client, the
// realtime transport and the synchronization engine.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// User is a conversation partner or the signed-in user.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}

// Message is one chat message. Identity is ID; a message never changes after
// it has been created.
type Message struct {
	ID             string    `json:"id" validate:"required"`
	SenderID       string    `json:"sender_id" validate:"required"`
	ReceiverID     string    `json:"receiver_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Content        string    `json:"content"`
	ImageURL       string    `json:"image_url,omitempty"`
	CreatedAt      Timestamp `json:"created_at"`
}

// Partner returns the participant of msg that is not currentUserID.
func (m Message) Partner(currentUserID string) string {
	if m.SenderID == currentUserID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Involves reports whether msg belongs to the conversation between
// currentUserID and partnerID: either the partner sent it, or the current
// user sent it to the partner.
func (m Message) Involves(currentUserID, partnerID string) bool {
	if partnerID == "" {
		return false
	}
	if m.SenderID == partnerID {
		return true
	}
	return m.ReceiverID == partnerID && m.SenderID == currentUserID
}

// IsImage reports whether the message carries an image.
func (m Message) IsImage() bool {
	return m.ImageURL != ""
}

// timestampLayouts are tried in order. The server emits naive ISO-8601
// timestamps (no zone) as well as RFC 3339.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is a time.Time that tolerates the server's timestamp formats.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
