// Package chat is the realtime conversation engine: the live connection, the
// open conversation's merged history, the scroll anchor policy and the
// recency-ordered partner list.
package chat

import (
	"errors"
	"time"

	"github.com/xonecas/moji/internal/model"
)

type (
	User    = model.User
	Message = model.Message
)

// ConnState is the lifecycle state of the realtime connection.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnReconnecting ConnState = "reconnecting"
)

var (
	// ErrNotConnected is returned when sending without a live connection.
	ErrNotConnected = errors.New("not connected")
	// ErrReconnectExhausted is carried by EventConnectionLost.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	// ErrNoConversation is returned when sending with no resolved conversation.
	ErrNoConversation = errors.New("no conversation selected")
	// ErrEmptyMessage is returned when sending neither text nor an image.
	ErrEmptyMessage = errors.New("message is empty")
)

// EventType identifies the type of event.
type EventType string

const (
	EventConnState       EventType = "conn_state"
	EventConnectionLost  EventType = "connection_lost"
	EventHistoryLoaded   EventType = "history_loaded"
	EventOlderLoaded     EventType = "older_loaded"
	EventMessageAppended EventType = "message_appended"
	EventIndexChanged    EventType = "index_changed"
	EventFetchFailed     EventType = "fetch_failed"
	EventNotice          EventType = "notice"
)

// Event is something that happened in the engine.
type Event struct {
	Type      EventType
	PartnerID string
	Data      interface{}
	Timestamp time.Time
}

// StateChangeData accompanies EventConnState.
type StateChangeData struct {
	OldState ConnState
	NewState ConnState
}

// HistoryData accompanies EventHistoryLoaded and EventOlderLoaded.
type HistoryData struct {
	Count   int
	HasMore bool
}

// MessageData accompanies EventMessageAppended.
type MessageData struct {
	Message Message
}

// ErrorData accompanies EventFetchFailed and EventConnectionLost.
type ErrorData struct {
	Error string
}

// NoticeData accompanies EventNotice.
type NoticeData struct {
	Text    string
	IsError bool
}

// MessagePage is one history fetch result, oldest-first.
type MessagePage struct {
	Messages []Message
	HasMore  bool
}

// NewMessagePage wraps a fetched page. A full page is assumed to have more
// history behind it.
func NewMessagePage(msgs []Message, pageSize int) MessagePage {
	return MessagePage{
		Messages: msgs,
		HasMore:  len(msgs) >= pageSize,
	}
}

// Consumer receives every inbound live message.
type Consumer interface {
	Consume(msg Message)
}
