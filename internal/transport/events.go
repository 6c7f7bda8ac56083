// Package transport carries realtime chat events over a websocket.
//
// Frames are JSON envelopes {"event": <name>, "data": <payload>}. Three
// events are understood: "setup" and "send_message" go to the server,
// "receive_message" comes back. Frames naming any other event are ignored.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xonecas/moji/internal/model"
)

// Kind names an event on the wire.
type Kind string

const (
	KindSetup          Kind = "setup"
	KindSendMessage    Kind = "send_message"
	KindReceiveMessage Kind = "receive_message"
)

// Message content types.
const (
	TypeText  = "text"
	TypeImage = "image"
)

// ErrUnknownEvent is returned by Decode for frames naming an event this
// client does not handle.
var ErrUnknownEvent = errors.New("unknown event")

// Setup binds the connection to a user after connect. On the wire its data
// is the bare user id string.
type Setup struct {
	UserID string `json:"user_id" validate:"required"`
}

func (s Setup) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.UserID)
}

func (s *Setup) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &s.UserID)
}

// SendMessage is an outbound chat message.
type SendMessage struct {
	ConversationID string  `json:"conversation_id" validate:"required"`
	SenderID       string  `json:"sender_id" validate:"required"`
	ReceiverID     string  `json:"receiver_id" validate:"required,nefield=SenderID"`
	Content        string  `json:"content" validate:"required_if=Type text,max=2000"`
	ImageURL       *string `json:"image_url" validate:"omitempty,url"`
	Type           string  `json:"type" validate:"oneof=text image"`
}

// NewSendMessage builds a send_message payload. The type is derived from
// whether an image is attached.
func NewSendMessage(conversationID, senderID, receiverID, content, imageURL string) SendMessage {
	msg := SendMessage{
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		Type:           TypeText,
	}
	if imageURL != "" {
		msg.ImageURL = &imageURL
		msg.Type = TypeImage
	}
	return msg
}

// ReceiveMessage is an inbound chat message addressed to or echoed to the
// connected user.
type ReceiveMessage struct {
	Message model.Message
}

// Event is one realtime event. Exactly one payload field is set, matching
// Kind.
type Event struct {
	Kind    Kind
	Setup   *Setup
	Send    *SendMessage
	Receive *ReceiveMessage
}

// SetupEvent wraps a setup payload.
func SetupEvent(userID string) Event {
	return Event{Kind: KindSetup, Setup: &Setup{UserID: userID}}
}

// SendEvent wraps a send_message payload.
func SendEvent(msg SendMessage) Event {
	return Event{Kind: KindSendMessage, Send: &msg}
}

// ReceiveEvent wraps a receive_message payload.
func ReceiveEvent(msg model.Message) Event {
	return Event{Kind: KindReceiveMessage, Receive: &ReceiveMessage{Message: msg}}
}

type envelope struct {
	Event Kind            `json:"event"`
	Data  json.RawMessage `json:"data"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json field names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// payload returns the populated payload for ev's kind.
func (ev Event) payload() (interface{}, error) {
	switch ev.Kind {
	case KindSetup:
		if ev.Setup != nil {
			return ev.Setup, nil
		}
	case KindSendMessage:
		if ev.Send != nil {
			return ev.Send, nil
		}
	case KindReceiveMessage:
		if ev.Receive != nil {
			return &ev.Receive.Message, nil
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}
	return nil, fmt.Errorf("event %q has no payload", ev.Kind)
}

// Validate checks the event payload.
func (ev Event) Validate() error {
	p, err := ev.payload()
	if err != nil {
		return err
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid %s: %w", ev.Kind, err)
	}
	return nil
}

// Encode validates ev and renders it as a frame.
func Encode(ev Event) ([]byte, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	p, _ := ev.payload()
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ev.Kind, err)
	}
	return json.Marshal(envelope{Event: ev.Kind, Data: data})
}

// Decode parses a frame. Frames for events this client does not handle
// yield ErrUnknownEvent.
func Decode(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Event{}, fmt.Errorf("decode envelope: %w", err)
	}

	var ev Event
	switch env.Event {
	case KindSetup:
		var p Setup
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		ev = Event{Kind: KindSetup, Setup: &p}
	case KindSendMessage:
		var p SendMessage
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		ev = Event{Kind: KindSendMessage, Send: &p}
	case KindReceiveMessage:
		var p model.Message
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		ev = Event{Kind: KindReceiveMessage, Receive: &ReceiveMessage{Message: p}}
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}
