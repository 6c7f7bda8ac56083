package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/moji/internal/config"
	"github.com/xonecas/moji/internal/store"
	"github.com/xonecas/moji/internal/transport"
)

// Backend is the REST surface a session needs.
type Backend interface {
	HistoryFetcher
	Users(ctx context.Context) ([]User, error)
	ReceivedRequests(ctx context.Context, currentUserID string) ([]User, error)
	SendFriendRequest(ctx context.Context, currentUserID, receiverID string) error
	AcceptFriendRequest(ctx context.Context, currentUserID, senderID string) error
}

// SessionDeps are the collaborators of a Session.
type SessionDeps struct {
	API    Backend
	Dialer transport.Dialer
	Store  *store.Store // optional; needed for Logout
	Config *config.Config
	Bus    *EventBus
}

// Session is the engine for one signed-in user. It wires the connection,
// the open conversation and the partner list together.
type Session struct {
	Profile  User
	Bus      *EventBus
	Conn     *ConnectionManager
	Messages *MessageStore
	Index    *ConversationIndex

	api   Backend
	store *store.Store
}

// NewSession builds the engine for profile. Inbound messages reach both the
// message store and the partner index.
func NewSession(deps SessionDeps, profile User) *Session {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	bus := deps.Bus
	if bus == nil {
		bus = NewEventBus(0)
	}

	opts := ConnectionOptions{
		ReconnectAttempts: cfg.Realtime.ReconnectAttempts,
		ReconnectDelay:    cfg.Realtime.ReconnectDelay.Duration,
		ReconnectMaxDelay: cfg.Realtime.ReconnectMaxDelay.Duration,
	}

	conn := NewConnectionManager(deps.Dialer, bus, opts)
	messages := NewMessageStore(profile.ID, deps.API, conn, bus, cfg.Chat.PageSize)
	index := NewConversationIndex(profile.ID, bus)
	conn.AddConsumer(messages)
	conn.AddConsumer(index)

	return &Session{
		Profile:  profile,
		Bus:      bus,
		Conn:     conn,
		Messages: messages,
		Index:    index,
		api:      deps.API,
		store:    deps.Store,
	}
}

// Start loads the partner list and connects. Both are attempted; a failed
// connect leaves the session usable in the disconnected state.
func (s *Session) Start(ctx context.Context) error {
	var errs []error
	if err := s.RefreshFriends(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.Connect(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Connect (re)opens the realtime connection for the profile.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.Conn.Connect(ctx, s.Profile.ID); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Close disconnects and closes the bus.
func (s *Session) Close() {
	s.Conn.Disconnect()
	s.Bus.Close()
}

// Logout closes the session and forgets the stored credential.
func (s *Session) Logout() error {
	s.Close()
	if s.store == nil {
		return nil
	}
	return s.store.ClearSession()
}

// Open selects partner in the message store.
func (s *Session) Open(ctx context.Context, partner User) error {
	return s.Messages.SelectConversation(ctx, partner)
}

// Send transmits to the open conversation and promotes the partner.
func (s *Session) Send(ctx context.Context, content, imageURL string) error {
	msg, err := s.Messages.Send(ctx, content, imageURL)
	if err != nil {
		return err
	}
	s.Index.Touch(msg)
	return nil
}

// RefreshFriends reloads the partner list.
func (s *Session) RefreshFriends(ctx context.Context) error {
	users, err := s.api.Users(ctx)
	if err != nil {
		s.notice(fmt.Sprintf("Could not load friends: %v", err), true)
		return fmt.Errorf("load friends: %w", err)
	}
	s.Index.Replace(users)
	log.Debug().Int("count", len(users)).Msg("friends loaded")
	return nil
}

// FriendRequests lists pending incoming friend requests.
func (s *Session) FriendRequests(ctx context.Context) ([]User, error) {
	users, err := s.api.ReceivedRequests(ctx, s.Profile.ID)
	if err != nil {
		s.notice(fmt.Sprintf("Could not load friend requests: %v", err), true)
		return nil, fmt.Errorf("load friend requests: %w", err)
	}
	return users, nil
}

// SendFriendRequest asks receiverID to become a friend.
func (s *Session) SendFriendRequest(ctx context.Context, receiverID string) error {
	if receiverID == "" || receiverID == s.Profile.ID {
		err := errors.New("invalid friend id")
		s.notice(err.Error(), true)
		return err
	}
	if err := s.api.SendFriendRequest(ctx, s.Profile.ID, receiverID); err != nil {
		s.notice(fmt.Sprintf("Friend request failed: %v", err), true)
		return fmt.Errorf("send friend request: %w", err)
	}
	s.notice("Friend request sent", false)
	return nil
}

// AcceptFriendRequest accepts senderID's request and reloads the partner list.
func (s *Session) AcceptFriendRequest(ctx context.Context, senderID string) error {
	if err := s.api.AcceptFriendRequest(ctx, s.Profile.ID, senderID); err != nil {
		s.notice(fmt.Sprintf("Accept failed: %v", err), true)
		return fmt.Errorf("accept friend request: %w", err)
	}
	s.notice("Friend request accepted", false)
	return s.RefreshFriends(ctx)
}

func (s *Session) notice(text string, isError bool) {
	s.Bus.Emit(EventNotice, "", NoticeData{Text: text, IsError: isError})
}
