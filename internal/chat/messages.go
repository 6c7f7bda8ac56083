package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/moji/internal/constants"
	"github.com/xonecas/moji/internal/transport"
)

// HistoryFetcher reads conversation history from the service.
type HistoryFetcher interface {
	Messages(ctx context.Context, currentUserID, partnerID string, limit, skip int) ([]Message, error)
	ResolveConversation(ctx context.Context, currentUserID, partnerID string) (string, error)
}

// Sender transmits outbound messages.
type Sender interface {
	Send(ctx context.Context, msg transport.SendMessage) error
}

// View is a point-in-time copy of the open conversation.
type View struct {
	Partner        User
	Messages       []Message
	ConversationID string
	HasMore        bool
	Loading        bool // initial page in flight
	LoadingMore    bool // older page in flight
	Loaded         bool // initial page applied
}

// Selected reports whether a conversation is open.
func (v View) Selected() bool {
	return v.Partner.ID != ""
}

// MessageStore holds the ordered history of the open conversation and merges
// paged fetches with live pushes.
//
// Each selection starts a new generation. Fetch results carry the generation
// they were issued under and are discarded if the selection has moved on.
type MessageStore struct {
	currentUserID string
	history       HistoryFetcher
	sender        Sender
	bus           *EventBus
	pageSize      int

	mu          sync.Mutex
	gen         uint64
	partner     User
	convID      string
	messages    []Message
	ids         map[string]struct{}
	hasMore     bool
	loading     bool
	loadingMore bool
	loaded      bool
}

// NewMessageStore creates an empty store for currentUserID.
func NewMessageStore(currentUserID string, history HistoryFetcher, sender Sender, bus *EventBus, pageSize int) *MessageStore {
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	return &MessageStore{
		currentUserID: currentUserID,
		history:       history,
		sender:        sender,
		bus:           bus,
		pageSize:      pageSize,
		ids:           make(map[string]struct{}),
	}
}

func (s *MessageStore) emit(typ EventType, partnerID string, data interface{}) {
	if s.bus != nil {
		s.bus.Emit(typ, partnerID, data)
	}
}

func (s *MessageStore) resetLocked(partner User) uint64 {
	s.gen++
	s.partner = partner
	s.convID = ""
	s.messages = nil
	s.ids = make(map[string]struct{})
	s.hasMore = true
	s.loading = false
	s.loadingMore = false
	s.loaded = false
	return s.gen
}

// SelectConversation opens partner: the sequence is reset, the newest page is
// fetched and replaces it, and the conversation id is resolved. Reselecting
// the current partner is a full reset.
func (s *MessageStore) SelectConversation(ctx context.Context, partner User) error {
	s.mu.Lock()
	gen := s.resetLocked(partner)
	s.loading = true
	s.mu.Unlock()

	logger := log.With().Str("partner", partner.ID).Logger()

	msgs, err := s.history.Messages(ctx, s.currentUserID, partner.ID, s.pageSize, 0)
	if err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.loading = false
		}
		s.mu.Unlock()
		logger.Error().Err(err).Msg("initial history fetch failed")
		s.emit(EventFetchFailed, partner.ID, ErrorData{Error: err.Error()})
		return fmt.Errorf("load history: %w", err)
	}

	page := NewMessagePage(msgs, s.pageSize)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		logger.Debug().Msg("dropping stale initial page")
		return nil
	}
	// The page replaces the sequence. Live messages that arrived while it was
	// in flight stay at the tail unless the page already has them.
	live := s.messages
	s.messages = make([]Message, 0, len(page.Messages)+len(live))
	s.ids = make(map[string]struct{}, cap(s.messages))
	for _, batch := range [][]Message{page.Messages, live} {
		for _, m := range batch {
			if _, dup := s.ids[m.ID]; dup {
				continue
			}
			s.ids[m.ID] = struct{}{}
			s.messages = append(s.messages, m)
		}
	}
	s.hasMore = page.HasMore
	s.loading = false
	s.loaded = true
	count := len(s.messages)
	s.mu.Unlock()

	logger.Debug().Int("count", count).Bool("has_more", page.HasMore).Msg("history loaded")
	s.emit(EventHistoryLoaded, partner.ID, HistoryData{Count: count, HasMore: page.HasMore})

	if _, err := s.ensureConversation(ctx, gen, partner.ID); err != nil {
		logger.Warn().Err(err).Msg("conversation id unresolved")
	}
	return nil
}

// ensureConversation returns the conversation id for the open view,
// resolving it once per selection.
func (s *MessageStore) ensureConversation(ctx context.Context, gen uint64, partnerID string) (string, error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return "", ErrNoConversation
	}
	if s.convID != "" {
		id := s.convID
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	id, err := s.history.ResolveConversation(ctx, s.currentUserID, partnerID)
	if err != nil {
		return "", fmt.Errorf("resolve conversation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return "", ErrNoConversation
	}
	s.convID = id
	return id, nil
}

// LoadOlder fetches the page preceding everything held and prepends it. It
// does nothing when no conversation is open, the initial page has not been
// applied, history is exhausted, or another LoadOlder is in flight. The
// number of prepended messages is returned.
func (s *MessageStore) LoadOlder(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.partner.ID == "" || !s.loaded || s.loading || !s.hasMore || s.loadingMore {
		s.mu.Unlock()
		return 0, nil
	}
	s.loadingMore = true
	gen := s.gen
	partnerID := s.partner.ID
	skip := len(s.messages)
	s.mu.Unlock()

	logger := log.With().Str("partner", partnerID).Int("skip", skip).Logger()

	msgs, err := s.history.Messages(ctx, s.currentUserID, partnerID, s.pageSize, skip)
	if err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.loadingMore = false
		}
		s.mu.Unlock()
		logger.Error().Err(err).Msg("older history fetch failed")
		s.emit(EventFetchFailed, partnerID, ErrorData{Error: err.Error()})
		return 0, fmt.Errorf("load older history: %w", err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		logger.Debug().Msg("dropping stale older page")
		return 0, nil
	}
	s.loadingMore = false

	if len(msgs) == 0 {
		s.hasMore = false
		s.mu.Unlock()
		s.emit(EventOlderLoaded, partnerID, HistoryData{Count: 0, HasMore: false})
		return 0, nil
	}

	older := make([]Message, 0, len(msgs)+len(s.messages))
	for _, m := range msgs {
		if _, dup := s.ids[m.ID]; dup {
			continue
		}
		s.ids[m.ID] = struct{}{}
		older = append(older, m)
	}
	s.messages = append(older, s.messages...)
	if len(msgs) < s.pageSize {
		s.hasMore = false
	}
	added := len(older)
	hasMore := s.hasMore
	s.mu.Unlock()

	logger.Debug().Int("count", added).Bool("has_more", hasMore).Msg("older history loaded")
	s.emit(EventOlderLoaded, partnerID, HistoryData{Count: added, HasMore: hasMore})
	return added, nil
}

// IngestLive appends msg if it belongs to the open conversation and is not
// already held. It reports whether the sequence changed.
func (s *MessageStore) IngestLive(msg Message) bool {
	s.mu.Lock()
	if !msg.Involves(s.currentUserID, s.partner.ID) {
		s.mu.Unlock()
		return false
	}
	if _, dup := s.ids[msg.ID]; dup {
		s.mu.Unlock()
		log.Debug().Str("id", msg.ID).Msg("duplicate live message")
		return false
	}
	s.ids[msg.ID] = struct{}{}
	s.messages = append(s.messages, msg)
	if s.convID == "" && msg.ConversationID != "" {
		s.convID = msg.ConversationID
	}
	partnerID := s.partner.ID
	s.mu.Unlock()

	s.emit(EventMessageAppended, partnerID, MessageData{Message: msg})
	return true
}

// Consume implements Consumer.
func (s *MessageStore) Consume(msg Message) {
	s.IngestLive(msg)
}

// Send transmits a message to the open conversation. Nothing is added
// locally; the message appears when the server echoes it back.
func (s *MessageStore) Send(ctx context.Context, content, imageURL string) (Message, error) {
	content = strings.TrimSpace(content)
	imageURL = strings.TrimSpace(imageURL)
	if content == "" && imageURL == "" {
		return Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	gen := s.gen
	partnerID := s.partner.ID
	s.mu.Unlock()
	if partnerID == "" {
		return Message{}, ErrNoConversation
	}

	convID, err := s.ensureConversation(ctx, gen, partnerID)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrNoConversation, err)
	}

	out := transport.NewSendMessage(convID, s.currentUserID, partnerID, content, imageURL)
	if err := s.sender.Send(ctx, out); err != nil {
		return Message{}, err
	}

	return Message{
		SenderID:       s.currentUserID,
		ReceiverID:     partnerID,
		ConversationID: convID,
		Content:        content,
		ImageURL:       imageURL,
	}, nil
}

// Snapshot returns a copy of the open conversation.
func (s *MessageStore) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	return View{
		Partner:        s.partner,
		Messages:       msgs,
		ConversationID: s.convID,
		HasMore:        s.hasMore,
		Loading:        s.loading,
		LoadingMore:    s.loadingMore,
		Loaded:         s.loaded,
	}
}
