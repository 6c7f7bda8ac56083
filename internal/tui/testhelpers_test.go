package tui

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xonecas/moji/internal/chat"
	"github.com/xonecas/moji/internal/config"
	"github.com/xonecas/moji/internal/model"
	"github.com/xonecas/moji/internal/transport"
)

// Test constants for consistent terminal dimensions
const (
	TestTerminalWidth  = 90
	TestTerminalHeight = 20
)

var (
	testMe    = chat.User{ID: "u-me", Username: "me", FullName: "Me Myself"}
	testAlice = chat.User{ID: "u-alice", Username: "alice", FullName: "Alice"}
	testBob   = chat.User{ID: "u-bob", Username: "bob"}
)

var ansiStripRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiStripRegex.ReplaceAllString(s, "")
}

// testTime returns a fixed timestamp today at 12:00 local.
func testTime() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.Local)
}

// testHistory builds n short messages between me and partner, oldest first.
func testHistory(partner chat.User, n int) []chat.Message {
	msgs := make([]chat.Message, n)
	for i := range msgs {
		sender, receiver := partner.ID, testMe.ID
		if i%2 == 1 {
			sender, receiver = receiver, sender
		}
		msgs[i] = chat.Message{
			ID:             fmt.Sprintf("%s-%03d", partner.Username, i),
			SenderID:       sender,
			ReceiverID:     receiver,
			ConversationID: "conv-" + partner.ID,
			Content:        fmt.Sprintf("msg %d", i),
			CreatedAt:      model.Timestamp{Time: testTime().Add(time.Duration(i) * time.Minute)},
		}
	}
	return msgs
}

// fakeBackend serves history the way the service pages it: newest page
// first, skip counted from the newest message.
type fakeBackend struct {
	mu       sync.Mutex
	friends  []chat.User
	history  map[string][]chat.Message
	requests []chat.User
	added    []string
	accepted []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		friends: []chat.User{testAlice, testBob},
		history: map[string][]chat.Message{},
	}
}

func (b *fakeBackend) Messages(_ context.Context, _, partnerID string, limit, skip int) ([]chat.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	all := b.history[partnerID]
	end := len(all) - skip
	if end <= 0 {
		return nil, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	return append([]chat.Message(nil), all[start:end]...), nil
}

func (b *fakeBackend) ResolveConversation(_ context.Context, _, partnerID string) (string, error) {
	return "conv-" + partnerID, nil
}

func (b *fakeBackend) Users(context.Context) ([]chat.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]chat.User{testMe}, b.friends...), nil
}

func (b *fakeBackend) ReceivedRequests(context.Context, string) ([]chat.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]chat.User(nil), b.requests...), nil
}

func (b *fakeBackend) SendFriendRequest(_ context.Context, _, receiverID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.added = append(b.added, receiverID)
	return nil
}

func (b *fakeBackend) AcceptFriendRequest(_ context.Context, _, senderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accepted = append(b.accepted, senderID)
	return nil
}

// offlineDialer never connects.
type offlineDialer struct{}

func (offlineDialer) Dial(context.Context, string) (transport.Conn, error) {
	return nil, errors.New("offline")
}

// newTestModel builds a sized model over a fake backend. The friend list is
// loaded; the connection stays down.
func newTestModel(t *testing.T, backend *fakeBackend) Model {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Chat.PageSize = 20
	session := chat.NewSession(chat.SessionDeps{
		API:    backend,
		Dialer: offlineDialer{},
		Config: cfg,
	}, testMe)
	t.Cleanup(session.Close)

	if err := session.RefreshFriends(context.Background()); err != nil {
		t.Fatalf("refresh friends: %v", err)
	}

	m := New(context.Background(), session, session.Bus.Subscribe(), 3)
	return update(t, m, tea.WindowSizeMsg{Width: TestTerminalWidth, Height: TestTerminalHeight})
}

// update feeds msg to m and returns the resulting Model.
func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// updateCmd feeds msg to m and returns the Model and command.
func updateCmd(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// run executes cmd and feeds its message back, the way the runtime would.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return update(t, m, cmd())
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEscape}
)

// openPartner selects the partner at idx and runs the open command.
func openPartner(t *testing.T, m Model, idx int) Model {
	t.Helper()
	m.selectedIdx = idx
	m, cmd := updateCmd(t, m, keyEnter)
	return run(t, m, cmd)
}
