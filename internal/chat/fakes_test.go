package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/xonecas/moji/internal/model"
	"github.com/xonecas/moji/internal/transport"
)

const (
	testMe    = "me"
	testAlice = "alice"
	testBob   = "bob"
)

// makeHistory builds n messages between testMe and partner, oldest first.
func makeHistory(partner string, n int) []Message {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	out := make([]Message, n)
	for i := range out {
		sender, receiver := partner, testMe
		if i%2 == 1 {
			sender, receiver = testMe, partner
		}
		out[i] = Message{
			ID:         fmt.Sprintf("%s-%03d", partner, i),
			SenderID:   sender,
			ReceiverID: receiver,
			Content:    fmt.Sprintf("message %d", i),
			CreatedAt:  model.NewTimestamp(base.Add(time.Duration(i) * time.Minute)),
		}
	}
	return out
}

type fetchCall struct {
	partner     string
	limit, skip int
}

// fakeHistory serves pages the way the service does: skip counts back from
// the newest message and each page is oldest-first.
type fakeHistory struct {
	mu        sync.Mutex
	byPartner map[string][]Message
	calls     []fetchCall
	resolves  int
	fetchErr  error
	gate      chan struct{} // when set, fetches block until it is closed
	started   chan struct{} // receives once per fetch before blocking
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{byPartner: make(map[string][]Message)}
}

func (f *fakeHistory) Messages(ctx context.Context, currentUserID, partnerID string, limit, skip int) ([]Message, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{partner: partnerID, limit: limit, skip: skip})
	gate, started, fetchErr := f.gate, f.started, f.fetchErr
	all := f.byPartner[partnerID]
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}

	end := len(all) - skip
	if end <= 0 {
		return []Message{}, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	page := make([]Message, end-start)
	copy(page, all[start:end])
	return page, nil
}

func (f *fakeHistory) ResolveConversation(ctx context.Context, currentUserID, partnerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves++
	return "conv-" + partnerID, nil
}

func (f *fakeHistory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeHistory) lastCall() fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// fakeBackend adds the friend graph to fakeHistory.
type fakeBackend struct {
	*fakeHistory
	users     []User
	usersErr  error
	requests  []User
	sentTo    []string
	accepted  []string
	friendErr error
}

func (b *fakeBackend) Users(ctx context.Context) ([]User, error) {
	return b.users, b.usersErr
}

func (b *fakeBackend) ReceivedRequests(ctx context.Context, currentUserID string) ([]User, error) {
	return b.requests, b.friendErr
}

func (b *fakeBackend) SendFriendRequest(ctx context.Context, currentUserID, receiverID string) error {
	if b.friendErr != nil {
		return b.friendErr
	}
	b.sentTo = append(b.sentTo, receiverID)
	return nil
}

func (b *fakeBackend) AcceptFriendRequest(ctx context.Context, currentUserID, senderID string) error {
	if b.friendErr != nil {
		return b.friendErr
	}
	b.accepted = append(b.accepted, senderID)
	return nil
}

// recordingSender captures outbound messages.
type recordingSender struct {
	mu   sync.Mutex
	sent []transport.SendMessage
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg transport.SendMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// fakeConn is an in-memory transport connection.
type fakeConn struct {
	id     string
	events chan transport.Event

	mu     sync.Mutex
	sent   []transport.Event
	err    error
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		id:     uuid.NewString(),
		events: make(chan transport.Event, 16),
	}
}

func (c *fakeConn) Events() <-chan transport.Event { return c.events }

func (c *fakeConn) Send(ctx context.Context, ev transport.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	c.sent = append(c.sent, ev)
	return nil
}

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) Close() error {
	c.end(nil)
	return nil
}

// drop simulates transport loss.
func (c *fakeConn) drop(err error) {
	c.end(err)
}

func (c *fakeConn) end(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	close(c.events)
}

func (c *fakeConn) push(msg Message) {
	c.events <- transport.ReceiveEvent(msg)
}

func (c *fakeConn) sentEvents() []transport.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]transport.Event(nil), c.sent...)
}

// fakeDialer hands out fakeConns. The first failFirst dials fail.
type fakeDialer struct {
	mu        sync.Mutex
	conns     []*fakeConn
	failFirst int
	failAll   bool
	dials     int
	gate      chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context, userID string) (transport.Conn, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll || n <= d.failFirst {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) live() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*fakeConn
	for _, c := range d.conns {
		c.mu.Lock()
		if !c.closed {
			out = append(out, c)
		}
		c.mu.Unlock()
	}
	return out
}

func (d *fakeDialer) latest() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// waitEvent reads from ch until an event of typ arrives.
func waitEvent(t *testing.T, ch <-chan Event, typ EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("bus closed waiting for %s", typ)
			}
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}
