package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/moji/internal/constants"
	"github.com/xonecas/moji/internal/transport"
)

// ConnectionOptions tunes reconnection after transport loss.
type ConnectionOptions struct {
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration
}

// DefaultConnectionOptions returns the stock reconnect budget.
func DefaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		ReconnectAttempts: constants.DefaultReconnectAttempts,
		ReconnectDelay:    constants.DefaultReconnectDelay,
		ReconnectMaxDelay: constants.DefaultReconnectMaxDelay,
	}
}

// backoff returns the wait before reconnect attempt n (1-based).
func (o ConnectionOptions) backoff(n int) time.Duration {
	d := o.ReconnectDelay
	for i := 1; i < n; i++ {
		d *= 2
		if o.ReconnectMaxDelay > 0 && d >= o.ReconnectMaxDelay {
			return o.ReconnectMaxDelay
		}
	}
	return d
}

// ConnectionManager owns the single realtime connection of a session. Every
// inbound message is handed to all registered consumers.
type ConnectionManager struct {
	dialer transport.Dialer
	bus    *EventBus
	opts   ConnectionOptions

	mu        sync.Mutex
	state     ConnState
	userID    string
	conn      transport.Conn
	epoch     uint64 // bumped on every fresh connect and on disconnect
	cancel    context.CancelFunc
	consumers []Consumer
}

// NewConnectionManager creates a disconnected manager.
func NewConnectionManager(dialer transport.Dialer, bus *EventBus, opts ConnectionOptions) *ConnectionManager {
	return &ConnectionManager{
		dialer: dialer,
		bus:    bus,
		opts:   opts,
		state:  ConnDisconnected,
	}
}

// AddConsumer registers c for inbound messages.
func (m *ConnectionManager) AddConsumer(c Consumer) {
	m.mu.Lock()
	m.consumers = append(m.consumers, c)
	m.mu.Unlock()
}

// State returns the current connection state.
func (m *ConnectionManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// UserID returns the user the connection is bound to, if any.
func (m *ConnectionManager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// setStateLocked records a transition and returns the publish to run once the
// lock is released.
func (m *ConnectionManager) setStateLocked(next ConnState) func() {
	prev := m.state
	if prev == next {
		return func() {}
	}
	m.state = next
	return func() {
		log.Debug().Str("from", string(prev)).Str("to", string(next)).Msg("connection state")
		if m.bus != nil {
			m.bus.Emit(EventConnState, "", StateChangeData{OldState: prev, NewState: next})
		}
	}
}

// Connect opens the connection for userID and sends the setup handshake.
// It is a no-op while already connecting or connected as userID, and while a
// reconnect loop for userID is running. Connecting as another user tears the
// existing connection down first.
func (m *ConnectionManager) Connect(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("connect: empty user id")
	}

	m.mu.Lock()
	if m.userID == userID && m.state != ConnDisconnected {
		m.mu.Unlock()
		return nil
	}
	var notify []func()
	if m.state != ConnDisconnected {
		notify = append(notify, m.teardownLocked())
	}
	m.epoch++
	epoch := m.epoch
	m.userID = userID
	notify = append(notify, m.setStateLocked(ConnConnecting))
	m.mu.Unlock()
	for _, fn := range notify {
		fn()
	}

	conn, err := m.open(ctx, userID)

	m.mu.Lock()
	if m.epoch != epoch {
		// Disconnected or replaced while dialing.
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		if err != nil {
			return err
		}
		return ErrNotConnected
	}
	if err != nil {
		done := m.setStateLocked(ConnDisconnected)
		m.mu.Unlock()
		done()
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.conn = conn
	m.cancel = cancel
	done := m.setStateLocked(ConnConnected)
	m.mu.Unlock()
	done()

	log.Info().Str("user", userID).Msg("realtime connected")
	go m.run(loopCtx, epoch, userID, conn)
	return nil
}

// open dials and performs the handshake.
func (m *ConnectionManager) open(ctx context.Context, userID string) (transport.Conn, error) {
	conn, err := m.dialer.Dial(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if err := conn.Send(ctx, transport.SetupEvent(userID)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("setup handshake: %w", err)
	}
	return conn, nil
}

// Disconnect tears the connection down and stops any reconnect loop. It is
// safe to call when already disconnected.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	m.epoch++
	done := m.teardownLocked()
	m.userID = ""
	m.mu.Unlock()
	done()
}

func (m *ConnectionManager) teardownLocked() func() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	return m.setStateLocked(ConnDisconnected)
}

// Send transmits an outbound message. Without a live connection the payload
// is dropped and ErrNotConnected is returned.
func (m *ConnectionManager) Send(ctx context.Context, msg transport.SendMessage) error {
	m.mu.Lock()
	conn := m.conn
	live := m.state == ConnConnected && conn != nil
	m.mu.Unlock()

	if !live {
		return ErrNotConnected
	}
	err := conn.Send(ctx, transport.SendEvent(msg))
	if errors.Is(err, transport.ErrClosed) {
		return ErrNotConnected
	}
	return err
}

// run pumps inbound events until the connection ends, then reconnects within
// the retry budget. It exits when ctx is cancelled or the budget is spent.
func (m *ConnectionManager) run(ctx context.Context, epoch uint64, userID string, conn transport.Conn) {
	for {
		m.pump(conn)
		if ctx.Err() != nil {
			return
		}

		cause := conn.Err()
		log.Warn().Err(cause).Str("user", userID).Msg("realtime connection lost")

		conn = m.reconnect(ctx, epoch, userID, cause)
		if conn == nil {
			return
		}
	}
}

func (m *ConnectionManager) pump(conn transport.Conn) {
	for ev := range conn.Events() {
		if ev.Kind != transport.KindReceiveMessage || ev.Receive == nil {
			continue
		}
		m.mu.Lock()
		consumers := append([]Consumer(nil), m.consumers...)
		m.mu.Unlock()

		for _, c := range consumers {
			c.Consume(ev.Receive.Message)
		}
	}
}

// reconnect retries with exponential backoff. It returns the new connection,
// or nil when the loop was stopped or the budget ran out.
func (m *ConnectionManager) reconnect(ctx context.Context, epoch uint64, userID string, cause error) transport.Conn {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return nil
	}
	m.conn = nil
	done := m.setStateLocked(ConnReconnecting)
	m.mu.Unlock()
	done()

	lastErr := cause
	for attempt := 1; attempt <= m.opts.ReconnectAttempts; attempt++ {
		timer := time.NewTimer(m.opts.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := m.open(ctx, userID)
		if err != nil {
			lastErr = err
			log.Debug().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			continue
		}

		m.mu.Lock()
		if m.epoch != epoch {
			m.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		m.conn = conn
		done := m.setStateLocked(ConnConnected)
		m.mu.Unlock()
		done()

		log.Info().Int("attempt", attempt).Str("user", userID).Msg("realtime reconnected")
		return conn
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	done = m.setStateLocked(ConnDisconnected)
	m.mu.Unlock()
	done()

	err := ErrReconnectExhausted
	if lastErr != nil {
		err = fmt.Errorf("%w: %v", ErrReconnectExhausted, lastErr)
	}
	log.Error().Err(err).Str("user", userID).Msg("realtime connection lost")
	if m.bus != nil {
		m.bus.Emit(EventConnectionLost, "", ErrorData{Error: err.Error()})
	}
	return nil
}
