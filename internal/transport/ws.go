package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/moji/internal/constants"
)

// ErrClosed is returned by Send after the connection has ended.
var ErrClosed = errors.New("connection closed")

// Conn is one live realtime connection.
type Conn interface {
	// Events yields inbound events. It is closed when the connection ends.
	Events() <-chan Event
	// Send writes an outbound event.
	Send(ctx context.Context, ev Event) error
	// Err reports why the connection ended. It is nil while the connection is
	// open and after a deliberate Close.
	Err() error
	Close() error
}

// Dialer opens realtime connections for a user.
type Dialer interface {
	Dial(ctx context.Context, userID string) (Conn, error)
}

// WSDialer dials the websocket endpoint.
type WSDialer struct {
	URL          string
	Token        func() string
	PingInterval time.Duration
	WriteTimeout time.Duration
	Dialer       *websocket.Dialer
}

// Dial connects as userID. The user id is carried as the userId query
// parameter and the bearer token, when present, in the Authorization header.
func (d *WSDialer) Dial(ctx context.Context, userID string) (Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}
	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if d.Token != nil {
		if token := d.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	ws, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Host, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}

	writeTimeout := d.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = constants.DefaultWriteTimeout
	}

	c := newWSConn(ws, userID, d.PingInterval, writeTimeout)
	c.start()
	return c, nil
}

type wsConn struct {
	id     string
	userID string

	ws           *websocket.Conn
	pingInterval time.Duration
	writeTimeout time.Duration

	send   chan []byte
	events chan Event
	done   chan struct{}
	once   sync.Once

	mu  sync.Mutex
	err error
}

func newWSConn(ws *websocket.Conn, userID string, ping, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		id:           uuid.NewString(),
		userID:       userID,
		ws:           ws,
		pingInterval: ping,
		writeTimeout: writeTimeout,
		send:         make(chan []byte, constants.EventStreamBuffer),
		events:       make(chan Event, constants.EventStreamBuffer),
		done:         make(chan struct{}),
	}
}

func (c *wsConn) start() {
	log.Debug().Str("conn", c.id).Str("user", c.userID).Msg("websocket connected")
	go c.readLoop()
	go c.writeLoop()
}

func (c *wsConn) Events() <-chan Event {
	return c.events
}

func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *wsConn) Send(ctx context.Context, ev Event) error {
	frame, err := Encode(ev)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case c.send <- frame:
		return nil
	}
}

func (c *wsConn) Close() error {
	c.shutdown(nil)
	return nil
}

// shutdown ends the connection once. cause is recorded unless the connection
// was already closed deliberately.
func (c *wsConn) shutdown(cause error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = cause
		c.mu.Unlock()

		close(c.done)
		deadline := time.Now().Add(c.writeTimeout)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.ws.Close()

		if cause != nil {
			log.Warn().Err(cause).Str("conn", c.id).Msg("websocket lost")
		} else {
			log.Debug().Str("conn", c.id).Msg("websocket closed")
		}
	})
}

func (c *wsConn) readLoop() {
	defer close(c.events)

	c.ws.SetReadLimit(constants.MaxInboundFrameSize)
	if c.pingInterval > 0 {
		wait := 2 * c.pingInterval
		_ = c.ws.SetReadDeadline(time.Now().Add(wait))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = fmt.Errorf("server closed connection: %w", err)
			}
			c.shutdown(err)
			return
		}

		ev, err := Decode(frame)
		if err != nil {
			if errors.Is(err, ErrUnknownEvent) {
				log.Debug().Err(err).Str("conn", c.id).Msg("ignoring frame")
			} else {
				log.Warn().Err(err).Str("conn", c.id).Msg("dropping malformed frame")
			}
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) writeLoop() {
	var tick <-chan time.Time
	if c.pingInterval > 0 {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.shutdown(fmt.Errorf("write: %w", err))
				return
			}
		case <-tick:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.shutdown(fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}

func (c *wsConn) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
