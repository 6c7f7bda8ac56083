package constants

import "time"

// DefaultPageSize is the number of messages requested per history fetch.
const DefaultPageSize = 20

// ScrollLoadThreshold is how close to the top of the chat pane (in lines) the
// reader must scroll before older history is requested.
const ScrollLoadThreshold = 3

// DefaultReconnectAttempts bounds automatic reconnection after transport loss.
const DefaultReconnectAttempts = 5

// DefaultReconnectDelay is the first backoff step between reconnect attempts.
const DefaultReconnectDelay = 1 * time.Second

// DefaultReconnectMaxDelay caps the backoff between reconnect attempts.
const DefaultReconnectMaxDelay = 5 * time.Second

// DefaultPingInterval is how often the websocket keepalive ping is sent.
const DefaultPingInterval = 25 * time.Second

// DefaultWriteTimeout bounds a single websocket frame write.
const DefaultWriteTimeout = 10 * time.Second

// DefaultHTTPTimeout bounds a single REST request.
const DefaultHTTPTimeout = 15 * time.Second

// MaxInboundFrameSize limits a single inbound websocket frame.
const MaxInboundFrameSize = 64 * 1024

// EventStreamBuffer is the buffer of a connection's inbound event channel.
const EventStreamBuffer = 64

// MinEventBusBufferSize is the minimum buffer per subscriber channel.
const MinEventBusBufferSize = 256

// MaxMessageLength limits the composer input.
const MaxMessageLength = 2000

// NoticeDisplayDuration is how long a transient notice stays in the status bar.
const NoticeDisplayDuration = 4 * time.Second

// MessageTimeFormat renders message timestamps in the chat pane.
const MessageTimeFormat = "15:04"
