package connection

import (
	"errors"
	"time"

	"github.com/rickgao/benzinga-stream/internal/protocol"
	"github.com/rickgao/benzinga-stream/internal/router"
	"github.com/rickgao/benzinga-stream/internal/session"
	"github.com/rickgao/benzinga-stream/internal/subscription"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no ping)")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrAlreadyStarted   = errors.New("already started")
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrUnknownTransport = errors.New("unknown transport")
)

// Transport kinds
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

// TimestampedMessage wraps raw data with its receive timestamp. For TCP it
// is one read chunk; for WebSocket one message.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time // Local timestamp when the read returned
}

// TransportConfig configures a single TCP or WebSocket transport.
type TransportConfig struct {
	Address        string        // TCP host:port
	URL            string        // WebSocket URL, already carrying the token
	DialTimeout    time.Duration // Bound on dial and WebSocket upgrade
	WriteTimeout   time.Duration // Write deadline for sends
	PollInterval   time.Duration // TCP read deadline granularity
	PingInterval   time.Duration // WebSocket control ping interval
	PingTimeout    time.Duration // Max WebSocket silence before the connection is stale
	ReadBufferSize int           // TCP read chunk size
	SendBufferSize int           // Outbound queue length
	BufferSize     int           // Inbound channel length

	// OnSend is called from the write goroutine after every write.
	OnSend func(err error)
}

// DefaultTransportConfig returns sensible defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout:    10 * time.Second,
		WriteTimeout:   5 * time.Second,
		PollInterval:   time.Second,
		PingInterval:   15 * time.Second,
		PingTimeout:    30 * time.Second,
		ReadBufferSize: 1000,
		SendBufferSize: 64,
		BufferSize:     1000,
	}
}

// Config configures the Connection Manager.
type Config struct {
	Transport  string // TransportTCP or TransportWebSocket
	Address    string // TCP host:port
	URL        string // WebSocket URL without the token
	StreamKind string // Envelope kind carrying news (WebSocket)

	Username string
	APIKey   string

	DialTimeout          time.Duration
	WriteTimeout         time.Duration
	ReconnectBaseDelay   time.Duration // First backoff delay
	ReconnectMaxDelay    time.Duration // Backoff cap
	MinReconnectInterval time.Duration // Minimum time between attempt starts
	PingInterval         time.Duration
	ReadTimeout          time.Duration // Max silence before reconnecting
	PollInterval         time.Duration // Heartbeat and timeout check interval
	ShutdownTimeout      time.Duration // Join window used by Shutdown

	MaxFrameSize      int
	ReadBufferSize    int
	SendBufferSize    int
	MessageBufferSize int

	Mode   subscription.Mode
	Mapper router.Mapper // nil selects model.NewsMapper
}

// DefaultConfig returns sensible defaults for the TCP feed.
func DefaultConfig() Config {
	return Config{
		Transport:            TransportTCP,
		StreamKind:           protocol.DefaultStreamKind,
		DialTimeout:          10 * time.Second,
		WriteTimeout:         5 * time.Second,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    60 * time.Second,
		MinReconnectInterval: 1 * time.Second,
		PingInterval:         15 * time.Second,
		ReadTimeout:          30 * time.Second,
		PollInterval:         1 * time.Second,
		ShutdownTimeout:      10 * time.Second,
		MaxFrameSize:         1 << 20,
		ReadBufferSize:       1000,
		SendBufferSize:       64,
		MessageBufferSize:    1000,
		Mode:                 subscription.ModeOverride,
	}
}

// Stats provides statistics about the connection manager.
type Stats struct {
	State           session.State
	Connected       bool
	ConnectAttempts int64
	Sessions        int64 // Attempts that reached Connected
	Disconnects     int64
	Messages        int64 // Classified messages handled
	PingsSent       int64
	SendFailures    int64
	LastError       string
	Dispatch        router.DispatchStats
}
