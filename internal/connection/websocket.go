package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport is a WebSocket connection to the enveloped feed.
type wsTransport struct {
	pipe

	cfg    TransportConfig
	header http.Header
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	// Unix nanos of the last message, ping or pong from the server
	lastActivity atomic.Int64
}

// NewWSTransport creates a transport dialing cfg.URL with the given
// handshake headers.
func NewWSTransport(cfg TransportConfig, header http.Header, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultTransportConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &wsTransport{
		pipe:   newPipe(cfg),
		cfg:    cfg,
		header: header.Clone(),
		logger: logger,
	}
}

// Connect establishes the WebSocket connection.
func (c *wsTransport) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrAlreadyClosed
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.DialTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, c.header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket handshake: %s: %w", resp.Status, err)
		}
		return err
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.connected.Store(true)
	c.mu.Unlock()
	c.touch()

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		c.touch()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	// Server responds to our ping
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readLoop(conn)
	go c.heartbeatLoop(conn)
	go c.writeLoop(func(data []byte) error {
		if c.cfg.WriteTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	})

	c.logger.Debug("websocket connected", "host", conn.RemoteAddr().String())
	return nil
}

// Close gracefully closes the connection.
func (c *wsTransport) Close() error {
	if !c.shutdown() {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

func (c *wsTransport) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// readLoop reads messages and hands them to the consumer.
func (c *wsTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = fmt.Errorf("server closed: %w", err)
			}
			c.fail(err)
			return
		}
		c.touch()

		if !c.deliver(data, receivedAt) {
			return
		}
	}
}

// heartbeatLoop pings the server and detects stale connections.
func (c *wsTransport) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			last := time.Unix(0, c.lastActivity.Load())
			if time.Since(last) > c.cfg.PingTimeout {
				c.logger.Warn("no ping received, connection stale",
					"last_activity", last,
					"timeout", c.cfg.PingTimeout,
				)
				c.fail(ErrStaleConnection)
				conn.Close()
				return
			}
		}
	}
}
