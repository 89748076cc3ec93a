package connection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// tcpTransport is a raw TCP connection to the framed feed.
type tcpTransport struct {
	pipe

	cfg    TransportConfig
	logger *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

// NewTCPTransport creates a transport dialing cfg.Address.
func NewTCPTransport(cfg TransportConfig, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadBufferSize < 1 {
		cfg.ReadBufferSize = DefaultTransportConfig().ReadBufferSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultTransportConfig().PollInterval
	}
	return &tcpTransport{
		pipe:   newPipe(cfg),
		cfg:    cfg,
		logger: logger,
	}
}

// Connect dials the feed.
func (t *tcpTransport) Connect(ctx context.Context) error {
	if t.closed.Load() {
		return ErrAlreadyClosed
	}

	dialer := net.Dialer{Timeout: t.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.cfg.Address)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	t.conn = conn
	t.connected.Store(true)
	t.mu.Unlock()

	go t.readLoop(conn)
	go t.writeLoop(func(data []byte) error {
		if t.cfg.WriteTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
		}
		_, err := conn.Write(data)
		return err
	})

	t.logger.Debug("tcp connected", "addr", t.cfg.Address)
	return nil
}

// Close closes the socket.
func (t *tcpTransport) Close() error {
	if !t.shutdown() {
		return nil
	}
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// readLoop reads chunks with a short deadline so shutdown is noticed even
// while the feed is idle.
func (t *tcpTransport) readLoop(conn net.Conn) {
	buf := make([]byte, t.cfg.ReadBufferSize)

	for {
		select {
		case <-t.done:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(t.cfg.PollInterval))
		n, err := conn.Read(buf)
		receivedAt := time.Now()

		if n > 0 {
			if !t.deliver(bytes.Clone(buf[:n]), receivedAt) {
				return
			}
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			t.fail(fmt.Errorf("read: %w", err))
			return
		}
	}
}
