package connection

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Transport is a single connection to the feed. A Transport is used for
// one connection attempt; the manager creates a fresh one on every
// reconnect.
type Transport interface {
	// Connect establishes the connection.
	Connect(ctx context.Context) error

	// Close closes the connection. It is safe to call more than once.
	Close() error

	// Send queues data for the write goroutine and returns without waiting
	// for the write. The outcome is reported through TransportConfig.OnSend.
	Send(data []byte) error

	// Messages returns a channel of received chunks or messages, each with
	// a local receive timestamp.
	Messages() <-chan TimestampedMessage

	// Errors returns a channel carrying the error that ended the connection.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// pipe holds the channels and flags shared by both transports.
type pipe struct {
	messages chan TimestampedMessage
	errors   chan error
	outbound chan []byte
	done     chan struct{}
	onSend   func(error)

	connected atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

func newPipe(cfg TransportConfig) pipe {
	return pipe{
		messages: make(chan TimestampedMessage, max(cfg.BufferSize, 1)),
		errors:   make(chan error, 1),
		outbound: make(chan []byte, max(cfg.SendBufferSize, 1)),
		done:     make(chan struct{}),
		onSend:   cfg.OnSend,
	}
}

// Messages returns the messages channel.
func (p *pipe) Messages() <-chan TimestampedMessage {
	return p.messages
}

// Errors returns the errors channel.
func (p *pipe) Errors() <-chan error {
	return p.errors
}

// IsConnected returns the current connection state.
func (p *pipe) IsConnected() bool {
	return p.connected.Load()
}

// Send queues data without blocking.
func (p *pipe) Send(data []byte) error {
	if !p.connected.Load() {
		return ErrNotConnected
	}
	select {
	case p.outbound <- data:
		return nil
	case <-p.done:
		return ErrNotConnected
	default:
		return ErrSendBufferFull
	}
}

// deliver hands a received chunk to the consumer. It blocks until the
// consumer takes it so no bytes are lost, and returns false once the pipe
// is shut down.
func (p *pipe) deliver(data []byte, at time.Time) bool {
	select {
	case p.messages <- TimestampedMessage{Data: data, ReceivedAt: at}:
		return true
	case <-p.done:
		return false
	}
}

// fail records the error that ended the connection. Errors after shutdown
// are the result of Close and are dropped.
func (p *pipe) fail(err error) {
	p.connected.Store(false)
	if p.closed.Load() {
		return
	}
	select {
	case p.errors <- err:
	default:
	}
}

// shutdown stops the pipe goroutines. It reports true on the first call.
func (p *pipe) shutdown() bool {
	first := false
	p.closeOnce.Do(func() {
		first = true
		p.closed.Store(true)
		p.connected.Store(false)
		close(p.done)
	})
	return first
}

// writeLoop drains the outbound queue through write.
func (p *pipe) writeLoop(write func([]byte) error) {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.outbound:
			err := write(data)
			if p.onSend != nil {
				p.onSend(err)
			}
			if err != nil {
				p.fail(err)
				return
			}
		}
	}
}
