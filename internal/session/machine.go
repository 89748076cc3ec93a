// Package session implements the connection state machine for one
// Benzinga stream client.
//
// The Machine is pure: it consumes classified messages, transport events
// and clock ticks, and returns the frames to send and the payloads to
// dispatch. The connection manager owns the socket and does the I/O.
//
//	Disconnected -> Connecting -> AwaitingReady -> Authenticating -> Connected
//	      ^                                                            |
//	      +------------------- failure / server close ------------------+
//
// Bad credentials halt the machine: Reconnect is refused until an explicit
// Start.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/benzinga-stream/internal/heartbeat"
	"github.com/rickgao/benzinga-stream/internal/protocol"
)

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	AwaitingReady
	Authenticating
	Connected
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case AwaitingReady:
		return "awaiting_ready"
	case Authenticating:
		return "authenticating"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Errors
var (
	ErrBadCredentials      = errors.New("credentials rejected")
	ErrGoodbye             = errors.New("server closed the session")
	ErrDuplicateConnection = errors.New("duplicate connection for key")
	ErrServerError         = errors.New("server error")
	ErrUnknownCommand      = errors.New("server did not recognize command")
	ErrProtocolViolation   = errors.New("protocol violation")
	ErrHalted              = errors.New("session halted")
	ErrClosed              = errors.New("session closed")
	ErrInvalidTransition   = errors.New("invalid state transition")
)

// IsFatal reports whether err must stop the reconnect loop.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBadCredentials)
}

// Config configures a Machine.
type Config struct {
	Username string
	APIKey   string

	// Handshake enables the READY -> AUTH -> CONNECTED exchange. Without it
	// an opened transport is immediately Connected.
	Handshake bool

	// Heartbeat enables application-level PING/PONG and the receive timeout.
	Heartbeat bool

	HeartbeatConfig heartbeat.Config
}

// Output carries the side effects of a transition.
type Output struct {
	Frames     [][]byte // Frames to send, in order
	Payload    string   // Stream event body to dispatch
	HasPayload bool
}

// Machine is the state machine for one client. It is owned by the
// connection worker and is not safe for concurrent use.
type Machine struct {
	cfg     Config
	state   State
	monitor *heartbeat.Monitor

	halted   error
	shutdown bool
}

// New creates a Machine in the Disconnected state.
func New(cfg Config) *Machine {
	return &Machine{
		cfg:     cfg,
		state:   Disconnected,
		monitor: heartbeat.New(cfg.HeartbeatConfig),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Authenticated reports whether the session is Connected.
func (m *Machine) Authenticated() bool {
	return m.state == Connected
}

// Halted returns the fatal error that stopped the machine, if any.
func (m *Machine) Halted() error {
	return m.halted
}

// Start is an explicit fresh start. It clears a previous credential halt.
func (m *Machine) Start() error {
	if m.shutdown {
		return ErrClosed
	}
	if m.state != Disconnected {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, m.state)
	}
	m.halted = nil
	m.state = Connecting
	return nil
}

// Reconnect is the automatic retry transition. It is refused after a
// credential halt or shutdown.
func (m *Machine) Reconnect() error {
	if m.shutdown {
		return ErrClosed
	}
	if m.halted != nil {
		return fmt.Errorf("%w: %w", ErrHalted, m.halted)
	}
	if m.state != Disconnected {
		return fmt.Errorf("%w: reconnect from %s", ErrInvalidTransition, m.state)
	}
	m.state = Connecting
	return nil
}

// Opened records that the transport is up. Per-connection heartbeat state
// starts fresh.
func (m *Machine) Opened(now time.Time) (Output, error) {
	if m.state != Connecting {
		return Output{}, fmt.Errorf("%w: transport opened in %s", ErrInvalidTransition, m.state)
	}
	m.monitor.Reset(now)
	if m.cfg.Handshake {
		m.state = AwaitingReady
	} else {
		m.state = Connected
	}
	return Output{}, nil
}

// Failed records a transport or decoding failure and returns err.
func (m *Machine) Failed(err error) error {
	if m.state != Disconnected {
		m.state = Disconnected
	}
	return err
}

// Handle applies one server message. A non-nil error means the session
// has ended and the state is Disconnected; IsFatal tells whether to retry.
func (m *Machine) Handle(msg protocol.Message, now time.Time) (Output, error) {
	switch m.state {
	case AwaitingReady, Authenticating, Connected:
	case Closing:
		return Output{}, nil
	default:
		return Output{}, m.violation(msg)
	}

	m.monitor.Received(now)

	switch msg.Kind {
	case protocol.KindBadKey, protocol.KindBadKeyFormat:
		m.halted = fmt.Errorf("%w: %s", ErrBadCredentials, msg.Kind)
		m.state = Disconnected
		return Output{}, m.halted

	case protocol.KindGoodbye:
		return Output{}, m.disconnect(ErrGoodbye)

	case protocol.KindDuplicateConnection:
		return Output{}, m.disconnect(ErrDuplicateConnection)

	case protocol.KindUnknownError:
		return Output{}, m.disconnect(fmt.Errorf("%w: %s", ErrServerError, msg.Body))

	case protocol.KindUnknownCommand:
		return Output{}, m.disconnect(ErrUnknownCommand)

	case protocol.KindReady:
		switch m.state {
		case AwaitingReady:
			m.state = Authenticating
			return Output{Frames: [][]byte{protocol.EncodeAuth(m.cfg.Username, m.cfg.APIKey)}}, nil
		case Authenticating:
			return Output{}, nil
		}

	case protocol.KindConnectionAck:
		switch m.state {
		case Authenticating:
			m.state = Connected
			return Output{}, nil
		case Connected:
			return Output{}, nil
		}

	case protocol.KindPong:
		if m.state == Connected {
			return Output{}, m.pong(msg.Body)
		}

	case protocol.KindStreamEvent:
		if m.state == Connected {
			return Output{Payload: msg.Body, HasPayload: true}, nil
		}
	}

	return Output{}, m.violation(msg)
}

func (m *Machine) pong(body string) error {
	if !m.cfg.Heartbeat {
		return nil
	}
	token, err := protocol.PongToken(body)
	if err != nil {
		return m.disconnect(fmt.Errorf("%w: %w", ErrProtocolViolation, err))
	}
	if err := m.monitor.Pong(token); err != nil {
		return m.disconnect(err)
	}
	return nil
}

// Tick drives the heartbeat. It may return a PING frame, or end the session
// with heartbeat.ErrTimeout.
func (m *Machine) Tick(now time.Time) (Output, error) {
	if !m.cfg.Heartbeat {
		return Output{}, nil
	}
	switch m.state {
	case AwaitingReady, Authenticating, Connected:
	default:
		return Output{}, nil
	}

	act, err := m.monitor.Tick(now, m.state == Connected)
	if err != nil {
		return Output{}, m.disconnect(err)
	}
	if act.Ping {
		return Output{Frames: [][]byte{protocol.EncodePing(act.Token, now)}}, nil
	}
	return Output{}, nil
}

// Shutdown moves the machine towards its terminal state. Closed completes it
// once the transport is gone.
func (m *Machine) Shutdown() {
	m.shutdown = true
	if m.state != Disconnected {
		m.state = Closing
	}
}

// Closed completes a shutdown.
func (m *Machine) Closed() {
	if m.state == Closing {
		m.state = Disconnected
	}
}

// OutstandingPing returns the token of the ping awaiting a pong.
func (m *Machine) OutstandingPing() string {
	return m.monitor.Outstanding()
}

func (m *Machine) disconnect(err error) error {
	m.state = Disconnected
	return err
}

func (m *Machine) violation(msg protocol.Message) error {
	state := m.state
	m.state = Disconnected
	return fmt.Errorf("%w: %s in %s", ErrProtocolViolation, msg.Kind, state)
}
