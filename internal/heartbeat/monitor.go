// Package heartbeat tracks connection liveness with two independent
// timers: a receive timeout and a ping interval.
//
// A Monitor never touches the network. The session calls Tick on a
// schedule and sends the ping frames it asks for.
package heartbeat

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrTimeout      = errors.New("heartbeat timeout: no frame received")
	ErrPongMismatch = errors.New("pong token does not match outstanding ping")
)

// Defaults
const (
	DefaultInterval        = 15 * time.Second
	DefaultResponseTimeout = 30 * time.Second
)

// Config configures a Monitor.
type Config struct {
	Interval        time.Duration // Time between pings once authenticated
	ResponseTimeout time.Duration // Max silence before the peer is considered dead
	NewToken        func() string // Correlation token source (default uuid.NewString)
}

// Action tells the caller what to do after a Tick.
type Action struct {
	Ping  bool
	Token string
}

// Monitor holds per-connection heartbeat state.
type Monitor struct {
	cfg Config

	lastReceived time.Time
	lastPing     time.Time
	outstanding  string
}

// New creates a Monitor.
func New(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	if cfg.NewToken == nil {
		cfg.NewToken = uuid.NewString
	}
	return &Monitor{cfg: cfg}
}

// Reset starts a fresh connection: timestamps restart at now and any
// outstanding token is forgotten.
func (m *Monitor) Reset(now time.Time) {
	m.lastReceived = now
	m.lastPing = time.Time{}
	m.outstanding = ""
}

// Received records an inbound frame.
func (m *Monitor) Received(now time.Time) {
	m.lastReceived = now
}

// Tick evaluates both timers. It returns ErrTimeout when the peer has been
// silent longer than the response timeout. Otherwise, when authenticated,
// no ping is in flight and the interval has elapsed, it returns a ping
// action with a fresh token and records the send time.
func (m *Monitor) Tick(now time.Time, authenticated bool) (Action, error) {
	if now.Sub(m.lastReceived) > m.cfg.ResponseTimeout {
		return Action{}, ErrTimeout
	}
	if !authenticated || m.outstanding != "" {
		return Action{}, nil
	}
	if !m.lastPing.IsZero() && now.Sub(m.lastPing) < m.cfg.Interval {
		return Action{}, nil
	}

	m.outstanding = m.cfg.NewToken()
	m.lastPing = now
	return Action{Ping: true, Token: m.outstanding}, nil
}

// Pong checks an echoed token against the outstanding ping. A match clears
// it so the next ping carries a new token. A pong with no ping in flight is
// also a mismatch.
func (m *Monitor) Pong(token string) error {
	if m.outstanding == "" || token != m.outstanding {
		return ErrPongMismatch
	}
	m.outstanding = ""
	return nil
}

// Outstanding returns the token of the ping awaiting a reply, if any.
func (m *Monitor) Outstanding() string {
	return m.outstanding
}

// LastReceived returns when the last frame arrived.
func (m *Monitor) LastReceived() time.Time {
	return m.lastReceived
}
