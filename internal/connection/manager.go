package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rickgao/benzinga-stream/internal/auth"
	"github.com/rickgao/benzinga-stream/internal/heartbeat"
	"github.com/rickgao/benzinga-stream/internal/metrics"
	"github.com/rickgao/benzinga-stream/internal/protocol"
	"github.com/rickgao/benzinga-stream/internal/router"
	"github.com/rickgao/benzinga-stream/internal/session"
	"github.com/rickgao/benzinga-stream/internal/subscription"
	"github.com/rickgao/benzinga-stream/internal/version"
)

// Manager maintains one feed connection and delivers its news events to
// subscribers. Subscribe, Unsubscribe, IsConnected and Stats are safe for
// concurrent use and never wait on the network.
type Manager struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	registry   *subscription.Registry
	dispatcher *router.Dispatcher

	newTransport func(onSend func(error)) Transport
	newDecoder   func() Decoder

	// Owned by the worker goroutine
	machine *session.Machine

	connected atomic.Bool
	state     atomic.Int32
	gen       atomic.Int64 // Connection attempt counter, tags send callbacks

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	stopped bool
	fatal   error
	lastErr error

	// Stats
	attempts     atomic.Int64
	sessions     atomic.Int64
	disconnects  atomic.Int64
	messages     atomic.Int64
	pingsSent    atomic.Int64
	sendFailures atomic.Int64
}

// NewManager creates a Manager. fallback receives events for symbols
// nobody subscribed to in override mode and may be nil.
func NewManager(cfg Config, fallback subscription.Sink, m *metrics.Metrics, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = withDefaults(cfg)

	creds := &auth.Credentials{Username: cfg.Username, APIKey: cfg.APIKey}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	mgr := &Manager{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		registry: subscription.NewRegistry(),
	}
	mgr.dispatcher = router.NewDispatcher(
		router.DispatcherConfig{Mode: cfg.Mode},
		cfg.Mapper,
		mgr.registry,
		fallback,
		m,
		logger.With("component", "dispatcher"),
	)

	sessCfg := session.Config{
		Username: cfg.Username,
		APIKey:   cfg.APIKey,
		HeartbeatConfig: heartbeat.Config{
			Interval:        cfg.PingInterval,
			ResponseTimeout: cfg.ReadTimeout,
		},
	}

	tcfg := TransportConfig{
		DialTimeout:    cfg.DialTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		PollInterval:   cfg.PollInterval,
		PingInterval:   cfg.PingInterval,
		PingTimeout:    cfg.ReadTimeout,
		ReadBufferSize: cfg.ReadBufferSize,
		SendBufferSize: cfg.SendBufferSize,
		BufferSize:     cfg.MessageBufferSize,
	}
	tlog := logger.With("component", "transport", "transport", cfg.Transport)

	switch cfg.Transport {
	case TransportTCP:
		sessCfg.Handshake = true
		sessCfg.Heartbeat = true
		tcfg.Address = cfg.Address
		mgr.newTransport = func(onSend func(error)) Transport {
			c := tcfg
			c.OnSend = onSend
			return NewTCPTransport(c, tlog)
		}
		mgr.newDecoder = func() Decoder { return NewFrameDecoder(cfg.MaxFrameSize) }

	case TransportWebSocket:
		signed, err := creds.SignURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("websocket url: %w", err)
		}
		tcfg.URL = signed
		header := http.Header{}
		header.Set("Accept", "application/json")
		header.Set("User-Agent", version.UserAgent())
		mgr.newTransport = func(onSend func(error)) Transport {
			c := tcfg
			c.OnSend = onSend
			return NewWSTransport(c, header, tlog)
		}
		streamKind := cfg.StreamKind
		mgr.newDecoder = func() Decoder { return NewEnvelopeDecoder(streamKind) }

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
	}

	mgr.machine = session.New(sessCfg)
	mgr.state.Store(int32(session.Disconnected))
	return mgr, nil
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Transport == "" {
		cfg.Transport = def.Transport
	}
	if cfg.StreamKind == "" {
		cfg.StreamKind = def.StreamKind
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay < cfg.ReconnectBaseDelay {
		cfg.ReconnectMaxDelay = max(def.ReconnectMaxDelay, cfg.ReconnectBaseDelay)
	}
	if cfg.MinReconnectInterval < 0 {
		cfg.MinReconnectInterval = 0
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = def.MaxFrameSize
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = def.ReadBufferSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = def.SendBufferSize
	}
	if cfg.MessageBufferSize <= 0 {
		cfg.MessageBufferSize = def.MessageBufferSize
	}
	return cfg
}

// Start launches the connection worker. Calling Start after the worker
// halted on rejected credentials is an explicit fresh start. After Stop, or
// once the context given to a previous Start is cancelled, Start fails with
// ErrAlreadyClosed.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrAlreadyClosed
	}
	if m.running {
		return ErrAlreadyStarted
	}

	workerCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	m.fatal = nil

	go m.run(workerCtx, m.done)

	m.logger.Info("connection manager started",
		"transport", m.cfg.Transport,
		"mode", m.cfg.Mode,
	)
	return nil
}

// Stop shuts the worker down and waits for it until ctx expires.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = true
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	m.logger.Info("stopping connection manager")
	cancel()

	select {
	case <-done:
		m.logger.Info("connection manager stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, worker still running")
		return ctx.Err()
	}
}

// Shutdown stops the manager, waiting at most the configured shutdown
// timeout.
func (m *Manager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ShutdownTimeout)
	defer cancel()
	return m.Stop(ctx)
}

// Done is closed when the current worker exits, either after Stop or
// because the credentials were rejected. It is nil before Start.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// Subscribe registers sink for symbol. An ineligible symbol returns a nil
// handle and subscription.ErrIneligibleSymbol.
func (m *Manager) Subscribe(symbol string, sink subscription.Sink) (*subscription.Subscription, error) {
	return m.registry.Subscribe(symbol, sink)
}

// Unsubscribe removes symbol. Unknown symbols are ignored.
func (m *Manager) Unsubscribe(symbol string) {
	m.registry.Unsubscribe(symbol)
}

// Registry returns the subscription registry.
func (m *Manager) Registry() *subscription.Registry {
	return m.registry
}

// IsConnected reports whether the session is authenticated and its last
// send succeeded.
func (m *Manager) IsConnected() bool {
	return m.connected.Load()
}

// State returns the session state as last published by the worker.
func (m *Manager) State() session.State {
	return session.State(m.state.Load())
}

// Err returns the fatal error that halted the worker, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fatal
}

// Stats returns current statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	var lastErr string
	if m.lastErr != nil {
		lastErr = m.lastErr.Error()
	}
	m.mu.Unlock()

	return Stats{
		State:           m.State(),
		Connected:       m.IsConnected(),
		ConnectAttempts: m.attempts.Load(),
		Sessions:        m.sessions.Load(),
		Disconnects:     m.disconnects.Load(),
		Messages:        m.messages.Load(),
		PingsSent:       m.pingsSent.Load(),
		SendFailures:    m.sendFailures.Load(),
		LastError:       lastErr,
		Dispatch:        m.dispatcher.Stats(),
	}
}

// run is the worker loop: connect, serve the session until it ends, then
// wait out the backoff and try again.
func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer func() {
		m.setConnected(false)
		m.publishState()
		m.mu.Lock()
		m.running = false
		if ctx.Err() != nil {
			// Cancelling the Start context shuts the session down for good,
			// the same as Stop.
			m.stopped = true
		}
		m.mu.Unlock()
		close(done)
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.cfg.ReconnectBaseDelay
	bo.MaxInterval = m.cfg.ReconnectMaxDelay
	bo.MaxElapsedTime = 0 // retry forever
	bo.Reset()

	fresh := true
	for {
		if ctx.Err() != nil {
			return
		}

		var err error
		if fresh {
			err = m.machine.Start()
			fresh = false
		} else {
			err = m.machine.Reconnect()
		}
		if err != nil {
			m.logger.Error("connection worker exiting", "error", err)
			return
		}

		attemptAt := time.Now()
		reached, err := m.runSession(ctx)
		m.setConnected(false)
		m.publishState()

		if ctx.Err() != nil {
			return
		}

		m.disconnects.Add(1)
		m.metrics.Disconnect(reason(err))
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()

		if session.IsFatal(err) {
			m.logger.Error("credentials rejected, not reconnecting", "error", err)
			m.mu.Lock()
			m.fatal = err
			m.mu.Unlock()
			return
		}

		if reached {
			bo.Reset()
		}
		delay := bo.NextBackOff()
		if wait := m.cfg.MinReconnectInterval - time.Since(attemptAt); delay < wait {
			delay = wait
		}

		m.logger.Warn("stream disconnected, reconnecting",
			"error", err,
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runSession serves one connection attempt. It reports whether the session
// reached Connected and the error that ended it.
func (m *Manager) runSession(ctx context.Context) (reached bool, err error) {
	gen := m.gen.Add(1)
	m.attempts.Add(1)
	m.metrics.ConnectAttempt()
	m.publishState()

	t := m.newTransport(func(err error) {
		if err == nil || m.gen.Load() != gen {
			return
		}
		m.sendFailures.Add(1)
		m.setConnected(false)
	})
	defer t.Close()

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	err = t.Connect(dialCtx)
	cancel()
	if err != nil {
		return false, m.machine.Failed(fmt.Errorf("connect: %w", err))
	}

	if _, err := m.machine.Opened(time.Now()); err != nil {
		return false, m.machine.Failed(err)
	}
	m.publishState()
	reached = m.checkConnected(reached)

	dec := m.newDecoder()
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.machine.Shutdown()
			m.publishState()
			t.Close()
			m.machine.Closed()
			return reached, ctx.Err()

		case err := <-t.Errors():
			// The read loop delivers every chunk before reporting the error
			// that ended it, so whatever is still queued came first.
			for queued := true; queued; {
				select {
				case chunk := <-t.Messages():
					var herr error
					if reached, herr = m.handleChunk(t, dec, chunk, reached); herr != nil {
						return reached, herr
					}
				default:
					queued = false
				}
			}
			return reached, m.machine.Failed(err)

		case chunk := <-t.Messages():
			var herr error
			if reached, herr = m.handleChunk(t, dec, chunk, reached); herr != nil {
				return reached, herr
			}

		case now := <-ticker.C:
			out, terr := m.machine.Tick(now)
			if terr != nil {
				m.publishState()
				return reached, terr
			}
			for range out.Frames {
				m.pingsSent.Add(1)
				m.metrics.PingSent()
			}
			m.apply(t, out, now)
		}
	}
}

// handleChunk decodes one received chunk and feeds every message to the
// session. A non-nil error ends the session.
func (m *Manager) handleChunk(t Transport, dec Decoder, chunk TimestampedMessage, reached bool) (bool, error) {
	m.metrics.FrameReceived()
	for msg, derr := range dec.Decode(chunk.Data) {
		if derr != nil {
			return reached, m.machine.Failed(fmt.Errorf("%w: %w", session.ErrProtocolViolation, derr))
		}
		m.messages.Add(1)
		m.metrics.Message(msg.Kind.String())

		out, herr := m.machine.Handle(msg, chunk.ReceivedAt)
		m.publishState()
		if herr != nil {
			return reached, herr
		}
		m.apply(t, out, chunk.ReceivedAt)
		reached = m.checkConnected(reached)
	}
	return reached, nil
}

// apply performs the side effects of a transition.
func (m *Manager) apply(t Transport, out session.Output, at time.Time) {
	for _, frame := range out.Frames {
		if err := t.Send(frame); err != nil {
			m.sendFailures.Add(1)
			m.logger.Warn("send failed", "error", err)
		}
	}
	if out.HasPayload {
		m.dispatcher.Dispatch(out.Payload, at)
	}
}

// checkConnected publishes the first transition into Connected.
func (m *Manager) checkConnected(reached bool) bool {
	if reached || !m.machine.Authenticated() {
		return reached
	}
	m.sessions.Add(1)
	m.setConnected(true)
	m.logger.Info("stream connected", "transport", m.cfg.Transport)
	return true
}

func (m *Manager) setConnected(ok bool) {
	m.connected.Store(ok)
	m.metrics.SetConnected(ok)
}

func (m *Manager) publishState() {
	s := m.machine.State()
	m.state.Store(int32(s))
	m.metrics.SetState(int(s))
}

// reason maps a session error to a metrics label.
func reason(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case session.IsFatal(err):
		return "credentials"
	case errors.Is(err, session.ErrGoodbye):
		return "goodbye"
	case errors.Is(err, session.ErrDuplicateConnection):
		return "duplicate"
	case errors.Is(err, session.ErrServerError), errors.Is(err, session.ErrUnknownCommand):
		return "server_error"
	case errors.Is(err, heartbeat.ErrTimeout), errors.Is(err, ErrStaleConnection):
		return "timeout"
	case errors.Is(err, heartbeat.ErrPongMismatch):
		return "pong_mismatch"
	case errors.Is(err, session.ErrProtocolViolation),
		errors.Is(err, protocol.ErrInvalidMessage),
		errors.Is(err, protocol.ErrInvalidEnvelope):
		return "protocol"
	default:
		return "transport"
	}
}
