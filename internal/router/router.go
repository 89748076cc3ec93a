package router

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/benzinga-stream/internal/metrics"
	"github.com/rickgao/benzinga-stream/internal/model"
	"github.com/rickgao/benzinga-stream/internal/subscription"
)

// ErrNoEvent is reported when the mapper returns neither an event nor an
// error.
var ErrNoEvent = errors.New("mapper produced no event")

// Mapper turns a raw stream payload into a news event.
type Mapper interface {
	Parse(raw string) (*model.NewsEvent, error)
}

// MapperFunc adapts a function to a Mapper.
type MapperFunc func(raw string) (*model.NewsEvent, error)

// Parse calls f(raw).
func (f MapperFunc) Parse(raw string) (*model.NewsEvent, error) { return f(raw) }

// Dispatcher maps stream payloads to news events and delivers one copy per
// resolved symbol.
type Dispatcher struct {
	cfg      DispatcherConfig
	mapper   Mapper
	registry *subscription.Registry
	fallback subscription.Sink
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu          sync.RWMutex
	received    int64
	delivered   int64
	mapErrors   int64
	unmatched   int64
	lastEventID int64
}

// NewDispatcher creates a Dispatcher. fallback receives symbols without a
// subscriber in override mode and may be nil.
func NewDispatcher(
	cfg DispatcherConfig,
	mapper Mapper,
	registry *subscription.Registry,
	fallback subscription.Sink,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if mapper == nil {
		mapper = model.NewsMapper{}
	}
	return &Dispatcher{
		cfg:      cfg,
		mapper:   mapper,
		registry: registry,
		fallback: fallback,
		metrics:  m,
		logger:   logger,
	}
}

// Mode returns the dispatch mode.
func (d *Dispatcher) Mode() subscription.Mode {
	return d.cfg.Mode
}

// Dispatch handles one stream payload and returns the number of deliveries.
// A payload that cannot be mapped is logged and dropped.
func (d *Dispatcher) Dispatch(payload string, receivedAt time.Time) int {
	d.mu.Lock()
	d.received++
	d.mu.Unlock()

	event, err := d.mapper.Parse(payload)
	if err == nil && event == nil {
		err = ErrNoEvent
	}
	if err != nil {
		d.logger.Warn("dropping unmappable news payload",
			"error", err,
			"payload_bytes", len(payload),
		)
		d.metrics.EventDropped("mapping")
		d.mu.Lock()
		d.mapErrors++
		d.mu.Unlock()
		return 0
	}

	targets := d.registry.Resolve(event.Symbols, d.cfg.Mode, d.fallback)
	if len(targets) == 0 {
		d.logger.Debug("no subscribers for news event",
			"id", event.ID,
			"symbols", event.Symbols,
			"mode", d.cfg.Mode,
		)
		d.metrics.EventDropped("unmatched")
		d.mu.Lock()
		d.unmatched++
		d.mu.Unlock()
		return 0
	}

	stamp := receivedAt.UnixMicro()
	for _, tg := range targets {
		tg.Sink.Update(event.ForSymbol(tg.Symbol, stamp))
	}

	d.metrics.EventsDispatched(len(targets))
	d.mu.Lock()
	d.delivered += int64(len(targets))
	d.lastEventID = event.ID
	d.mu.Unlock()

	return len(targets)
}

// Stats returns dispatcher statistics.
func (d *Dispatcher) Stats() DispatchStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return DispatchStats{
		PayloadsReceived: d.received,
		EventsDelivered:  d.delivered,
		MappingErrors:    d.mapErrors,
		Unmatched:        d.unmatched,
		LastEventID:      d.lastEventID,
	}
}
