package router

import (
	"log/slog"
	"sync/atomic"

	"github.com/rickgao/benzinga-stream/internal/model"
	"github.com/rickgao/benzinga-stream/internal/subscription"
)

// DispatcherConfig holds configuration for the Dispatcher.
type DispatcherConfig struct {
	Mode subscription.Mode // Default: ModeOverride
}

// DefaultDispatcherConfig returns default configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{Mode: subscription.ModeOverride}
}

// DispatchStats contains runtime statistics.
type DispatchStats struct {
	PayloadsReceived int64
	EventsDelivered  int64 // One per resolved symbol
	MappingErrors    int64
	Unmatched        int64 // Events with no resolved symbol
	LastEventID      int64
}

// BufferSink is a subscription.Sink that queues events for a consumer such
// as the database writer.
type BufferSink struct {
	buf     *GrowableBuffer[model.NewsEvent]
	logger  *slog.Logger
	dropped atomic.Int64
}

var _ subscription.Sink = (*BufferSink)(nil)

// NewBufferSink creates a sink feeding buf.
func NewBufferSink(buf *GrowableBuffer[model.NewsEvent], logger *slog.Logger) *BufferSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &BufferSink{buf: buf, logger: logger}
}

// Update queues event, logging when it cannot be queued.
func (s *BufferSink) Update(event model.NewsEvent) {
	if err := s.buf.Send(event); err != nil {
		s.dropped.Add(1)
		s.logger.Warn("dropping news event",
			"id", event.ID,
			"symbol", event.Symbol,
			"error", err,
		)
	}
}

// Buffer returns the underlying buffer.
func (s *BufferSink) Buffer() *GrowableBuffer[model.NewsEvent] {
	return s.buf
}

// Dropped returns how many events could not be queued.
func (s *BufferSink) Dropped() int64 {
	return s.dropped.Load()
}
