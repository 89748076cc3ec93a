package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/benzinga-stream/internal/metrics"
	"github.com/rickgao/benzinga-stream/internal/model"
	"github.com/rickgao/benzinga-stream/internal/router"
)

const insertNews = `
	INSERT INTO news_events (id, symbol, author, created_at, updated_at, title, teaser, body, url, channels, tags, symbols, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (id, symbol, updated_at) DO NOTHING
`

// pollInterval is how long the consumer sleeps when the buffer is empty.
const pollInterval = 10 * time.Millisecond

// NewsWriter consumes NewsEvent from the dispatcher buffer and writes to the
// news_events table.
type NewsWriter struct {
	cfg     WriterConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Input from the dispatcher
	input *router.GrowableBuffer[model.NewsEvent]

	// Database
	db BatchSender

	// Batching
	batch       []newsRow
	batchMu     sync.Mutex
	flushMu     sync.Mutex // serializes flushes so rows are written in order
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats WriterMetrics
}

// NewNewsWriter creates a new NewsWriter.
func NewNewsWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[model.NewsEvent],
	db BatchSender,
	m *metrics.Metrics,
	logger *slog.Logger,
) *NewsWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &NewsWriter{
		cfg:     cfg,
		input:   input,
		db:      db,
		metrics: m,
		logger:  logger,
		batch:   make([]newsRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
func (w *NewsWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(2)
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("news writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the writer, then drains the buffer and flushes what is
// left using ctx.
func (w *NewsWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping news writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("news writer stop timed out")
		return ctx.Err()
	}

	for _, event := range w.input.DrainTo(0) {
		w.add(event)
	}
	w.flush(ctx)

	w.logger.Info("news writer stopped", "inserts", w.Stats().Inserts)
	return nil
}

// Stats returns current metrics.
func (w *NewsWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// consumeLoop drains the input buffer into the batch.
func (w *NewsWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		events := w.input.DrainTo(w.cfg.BatchSize)
		if len(events) == 0 {
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(pollInterval):
				continue
			}
		}

		for _, event := range events {
			if w.add(event) {
				w.flush(w.ctx)
			}
		}

		if w.ctx.Err() != nil {
			return
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *NewsWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// add appends event to the batch and reports whether the batch is full.
func (w *NewsWriter) add(event model.NewsEvent) bool {
	row := transform(event)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

// transform converts a NewsEvent to a newsRow. Nil slices become empty so
// the NOT NULL array columns accept them.
func transform(e model.NewsEvent) newsRow {
	return newsRow{
		ID:         e.ID,
		Symbol:     e.Symbol,
		Author:     e.Author,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
		Title:      e.Title,
		Teaser:     e.Teaser,
		Body:       e.Body,
		URL:        e.URL,
		Channels:   nonNil(e.Channels),
		Tags:       nonNil(e.Tags),
		Symbols:    nonNil(e.Symbols),
		ReceivedAt: e.ReceivedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// flush writes the current batch to the database.
func (w *NewsWriter) flush(ctx context.Context) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]newsRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		if ctx.Err() != nil {
			// Shutting down: keep the rows for the final flush in Stop.
			w.batchMu.Lock()
			w.batch = append(batch, w.batch...)
			w.batchMu.Unlock()
			return
		}
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.metrics.WriteError()
		w.batchMu.Lock()
		w.stats.Errors++
		w.batchMu.Unlock()
		return
	}

	w.metrics.RowsWritten(len(batch) - conflicts)
	w.batchMu.Lock()
	w.stats.Inserts += int64(len(batch) - conflicts)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed news events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *NewsWriter) batchInsert(ctx context.Context, rows []newsRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertNews,
			r.ID, r.Symbol, r.Author, r.CreatedAt, r.UpdatedAt, r.Title, r.Teaser,
			r.Body, r.URL, r.Channels, r.Tags, r.Symbols, r.ReceivedAt,
		)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
