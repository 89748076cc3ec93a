package writer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/benzinga-stream/internal/model"
	"github.com/rickgao/benzinga-stream/internal/router"
)

// fakeDB records queued rows and reports a conflict for any (id, symbol,
// updated_at) it has already seen.
type fakeDB struct {
	mu   sync.Mutex
	seen map[[3]any]bool
	rows [][]any
	err  error
}

func newFakeDB() *fakeDB {
	return &fakeDB{seen: make(map[[3]any]bool)}
}

func (f *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()

	res := &fakeResults{}
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}
	if f.err != nil {
		res.err = f.err
		return res
	}
	for _, q := range b.QueuedQueries {
		key := [3]any{q.Arguments[0], q.Arguments[1], q.Arguments[4]}
		if f.seen[key] {
			res.affected = append(res.affected, 0)
			continue
		}
		f.seen[key] = true
		f.rows = append(f.rows, q.Arguments)
		res.affected = append(res.affected, 1)
	}
	return res
}

func (f *fakeDB) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeResults struct {
	affected []int64
	next     int
	err      error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	n := r.affected[r.next]
	r.next++
	if n == 0 {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }

func TestTransform(t *testing.T) {
	event := model.NewsEvent{
		ID:         42,
		Author:     "Benzinga Newsdesk",
		CreatedAt:  1717425000000000,
		UpdatedAt:  1717425060000000,
		Title:      "Apple beats",
		Channels:   []string{"Earnings"},
		Symbols:    []string{"AAPL"},
		Symbol:     "AAPL",
		ReceivedAt: 1717425061000000,
	}

	want := newsRow{
		ID:         42,
		Symbol:     "AAPL",
		Author:     "Benzinga Newsdesk",
		CreatedAt:  1717425000000000,
		UpdatedAt:  1717425060000000,
		Title:      "Apple beats",
		Channels:   []string{"Earnings"},
		Tags:       []string{},
		Symbols:    []string{"AAPL"},
		ReceivedAt: 1717425061000000,
	}
	if diff := cmp.Diff(want, transform(event)); diff != "" {
		t.Errorf("transform mismatch (-want +got):\n%s", diff)
	}
}

func TestNewsWriter_FlushCountsConflicts(t *testing.T) {
	db := newFakeDB()
	input := router.NewGrowableBuffer[model.NewsEvent](10)
	w := NewNewsWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour}, input, db, nil, nil)

	w.add(model.NewsEvent{ID: 1, Symbol: "AAPL", UpdatedAt: 10})
	w.add(model.NewsEvent{ID: 1, Symbol: "TSLA", UpdatedAt: 10})
	w.add(model.NewsEvent{ID: 1, Symbol: "AAPL", UpdatedAt: 10}) // replay
	w.flush(context.Background())

	want := WriterMetrics{Inserts: 2, Conflicts: 1, Flushes: 1}
	if diff := cmp.Diff(want, w.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestNewsWriter_FlushError(t *testing.T) {
	db := newFakeDB()
	db.err = errors.New("connection refused")
	input := router.NewGrowableBuffer[model.NewsEvent](10)
	w := NewNewsWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour}, input, db, nil, nil)

	w.add(model.NewsEvent{ID: 1, Symbol: "AAPL"})
	w.flush(context.Background())

	if got := w.Stats().Errors; got != 1 {
		t.Errorf("Errors = %d, want 1", got)
	}
	w.batchMu.Lock()
	batchLen := len(w.batch)
	w.batchMu.Unlock()
	if batchLen != 0 {
		t.Errorf("batch length after failed flush = %d, want 0", batchLen)
	}
}

func TestNewsWriter_FlushCanceledKeepsRows(t *testing.T) {
	db := newFakeDB()
	input := router.NewGrowableBuffer[model.NewsEvent](10)
	w := NewNewsWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour}, input, db, nil, nil)

	w.add(model.NewsEvent{ID: 1, Symbol: "AAPL"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.flush(ctx)

	if got := w.Stats().Errors; got != 0 {
		t.Errorf("Errors = %d, want 0 for canceled flush", got)
	}
	w.flush(context.Background())
	if db.rowCount() != 1 {
		t.Errorf("rows written = %d, want 1", db.rowCount())
	}
}

func TestNewsWriter_AddReportsFullBatch(t *testing.T) {
	input := router.NewGrowableBuffer[model.NewsEvent](10)
	w := NewNewsWriter(WriterConfig{BatchSize: 2, FlushInterval: time.Hour}, input, newFakeDB(), nil, nil)

	if w.add(model.NewsEvent{ID: 1}) {
		t.Error("add reported full after 1 of 2")
	}
	if !w.add(model.NewsEvent{ID: 2}) {
		t.Error("add did not report full after 2 of 2")
	}
}

func TestNewsWriter_Lifecycle(t *testing.T) {
	db := newFakeDB()
	input := router.NewGrowableBuffer[model.NewsEvent](10)
	w := NewNewsWriter(WriterConfig{BatchSize: 2, FlushInterval: 20 * time.Millisecond}, input, db, nil, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := int64(1); i <= 5; i++ {
		if err := input.Send(model.NewsEvent{ID: i, Symbol: "AAPL"}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for db.rowCount() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// Queued after the consumer may have stopped; Stop must still persist it.
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	input.Send(model.NewsEvent{ID: 6, Symbol: "AAPL"})
	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	if db.rowCount() != 6 {
		t.Errorf("rows written = %d, want 6", db.rowCount())
	}
	if got := w.Stats().Inserts; got != 6 {
		t.Errorf("Inserts = %d, want 6", got)
	}
}

func TestNewNewsWriter_Defaults(t *testing.T) {
	w := NewNewsWriter(WriterConfig{}, router.NewGrowableBuffer[model.NewsEvent](1), newFakeDB(), nil, nil)
	if diff := cmp.Diff(DefaultWriterConfig(), w.cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}
