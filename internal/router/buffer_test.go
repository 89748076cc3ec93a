package router

import (
	"errors"
	"sync"
	"testing"
)

func TestGrowableBuffer_BasicSendReceive(t *testing.T) {
	buf := NewGrowableBuffer[int](10)

	for i := 0; i < 5; i++ {
		if err := buf.Send(i); err != nil {
			t.Fatalf("Send(%d) error: %v", i, err)
		}
	}
	if buf.Len() != 5 {
		t.Errorf("Len() = %d, want 5", buf.Len())
	}

	for i := 0; i < 5; i++ {
		val, ok := buf.TryReceive()
		if !ok {
			t.Fatalf("TryReceive() returned false for item %d", i)
		}
		if val != i {
			t.Errorf("received %d, want %d", val, i)
		}
	}
	if _, ok := buf.TryReceive(); ok {
		t.Error("TryReceive() on empty buffer returned true")
	}
}

func TestGrowableBuffer_GrowAt70Percent(t *testing.T) {
	buf := NewGrowableBuffer[int](10)

	for i := 0; i < 7; i++ {
		buf.Send(i)
	}

	stats := buf.Stats()
	if stats.Capacity != 20 {
		t.Errorf("Capacity = %d, want 20 after 70%% fill", stats.Capacity)
	}
	if stats.Grows != 1 {
		t.Errorf("Grows = %d, want 1", stats.Grows)
	}

	got := buf.DrainTo(0)
	for i, v := range got {
		if v != i {
			t.Fatalf("item %d = %d after grow", i, v)
		}
	}
}

func TestGrowableBuffer_WrapAroundThenGrow(t *testing.T) {
	buf := NewGrowableBuffer[int](10)

	// Move head forward so the ring wraps before growing.
	for i := 0; i < 6; i++ {
		buf.Send(i)
	}
	buf.DrainTo(5)
	for i := 6; i < 16; i++ {
		if err := buf.Send(i); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}

	got := buf.DrainTo(0)
	if len(got) != 11 {
		t.Fatalf("drained %d items, want 11", len(got))
	}
	for i, v := range got {
		if v != i+5 {
			t.Errorf("item %d = %d, want %d", i, v, i+5)
		}
	}
}

func TestGrowableBuffer_Bounded(t *testing.T) {
	buf := NewBoundedBuffer[int](2, 4)

	for i := 0; i < 4; i++ {
		if err := buf.Send(i); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}
	if err := buf.Send(4); !errors.Is(err, ErrBufferFull) {
		t.Errorf("Send past limit error = %v, want ErrBufferFull", err)
	}
	if buf.Cap() != 4 {
		t.Errorf("Cap() = %d, want 4", buf.Cap())
	}
	if got := buf.Stats().Rejected; got != 1 {
		t.Errorf("Rejected = %d, want 1", got)
	}
}

func TestGrowableBuffer_Close(t *testing.T) {
	buf := NewGrowableBuffer[string](4)
	buf.Send("a")
	buf.Close()

	if !buf.Closed() {
		t.Error("Closed() = false after Close")
	}
	if err := buf.Send("b"); !errors.Is(err, ErrBufferClosed) {
		t.Errorf("Send after Close error = %v, want ErrBufferClosed", err)
	}
	if v, ok := buf.TryReceive(); !ok || v != "a" {
		t.Errorf("TryReceive() = %q, %v; want queued item after Close", v, ok)
	}
}

func TestGrowableBuffer_DrainTo(t *testing.T) {
	buf := NewGrowableBuffer[int](4)
	if got := buf.DrainTo(10); got != nil {
		t.Errorf("DrainTo on empty = %v, want nil", got)
	}

	for i := 0; i < 6; i++ {
		buf.Send(i)
	}
	first := buf.DrainTo(4)
	if len(first) != 4 || first[0] != 0 || first[3] != 3 {
		t.Errorf("DrainTo(4) = %v", first)
	}
	rest := buf.DrainTo(0)
	if len(rest) != 2 || rest[0] != 4 {
		t.Errorf("DrainTo(0) = %v", rest)
	}

	stats := buf.Stats()
	if stats.Pushed != 6 || stats.Popped != 6 {
		t.Errorf("Pushed/Popped = %d/%d, want 6/6", stats.Pushed, stats.Popped)
	}
}

func TestGrowableBuffer_ConcurrentSendReceive(t *testing.T) {
	buf := NewGrowableBuffer[int](8)
	const producers, perProducer = 4, 1000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				buf.Send(i)
			}
		}()
	}

	received := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		received += len(buf.DrainTo(0))
		select {
		case <-done:
			received += len(buf.DrainTo(0))
			if received != producers*perProducer {
				t.Errorf("received %d items, want %d", received, producers*perProducer)
			}
			return
		default:
		}
	}
}

func TestNewGrowableBuffer_MinCapacity(t *testing.T) {
	buf := NewGrowableBuffer[int](0)
	if buf.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", buf.Cap())
	}
	if err := buf.Send(1); err != nil {
		t.Errorf("Send: %v", err)
	}
}
