package framing

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testDelim = "=BZEOT\r\n"

func collect(t *testing.T, r *Reader, chunk []byte) []string {
	t.Helper()
	var out []string
	for frame, err := range r.Feed(chunk) {
		if err != nil {
			t.Fatalf("Feed returned error: %v", err)
		}
		out = append(out, string(frame))
	}
	return out
}

func TestReader_SingleChunk(t *testing.T) {
	r := NewReader([]byte(testDelim), 0)

	got := collect(t, r, []byte("READY"+testDelim+"CONNECTED"+testDelim))
	want := []string{"READY", "CONNECTED"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
	if r.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", r.Buffered())
	}
}

func TestReader_TailIsRetained(t *testing.T) {
	r := NewReader([]byte(testDelim), 0)

	if got := collect(t, r, []byte("STREAM: {\"id\":")); len(got) != 0 {
		t.Fatalf("unterminated frame emitted: %q", got)
	}
	if r.Buffered() != len("STREAM: {\"id\":") {
		t.Errorf("Buffered() = %d, want %d", r.Buffered(), len("STREAM: {\"id\":"))
	}

	got := collect(t, r, []byte("1}"+testDelim))
	want := []string{`STREAM: {"id":1}`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestReader_DelimiterSplitAcrossChunks(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
	}{
		{"split after equals", []string{"READY=", "BZEOT\r\n"}},
		{"split before CRLF", []string{"READY=BZEOT", "\r\n"}},
		{"split between CR and LF", []string{"READY=BZEOT\r", "\n"}},
		{"one byte at a time", strings.Split("READY"+testDelim, "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader([]byte(testDelim), 0)
			var got []string
			for _, c := range tt.chunks {
				got = append(got, collect(t, r, []byte(c))...)
			}
			if diff := cmp.Diff([]string{"READY"}, got); diff != "" {
				t.Errorf("frames mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReader_SplitPointsProduceSameFrames(t *testing.T) {
	var stream bytes.Buffer
	var want []string
	for _, body := range []string{
		"READY",
		"CONNECTED",
		`STREAM: {"id":1,"title":"a = b"}`,
		"",
		`PONG: {"token":"abc"}`,
		"GOODBYE",
	} {
		stream.WriteString(body)
		stream.WriteString(testDelim)
		want = append(want, body)
	}
	stream.WriteString("PARTIAL")
	data := stream.Bytes()

	rng := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 200; trial++ {
		r := NewReader([]byte(testDelim), 0)
		var got []string
		for rest := data; len(rest) > 0; {
			n := 1 + rng.IntN(len(rest))
			got = append(got, collect(t, r, rest[:n])...)
			rest = rest[n:]
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("trial %d: frames mismatch (-want +got):\n%s", trial, diff)
		}
		if r.Buffered() != len("PARTIAL") {
			t.Fatalf("trial %d: Buffered() = %d, want %d", trial, r.Buffered(), len("PARTIAL"))
		}
	}
}

func TestReader_EarlyStopKeepsRemainingFrames(t *testing.T) {
	r := NewReader([]byte(testDelim), 0)

	for frame, err := range r.Feed([]byte("A" + testDelim + "B" + testDelim + "C")) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(frame) != "A" {
			t.Fatalf("first frame = %q, want A", frame)
		}
		break
	}

	got := collect(t, r, []byte(testDelim))
	if diff := cmp.Diff([]string{"B", "C"}, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestReader_FramesAreCopies(t *testing.T) {
	r := NewReader([]byte(testDelim), 0)

	var first []byte
	for frame := range r.Feed([]byte("HELLO" + testDelim)) {
		first = frame
	}
	collect(t, r, []byte("WORLD"+testDelim))

	if string(first) != "HELLO" {
		t.Errorf("earlier frame mutated to %q", first)
	}
}

func TestReader_FrameTooLarge(t *testing.T) {
	t.Run("unterminated tail", func(t *testing.T) {
		r := NewReader([]byte(testDelim), 8)

		var gotErr error
		// 8 bytes of payload plus 7 of a possible partial delimiter are
		// tolerated; the 16th byte cannot belong to a legal frame.
		for _, err := range r.Feed([]byte("0123456789abcdef")) {
			gotErr = err
		}
		if !errors.Is(gotErr, ErrFrameTooLarge) {
			t.Fatalf("error = %v, want ErrFrameTooLarge", gotErr)
		}
		if r.Buffered() != 0 {
			t.Errorf("Buffered() = %d, want 0 after overflow", r.Buffered())
		}
	})

	t.Run("limit-sized frame at every split", func(t *testing.T) {
		data := []byte("0123456789" + testDelim)
		for split := 1; split < len(data); split++ {
			r := NewReader([]byte(testDelim), 10)
			got := collect(t, r, data[:split])
			got = append(got, collect(t, r, data[split:])...)
			if diff := cmp.Diff([]string{"0123456789"}, got); diff != "" {
				t.Errorf("split %d: frames mismatch (-want +got):\n%s", split, diff)
			}
		}
	})

	t.Run("oversized tail detected before delimiter", func(t *testing.T) {
		r := NewReader([]byte(testDelim), 10)
		collect(t, r, []byte("0123456789=BZEOT"))

		var gotErr error
		for _, err := range r.Feed([]byte("XY")) {
			gotErr = err
		}
		if !errors.Is(gotErr, ErrFrameTooLarge) {
			t.Errorf("error = %v, want ErrFrameTooLarge", gotErr)
		}
	})

	t.Run("complete frame", func(t *testing.T) {
		r := NewReader([]byte(testDelim), 4)

		var frames []string
		var gotErr error
		for frame, err := range r.Feed([]byte("OK" + testDelim + "TOOLONG" + testDelim)) {
			if err != nil {
				gotErr = err
				continue
			}
			frames = append(frames, string(frame))
		}
		if diff := cmp.Diff([]string{"OK"}, frames); diff != "" {
			t.Errorf("frames mismatch (-want +got):\n%s", diff)
		}
		if !errors.Is(gotErr, ErrFrameTooLarge) {
			t.Errorf("error = %v, want ErrFrameTooLarge", gotErr)
		}
	})
}

func TestReader_Reset(t *testing.T) {
	r := NewReader([]byte(testDelim), 0)
	collect(t, r, []byte("STALE=BZ"))
	r.Reset()

	got := collect(t, r, []byte("READY"+testDelim))
	if diff := cmp.Diff([]string{"READY"}, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}
