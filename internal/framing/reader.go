package framing

import (
	"bytes"
	"errors"
	"iter"
)

// ErrFrameTooLarge is returned when buffered bytes exceed the maximum frame
// size without a delimiter, or a complete frame is larger than allowed.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// DefaultMaxFrameSize bounds a single frame when no limit is configured.
const DefaultMaxFrameSize = 1 << 20

// Reader accumulates stream chunks and yields delimiter-terminated frames.
// A Reader is not safe for concurrent use; it belongs to the goroutine
// that reads the connection.
type Reader struct {
	delim        []byte
	maxFrameSize int

	buf     []byte
	off     int // start of unconsumed bytes in buf
	scanned int // absolute index in buf already searched without a match
}

// NewReader creates a Reader splitting on delim. A non-positive
// maxFrameSize selects DefaultMaxFrameSize.
func NewReader(delim []byte, maxFrameSize int) *Reader {
	if len(delim) == 0 {
		panic("framing: empty delimiter")
	}
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Reader{
		delim:        bytes.Clone(delim),
		maxFrameSize: maxFrameSize,
	}
}

// Feed appends chunk to the rolling buffer and returns the frames that are
// now complete. The chunk is buffered immediately; frames are located
// lazily while the sequence is ranged over. Bytes belonging to frames the
// caller did not consume stay buffered for the next call.
//
// When the limit is exceeded the sequence yields ErrFrameTooLarge once and
// the buffered bytes are discarded.
func (r *Reader) Feed(chunk []byte) iter.Seq2[[]byte, error] {
	r.buf = append(r.buf, chunk...)

	return func(yield func([]byte, error) bool) {
		for {
			frame, ok, err := r.next()
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok {
				return
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}

// next extracts one complete frame, if the buffer holds one.
func (r *Reader) next() ([]byte, bool, error) {
	// Resume a little before the scanned mark so a delimiter that straddled
	// the previous chunk boundary is still found.
	from := r.scanned - len(r.delim) + 1
	if from < r.off {
		from = r.off
	}

	i := bytes.Index(r.buf[from:], r.delim)
	if i < 0 {
		r.scanned = len(r.buf)
		// The tail may end in a partial delimiter, so it can reach one byte
		// short of a whole delimiter past the limit and still be a legal frame.
		if len(r.buf)-r.off > r.maxFrameSize+len(r.delim)-1 {
			r.Reset()
			return nil, false, ErrFrameTooLarge
		}
		r.compact()
		return nil, false, nil
	}

	end := from + i
	if end-r.off > r.maxFrameSize {
		r.Reset()
		return nil, false, ErrFrameTooLarge
	}

	frame := bytes.Clone(r.buf[r.off:end])
	r.off = end + len(r.delim)
	r.scanned = r.off
	return frame, true, nil
}

// compact moves the unterminated tail to the front of the buffer.
func (r *Reader) compact() {
	if r.off == 0 {
		return
	}
	n := copy(r.buf, r.buf[r.off:])
	r.buf = r.buf[:n]
	r.scanned -= r.off
	r.off = 0
}

// Buffered returns the number of bytes held that do not yet form a frame.
func (r *Reader) Buffered() int {
	return len(r.buf) - r.off
}

// Reset discards all buffered bytes. It is called whenever a new
// connection starts.
func (r *Reader) Reset() {
	r.buf = r.buf[:0]
	r.off = 0
	r.scanned = 0
}
