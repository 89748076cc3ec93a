package connection

import (
	"iter"
	"strings"

	"github.com/rickgao/benzinga-stream/internal/framing"
	"github.com/rickgao/benzinga-stream/internal/protocol"
)

// Decoder turns transport data into classified messages. Each transport
// has its own wire format; both produce the same Message sequence. A
// Decoder belongs to one connection.
type Decoder interface {
	// Decode returns the messages completed by data, in order. An error
	// means the stream is corrupt and the connection must be reset.
	Decode(data []byte) iter.Seq2[protocol.Message, error]

	// Reset drops any partial state.
	Reset()
}

// frameDecoder reassembles delimiter-framed TCP chunks and classifies each
// frame.
type frameDecoder struct {
	reader *framing.Reader
}

// NewFrameDecoder creates the TCP decoder.
func NewFrameDecoder(maxFrameSize int) Decoder {
	return &frameDecoder{
		reader: framing.NewReader([]byte(protocol.Delimiter), maxFrameSize),
	}
}

func (d *frameDecoder) Decode(data []byte) iter.Seq2[protocol.Message, error] {
	frames := d.reader.Feed(data)

	return func(yield func(protocol.Message, error) bool) {
		for frame, err := range frames {
			if err != nil {
				yield(protocol.Message{}, err)
				return
			}
			// Blank keep-alive lines between frames carry nothing.
			if strings.TrimSpace(string(frame)) == "" {
				continue
			}
			msg, err := protocol.Classify(string(frame))
			if !yield(msg, err) || err != nil {
				return
			}
		}
	}
}

func (d *frameDecoder) Reset() {
	d.reader.Reset()
}

// envelopeDecoder decodes one JSON envelope per WebSocket message and keeps
// only the stream kind.
type envelopeDecoder struct {
	streamKind string
}

// NewEnvelopeDecoder creates the WebSocket decoder. An empty streamKind
// selects protocol.DefaultStreamKind.
func NewEnvelopeDecoder(streamKind string) Decoder {
	if streamKind == "" {
		streamKind = protocol.DefaultStreamKind
	}
	return &envelopeDecoder{streamKind: streamKind}
}

func (d *envelopeDecoder) Decode(data []byte) iter.Seq2[protocol.Message, error] {
	return func(yield func(protocol.Message, error) bool) {
		msg, ok, err := protocol.DecodeEnvelope(data, d.streamKind)
		if err != nil {
			yield(protocol.Message{}, err)
			return
		}
		if ok {
			yield(msg, nil)
		}
	}
}

func (d *envelopeDecoder) Reset() {}
