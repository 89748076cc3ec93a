// Package protocol classifies Benzinga stream frames and encodes the
// outbound control messages.
//
// The TCP feed is a line protocol: each frame starts with a fixed
// signature (READY, CONNECTED, STREAM: ...) and ends with Delimiter. The
// WebSocket feed carries JSON envelopes instead; DecodeEnvelope turns
// those into the same Message type so the rest of the client does not
// care which transport produced a frame.
package protocol

import (
	"errors"
	"strings"
)

// Delimiter terminates every frame on the TCP feed.
const Delimiter = "=BZEOT\r\n"

// Errors
var (
	ErrInvalidMessage      = errors.New("invalid message")
	ErrUnexpectedSignature = errors.New("send-only signature received")
	ErrInvalidEnvelope     = errors.New("invalid envelope")
)

// Kind identifies a server message.
type Kind int

const (
	KindReady Kind = iota + 1
	KindConnectionAck
	KindGoodbye
	KindBadKey
	KindBadKeyFormat
	KindDuplicateConnection
	KindUnknownCommand
	KindUnknownError
	KindPong
	KindStreamEvent
)

var kindNames = map[Kind]string{
	KindReady:               "ready",
	KindConnectionAck:       "connection_ack",
	KindGoodbye:             "goodbye",
	KindBadKey:              "bad_key",
	KindBadKeyFormat:        "bad_key_format",
	KindDuplicateConnection: "duplicate_connection",
	KindUnknownCommand:      "unknown_command",
	KindUnknownError:        "unknown_error",
	KindPong:                "pong",
	KindStreamEvent:         "stream_event",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Message is a classified server frame. Body holds the text after the
// signature for kinds that carry one (error detail, pong payload, stream
// event JSON) and is empty otherwise.
type Message struct {
	Kind Kind
	Body string
}

// signature maps a frame prefix to a Kind. Control keywords match without
// regard to case; data prefixes are matched exactly and the remainder of
// the frame becomes the body.
type signature struct {
	prefix  string
	kind    Kind
	control bool
}

// signatures is checked in order. INVALID KEY FORMAT must precede
// INVALID KEY because the latter is a prefix of the former.
var signatures = []signature{
	{prefix: "READY", kind: KindReady, control: true},
	{prefix: "CONNECTED", kind: KindConnectionAck, control: true},
	{prefix: "GOODBYE", kind: KindGoodbye, control: true},
	{prefix: "INVALID KEY FORMAT", kind: KindBadKeyFormat, control: true},
	{prefix: "INVALID KEY", kind: KindBadKey, control: true},
	{prefix: "DUPLICATE CONNECTION", kind: KindDuplicateConnection, control: true},
	{prefix: "UNKNOWN COMMAND", kind: KindUnknownCommand, control: true},
	{prefix: "ERROR: ", kind: KindUnknownError},
	{prefix: "PONG: ", kind: KindPong},
	{prefix: "STREAM: ", kind: KindStreamEvent},
}

// outbound signatures only the client may send.
var sendOnly = []string{"AUTH: ", "PING: "}

// Classify maps a frame to a Message. A trailing delimiter, if still
// attached, is ignored.
func Classify(frame string) (Message, error) {
	frame = strings.TrimSuffix(frame, Delimiter)

	for _, sig := range signatures {
		if sig.control {
			if len(frame) >= len(sig.prefix) && strings.EqualFold(frame[:len(sig.prefix)], sig.prefix) {
				return Message{Kind: sig.kind, Body: strings.TrimSpace(frame[len(sig.prefix):])}, nil
			}
			continue
		}
		if body, ok := strings.CutPrefix(frame, sig.prefix); ok {
			return Message{Kind: sig.kind, Body: body}, nil
		}
	}

	for _, prefix := range sendOnly {
		if strings.HasPrefix(frame, prefix) {
			return Message{}, ErrUnexpectedSignature
		}
	}

	return Message{}, ErrInvalidMessage
}
