package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultStreamKind is the envelope kind carrying news items.
const DefaultStreamKind = "News/v1"

// Envelope is one WebSocket message.
type Envelope struct {
	ID         string          `json:"id,omitempty"`
	APIVersion string          `json:"api_version,omitempty"`
	Kind       string          `json:"kind"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a WebSocket message. Only an envelope whose kind
// equals streamKind (ignoring case) produces a StreamEvent; other kinds
// return ok=false and are skipped by the caller.
func DecodeEnvelope(data []byte, streamKind string) (msg Message, ok bool, err error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, false, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.Kind == "" {
		return Message{}, false, fmt.Errorf("%w: missing kind", ErrInvalidEnvelope)
	}
	if !strings.EqualFold(env.Kind, streamKind) {
		return Message{}, false, nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return Message{}, false, fmt.Errorf("%w: missing data", ErrInvalidEnvelope)
	}
	return Message{Kind: KindStreamEvent, Body: string(env.Data)}, true, nil
}
