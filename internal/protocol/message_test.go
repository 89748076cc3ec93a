package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		frame string
		want  Message
	}{
		{"READY", Message{Kind: KindReady}},
		{"CONNECTED", Message{Kind: KindConnectionAck}},
		{"Goodbye", Message{Kind: KindGoodbye}},
		{"GOODBYE", Message{Kind: KindGoodbye}},
		{"INVALID KEY FORMAT", Message{Kind: KindBadKeyFormat}},
		{"INVALID KEY", Message{Kind: KindBadKey}},
		{"DUPLICATE CONNECTION", Message{Kind: KindDuplicateConnection}},
		{"UNKNOWN COMMAND", Message{Kind: KindUnknownCommand}},
		{"ERROR: rate limited", Message{Kind: KindUnknownError, Body: "rate limited"}},
		{`PONG: {"token":"abc"}`, Message{Kind: KindPong, Body: `{"token":"abc"}`}},
		{`STREAM: {"id":1}`, Message{Kind: KindStreamEvent, Body: `{"id":1}`}},
		{"READY" + Delimiter, Message{Kind: KindReady}},
		{`STREAM: {"id":2}` + Delimiter, Message{Kind: KindStreamEvent, Body: `{"id":2}`}},
	}

	for _, tt := range tests {
		t.Run(tt.frame, func(t *testing.T) {
			got, err := Classify(tt.frame)
			if err != nil {
				t.Fatalf("Classify(%q) error: %v", tt.frame, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify(%q) mismatch (-want +got):\n%s", tt.frame, diff)
			}
		})
	}
}

func TestClassify_KeyFormatPrecedence(t *testing.T) {
	got, err := Classify("INVALID KEY FORMAT")
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if got.Kind != KindBadKeyFormat {
		t.Errorf("Kind = %v, want %v", got.Kind, KindBadKeyFormat)
	}
}

func TestClassify_Errors(t *testing.T) {
	tests := []struct {
		frame   string
		wantErr error
	}{
		{"HELLO", ErrInvalidMessage},
		{"", ErrInvalidMessage},
		{"stream: lowercase data prefix", ErrInvalidMessage},
		{`AUTH: {"username":"x"}`, ErrUnexpectedSignature},
		{`PING: {"pingTime":1}`, ErrUnexpectedSignature},
	}

	for _, tt := range tests {
		t.Run(tt.frame, func(t *testing.T) {
			_, err := Classify(tt.frame)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Classify(%q) error = %v, want %v", tt.frame, err, tt.wantErr)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	if got := KindBadKeyFormat.String(); got != "bad_key_format" {
		t.Errorf("String() = %q, want %q", got, "bad_key_format")
	}
	if got := Kind(0).String(); got != "unknown" {
		t.Errorf("String() = %q, want %q", got, "unknown")
	}
}

func TestEncodeAuth(t *testing.T) {
	frame := string(EncodeAuth("newsbot", "k3y"))

	if !strings.HasPrefix(frame, "AUTH: ") {
		t.Fatalf("frame %q missing AUTH prefix", frame)
	}
	if !strings.HasSuffix(frame, Delimiter) {
		t.Fatalf("frame %q missing delimiter", frame)
	}

	body := strings.TrimSuffix(strings.TrimPrefix(frame, "AUTH: "), Delimiter)
	var got map[string]string
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	want := map[string]string{"username": "newsbot", "key": "k3y"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("auth body mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodePing_RoundTripsToken(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	frame := string(EncodePing("tok-1", at))

	if !strings.HasPrefix(frame, "PING: ") || !strings.HasSuffix(frame, Delimiter) {
		t.Fatalf("malformed ping frame %q", frame)
	}

	// A server echoes the ping body in its PONG.
	body := strings.TrimSuffix(strings.TrimPrefix(frame, "PING: "), Delimiter)
	msg, err := Classify("PONG: " + body)
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	token, err := PongToken(msg.Body)
	if err != nil {
		t.Fatalf("PongToken error: %v", err)
	}
	if token != "tok-1" {
		t.Errorf("token = %q, want %q", token, "tok-1")
	}
	if !strings.Contains(body, `"pingTime":1709294400000`) {
		t.Errorf("body %s missing pingTime", body)
	}
}

func TestPongToken_Malformed(t *testing.T) {
	if _, err := PongToken("not json"); err == nil {
		t.Error("expected error for malformed pong body")
	}
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantOK  bool
		wantErr error
		want    Message
	}{
		{
			name:   "stream kind",
			data:   `{"kind":"News/v1","data":{"id":1}}`,
			wantOK: true,
			want:   Message{Kind: KindStreamEvent, Body: `{"id":1}`},
		},
		{
			name:   "kind matches ignoring case",
			data:   `{"kind":"news/V1","data":{"id":2}}`,
			wantOK: true,
			want:   Message{Kind: KindStreamEvent, Body: `{"id":2}`},
		},
		{
			name: "other kind skipped",
			data: `{"kind":"Heartbeat","data":{}}`,
		},
		{
			name:    "not json",
			data:    `hello`,
			wantErr: ErrInvalidEnvelope,
		},
		{
			name:    "missing kind",
			data:    `{"data":{"id":1}}`,
			wantErr: ErrInvalidEnvelope,
		},
		{
			name:    "missing data",
			data:    `{"kind":"News/v1"}`,
			wantErr: ErrInvalidEnvelope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := DecodeEnvelope([]byte(tt.data), DefaultStreamKind)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("message mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
