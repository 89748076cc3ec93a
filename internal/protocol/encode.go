package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// authBody is the JSON body of an AUTH frame.
type authBody struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

// pingBody is the JSON body of a PING frame. The server echoes it back in
// the matching PONG.
type pingBody struct {
	PingTime int64  `json:"pingTime"`
	Token    string `json:"token,omitempty"`
}

// EncodeAuth builds the AUTH frame sent after READY.
func EncodeAuth(username, key string) []byte {
	return encode("AUTH: ", authBody{Username: username, Key: key})
}

// EncodePing builds a PING frame carrying the correlation token.
func EncodePing(token string, at time.Time) []byte {
	return encode("PING: ", pingBody{PingTime: at.UnixMilli(), Token: token})
}

func encode(prefix string, body any) []byte {
	// Marshal of these fixed structs cannot fail.
	data, _ := json.Marshal(body)

	var buf bytes.Buffer
	buf.Grow(len(prefix) + len(data) + len(Delimiter))
	buf.WriteString(prefix)
	buf.Write(data)
	buf.WriteString(Delimiter)
	return buf.Bytes()
}

// PongToken extracts the correlation token echoed in a PONG body.
func PongToken(body string) (string, error) {
	var p pingBody
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &p); err != nil {
		return "", fmt.Errorf("decode pong: %w", err)
	}
	return p.Token, nil
}
