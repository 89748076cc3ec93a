// Package auth provides Benzinga feed credentials.
package auth

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ErrMissingKey is returned when neither an inline key nor a key file is set.
var ErrMissingKey = errors.New("API key is required")

// TokenParam is the query parameter carrying the API key on WebSocket URLs.
const TokenParam = "token"

// Credentials holds the account name and API key sent during the handshake.
type Credentials struct {
	Username string // Account name; may be empty for key-only accounts
	APIKey   string
}

// LoadCredentials builds credentials from an inline key or, when key is
// empty, from the first line of the file at keyPath.
func LoadCredentials(username, key, keyPath string) (*Credentials, error) {
	if key == "" && keyPath != "" {
		loaded, err := LoadKey(keyPath)
		if err != nil {
			return nil, fmt.Errorf("load api key: %w", err)
		}
		key = loaded
	}

	creds := &Credentials{
		Username: strings.TrimSpace(username),
		APIKey:   strings.TrimSpace(key),
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}

// LoadKey reads an API key from a file. Only the first non-empty line is used.
func LoadKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read key file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("key file %s is empty", path)
}

// Validate reports whether the credentials can be used for a handshake.
func (c *Credentials) Validate() error {
	if c == nil || c.APIKey == "" {
		return ErrMissingKey
	}
	if strings.ContainsAny(c.APIKey, " \t\r\n") {
		return errors.New("API key contains whitespace")
	}
	return nil
}

// Redacted returns the key with all but the last four characters masked,
// for logging.
func (c *Credentials) Redacted() string {
	if len(c.APIKey) <= 4 {
		return strings.Repeat("*", len(c.APIKey))
	}
	return strings.Repeat("*", len(c.APIKey)-4) + c.APIKey[len(c.APIKey)-4:]
}

// String implements fmt.Stringer without exposing the key.
func (c *Credentials) String() string {
	return fmt.Sprintf("%s/%s", c.Username, c.Redacted())
}

// SignURL returns rawURL with the API key attached as the token query
// parameter, replacing any token already present.
func (c *Credentials) SignURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}

	q := u.Query()
	q.Set(TokenParam, c.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
