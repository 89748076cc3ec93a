package auth

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCredentials_Inline(t *testing.T) {
	creds, err := LoadCredentials(" alice ", "abc123", "")
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds.Username != "alice" {
		t.Errorf("Username = %q, want %q", creds.Username, "alice")
	}
	if creds.APIKey != "abc123" {
		t.Errorf("APIKey = %q, want %q", creds.APIKey, "abc123")
	}
}

func TestLoadCredentials_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api-key")
	if err := os.WriteFile(path, []byte("\n  file-key  \nsecond-line\n"), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	creds, err := LoadCredentials("alice", "", path)
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds.APIKey != "file-key" {
		t.Errorf("APIKey = %q, want %q", creds.APIKey, "file-key")
	}
}

func TestLoadCredentials_InlineWinsOverFile(t *testing.T) {
	creds, err := LoadCredentials("", "inline", "/does/not/exist")
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds.APIKey != "inline" {
		t.Errorf("APIKey = %q, want %q", creds.APIKey, "inline")
	}
}

func TestLoadCredentials_Errors(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, []byte("\n\n"), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	tests := []struct {
		name    string
		key     string
		keyPath string
	}{
		{"missing key", "", ""},
		{"file not found", "", "/nonexistent/key"},
		{"empty file", "", empty},
		{"whitespace in key", "abc def", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadCredentials("alice", tt.key, tt.keyPath); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	if _, err := LoadCredentials("alice", "", ""); !errors.Is(err, ErrMissingKey) {
		t.Errorf("error = %v, want ErrMissingKey", err)
	}
}

func TestCredentials_Redacted(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"abcdef123456", "********3456"},
		{"abcd", "****"},
		{"", ""},
	}
	for _, tt := range tests {
		c := &Credentials{APIKey: tt.key}
		if got := c.Redacted(); got != tt.want {
			t.Errorf("Redacted(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}

	c := &Credentials{Username: "alice", APIKey: "supersecretkey"}
	if s := c.String(); strings.Contains(s, "supersecret") {
		t.Errorf("String() leaks key: %q", s)
	}
}

func TestCredentials_SignURL(t *testing.T) {
	c := &Credentials{APIKey: "k&y=1"}

	signed, err := c.SignURL("wss://api.example.test/api/v1/news/stream?token=old&format=json")
	if err != nil {
		t.Fatalf("SignURL failed: %v", err)
	}

	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("signed url does not parse: %v", err)
	}
	if got := u.Query().Get(TokenParam); got != "k&y=1" {
		t.Errorf("token = %q, want %q", got, "k&y=1")
	}
	if got := u.Query()["token"]; len(got) != 1 {
		t.Errorf("token appears %d times, want 1", len(got))
	}
	if got := u.Query().Get("format"); got != "json" {
		t.Errorf("format = %q, want %q", got, "json")
	}
	if u.Path != "/api/v1/news/stream" {
		t.Errorf("Path = %q", u.Path)
	}
}

func TestCredentials_SignURL_Invalid(t *testing.T) {
	c := &Credentials{APIKey: "key"}
	for _, raw := range []string{"", "/relative/path", "://bad"} {
		if _, err := c.SignURL(raw); err == nil {
			t.Errorf("SignURL(%q) expected error", raw)
		}
	}
}
