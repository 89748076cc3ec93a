package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Errors
var (
	ErrMissingID        = errors.New("news payload has no id")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// timeLayouts are the formats the feed has used for created/updated.
var timeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

type namedItem struct {
	Name string `json:"name"`
}

// newsPayload is the JSON shape of a story on both transports.
type newsPayload struct {
	ID       json.Number `json:"id"`
	Author   string      `json:"author"`
	Created  string      `json:"created"`
	Updated  string      `json:"updated"`
	Title    string      `json:"title"`
	Teaser   string      `json:"teaser"`
	Body     string      `json:"body"`
	URL      string      `json:"url"`
	Channels []namedItem `json:"channels"`
	Tags     []namedItem `json:"tags"`
	Stocks   []namedItem `json:"stocks"`
}

// NewsMapper converts raw story JSON into NewsEvents.
type NewsMapper struct{}

// Parse implements the payload mapper used by the dispatcher.
func (NewsMapper) Parse(raw string) (*NewsEvent, error) {
	return ParseNews(raw)
}

// ParseNews decodes one story. Symbols are upper-cased and de-duplicated.
// An updated time earlier than the created time is raised to the created
// time.
func ParseNews(raw string) (*NewsEvent, error) {
	var p newsPayload
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode news: %w", err)
	}

	if p.ID == "" {
		return nil, ErrMissingID
	}
	id, err := p.ID.Int64()
	if err != nil {
		return nil, fmt.Errorf("news id %q: %w", p.ID, err)
	}

	created, err := parseTime(p.Created)
	if err != nil {
		return nil, fmt.Errorf("created: %w", err)
	}
	updated, err := parseTime(p.Updated)
	if err != nil {
		return nil, fmt.Errorf("updated: %w", err)
	}
	if updated < created {
		updated = created
	}

	return &NewsEvent{
		ID:        id,
		Author:    p.Author,
		CreatedAt: created,
		UpdatedAt: updated,
		Title:     p.Title,
		Teaser:    p.Teaser,
		Body:      p.Body,
		URL:       p.URL,
		Channels:  names(p.Channels, false),
		Tags:      names(p.Tags, false),
		Symbols:   names(p.Stocks, true),
	}, nil
}

// parseTime returns µs since epoch. Empty input maps to zero.
func parseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMicro(), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

func names(items []namedItem, upper bool) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if upper {
			name = strings.ToUpper(name)
		}
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
