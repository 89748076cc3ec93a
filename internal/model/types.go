package model

import "slices"

// NewsEvent is one news item as delivered to subscribers.
//
// The feed publishes a story once with every symbol it mentions. The
// dispatcher hands each subscriber its own copy with Symbol set to the
// symbol that copy was delivered for.
type NewsEvent struct {
	ID        int64  // Benzinga story ID
	Author    string // Byline
	CreatedAt int64  // First publication (µs since epoch)
	UpdatedAt int64  // Last revision (µs since epoch), never before CreatedAt
	Title     string
	Teaser    string // Summary
	Body      string
	URL       string

	Channels []string // Categories (e.g. "News", "Earnings")
	Tags     []string
	Symbols  []string // All symbols the story references

	Symbol     string // Symbol this copy was delivered for
	ReceivedAt int64  // Local receipt time (µs since epoch)
}

// Clone returns a deep copy.
func (e *NewsEvent) Clone() NewsEvent {
	c := *e
	c.Channels = slices.Clone(e.Channels)
	c.Tags = slices.Clone(e.Tags)
	c.Symbols = slices.Clone(e.Symbols)
	return c
}

// ForSymbol returns a copy stamped with a delivery symbol and receipt time.
func (e *NewsEvent) ForSymbol(symbol string, receivedAt int64) NewsEvent {
	c := e.Clone()
	c.Symbol = symbol
	c.ReceivedAt = receivedAt
	return c
}

// References reports whether the story mentions symbol.
func (e *NewsEvent) References(symbol string) bool {
	return slices.Contains(e.Symbols, symbol)
}
