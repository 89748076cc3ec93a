// Package subscription tracks which symbols have subscribers.
//
// All reads and writes go through one lock, so a dispatch that resolves its
// targets sees either the whole set before a concurrent Subscribe or the
// whole set after it.
package subscription

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/rickgao/benzinga-stream/internal/model"
)

// MaxSymbolLength bounds an eligible symbol.
const MaxSymbolLength = 32

// ErrIneligibleSymbol is returned for symbols that cannot be subscribed.
var ErrIneligibleSymbol = errors.New("symbol is not eligible for subscription")

// Sink receives delivered news events.
type Sink interface {
	Update(event model.NewsEvent)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(event model.NewsEvent)

// Update calls f(event).
func (f SinkFunc) Update(event model.NewsEvent) { f(event) }

// Mode selects which symbols of an event are delivered.
type Mode int

const (
	// ModeOverride delivers every symbol the event references, subscribed
	// or not.
	ModeOverride Mode = iota
	// ModeStrict delivers only subscribed symbols.
	ModeStrict
)

func (m Mode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "override"
}

// ParseMode parses "strict" or "override".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "override", "":
		return ModeOverride, nil
	case "strict":
		return ModeStrict, nil
	default:
		return ModeOverride, fmt.Errorf("unknown dispatch mode %q", s)
	}
}

// Target is one delivery resolved for an event.
type Target struct {
	Symbol string
	Sink   Sink
}

type entry struct {
	sub  *Subscription
	sink Sink
}

// Registry maps symbols to subscribers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	symbol   string
	registry *Registry
}

// Symbol returns the normalized subscribed symbol.
func (s *Subscription) Symbol() string {
	return s.symbol
}

// Cancel removes this subscription. It does not remove a later
// subscription for the same symbol and is safe to call more than once.
func (s *Subscription) Cancel() {
	r := s.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[s.symbol]; ok && e.sub == s {
		delete(r.entries, s.symbol)
	}
}

// Normalize returns the registry key for symbol, or false if the symbol is
// not eligible.
func Normalize(symbol string) (string, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || len(symbol) > MaxSymbolLength {
		return "", false
	}
	if strings.IndexFunc(symbol, unicode.IsSpace) >= 0 {
		return "", false
	}
	return symbol, true
}

// Subscribe registers sink for symbol. Subscribing a symbol that is already
// present is a no-op that returns the existing handle.
func (r *Registry) Subscribe(symbol string, sink Sink) (*Subscription, error) {
	key, ok := Normalize(symbol)
	if !ok || sink == nil {
		return nil, fmt.Errorf("%w: %q", ErrIneligibleSymbol, symbol)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		return e.sub, nil
	}
	sub := &Subscription{symbol: key, registry: r}
	r.entries[key] = entry{sub: sub, sink: sink}
	return sub, nil
}

// Unsubscribe removes symbol. Removing an absent symbol is a no-op.
func (r *Registry) Unsubscribe(symbol string) {
	key, ok := Normalize(symbol)
	if !ok {
		return
	}
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
}

// Has reports whether symbol is subscribed.
func (r *Registry) Has(symbol string) bool {
	key, ok := Normalize(symbol)
	if !ok {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok = r.entries[key]
	return ok
}

// Len returns the number of subscribed symbols.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Symbols returns the subscribed symbols in sorted order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.entries))
	for s := range r.entries {
		out = append(out, s)
	}
	r.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Resolve returns the deliveries for an event referencing symbols, taken
// from a single snapshot of the registry. In strict mode only subscribed
// symbols are returned. In override mode every referenced symbol is
// returned, using the subscriber's sink when there is one and fallback
// otherwise; symbols with neither are skipped.
func (r *Registry) Resolve(symbols []string, mode Mode, fallback Sink) []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]Target, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		key, ok := Normalize(s)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if e, ok := r.entries[key]; ok {
			targets = append(targets, Target{Symbol: key, Sink: e.sink})
			continue
		}
		if mode == ModeOverride && fallback != nil {
			targets = append(targets, Target{Symbol: key, Sink: fallback})
		}
	}
	return targets
}
