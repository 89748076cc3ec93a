// Package sentiment scores news text against a small word lexicon.
//
// Each distinct word of the text counts once, so repeating "beat" ten
// times scores the same as saying it once.
package sentiment

import (
	"strings"

	"github.com/rickgao/benzinga-stream/internal/model"
)

// DefaultLexicon maps lower-case words to their weight.
var DefaultLexicon = map[string]float64{
	"bad":      -0.5,
	"good":     0.5,
	"negative": -0.5,
	"great":    0.5,
	"growth":   0.5,
	"fail":     -0.5,
	"failed":   -0.5,
	"success":  0.5,
	"nailed":   0.5,
	"beat":     0.5,
	"missed":   -0.5,
}

// Signal is the trading direction implied by a score.
type Signal int

const (
	Neutral Signal = iota
	Long
	Short
)

func (s Signal) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "neutral"
	}
}

// Threshold is the absolute score at which a signal fires.
const Threshold = 0.5

// Scorer scores text with a lexicon. The zero value uses DefaultLexicon.
type Scorer struct {
	Lexicon map[string]float64
}

// Score sums the weights of the distinct lexicon words in text.
func (s Scorer) Score(text string) float64 {
	lex := s.Lexicon
	if lex == nil {
		lex = DefaultLexicon
	}

	seen := make(map[string]struct{})
	var sum float64
	for _, w := range strings.Fields(strings.ToLower(text)) {
		weight, ok := lex[w]
		if !ok {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		sum += weight
	}
	return sum
}

// ScoreEvent scores the title, teaser and body of an event together.
func (s Scorer) ScoreEvent(e model.NewsEvent) float64 {
	return s.Score(e.Title + " " + e.Teaser + " " + e.Body)
}

// Classify maps a score to a signal.
func Classify(score float64) Signal {
	switch {
	case score >= Threshold:
		return Long
	case score <= -Threshold:
		return Short
	default:
		return Neutral
	}
}

// Weight is the suggested portfolio fraction for a score: one fifth of the
// score, signed by direction.
func Weight(score float64) float64 {
	return score / 5
}
