// Package trigger detects when a transcript addresses the bot directly.
//
// Wake phrases come out of the transcription backend misspelled surprisingly
// often ("hey jimmie", "hey, Jimi"), so detection combines Double Metaphone
// phonetic codes with Jaro-Winkler similarity instead of exact substring
// matching. A phrase matches when every token of a transcript window aligns
// phonetically with the phrase and scores above the phonetic threshold, or
// when the pure string similarity clears a stricter fuzzy threshold.
package trigger

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.88
)

// Option is a functional option for configuring a [Detector].
type Option func(*Detector)

// WithPhoneticThreshold sets the minimum per-token Jaro-Winkler score for a
// phonetically-aligned window to count as a match. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum per-token Jaro-Winkler score when the
// window does not align phonetically. Default: 0.88.
func WithFuzzyThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.fuzzyThreshold = threshold
	}
}

// Detector matches wake phrases against noisy transcripts. Read-only after
// construction and safe for concurrent use.
type Detector struct {
	phrases           [][]string
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Detector for the given wake phrases ("hey jimmy",
// "hey assistant", ...). Blank phrases are ignored.
func New(phrases []string, opts ...Option) *Detector {
	d := &Detector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, p := range phrases {
		tokens := strings.Fields(strings.ToLower(p))
		if len(tokens) > 0 {
			d.phrases = append(d.phrases, tokens)
		}
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Addressed reports whether text contains any wake phrase, allowing for
// transcription noise. On a match it returns the canonical phrase that
// matched.
func (d *Detector) Addressed(text string) (phrase string, ok bool) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return "", false
	}

	for _, want := range d.phrases {
		if len(tokens) < len(want) {
			continue
		}
		for i := 0; i+len(want) <= len(tokens); i++ {
			if d.windowMatches(tokens[i:i+len(want)], want) {
				return strings.Join(want, " "), true
			}
		}
	}
	return "", false
}

// windowMatches aligns the window token-by-token against the phrase. Every
// pair must clear the phonetic threshold when its metaphone codes overlap, or
// the fuzzy threshold when they do not.
func (d *Detector) windowMatches(window, want []string) bool {
	for i, w := range want {
		got := window[i]
		if got == w {
			continue
		}
		score := matchr.JaroWinkler(got, w, false)
		if phoneticOverlap(got, w) {
			if score < d.phoneticThreshold {
				return false
			}
		} else if score < d.fuzzyThreshold {
			return false
		}
	}
	return true
}

// phoneticOverlap reports whether the two words share at least one Double
// Metaphone code.
func phoneticOverlap(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || (bs != "" && x == bs) {
			return true
		}
	}
	return false
}

// tokenize lowercases text and strips punctuation that transcription
// backends attach to words ("Jimmy," "jimmy?").
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
		})
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
