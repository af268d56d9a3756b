// Package vocab corrects misrecognized proper nouns in transcript text
// against a user supplied vocabulary.
//
// Matching runs in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each word of a phrase and of every term. A term whose codes overlap
//     those of the phrase is a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates the term with the
//     highest Jaro-Winkler similarity wins, provided the score reaches the
//     phonetic threshold. Without phonetic candidates, pure Jaro-Winkler
//     similarity is tested against the stricter fuzzy threshold.
//
// Multi-word terms ("Tower of Whispers") are matched against n-gram windows
// of the text, longest window first.
package vocab

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matched term. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) { c.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score when no phonetic
// match exists. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) { c.fuzzyThreshold = threshold }
}

// Correction records one replacement.
type Correction struct {
	Original   string
	Corrected  string
	Confidence float64
}

// term is a vocabulary entry with its phonetic codes precomputed.
type term struct {
	text   string
	lower  string
	tokens []string
	codes  map[string]struct{}
}

// Corrector replaces phrases that sound like vocabulary terms with the
// terms' canonical spelling. It is read-only after construction and safe for
// concurrent use.
type Corrector struct {
	terms             []term
	maxWords          int
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New prepares a Corrector for terms. Blank terms are ignored.
func New(terms []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	for _, t := range terms {
		lower := strings.ToLower(strings.TrimSpace(t))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		c.terms = append(c.terms, term{
			text:   strings.TrimSpace(t),
			lower:  lower,
			tokens: tokens,
			codes:  codesForTokens(tokens),
		})
		c.maxWords = max(c.maxWords, len(tokens), 2)
	}
	return c
}

// Len returns the number of vocabulary terms.
func (c *Corrector) Len() int { return len(c.terms) }

// Correct returns text with every matched phrase replaced.
func (c *Corrector) Correct(text string) string {
	out, _ := c.Apply(text)
	return out
}

// Apply corrects text and lists the replacements made. Punctuation around a
// matched phrase is kept. Words are rejoined with single spaces only when a
// replacement happened; otherwise text is returned unchanged.
func (c *Corrector) Apply(text string) (string, []Correction) {
	if len(c.terms) == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var (
		out         []string
		corrections []Correction
	)
	for i := 0; i < len(tokens); {
		n := min(c.maxWords, len(tokens)-i)
		matched := false
		for ; n >= 1; n-- {
			lead, window, trail := trimWindow(tokens[i : i+n])
			if window == "" {
				continue
			}
			t, score, ok := c.match(window)
			if !ok {
				continue
			}
			if t.text != window {
				corrections = append(corrections, Correction{Original: window, Corrected: t.text, Confidence: score})
			}
			out = append(out, lead+t.text+trail)
			i += n
			matched = true
			break
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}

	if len(corrections) == 0 {
		return text, nil
	}
	return strings.Join(out, " "), corrections
}

// match finds the best term for phrase. A phrase is compared with terms of
// the same word count. A two-word phrase is also compared with single-word
// terms by its space-stripped form, since recognizers tend to split
// unfamiliar names ("elder nacks" for "Eldrinax"); such a split only matches
// when the joined form sounds like the term.
func (c *Corrector) match(phrase string) (term, float64, bool) {
	lower := strings.ToLower(phrase)
	tokens := strings.Fields(lower)
	joined := strings.Join(tokens, "")
	codes := codesForTokens(tokens)

	var (
		best         term
		bestScore    float64
		bestPhonetic bool
		found        bool
	)
	consider := func(t term, score float64, phonetic bool) {
		switch {
		case phonetic && score >= c.phoneticThreshold && (!bestPhonetic || score > bestScore):
			best, bestScore, bestPhonetic, found = t, score, true, true
		case !phonetic && !bestPhonetic && score >= c.fuzzyThreshold && score > bestScore:
			best, bestScore, found = t, score, true
		}
	}

	for _, t := range c.terms {
		tJoined := strings.Join(t.tokens, "")
		if !similarLength(joined, tJoined) {
			continue
		}
		switch {
		case len(tokens) == len(t.tokens):
			score := matchr.JaroWinkler(lower, t.lower, false)
			if len(tokens) > 1 {
				score = max(score, matchr.JaroWinkler(joined, tJoined, false))
			}
			consider(t, score, codesOverlap(codes, t.codes))
		case len(tokens) == 2 && len(t.tokens) == 1:
			if codesOverlap(codesForTokens([]string{joined}), t.codes) {
				consider(t, matchr.JaroWinkler(joined, tJoined, false), true)
			}
		}
	}
	return best, bestScore, found
}

// similarLength reports whether a and b differ by at most a quarter of b's
// length in runes, with a minimum allowance of two.
func similarLength(a, b string) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	return diff <= max(2, lb/4)
}

// trimWindow joins tokens and splits off the punctuation before the first
// and after the last letter or digit.
func trimWindow(tokens []string) (lead, core, trail string) {
	s := strings.Join(tokens, " ")
	start := strings.IndexFunc(s, isWordRune)
	if start < 0 {
		return "", "", ""
	}
	end := strings.LastIndexFunc(s, isWordRune)
	// Advance past the full last rune.
	for end+1 < len(s) && !isRuneStart(s[end+1]) {
		end++
	}
	return s[:start], s[start : end+1], s[end+1:]
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// codesForTokens returns the union of the Double Metaphone codes of tokens.
// Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
