package pipeline

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/vadscribe/pkg/provider/stt"
)

// SentenceUnit is one sentence of the transcript. Start and End are
// absolute seconds from the start of the input file.
type SentenceUnit struct {
	Text  string
	Start float64
	End   float64
}

// maxJoinGap is the largest pause, in seconds, across which an unterminated
// piece of text is joined with the following one.
const maxJoinGap = 2.0

// piece is a run of text with clip-relative bounds. terminated is set when
// the text ends a sentence.
type piece struct {
	text       string
	start, end float64
	terminated bool
}

// Normalize splits a recognition result into sentence units and shifts them
// by offset seconds onto the file timeline.
//
// Sentences end at sentence-final punctuation. Sentence text comes from the
// segment text, and from the words only when the segment has none. When a
// segment carries word timings the sentence bounds come from the first and
// last word each sentence covers; otherwise the segment's time is
// apportioned by each sentence's share of its non-space characters. Text left unterminated at the end of a segment is
// joined with the start of the next one unless the pause between them
// exceeds two seconds.
//
// An empty result yields no units and no error. A result that fails
// stt.Validate yields an error wrapping stt.ErrMalformedResult.
func Normalize(res *stt.Result, offset float64) ([]SentenceUnit, error) {
	if err := stt.Validate(res); err != nil {
		return nil, err
	}

	var pieces []piece
	for _, seg := range res.Segments {
		if len(seg.Words) > 0 {
			pieces = append(pieces, splitTimed(seg)...)
		} else {
			pieces = append(pieces, splitSegment(seg)...)
		}
	}

	var (
		units []SentenceUnit
		carry *piece
	)
	emit := func(p piece) {
		text := strings.TrimSpace(p.text)
		if text == "" {
			return
		}
		units = append(units, SentenceUnit{Text: text, Start: p.start + offset, End: p.end + offset})
	}
	for _, p := range pieces {
		if carry != nil {
			if p.start-carry.end <= maxJoinGap {
				p.text = joinText(carry.text, p.text)
				p.start = min(p.start, carry.start)
				p.end = max(p.end, carry.end)
			} else {
				emit(*carry)
			}
			carry = nil
		}
		if p.terminated {
			emit(p)
			continue
		}
		c := p
		carry = &c
	}
	if carry != nil {
		emit(*carry)
	}
	return units, nil
}

// splitTimed cuts a segment's text into sentences and times each sentence
// by the words it covers. Words are lined up with the text by their
// non-space bytes, so subword tokens that split a character still map
// correctly. When the word texts do not add up to the segment text (an
// engine that reports punctuation only in the text) positions are scaled.
func splitTimed(seg stt.Segment) []piece {
	text := seg.Text
	if strings.TrimSpace(text) == "" {
		text = wordsText(seg.Words)
	}
	textTotal := nonSpaceBytes(text)
	if textTotal == 0 {
		return nil
	}

	ends := make([]int, len(seg.Words))
	total := 0
	for i, w := range seg.Words {
		total += nonSpaceBytes(w.Text)
		ends[i] = total
	}
	if total == 0 {
		return splitSegment(stt.Segment{Start: seg.Start, End: seg.End, Text: text})
	}

	var out []piece
	pos := 0
	for _, s := range splitSentences(text) {
		n := nonSpaceBytes(s.text)
		from, to := pos, pos+n
		pos = to
		if n == 0 {
			continue
		}
		lo := scale(from, total, textTotal)
		hi := max(scale(to, total, textTotal), lo+1)
		first := min(sort.SearchInts(ends, lo+1), len(ends)-1)
		last := max(min(sort.SearchInts(ends, hi), len(ends)-1), first)

		p := piece{text: s.text, start: seg.Words[first].Start, end: seg.Words[first].End, terminated: s.terminated}
		for _, w := range seg.Words[first+1 : last+1] {
			p.end = max(p.end, w.End)
		}
		out = append(out, p)
	}
	return out
}

// scale maps byte position pos of a text with textTotal non-space bytes
// onto words totalling total bytes, rounding to the nearest byte.
func scale(pos, total, textTotal int) int {
	return (2*pos*total + textTotal) / (2 * textTotal)
}

// wordsText rebuilds a segment's text from its words. Subword tokens carry
// their own spacing (or split a multi-byte character) and are concatenated
// verbatim; bare words are joined with joinWord.
func wordsText(words []stt.Word) string {
	verbatim := false
	for _, w := range words {
		first, _ := utf8.DecodeRuneInString(w.Text)
		if unicode.IsSpace(first) || !utf8.ValidString(w.Text) {
			verbatim = true
			break
		}
	}
	var text string
	for _, w := range words {
		switch {
		case verbatim:
			text += w.Text
		case strings.TrimSpace(w.Text) != "":
			text = joinWord(text, w.Text)
		}
	}
	return text
}

// nonSpaceBytes counts the bytes of s that are not ASCII whitespace. Unlike
// a rune count it is additive over tokens that split a UTF-8 sequence.
func nonSpaceBytes(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r', '\v', '\f':
		default:
			n++
		}
	}
	return n
}

// splitSegment cuts a segment's text into sentences and apportions the
// segment's duration among them by character share.
func splitSegment(seg stt.Segment) []piece {
	sentences := splitSentences(seg.Text)
	weights := make([]int, len(sentences))
	total := 0
	for i, s := range sentences {
		weights[i] = countNonSpace(s.text)
		total += weights[i]
	}
	if total == 0 {
		return nil
	}

	dur := seg.End - seg.Start
	out := make([]piece, 0, len(sentences))
	cum := 0
	for i, s := range sentences {
		start := seg.Start + dur*float64(cum)/float64(total)
		cum += weights[i]
		end := seg.Start + dur*float64(cum)/float64(total)
		if weights[i] == 0 {
			continue
		}
		out = append(out, piece{text: s.text, start: start, end: end, terminated: s.terminated})
	}
	return out
}

type sentence struct {
	text       string
	terminated bool
}

// splitSentences cuts text after each run of sentence-final punctuation and
// any closing quotes or brackets that follow it.
func splitSentences(text string) []sentence {
	var (
		out   []sentence
		start int
	)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isTerminator(r) || !terminatesAt(text, i, r, size) {
			i += size
			continue
		}
		j := i + size
		for j < len(text) {
			r2, s2 := utf8.DecodeRuneInString(text[j:])
			if !isTerminator(r2) && !isCloser(r2) {
				break
			}
			j += s2
		}
		out = append(out, sentence{text: text[start:j], terminated: true})
		start, i = j, j
	}
	if start < len(text) {
		out = append(out, sentence{text: text[start:]})
	}
	return out
}

// terminatesAt reports whether the terminator r at byte offset i ends a
// sentence. A full stop only counts when followed by whitespace, a closer or
// the end of the text, which keeps decimals like "3.14" and the inner dots
// of abbreviations intact.
func terminatesAt(text string, i int, r rune, size int) bool {
	if r != '.' {
		return true
	}
	rest := text[i+size:]
	if rest == "" {
		return true
	}
	next, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsSpace(next) || isCloser(next) || isTerminator(next)
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '…', '．':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '」', '』', '）', '】', '”', '’', '»':
		return true
	}
	return false
}

// joinWord appends a word to text. Words that carry their own leading space
// are appended verbatim; otherwise a space is inserted unless either side of
// the join is CJK script.
func joinWord(text, word string) string {
	if word == "" {
		return text
	}
	first, _ := utf8.DecodeRuneInString(word)
	if unicode.IsSpace(first) {
		return text + word
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	if text == "" || isCJK(last) || isCJK(first) {
		return text + word
	}
	return text + " " + word
}

// joinText joins two pieces of sentence text across a segment boundary.
func joinText(a, b string) string {
	a = strings.TrimRightFunc(a, unicode.IsSpace)
	b = strings.TrimLeftFunc(b, unicode.IsSpace)
	if a == "" {
		return b
	}
	return joinWord(a, b)
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) ||
		(r >= 0x3000 && r <= 0x303F) || (r >= 0xFF00 && r <= 0xFFEF)
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
