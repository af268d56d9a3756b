package pipeline_test

import (
	"errors"
	"math"
	"testing"
	"unicode/utf8"

	"github.com/MrWong99/vadscribe/internal/pipeline"
	"github.com/MrWong99/vadscribe/pkg/provider/stt"
)

func unitTexts(units []pipeline.SentenceUnit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Text
	}
	return out
}

func assertTexts(t *testing.T, units []pipeline.SentenceUnit, want ...string) {
	t.Helper()
	got := unitTexts(units)
	if len(got) != len(want) {
		t.Fatalf("got %d units %q, want %d %q", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("unit %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	for name, res := range map[string]*stt.Result{
		"no segments":      {},
		"blank segment":    {Segments: []stt.Segment{{Start: 0, End: 1, Text: "   "}}},
		"blank word texts": {Segments: []stt.Segment{{Start: 0, End: 1, Words: []stt.Word{{Text: " ", Start: 0, End: 1}}}}},
	} {
		t.Run(name, func(t *testing.T) {
			units, err := pipeline.Normalize(res, 5)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(units) != 0 {
				t.Errorf("got %d units, want 0", len(units))
			}
		})
	}
}

func TestNormalize_SplitsByCharacterShare(t *testing.T) {
	res := &stt.Result{Segments: []stt.Segment{{Start: 0, End: 2, Text: " Hi. Bye!"}}}
	units, err := pipeline.Normalize(res, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTexts(t, units, "Hi.", "Bye!")

	// "Hi." has 3 of 7 non-space characters.
	split := 10 + 2*3.0/7
	if !approx(units[0].Start, 10) || !approx(units[0].End, split) {
		t.Errorf("unit 0 = [%v, %v], want [10, %v]", units[0].Start, units[0].End, split)
	}
	if !approx(units[1].Start, split) || !approx(units[1].End, 12) {
		t.Errorf("unit 1 = [%v, %v], want [%v, 12]", units[1].Start, units[1].End, split)
	}
}

func TestNormalize_KeepsInnerDots(t *testing.T) {
	units, err := pipeline.Normalize(segments("Pi is 3.14 per www.example.org today. Done"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTexts(t, units, "Pi is 3.14 per www.example.org today.", "Done")
}

func TestNormalize_ClosingQuotesStayWithSentence(t *testing.T) {
	units, err := pipeline.Normalize(segments(`He said "stop!" Then he left.`), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTexts(t, units, `He said "stop!"`, "Then he left.")
}

func TestNormalize_CJK(t *testing.T) {
	units, err := pipeline.Normalize(segments("こんにちは。元気ですか？"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTexts(t, units, "こんにちは。", "元気ですか？")
}

func TestNormalize_WordTimings(t *testing.T) {
	res := &stt.Result{Segments: []stt.Segment{{
		Start: 0, End: 2, Text: " Hello world. Next one?",
		Words: []stt.Word{
			{Text: " Hello", Start: 0, End: 0.5},
			{Text: " world.", Start: 0.5, End: 1},
			{Text: " Next", Start: 1.2, End: 1.5},
			{Text: " one?", Start: 1.5, End: 2},
		},
	}}}
	units, err := pipeline.Normalize(res, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTexts(t, units, "Hello world.", "Next one?")
	if !approx(units[0].Start, 1) || !approx(units[0].End, 2) {
		t.Errorf("unit 0 = [%v, %v], want [1, 2]", units[0].Start, units[0].End)
	}
	if !approx(units[1].Start, 2.2) || !approx(units[1].End, 3) {
		t.Errorf("unit 1 = [%v, %v], want [2.2, 3]", units[1].Start, units[1].End)
	}
}

func TestNormalize_WordsWithoutLeadingSpace(t *testing.T) {
	res := &stt.Result{Segments: []stt.Segment{{
		Start: 0, End: 1,
		Words: []stt.Word{
			{Text: "Good", Start: 0, End: 0.4},
			{Text: "morning.", Start: 0.4, End: 1},
		},
	}}}
	units, err := pipeline.Normalize(res, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTexts(t, units, "Good morning.")
}

func TestNormalize_SubwordTokens(t *testing.T) {
	tokens := []stt.Word{
		{Text: " Hel", Start: 0, End: 0.2},
		{Text: "lo", Start: 0.2, End: 0.4},
		{Text: ",", Start: 0.4, End: 0.45},
		{Text: " every", Start: 0.5, End: 0.8},
		{Text: "one", Start: 0.8, End: 1},
		{Text: ".", Start: 1, End: 1.1},
	}
	for name, text := range map[string]string{
		"with segment text": " Hello, everyone.",
		"tokens only":       "",
	} {
		t.Run(name, func(t *testing.T) {
			res := &stt.Result{Segments: []stt.Segment{{Start: 0, End: 1.1, Text: text, Words: tokens}}}
			units, err := pipeline.Normalize(res, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertTexts(t, units, "Hello, everyone.")
			if !approx(units[0].Start, 0) || !approx(units[0].End, 1.1) {
				t.Errorf("unit = [%v, %v], want [0, 1.1]", units[0].Start, units[0].End)
			}
		})
	}
}

func TestNormalize_TokenSplitsMultiByteRune(t *testing.T) {
	// "こ" is E3 81 93; the first token ends in the middle of it.
	tokens := []stt.Word{
		{Text: "\xe3\x81", Start: 0, End: 0.1},
		{Text: "\x93んにちは", Start: 0.1, End: 0.8},
		{Text: "。", Start: 0.8, End: 0.9},
		{Text: "元気", Start: 1.5, End: 1.9},
		{Text: "？", Start: 1.9, End: 2},
	}
	for name, text := range map[string]string{
		"with segment text": "こんにちは。元気？",
		"tokens only":       "",
	} {
		t.Run(name, func(t *testing.T) {
			res := &stt.Result{Segments: []stt.Segment{{Start: 0, End: 2, Text: text, Words: tokens}}}
			units, err := pipeline.Normalize(res, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertTexts(t, units, "こんにちは。", "元気？")
			for i, u := range units {
				if !utf8.ValidString(u.Text) {
					t.Errorf("unit %d is not valid UTF-8: %q", i, u.Text)
				}
			}
			if !approx(units[0].End, 0.9) || !approx(units[1].Start, 1.5) {
				t.Errorf("units = %+v, want break between 0.9 and 1.5", units)
			}
		})
	}
}

func TestNormalize_TokensTimeEachSentence(t *testing.T) {
	res := &stt.Result{Segments: []stt.Segment{{
		Start: 0, End: 1.4, Text: " Hi there. Bye.",
		Words: []stt.Word{
			{Text: " Hi", Start: 0, End: 0.3},
			{Text: " there", Start: 0.3, End: 0.6},
			{Text: ".", Start: 0.6, End: 0.7},
			{Text: " By", Start: 1, End: 1.2},
			{Text: "e", Start: 1.2, End: 1.3},
			{Text: ".", Start: 1.3, End: 1.4},
		},
	}}}
	units, err := pipeline.Normalize(res, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTexts(t, units, "Hi there.", "Bye.")
	if !approx(units[0].Start, 2) || !approx(units[0].End, 2.7) {
		t.Errorf("unit 0 = [%v, %v], want [2, 2.7]", units[0].Start, units[0].End)
	}
	if !approx(units[1].Start, 3) || !approx(units[1].End, 3.4) {
		t.Errorf("unit 1 = [%v, %v], want [3, 3.4]", units[1].Start, units[1].End)
	}
}

func TestNormalize_BareWordsWithoutPunctuation(t *testing.T) {
	// Word lists without punctuation, as hosted APIs return them, are
	// aligned with the punctuated segment text by scaling.
	res := &stt.Result{Segments: []stt.Segment{{
		Start: 0, End: 2, Text: "Hello, world. Bye.",
		Words: []stt.Word{
			{Text: "Hello", Start: 0, End: 0.5},
			{Text: "world", Start: 0.5, End: 1},
			{Text: "Bye", Start: 1.5, End: 2},
		},
	}}}
	units, err := pipeline.Normalize(res, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTexts(t, units, "Hello, world.", "Bye.")
	if !approx(units[0].End, 1) || !approx(units[1].Start, 1.5) {
		t.Errorf("units = %+v, want break between 1 and 1.5", units)
	}
}

func TestNormalize_JoinsAcrossSegments(t *testing.T) {
	res := &stt.Result{Segments: []stt.Segment{
		{Start: 0, End: 1, Text: " This is"},
		{Start: 1.5, End: 2.5, Text: " one sentence."},
	}}
	units, err := pipeline.Normalize(res, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTexts(t, units, "This is one sentence.")
	if !approx(units[0].Start, 0) || !approx(units[0].End, 2.5) {
		t.Errorf("unit = [%v, %v], want [0, 2.5]", units[0].Start, units[0].End)
	}
}

func TestNormalize_LongPauseBreaksSentence(t *testing.T) {
	res := &stt.Result{Segments: []stt.Segment{
		{Start: 0, End: 1, Text: "Trailing"},
		{Start: 4, End: 5, Text: "Later."},
	}}
	units, err := pipeline.Normalize(res, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTexts(t, units, "Trailing", "Later.")
}

func TestNormalize_OrderedOnTimeline(t *testing.T) {
	units, err := pipeline.Normalize(segments("One. Two.", "Three! Four?", "Five."), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(units) != 5 {
		t.Fatalf("got %d units, want 5", len(units))
	}
	for i, u := range units {
		if u.Start > u.End {
			t.Errorf("unit %d starts after it ends: %+v", i, u)
		}
		if u.Start < 3 {
			t.Errorf("unit %d starts before offset: %+v", i, u)
		}
		if i > 0 && u.Start < units[i-1].Start {
			t.Errorf("unit %d out of order: %v < %v", i, u.Start, units[i-1].Start)
		}
	}
}

func TestNormalize_Malformed(t *testing.T) {
	tests := map[string]*stt.Result{
		"nil":            nil,
		"negative start": {Segments: []stt.Segment{{Start: -1, End: 1, Text: "x."}}},
		"inverted":       {Segments: []stt.Segment{{Start: 2, End: 1, Text: "x."}}},
		"nan":            {Segments: []stt.Segment{{Start: math.NaN(), End: 1, Text: "x."}}},
		"bad word":       {Segments: []stt.Segment{{Start: 0, End: 1, Words: []stt.Word{{Text: "x.", Start: 1, End: 0}}}}},
	}
	for name, res := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := pipeline.Normalize(res, 0)
			if !errors.Is(err, stt.ErrMalformedResult) {
				t.Errorf("err = %v, want ErrMalformedResult", err)
			}
		})
	}
}
