package vocab_test

import (
	"testing"

	"github.com/MrWong99/vadscribe/internal/vocab"
)

func TestCorrector_Apply(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"Eldrinax", "Grimjaw", "Tower of Whispers"})

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"split name", "We met elder nacks at dawn.", "We met Eldrinax at dawn."},
		{"multi-word term", "We climbed the tower of wispers.", "We climbed the Tower of Whispers."},
		{"case only", "grimjaw laughed.", "Grimjaw laughed."},
		{"misspelling", "Grimjow laughed", "Grimjaw laughed"},
		{"quoted with punctuation", `He said "grimjow!"`, `He said "Grimjaw!"`},
		{"unrelated text untouched", "Nothing  to see here.", "Nothing  to see here."},
		{"short prefix of a term", "A grim day.", "A grim day."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := c.Correct(tt.in); got != tt.want {
				t.Errorf("Correct(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCorrector_ReportsCorrections(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"Eldrinax"})
	_, corrections := c.Apply("We met elder nacks.")
	if len(corrections) != 1 {
		t.Fatalf("corrections = %+v, want 1", corrections)
	}
	got := corrections[0]
	if got.Original != "elder nacks" || got.Corrected != "Eldrinax" {
		t.Errorf("correction = %+v", got)
	}
	if got.Confidence < 0.7 || got.Confidence > 1 {
		t.Errorf("confidence = %f, want in [0.7, 1]", got.Confidence)
	}
}

func TestCorrector_ExactSpellingIsNotACorrection(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"Grimjaw"})
	text := "Grimjaw  laughed."
	got, corrections := c.Apply(text)
	if got != text {
		t.Errorf("Apply(%q) = %q, want unchanged", text, got)
	}
	if len(corrections) != 0 {
		t.Errorf("corrections = %+v, want none", corrections)
	}
}

func TestCorrector_EmptyVocabulary(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"", "   "})
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	if got := c.Correct("grimjaw"); got != "grimjaw" {
		t.Errorf("Correct = %q, want unchanged", got)
	}
}

func TestCorrector_StricterThreshold(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"Grimjaw"}, vocab.WithPhoneticThreshold(0.99), vocab.WithFuzzyThreshold(0.99))
	if got := c.Correct("Grimjow laughed"); got != "Grimjow laughed" {
		t.Errorf("Correct = %q, want unchanged under strict thresholds", got)
	}
}

func TestCorrector_NonLatinText(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"Grimjaw"})
	in := "今日はいい天気ですね。"
	if got := c.Correct(in); got != in {
		t.Errorf("Correct(%q) = %q, want unchanged", in, got)
	}
}
