// Package export serializes assembled transcripts to SubRip subtitles and
// plain text, and names the output files next to their input.
//
// Both serializers write units in the order given and do not check that
// timestamps are monotonic or non-overlapping.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrWong99/vadscribe/internal/pipeline"
	"github.com/MrWong99/vadscribe/pkg/provider/stt"
)

// ErrInvalidTimestamp is returned for negative or non-finite timestamps.
var ErrInvalidTimestamp = errors.New("export: invalid timestamp")

// Kind selects an output format.
type Kind string

const (
	// KindText is one trimmed line per sentence followed by a blank line.
	KindText Kind = "txt"

	// KindSubtitles is SubRip (.srt).
	KindSubtitles Kind = "srt"
)

// FormatTimestamp renders seconds as H:MM:SS,mmm. Hours are not padded.
// Seconds are rounded to the nearest millisecond, halves away from zero.
func FormatTimestamp(seconds float64) (string, error) {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidTimestamp, seconds)
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%d:%02d:%02d,%03d", h, m, s, ms), nil
}

// cleanText trims a unit's text and defuses the SubRip timing arrow.
func cleanText(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "-->", "->"))
}

// WriteSRT writes units as numbered SubRip blocks, each followed by a blank
// line. Nothing is written past the first unit with an invalid timestamp.
func WriteSRT(w io.Writer, units []pipeline.SentenceUnit) error {
	bw := bufio.NewWriter(w)
	for i, u := range units {
		start, err := FormatTimestamp(u.Start)
		if err != nil {
			return fmt.Errorf("export: unit %d start: %w", i+1, err)
		}
		end, err := FormatTimestamp(u.End)
		if err != nil {
			return fmt.Errorf("export: unit %d end: %w", i+1, err)
		}
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", i+1, start, end, cleanText(u.Text))
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("export: write srt: %w", err)
	}
	return nil
}

// WriteText writes each unit's text on its own line followed by a blank
// line. Timestamps are ignored.
func WriteText(w io.Writer, units []pipeline.SentenceUnit) error {
	bw := bufio.NewWriter(w)
	for _, u := range units {
		bw.WriteString(cleanText(u.Text))
		bw.WriteString("\n\n")
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("export: write text: %w", err)
	}
	return nil
}

// Write serializes units in the given format.
func Write(w io.Writer, kind Kind, units []pipeline.SentenceUnit) error {
	switch kind {
	case KindText:
		return WriteText(w, units)
	case KindSubtitles:
		return WriteSRT(w, units)
	default:
		return fmt.Errorf("export: unknown output kind %q", kind)
	}
}

// TargetLanguage returns the language code of the produced text: "en" when
// translating, the source language otherwise.
func TargetLanguage(task stt.Task, language string) string {
	if task == stt.TaskTranslate {
		return "en"
	}
	return language
}

// OutputPath returns the path of the output for input: the input's
// extension is replaced by ".<lang>.<kind>".
func OutputPath(input, lang string, kind Kind) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + "." + lang + "." + string(kind)
}

// WriteFile writes units to path. The file is first written under a
// temporary name in the same directory and renamed into place, so a failed
// run never leaves a truncated output behind.
func WriteFile(path string, kind Kind, units []pipeline.SentenceUnit) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("export: create %q: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("export: chmod %q: %w", path, err)
	}
	if err := Write(tmp, kind, units); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: rename %q: %w", path, err)
	}
	return nil
}
