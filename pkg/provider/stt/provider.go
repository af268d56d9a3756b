// Package stt defines the Recognizer interface for Speech-to-Text backends.
//
// A Recognizer wraps a batch transcription engine (a whisper.cpp server, the
// whisper.cpp library linked in-process, or a hosted API) and exposes a
// uniform request/response call. The pipeline hands each engine one short
// clip at a time, encoded as a 16-bit PCM WAV file, together with decoding
// Options. The engine answers with a Result whose segment timestamps are
// relative to the start of the clip.
//
// Implementations must be safe for concurrent use. The pipeline's parallel
// mode issues several Recognize calls at once, each with its own clip buffer.
package stt

import (
	"context"
	"fmt"
)

// Task selects whether speech is transcribed in its own language or
// translated into English.
type Task string

const (
	// TaskTranscribe keeps the spoken language.
	TaskTranscribe Task = "transcribe"

	// TaskTranslate produces English text regardless of the spoken language.
	TaskTranslate Task = "translate"
)

// IsValid reports whether t is a known task.
func (t Task) IsValid() bool {
	return t == TaskTranscribe || t == TaskTranslate
}

// ParseTask converts a flag or config value into a Task.
func ParseTask(s string) (Task, error) {
	t := Task(s)
	if !t.IsValid() {
		return "", fmt.Errorf("stt: unknown task %q (want %q or %q)", s, TaskTranscribe, TaskTranslate)
	}
	return t, nil
}

// Options carries the decoding parameters for a single Recognize call.
type Options struct {
	// Task is transcribe or translate. The zero value means transcribe.
	Task Task

	// Language is the spoken language code (e.g., "ja", "en"). An empty string
	// lets the engine auto-detect, if supported.
	Language string

	// Prompt conditions the decoder on preceding text. The pipeline sets it to
	// the most recent accepted sentence of the same file.
	Prompt string

	// Temperature is the sampling temperature. Zero selects deterministic
	// beam search; any positive value selects sampling.
	Temperature float64

	// BeamSize is the beam width used when Temperature is zero.
	BeamSize int

	// BestOf is the number of sampled candidates used when Temperature is
	// positive.
	BestOf int
}

// UsesBeamSearch reports whether the options select beam search rather than
// temperature sampling.
func (o Options) UsesBeamSearch() bool {
	return o.Temperature == 0
}

// Recognizer is the abstraction over any batch STT backend.
type Recognizer interface {
	// Recognize decodes wav, a complete RIFF/WAV file holding 16-bit PCM, and
	// returns the recognized segments. Segment times are relative to the start
	// of wav.
	//
	// Returns an error if the engine is unreachable, rejects the request, or
	// produces output that cannot be parsed. A successful call may return a
	// Result with zero segments when the clip contains no recognizable speech.
	Recognize(ctx context.Context, wav []byte, opts Options) (*Result, error)
}
