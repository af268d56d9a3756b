// Package pipeline turns a decoded audio stream and its speech timeline into
// a time-aligned transcript.
//
// For every speech span, in chronological order, the [Assembler] widens the
// span by a guard margin ([Expand]), cuts the corresponding clip, drops it if
// it is too quiet ([LoudnessGate]), recognizes it with the text of the
// previously accepted sentence as decoder prompt ([Transcriber]), splits the
// answer into sentences on the absolute timeline ([Normalize]) and appends
// them to the [Transcript]. A span that fails at any stage is recorded as a
// [Skip] and leaves the transcript and the prompt untouched.
package pipeline

import "github.com/MrWong99/vadscribe/pkg/provider/vad"

// DefaultPadMs is the guard margin added on both sides of each speech span.
const DefaultPadMs = 300

// ExpandedSpan is a speech span widened by the guard margin, in
// milliseconds. StartMs is never negative; EndMs is not clamped to the
// stream length (slicing clamps instead).
type ExpandedSpan struct {
	StartMs float64
	EndMs   float64
}

// Start returns the start in seconds. It is the time offset of the clip and
// therefore of every segment recognized in it.
func (e ExpandedSpan) Start() float64 { return e.StartMs / 1000 }

// End returns the end in seconds.
func (e ExpandedSpan) End() float64 { return e.EndMs / 1000 }

// Expand widens span by padMs on both sides and clamps the start at zero.
func Expand(span vad.Span, padMs float64) ExpandedSpan {
	return ExpandedSpan{
		StartMs: max(0, span.Start*1000-padMs),
		EndMs:   span.End*1000 + padMs,
	}
}
