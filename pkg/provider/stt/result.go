package stt

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedResult is returned by Validate when an engine answer cannot be
// mapped onto a timeline.
var ErrMalformedResult = errors.New("stt: malformed recognition result")

// Result is the answer of a single Recognize call.
type Result struct {
	// Language is the language the engine reports having decoded. May be empty.
	Language string

	// Text is the full transcription as the engine reports it.
	Text string

	// Segments are the timed pieces of Text in chronological order.
	Segments []Segment
}

// Segment is a contiguous piece of recognized speech. Start and End are in
// seconds relative to the start of the recognized clip.
type Segment struct {
	Start float64
	End   float64
	Text  string

	// Words holds per-word timings when the engine reports them. May be nil.
	Words []Word
}

// Word is a single recognized word with clip-relative timings in seconds.
type Word struct {
	Text        string
	Start       float64
	End         float64
	Probability float64
}

// Validate checks that every segment and word of r carries finite,
// non-negative, non-inverted timestamps. A nil result is malformed.
func Validate(r *Result) error {
	if r == nil {
		return fmt.Errorf("%w: nil result", ErrMalformedResult)
	}
	for i, seg := range r.Segments {
		if err := checkBounds(seg.Start, seg.End); err != nil {
			return fmt.Errorf("%w: segment %d: %v", ErrMalformedResult, i, err)
		}
		for j, w := range seg.Words {
			if err := checkBounds(w.Start, w.End); err != nil {
				return fmt.Errorf("%w: segment %d word %d: %v", ErrMalformedResult, i, j, err)
			}
		}
	}
	return nil
}

func checkBounds(start, end float64) error {
	switch {
	case math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || math.IsInf(end, 0):
		return fmt.Errorf("non-finite bounds [%v, %v]", start, end)
	case start < 0:
		return fmt.Errorf("negative start %v", start)
	case end < start:
		return fmt.Errorf("end %v before start %v", end, start)
	}
	return nil
}

// ErrUnsupportedTask is returned by engines that cannot perform the requested
// Task (for example translation on a transcription-only service).
var ErrUnsupportedTask = errors.New("stt: task not supported by engine")
