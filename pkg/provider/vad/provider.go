// Package vad defines the voice activity detection interfaces.
//
// Two levels of abstraction live here. Detector is what the transcription
// pipeline consumes: it takes a whole decoded audio stream and returns the
// ordered timeline of speech spans. Engine is the frame-level building block
// for local detectors: it wraps a per-frame speech classifier (an energy
// gate, Silero, WebRTC VAD) as a stateful session, and FrameDetector turns
// any Engine into a Detector.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

import (
	"context"
	"errors"

	"github.com/MrWong99/vadscribe/pkg/audio"
)

// ErrMissingCredential is returned by detectors that need an access token
// when none is configured. The pipeline treats it as fatal for the file.
var ErrMissingCredential = errors.New("vad: missing access credential")

// Detector finds the speech regions of a complete audio stream.
type Detector interface {
	// Detect returns the speech spans of s ordered by start time. The spans
	// never overlap. An empty result means the stream holds no speech.
	Detect(ctx context.Context, s audio.Stream) ([]Span, error)
}

// Config holds the parameters for a VAD session. All numeric thresholds are
// expressed in the model's native scale; see each Engine's documentation for
// recommended starting values.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the PCM
	// frames passed to ProcessFrame. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds. Most VAD
	// models operate on fixed frame sizes (e.g., 10, 20, or 30 ms).
	// ProcessFrame will return an error if the supplied frame does not match this
	// size.
	FrameSizeMs int

	// SpeechThreshold is the probability above which a frame is classified as
	// speech. Range: [0.0, 1.0].
	SpeechThreshold float64

	// SilenceThreshold is the probability below which a frame is classified as
	// silence and an active speech segment is considered ended. Range: [0.0, 1.0].
	// Must be ≤ SpeechThreshold.
	SilenceThreshold float64

	// MinSilenceMs is how long the probability must stay below
	// SilenceThreshold before an active speech segment ends.
	MinSilenceMs int

	// MinSpeechMs drops detected spans shorter than this. Applied by
	// FrameDetector, not by the engine.
	MinSpeechMs int
}

// FrameBytes returns the size of one 16-bit mono frame under c.
func (c Config) FrameBytes() int {
	return c.SampleRate * c.FrameSizeMs / 1000 * 2
}

// SessionHandle represents an active VAD session for a single audio stream. It is
// an interface so that test code can supply mock implementations without a live
// engine. Each session maintains its own detection state; Reset clears this state
// without closing the session.
type SessionHandle interface {
	// ProcessFrame analyses a single audio frame and returns the detection result.
	// The frame must be raw 16-bit little-endian mono PCM at the SampleRate and
	// FrameSizeMs configured when the session was created. Returns an error if the
	// frame size is wrong or if the engine encounters an internal failure.
	ProcessFrame(frame []byte) (VADEvent, error)

	// Reset clears all accumulated detection state without closing the session.
	Reset()

	// Close releases all resources associated with the session. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions. It is the top-level interface
// implemented by each frame-level VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may call
// NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration.
	// Returns an error if the configuration is invalid.
	NewSession(cfg Config) (SessionHandle, error)
}
