// Package energy provides a frame-level VAD engine that classifies frames by
// their RMS energy. It needs no model files and is the default detector.
//
// The speech probability of a frame is its RMS divided by full scale
// (32768), clamped to [0, 1]. Speech starts on the first frame at or above
// Config.SpeechThreshold and ends once the probability has stayed below
// Config.SilenceThreshold for Config.MinSilenceMs.
package energy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/vadscribe/pkg/audio"
	"github.com/MrWong99/vadscribe/pkg/provider/vad"
)

const fullScale = 32768.0

// Defaults tuned for speech recorded at conversational level.
const (
	DefaultFrameSizeMs      = 30
	DefaultSpeechThreshold  = 0.02
	DefaultSilenceThreshold = 0.01
	DefaultMinSilenceMs     = 300
	DefaultMinSpeechMs      = 200
)

// DefaultConfig returns a Config at the given sample rate with the package
// defaults filled in.
func DefaultConfig(sampleRate int) vad.Config {
	return vad.Config{
		SampleRate:       sampleRate,
		FrameSizeMs:      DefaultFrameSizeMs,
		SpeechThreshold:  DefaultSpeechThreshold,
		SilenceThreshold: DefaultSilenceThreshold,
		MinSilenceMs:     DefaultMinSilenceMs,
		MinSpeechMs:      DefaultMinSpeechMs,
	}
}

// Compile-time assertion that Engine implements vad.Engine.
var _ vad.Engine = (*Engine)(nil)

// Engine creates energy-gate sessions. The zero value is ready to use.
type Engine struct{}

// NewSession validates cfg and returns a new session.
func (Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	var errs []error
	if cfg.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate))
	}
	if cfg.FrameSizeMs <= 0 {
		errs = append(errs, fmt.Errorf("frame size must be positive, got %d ms", cfg.FrameSizeMs))
	}
	if cfg.SpeechThreshold <= 0 || cfg.SpeechThreshold > 1 {
		errs = append(errs, fmt.Errorf("speech threshold %v out of range (0, 1]", cfg.SpeechThreshold))
	}
	if cfg.SilenceThreshold < 0 || cfg.SilenceThreshold > cfg.SpeechThreshold {
		errs = append(errs, fmt.Errorf("silence threshold %v must be in [0, speech threshold]", cfg.SilenceThreshold))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("energy: %w", err)
	}

	hangover := 1
	if cfg.MinSilenceMs > 0 {
		hangover = (cfg.MinSilenceMs + cfg.FrameSizeMs - 1) / cfg.FrameSizeMs
	}
	return &session{cfg: cfg, frameBytes: cfg.FrameBytes(), hangover: hangover}, nil
}

type session struct {
	cfg        vad.Config
	frameBytes int
	hangover   int

	mu       sync.Mutex
	inSpeech bool
	silent   int
	closed   bool
}

func (s *session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return vad.VADEvent{}, errors.New("energy: session is closed")
	}
	if len(frame) != s.frameBytes {
		return vad.VADEvent{}, fmt.Errorf("energy: frame is %d bytes, want %d", len(frame), s.frameBytes)
	}

	p := min(audio.RMS(frame)/fullScale, 1)
	ev := vad.VADEvent{Probability: p}

	switch {
	case !s.inSpeech && p >= s.cfg.SpeechThreshold:
		s.inSpeech, s.silent = true, 0
		ev.Type = vad.VADSpeechStart
	case !s.inSpeech:
		ev.Type = vad.VADSilence
	case p < s.cfg.SilenceThreshold:
		s.silent++
		if s.silent >= s.hangover {
			s.inSpeech, s.silent = false, 0
			ev.Type = vad.VADSpeechEnd
		} else {
			ev.Type = vad.VADSpeechContinue
		}
	default:
		s.silent = 0
		ev.Type = vad.VADSpeechContinue
	}
	return ev, nil
}

func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inSpeech, s.silent = false, 0
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// NewDetector returns a vad.Detector running the energy engine with cfg.
func NewDetector(cfg vad.Config) *vad.FrameDetector {
	return &vad.FrameDetector{Engine: Engine{}, Config: cfg}
}
