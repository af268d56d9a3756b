// Package mock provides test doubles for the vad package interfaces.
//
// Use Detector to hand a fixed speech timeline to the pipeline. Use Engine
// and Session to script per-frame VADEvent values and inspect the frames
// that were submitted for processing.
//
// Example:
//
//	sess := &mock.Session{Events: []vad.VADEvent{
//	    {Type: vad.VADSilence},
//	    {Type: vad.VADSpeechStart, Probability: 0.9},
//	}}
//	det := &vad.FrameDetector{Engine: &mock.Engine{Session: sess}, Config: cfg}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vadscribe/pkg/audio"
	"github.com/MrWong99/vadscribe/pkg/provider/vad"
)

// Detector is a mock implementation of vad.Detector.
type Detector struct {
	mu sync.Mutex

	// Spans is returned by every Detect call.
	Spans []vad.Span

	// DetectErr, if non-nil, is returned by every Detect call.
	DetectErr error

	// Streams records the stream passed to each Detect call.
	Streams []audio.Stream
}

// Detect records the call and returns Spans, DetectErr.
func (d *Detector) Detect(_ context.Context, s audio.Stream) ([]vad.Span, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Streams = append(d.Streams, s)
	if d.DetectErr != nil {
		return nil, d.DetectErr
	}
	out := make([]vad.Span, len(d.Spans))
	copy(out, d.Spans)
	return out, nil
}

// CallCount returns the number of Detect calls. Thread-safe.
func (d *Detector) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Streams)
}

// Ensure Detector implements vad.Detector at compile time.
var _ vad.Detector = (*Detector)(nil)

// NewSessionCall records a single invocation of Engine.NewSession.
type NewSessionCall struct {
	// Cfg is the Config passed to NewSession.
	Cfg vad.Config
}

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by NewSession. If nil, NewSession
	// returns a new default Session.
	Session vad.SessionHandle

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records every call to NewSession in order.
	NewSessionCalls []NewSessionCall
}

// NewSession records the call and returns Session, NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, NewSessionCall{Cfg: cfg})
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

// Session is a mock implementation of vad.SessionHandle.
type Session struct {
	mu sync.Mutex

	// Events are returned by successive ProcessFrame calls. Once exhausted,
	// every further call returns a VADSilence event.
	Events []vad.VADEvent

	// ProcessFrameErr, if non-nil, is returned by every ProcessFrame call.
	ProcessFrameErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// Frames records a copy of every frame passed to ProcessFrame in order.
	Frames [][]byte

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// ProcessFrame records the frame and returns the next scripted event.
func (s *Session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	i := len(s.Frames)
	s.Frames = append(s.Frames, cp)
	if s.ProcessFrameErr != nil {
		return vad.VADEvent{}, s.ProcessFrameErr
	}
	if i < len(s.Events) {
		return s.Events[i], nil
	}
	return vad.VADEvent{Type: vad.VADSilence}, nil
}

// Reset records the call by incrementing ResetCallCount.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCallCount++
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// Ensure Session implements vad.SessionHandle at compile time.
var _ vad.SessionHandle = (*Session)(nil)
