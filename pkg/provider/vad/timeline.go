package vad

import (
	"context"
	"fmt"

	"github.com/MrWong99/vadscribe/pkg/audio"
)

// Compile-time assertion that FrameDetector implements Detector.
var _ Detector = (*FrameDetector)(nil)

// FrameDetector runs a frame-level Engine over a whole stream and collects
// the resulting speech spans.
type FrameDetector struct {
	Engine Engine
	Config Config
}

// Detect converts s to mono at Config.SampleRate, feeds it frame by frame
// through a fresh engine session and returns the supported timeline.
//
// A span starts at the frame that produced VADSpeechStart and ends after the
// last frame whose probability reached Config.SilenceThreshold, so the
// silence hangover that confirms the end is not part of the span. Speech that
// is still active at the end of the stream is closed at the last voiced
// frame. A trailing partial frame is ignored.
func (d *FrameDetector) Detect(ctx context.Context, s audio.Stream) ([]Span, error) {
	cfg := d.Config
	if cfg.SampleRate <= 0 || cfg.FrameSizeMs <= 0 {
		return nil, fmt.Errorf("vad: invalid frame config %d Hz / %d ms", cfg.SampleRate, cfg.FrameSizeMs)
	}
	mono, err := audio.Convert(s, audio.Format{SampleRate: cfg.SampleRate, Channels: 1})
	if err != nil {
		return nil, fmt.Errorf("vad: convert stream: %w", err)
	}

	sess, err := d.Engine.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("vad: new session: %w", err)
	}
	defer sess.Close()

	frameBytes := cfg.FrameBytes()
	frameSec := float64(cfg.FrameSizeMs) / 1000

	var (
		spans      []Span
		active     bool
		startFrame int
		lastVoiced int
	)
	closeSpan := func() {
		spans = append(spans, Span{
			Start: float64(startFrame) * frameSec,
			End:   float64(lastVoiced+1) * frameSec,
		})
		active = false
	}

	for i := 0; (i+1)*frameBytes <= len(mono.Data); i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("vad: %w", err)
			}
		}
		ev, err := sess.ProcessFrame(mono.Data[i*frameBytes : (i+1)*frameBytes])
		if err != nil {
			return nil, fmt.Errorf("vad: frame %d: %w", i, err)
		}
		switch ev.Type {
		case VADSpeechStart:
			if active {
				closeSpan()
			}
			active, startFrame, lastVoiced = true, i, i
		case VADSpeechContinue:
			if active && ev.Probability >= cfg.SilenceThreshold {
				lastVoiced = i
			}
		case VADSpeechEnd:
			if active {
				closeSpan()
			}
		}
	}
	if active {
		closeSpan()
	}

	minSpeech := float64(cfg.MinSpeechMs) / 1000
	kept := spans[:0]
	for _, sp := range spans {
		if sp.Duration() >= minSpeech {
			kept = append(kept, sp)
		}
	}
	return Support(kept), nil
}
