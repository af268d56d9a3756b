package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/vadscribe/internal/observe"
	"github.com/MrWong99/vadscribe/pkg/audio"
	"github.com/MrWong99/vadscribe/pkg/provider/stt"
)

// Transcriber adapts an stt.Recognizer to the pipeline: it stages each clip
// in a scratch buffer and issues the call with the file-wide decoding
// options plus the current prompt.
type Transcriber struct {
	Recognizer stt.Recognizer

	// Options are the decoding options shared by every span. Prompt is
	// overwritten per call.
	Options stt.Options

	// Provider names the recognizer in metrics. Defaults to "stt".
	Provider string

	// Metrics receives latency and request counters. Nil disables recording.
	Metrics *observe.Metrics
}

// Transcribe recognizes clip with prompt as decoder context. The clip is
// encoded into scratch, overwriting whatever an earlier call left there, so
// concurrent calls must use distinct scratch buffers.
func (t *Transcriber) Transcribe(ctx context.Context, scratch *audio.Scratch, clip audio.Stream, prompt string) (*stt.Result, error) {
	wav := scratch.Stage(clip)

	opts := t.Options
	opts.Prompt = prompt

	provider := t.Provider
	if provider == "" {
		provider = "stt"
	}

	start := time.Now()
	if t.Metrics != nil {
		t.Metrics.ActiveRecognitions.Add(ctx, 1)
		defer t.Metrics.ActiveRecognitions.Add(ctx, -1)
	}
	res, err := t.Recognizer.Recognize(ctx, wav, opts)
	if t.Metrics != nil {
		t.Metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		t.Metrics.RecordProviderRequest(ctx, provider, status)
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: recognize: %w", err)
	}
	return res, nil
}
