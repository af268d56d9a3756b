package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vadscribe/internal/observe"
	"github.com/MrWong99/vadscribe/pkg/audio"
	"github.com/MrWong99/vadscribe/pkg/provider/stt"
	"github.com/MrWong99/vadscribe/pkg/provider/vad"
)

// SkipReason says why a speech span contributed nothing to the transcript.
type SkipReason string

const (
	// SkipQuiet marks a span rejected by the loudness gate.
	SkipQuiet SkipReason = "quiet"

	// SkipTranscriptionFailed marks a span whose recognition call failed.
	SkipTranscriptionFailed SkipReason = "transcription_failed"

	// SkipMalformedResult marks a span whose recognition result could not be
	// mapped onto the timeline.
	SkipMalformedResult SkipReason = "malformed_result"

	// SkipSliceFailed marks a span that lies entirely outside the stream.
	SkipSliceFailed SkipReason = "slice_failed"
)

// errOutsideStream is the Skip error for SkipSliceFailed.
var errOutsideStream = errors.New("pipeline: span lies outside the audio stream")

// Skip records a span that was dropped.
type Skip struct {
	Index  int
	Span   ExpandedSpan
	Reason SkipReason
	Err    error
}

// SpanReport describes the gate decision for one span.
type SpanReport struct {
	Index    int
	Span     ExpandedSpan
	Peak     int
	Accepted bool
}

// Hooks are optional callbacks invoked synchronously while a file is
// assembled. Nil hooks are skipped.
type Hooks struct {
	// OnSpan is called once per span after the loudness gate decision.
	OnSpan func(SpanReport)

	// OnSentence is called for every unit as it is appended.
	OnSentence func(SentenceUnit)
}

// Result is the outcome of assembling one file.
type Result struct {
	Transcript *Transcript

	// Skips lists dropped spans ordered by span index.
	Skips []Skip

	// Spans is the number of speech spans processed.
	Spans int

	// Prompt is the decoding context left after the last span.
	Prompt string
}

// Failed returns the number of spans dropped for any reason other than
// being quiet.
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Skips {
		if s.Reason != SkipQuiet {
			n++
		}
	}
	return n
}

// TextCorrector rewrites the text of a recognized sentence, e.g. to fix the
// spelling of known names.
type TextCorrector interface {
	Correct(text string) string
}

// Assembler runs the per-span pipeline over a file.
type Assembler struct {
	Gate        LoudnessGate
	PadMs       float64
	Transcriber *Transcriber

	// Corrector, if set, rewrites every sentence before it is appended, so
	// the decoding context carries the corrected text.
	Corrector TextCorrector

	// Workers bounds concurrent recognition calls. Values below 2 select
	// sequential processing. With n workers, up to n consecutive accepted
	// spans are recognized at once, all prompted with the context as it stood
	// before the first of them; their results are then committed strictly in
	// span order.
	Workers int

	Hooks Hooks

	// Metrics receives span and sentence counters. Nil disables recording.
	Metrics *observe.Metrics
}

// pendingSpan is an accepted span waiting for, or holding, its recognition
// result.
type pendingSpan struct {
	index int
	span  ExpandedSpan
	clip  audio.Stream
	res   *stt.Result
	err   error
}

// Run assembles the transcript of stream from its speech spans. A fresh
// decoding context is used, so nothing carries over between files.
//
// Per-span failures never abort the run; they are listed in Result.Skips.
// Run returns an error only when ctx is cancelled, together with the partial
// result built so far.
func (a *Assembler) Run(ctx context.Context, stream audio.Stream, spans []vad.Span) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.assemble",
		trace.WithAttributes(attribute.Int("spans", len(spans)), attribute.Int("workers", a.Workers)),
	)
	defer span.End()

	res := &Result{Transcript: &Transcript{}, Spans: len(spans)}
	var dctx DecodingContext

	var err error
	if a.Workers > 1 {
		err = a.runWindowed(ctx, stream, spans, res, &dctx)
	} else {
		err = a.runSequential(ctx, stream, spans, res, &dctx)
	}

	slices.SortStableFunc(res.Skips, func(x, y Skip) int { return x.Index - y.Index })
	res.Prompt = dctx.Prompt()
	span.SetAttributes(
		attribute.Int("sentences", res.Transcript.Len()),
		attribute.Int("skipped", len(res.Skips)),
	)
	if err != nil {
		observe.FailSpan(span, err)
		return res, fmt.Errorf("pipeline: %w", err)
	}
	return res, nil
}

func (a *Assembler) runSequential(ctx context.Context, stream audio.Stream, spans []vad.Span, res *Result, dctx *DecodingContext) error {
	var scratch audio.Scratch
	for i, sp := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, ok := a.prepare(ctx, i, sp, stream, res)
		if !ok {
			continue
		}
		p.res, p.err = a.Transcriber.Transcribe(ctx, &scratch, p.clip, dctx.Prompt())
		if p.err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		a.commit(ctx, p, res, dctx)
	}
	return nil
}

func (a *Assembler) runWindowed(ctx context.Context, stream audio.Stream, spans []vad.Span, res *Result, dctx *DecodingContext) error {
	scratches := make([]audio.Scratch, a.Workers)
	window := make([]*pendingSpan, 0, a.Workers)

	flush := func() error {
		if len(window) == 0 {
			return nil
		}
		prompt := dctx.Prompt()
		var g errgroup.Group
		for k, p := range window {
			g.Go(func() error {
				p.res, p.err = a.Transcriber.Transcribe(ctx, &scratches[k], p.clip, prompt)
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, p := range window {
			a.commit(ctx, p, res, dctx)
		}
		window = window[:0]
		return nil
	}

	for i, sp := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, ok := a.prepare(ctx, i, sp, stream, res)
		if !ok {
			continue
		}
		window = append(window, p)
		if len(window) == a.Workers {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// prepare expands and slices span i and applies the loudness gate. It
// records a Skip and returns false when the span is not to be recognized.
func (a *Assembler) prepare(ctx context.Context, i int, sp vad.Span, stream audio.Stream, res *Result) (*pendingSpan, bool) {
	exp := Expand(sp, a.PadMs)
	clip := stream.Slice(exp.StartMs, exp.EndMs)
	log := observe.Logger(ctx).With(slog.Int("span", i), slog.Float64("start", exp.Start()), slog.Float64("end", exp.End()))

	if clip.Frames() == 0 {
		log.Warn("span outside stream")
		res.Skips = append(res.Skips, Skip{Index: i, Span: exp, Reason: SkipSliceFailed, Err: errOutsideStream})
		a.recordSpan(ctx, observe.SpanFailed)
		return nil, false
	}

	peak := clip.Peak()
	accepted := a.Gate.Accept(clip)
	if a.Hooks.OnSpan != nil {
		a.Hooks.OnSpan(SpanReport{Index: i, Span: exp, Peak: peak, Accepted: accepted})
	}
	if !accepted {
		log.Debug("span below loudness threshold", slog.Int("peak", peak), slog.Int("threshold", a.Gate.Threshold))
		res.Skips = append(res.Skips, Skip{Index: i, Span: exp, Reason: SkipQuiet})
		a.recordSpan(ctx, observe.SpanQuiet)
		return nil, false
	}
	return &pendingSpan{index: i, span: exp, clip: clip}, true
}

// commit folds one recognition outcome into the transcript and context.
func (a *Assembler) commit(ctx context.Context, p *pendingSpan, res *Result, dctx *DecodingContext) {
	log := observe.Logger(ctx).With(slog.Int("span", p.index))

	if p.err != nil {
		// A failover recognizer validates answers itself and reports a
		// malformed one as an error.
		if errors.Is(p.err, stt.ErrMalformedResult) {
			log.Warn("span result malformed", slog.Any("err", p.err))
			res.Skips = append(res.Skips, Skip{Index: p.index, Span: p.span, Reason: SkipMalformedResult, Err: p.err})
			a.recordSpan(ctx, observe.SpanMalformed)
			return
		}
		log.Warn("span transcription failed", slog.Any("err", p.err))
		res.Skips = append(res.Skips, Skip{Index: p.index, Span: p.span, Reason: SkipTranscriptionFailed, Err: p.err})
		a.recordSpan(ctx, observe.SpanFailed)
		return
	}

	units, err := Normalize(p.res, p.span.Start())
	if err != nil {
		log.Warn("span result malformed", slog.Any("err", err))
		res.Skips = append(res.Skips, Skip{Index: p.index, Span: p.span, Reason: SkipMalformedResult, Err: err})
		a.recordSpan(ctx, observe.SpanMalformed)
		return
	}

	for _, u := range units {
		if a.Corrector != nil {
			u.Text = a.Corrector.Correct(u.Text)
		}
		dctx.Update(u.Text)
		res.Transcript.Append(u)
		if a.Hooks.OnSentence != nil {
			a.Hooks.OnSentence(u)
		}
	}
	log.Debug("span transcribed", slog.Int("sentences", len(units)))
	a.recordSpan(ctx, observe.SpanAccepted)
	if a.Metrics != nil {
		a.Metrics.RecordSentences(ctx, len(units))
	}
}

func (a *Assembler) recordSpan(ctx context.Context, status string) {
	if a.Metrics != nil {
		a.Metrics.RecordSpan(ctx, status)
	}
}
