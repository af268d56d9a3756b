// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MrWong99/vadscribe/pkg/audio"
	"github.com/MrWong99/vadscribe/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that NativeProvider satisfies stt.Recognizer.
var _ stt.Recognizer = (*NativeProvider)(nil)

// NativeProvider implements stt.Recognizer using whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once at
// startup and shared across all calls; every call decodes in a fresh
// context.
type NativeProvider struct {
	model   whisperlib.Model
	threads uint
	words   bool
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeThreads sets the number of CPU threads per decode. Zero keeps
// the library default.
func WithNativeThreads(n uint) NativeOption {
	return func(p *NativeProvider) { p.threads = n }
}

// WithNativeWordTimestamps enables token-level timestamps, which are
// reported as per-word timings.
func WithNativeWordTimestamps(enabled bool) NativeOption {
	return func(p *NativeProvider) { p.words = enabled }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{model: model}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Recognize decodes wav in-process. The bindings expose no candidate count
// for sampling, so opts.BestOf is not forwarded.
func (p *NativeProvider) Recognize(ctx context.Context, wav []byte, opts stt.Options) (*stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	clip, err := audio.DecodeWAVBytes(wav)
	if err != nil {
		return nil, fmt.Errorf("whisper: decode clip: %w", err)
	}
	clip, err = audio.Convert(clip, audio.PipelineFormat)
	if err != nil {
		return nil, fmt.Errorf("whisper: convert clip: %w", err)
	}
	samples := clipSamples(clip)

	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := opts.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}
	wctx.SetTranslate(opts.Task == stt.TaskTranslate)
	wctx.SetTemperature(float32(opts.Temperature))
	if opts.UsesBeamSearch() && opts.BeamSize > 0 {
		wctx.SetBeamSize(opts.BeamSize)
	}
	if opts.Prompt != "" {
		wctx.SetInitialPrompt(opts.Prompt)
	}
	if p.threads > 0 {
		wctx.SetThreads(p.threads)
	}
	wctx.SetTokenTimestamps(p.words)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	res := &stt.Result{Language: wctx.Language()}
	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		seg := stt.Segment{
			Start: segment.Start.Seconds(),
			End:   segment.End.Seconds(),
			Text:  segment.Text,
		}
		if p.words {
			seg.Words = tokensToWords(segment.Tokens)
		}
		res.Segments = append(res.Segments, seg)
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	res.Text = strings.Join(parts, " ")
	return res, nil
}

// tokensToWords maps text tokens onto words, dropping the special markers
// ([_BEG_], <|endoftext|>, ...) the decoder interleaves with text.
func tokensToWords(tokens []whisperlib.Token) []stt.Word {
	var words []stt.Word
	for _, tok := range tokens {
		if strings.HasPrefix(tok.Text, "[_") || strings.HasPrefix(tok.Text, "<|") {
			continue
		}
		words = append(words, stt.Word{
			Text:        tok.Text,
			Start:       tok.Start.Seconds(),
			End:         tok.End.Seconds(),
			Probability: float64(tok.P),
		})
	}
	return words
}
