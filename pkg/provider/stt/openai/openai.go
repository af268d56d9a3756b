// Package openai provides an STT recognizer backed by the OpenAI audio API
// (or any server that implements its /audio/transcriptions and
// /audio/translations endpoints). It implements the stt.Recognizer interface.
//
// Requests ask for the verbose_json response format so that segment timings
// are available. The API exposes no beam width or candidate count, so only
// the language, prompt and temperature of stt.Options are forwarded.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/vadscribe/pkg/provider/stt"
)

const defaultModel = oai.AudioModelWhisper1

// Compile-time assertion that Provider implements stt.Recognizer.
var _ stt.Recognizer = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the audio model (e.g., "whisper-1").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = oai.AudioModel(model)
	}
}

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// Provider implements stt.Recognizer backed by the OpenAI audio API.
type Provider struct {
	client  oai.Client
	model   oai.AudioModel
	baseURL string
}

// New creates a new Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	p := &Provider{model: defaultModel}
	for _, o := range opts {
		o(p)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(p.baseURL))
	}
	p.client = oai.NewClient(clientOpts...)
	return p, nil
}

// Recognize uploads wav to the transcription or translation endpoint,
// depending on opts.Task.
func (p *Provider) Recognize(ctx context.Context, wav []byte, opts stt.Options) (*stt.Result, error) {
	file := oai.File(bytes.NewReader(wav), "clip.wav", "audio/wav")

	var raw string
	if opts.Task == stt.TaskTranslate {
		params := oai.AudioTranslationNewParams{
			File:           file,
			Model:          p.model,
			ResponseFormat: oai.AudioTranslationNewParamsResponseFormatVerboseJSON,
			Temperature:    oai.Float(opts.Temperature),
		}
		if opts.Prompt != "" {
			params.Prompt = oai.String(opts.Prompt)
		}
		resp, err := p.client.Audio.Translations.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("openai: translate: %w", err)
		}
		raw = resp.RawJSON()
	} else {
		params := oai.AudioTranscriptionNewParams{
			File:                   file,
			Model:                  p.model,
			ResponseFormat:         oai.AudioResponseFormatVerboseJSON,
			Temperature:            oai.Float(opts.Temperature),
			TimestampGranularities: []string{"segment"},
		}
		if opts.Language != "" {
			params.Language = oai.String(opts.Language)
		}
		if opts.Prompt != "" {
			params.Prompt = oai.String(opts.Prompt)
		}
		resp, err := p.client.Audio.Transcriptions.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("openai: transcribe: %w", err)
		}
		raw = resp.RawJSON()
	}
	return parseVerbose(raw)
}

// verboseBody is the verbose_json shape shared by both endpoints.
type verboseBody struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

// parseVerbose converts a verbose_json body into an stt.Result. Top-level
// words (present when word granularity was requested) are attached to the
// segment that contains their start time.
func parseVerbose(raw string) (*stt.Result, error) {
	var body verboseBody
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("openai: parse verbose response: %w", err)
	}

	res := &stt.Result{Language: body.Language, Text: body.Text}
	for _, s := range body.Segments {
		res.Segments = append(res.Segments, stt.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	for _, w := range body.Words {
		for i := range res.Segments {
			seg := &res.Segments[i]
			if w.Start >= seg.Start && w.Start < seg.End {
				seg.Words = append(seg.Words, stt.Word{Text: w.Word, Start: w.Start, End: w.End})
				break
			}
		}
	}
	if len(res.Segments) == 0 && body.Text != "" {
		res.Segments = []stt.Segment{{Text: body.Text}}
	}
	return res, nil
}
