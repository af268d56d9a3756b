// Package deepgram provides a Deepgram-backed STT recognizer using the
// Deepgram pre-recorded REST API. It implements the stt.Recognizer interface.
//
// Deepgram only transcribes: a translate request fails with
// stt.ErrUnsupportedTask so that a fallback chain moves on to an engine that
// can translate. The API has no decoder prompt, so Options.Prompt, the
// temperature and the beam parameters are not forwarded.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/vadscribe/pkg/provider/stt"
)

const (
	deepgramEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultTimeout   = 60 * time.Second
)

// Compile-time assertion that Provider implements stt.Recognizer.
var _ stt.Recognizer = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithEndpoint overrides the listen endpoint. Used by tests and by
// self-hosted Deepgram deployments.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Recognizer backed by the Deepgram pre-recorded API.
type Provider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		endpoint:   deepgramEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Recognize uploads wav and maps Deepgram utterances onto segments.
func (p *Provider) Recognize(ctx context.Context, wav []byte, opts stt.Options) (*stt.Result, error) {
	if opts.Task == stt.TaskTranslate {
		return nil, fmt.Errorf("deepgram: %w: %s", stt.ErrUnsupportedTask, opts.Task)
	}
	endpoint, err := p.buildURL(opts)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(wav))
	if err != nil {
		return nil, fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("deepgram: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepgram: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return parseDeepgramResponse(data)
}

// buildURL constructs the listen endpoint URL for the given options.
func (p *Provider) buildURL(opts stt.Options) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	if opts.Language != "" {
		q.Set("language", opts.Language)
	} else {
		q.Set("detect_language", "true")
	}
	q.Set("punctuate", "true")
	q.Set("utterances", "true")

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramWord is one entry of a words array.
type deepgramWord struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Confidence     float64 `json:"confidence"`
}

// deepgramResponse is the JSON structure returned by the pre-recorded API.
type deepgramResponse struct {
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string         `json:"transcript"`
				Words      []deepgramWord `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64        `json:"start"`
			End        float64        `json:"end"`
			Transcript string         `json:"transcript"`
			Words      []deepgramWord `json:"words"`
		} `json:"utterances"`
	} `json:"results"`
}

// parseDeepgramResponse converts a pre-recorded response into an stt.Result.
// Utterances become segments; without utterances the first alternative of the
// first channel becomes a single segment spanning its words.
func parseDeepgramResponse(data []byte) (*stt.Result, error) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("deepgram: parse JSON response: %w", err)
	}

	res := &stt.Result{}
	if len(resp.Results.Channels) > 0 {
		ch := resp.Results.Channels[0]
		res.Language = ch.DetectedLanguage
		if len(ch.Alternatives) > 0 {
			res.Text = ch.Alternatives[0].Transcript
		}
	}

	for _, u := range resp.Results.Utterances {
		res.Segments = append(res.Segments, stt.Segment{
			Start: u.Start,
			End:   u.End,
			Text:  u.Transcript,
			Words: convertWords(u.Words),
		})
	}
	if len(res.Segments) == 0 && len(resp.Results.Channels) > 0 && len(resp.Results.Channels[0].Alternatives) > 0 {
		alt := resp.Results.Channels[0].Alternatives[0]
		if len(alt.Words) > 0 {
			res.Segments = []stt.Segment{{
				Start: alt.Words[0].Start,
				End:   alt.Words[len(alt.Words)-1].End,
				Text:  alt.Transcript,
				Words: convertWords(alt.Words),
			}}
		}
	}
	return res, nil
}

func convertWords(in []deepgramWord) []stt.Word {
	if len(in) == 0 {
		return nil
	}
	out := make([]stt.Word, 0, len(in))
	for _, w := range in {
		text := w.PunctuatedWord
		if text == "" {
			text = w.Word
		}
		out = append(out, stt.Word{Text: text, Start: w.Start, End: w.End, Probability: w.Confidence})
	}
	return out
}
