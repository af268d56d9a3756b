// Package whisper provides whisper.cpp-backed STT recognizers.
//
// Provider talks to a running whisper-server binary, which exposes a REST API
// at POST /inference. Each Recognize call uploads one WAV clip as
// multipart/form-data together with the decoding parameters and asks for the
// verbose_json response format, which carries per-segment (and, when the
// server was started with word timestamps, per-word) timings.
//
// NativeProvider (native.go) runs the same engine in-process through the
// whisper.cpp CGO bindings.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithModel("large-v3"),
//	    whisper.WithTimeout(2*time.Minute),
//	)
//	res, err := p.Recognize(ctx, wav, stt.Options{Language: "ja", BeamSize: 5})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/vadscribe/pkg/provider/stt"
)

const (
	defaultTimeout = 120 * time.Second

	// maxErrorBody bounds how much of a non-200 response body is quoted in
	// the returned error.
	maxErrorBody = 512
)

// Compile-time assertion that Provider implements stt.Recognizer.
var _ stt.Recognizer = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "large-v3"). When empty the server uses whichever model
// it was started with. This is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithTimeout sets the per-request HTTP timeout. Long clips on CPU-only
// servers can take well over a minute. Defaults to 120 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the HTTP client used for inference requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Recognizer backed by a whisper.cpp HTTP server.
// It holds no per-request state and is safe for concurrent use.
type Provider struct {
	serverURL  string
	model      string
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
// Functional options may be provided to override defaults.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Recognize POSTs wav to the /inference endpoint and parses the verbose_json
// answer.
func (p *Provider) Recognize(ctx context.Context, wav []byte, opts stt.Options) (*stt.Result, error) {
	body, contentType, err := p.buildForm(wav, opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}
	return parseVerboseJSON(data)
}

// buildForm encodes the clip and decoding parameters as multipart/form-data
// using the field names whisper-server understands.
func (p *Provider) buildForm(wav []byte, opts stt.Options) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "clip.wav")
	if err != nil {
		return nil, "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"temperature", strconv.FormatFloat(opts.Temperature, 'f', -1, 64)},
		{"translate", strconv.FormatBool(opts.Task == stt.TaskTranslate)},
	}
	if opts.Language != "" {
		fields = append(fields, [2]string{"language", opts.Language})
	}
	if opts.Prompt != "" {
		fields = append(fields, [2]string{"prompt", opts.Prompt})
	}
	if opts.UsesBeamSearch() && opts.BeamSize > 0 {
		fields = append(fields, [2]string{"beam_size", strconv.Itoa(opts.BeamSize)})
	}
	if !opts.UsesBeamSearch() && opts.BestOf > 0 {
		fields = append(fields, [2]string{"best_of", strconv.Itoa(opts.BestOf)})
	}
	if p.model != "" {
		fields = append(fields, [2]string{"model", p.model})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

// verboseResponse mirrors the verbose_json body returned by whisper-server.
type verboseResponse struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Words []struct {
			Word        string  `json:"word"`
			Start       float64 `json:"start"`
			End         float64 `json:"end"`
			Probability float64 `json:"probability"`
		} `json:"words"`
	} `json:"segments"`
}

// parseVerboseJSON converts a whisper-server verbose_json body into an
// stt.Result. A body without a segments array but with text (the plain json
// format) yields a single untimed segment, which Validate accepts as a
// zero-length segment at the clip start.
func parseVerboseJSON(data []byte) (*stt.Result, error) {
	var vr verboseResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	res := &stt.Result{Language: vr.Language, Text: strings.TrimSpace(vr.Text)}
	for _, s := range vr.Segments {
		seg := stt.Segment{Start: s.Start, End: s.End, Text: s.Text}
		for _, w := range s.Words {
			seg.Words = append(seg.Words, stt.Word{
				Text:        w.Word,
				Start:       w.Start,
				End:         w.End,
				Probability: w.Probability,
			})
		}
		res.Segments = append(res.Segments, seg)
	}
	if len(res.Segments) == 0 && res.Text != "" {
		res.Segments = []stt.Segment{{Text: res.Text}}
	}
	return res, nil
}
