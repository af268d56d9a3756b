// Package remote provides a vad.Detector backed by an HTTP speech
// segmentation service, for example a pyannote worker.
//
// The detector uploads the whole stream as a 16 kHz mono WAV file and expects
// a JSON body of the form:
//
//	{"segments": [{"start": 0.52, "end": 3.10}, ...]}
//
// Requests carry a bearer token read from a token file (by default
// HuggingFaceToken.txt in the working directory). A missing or empty token
// file makes Detect fail with vad.ErrMissingCredential before any request is
// sent.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MrWong99/vadscribe/pkg/audio"
	"github.com/MrWong99/vadscribe/pkg/provider/vad"
)

// DefaultTokenFile is the token file used when none is configured.
const DefaultTokenFile = "HuggingFaceToken.txt"

const defaultTimeout = 10 * time.Minute

// Compile-time assertion that Detector implements vad.Detector.
var _ vad.Detector = (*Detector)(nil)

// Option is a functional option for configuring a Detector.
type Option func(*Detector)

// WithTokenFile sets the path of the file holding the access token.
func WithTokenFile(path string) Option {
	return func(d *Detector) {
		d.tokenFile = path
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 10 minutes,
// since segmentation runs over whole recordings.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Detector) {
		d.httpClient.Timeout = timeout
	}
}

// Detector implements vad.Detector by calling a remote segmentation service.
type Detector struct {
	endpoint   string
	tokenFile  string
	httpClient *http.Client
}

// New creates a Detector that posts audio to endpoint. endpoint must be
// non-empty.
func New(endpoint string, opts ...Option) (*Detector, error) {
	if endpoint == "" {
		return nil, errors.New("remote vad: endpoint must not be empty")
	}
	d := &Detector{
		endpoint:   endpoint,
		tokenFile:  DefaultTokenFile,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Detect uploads s and returns the supported timeline of the service's
// segments.
func (d *Detector) Detect(ctx context.Context, s audio.Stream) ([]vad.Span, error) {
	token, err := d.token()
	if err != nil {
		return nil, err
	}

	mono, err := audio.Convert(s, audio.PipelineFormat)
	if err != nil {
		return nil, fmt.Errorf("remote vad: convert stream: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(audio.EncodeWAV(mono)))
	if err != nil {
		return nil, fmt.Errorf("remote vad: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote vad: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote vad: read response body: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: service rejected token (HTTP %d)", vad.ErrMissingCredential, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("remote vad: service returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("remote vad: parse JSON response: %w", err)
	}

	spans := make([]vad.Span, 0, len(out.Segments))
	for _, seg := range out.Segments {
		if seg.Start < 0 {
			seg.Start = 0
		}
		spans = append(spans, vad.Span{Start: seg.Start, End: seg.End})
	}
	return vad.Support(spans), nil
}

// token reads the access token. It is re-read on every call so that a token
// file created while a batch runs is picked up by the next file.
func (d *Detector) token() (string, error) {
	b, err := os.ReadFile(d.tokenFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: token file %q not found", vad.ErrMissingCredential, d.tokenFile)
	}
	if err != nil {
		return "", fmt.Errorf("remote vad: read token file: %w", err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", fmt.Errorf("%w: token file %q is empty", vad.ErrMissingCredential, d.tokenFile)
	}
	return token, nil
}
