// Package mock provides test doubles for the stt package interfaces.
//
// Use Recognizer to feed scripted Result values to the pipeline and inspect
// which clips and decoding options it sent.
//
// Example:
//
//	r := &mock.Recognizer{
//	    Responses: []mock.Response{
//	        {Result: &stt.Result{Segments: []stt.Segment{{Start: 0, End: 1, Text: "Hello."}}}},
//	        {Err: errors.New("engine down")},
//	    },
//	}
//	res, err := r.Recognize(ctx, wav, stt.Options{})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vadscribe/pkg/provider/stt"
)

// Response is one scripted answer of Recognizer.
type Response struct {
	Result *stt.Result
	Err    error
}

// RecognizeCall records a single invocation of Recognizer.Recognize.
type RecognizeCall struct {
	// Ctx is the context passed to Recognize.
	Ctx context.Context
	// WAV is a copy of the clip passed to Recognize.
	WAV []byte
	// Opts are the decoding options passed to Recognize.
	Opts stt.Options
}

// Recognizer is a mock implementation of stt.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// RecognizeFunc, if set, computes every answer. It takes precedence over
	// Responses and is useful when calls may arrive out of order.
	RecognizeFunc func(ctx context.Context, wav []byte, opts stt.Options) (*stt.Result, error)

	// Responses are returned in call order. Once exhausted, Recognize returns
	// DefaultResult, DefaultErr.
	Responses []Response

	// DefaultResult and DefaultErr are returned when Responses is exhausted.
	// A nil DefaultResult with nil DefaultErr yields an empty Result.
	DefaultResult *stt.Result
	DefaultErr    error

	// Calls records every call to Recognize.
	Calls []RecognizeCall

	next int
}

// Recognize records the call and returns the next scripted answer.
func (r *Recognizer) Recognize(ctx context.Context, wav []byte, opts stt.Options) (*stt.Result, error) {
	r.mu.Lock()
	cp := make([]byte, len(wav))
	copy(cp, wav)
	r.Calls = append(r.Calls, RecognizeCall{Ctx: ctx, WAV: cp, Opts: opts})
	fn := r.RecognizeFunc
	var resp Response
	switch {
	case fn != nil:
	case r.next < len(r.Responses):
		resp = r.Responses[r.next]
		r.next++
	default:
		resp = Response{Result: r.DefaultResult, Err: r.DefaultErr}
		if resp.Result == nil && resp.Err == nil {
			resp.Result = &stt.Result{}
		}
	}
	r.mu.Unlock()

	if fn != nil {
		return fn(ctx, wav, opts)
	}
	return resp.Result, resp.Err
}

// CallCount returns the number of Recognize calls. Thread-safe.
func (r *Recognizer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

// Prompts returns the Prompt of every recorded call in call order.
func (r *Recognizer) Prompts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.Opts.Prompt
	}
	return out
}

// Reset clears all recorded calls and rewinds Responses. Thread-safe.
func (r *Recognizer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = nil
	r.next = 0
}

// Ensure Recognizer implements stt.Recognizer at compile time.
var _ stt.Recognizer = (*Recognizer)(nil)
