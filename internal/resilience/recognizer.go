package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/vadscribe/internal/observe"
	"github.com/MrWong99/vadscribe/pkg/provider/stt"
)

// Recognizer implements stt.Recognizer over a [Group] of engines with
// automatic failover. A span is lost only when every engine fails on it.
type Recognizer struct {
	group *Group[stt.Recognizer]
}

var _ stt.Recognizer = (*Recognizer)(nil)

// NewRecognizer creates a [Recognizer] preferring primary. When metrics is
// non-nil every engine that does not serve a call is counted in
// ProviderErrors with kind "circuit_open", "unsupported", "malformed" or
// "error" before
// cfg.OnFailure runs.
func NewRecognizer(primaryName string, primary stt.Recognizer, cfg FallbackConfig, metrics *observe.Metrics) *Recognizer {
	if metrics != nil {
		next := cfg.OnFailure
		cfg.OnFailure = func(ctx context.Context, name string, err error) {
			metrics.RecordProviderError(ctx, name, failureKind(err))
			if next != nil {
				next(ctx, name, err)
			}
		}
	}
	return &Recognizer{group: NewGroup(primaryName, primary, cfg)}
}

// AddFallback registers another engine, tried after those already added.
func (r *Recognizer) AddFallback(name string, rec stt.Recognizer) {
	r.group.Add(name, rec)
}

// Engines returns the engine names in failover order.
func (r *Recognizer) Engines() []string { return r.group.Names() }

// Recognize sends the clip to the first healthy engine. An answer that fails
// stt.Validate counts as a failure of that engine and the next one is tried.
func (r *Recognizer) Recognize(ctx context.Context, wav []byte, opts stt.Options) (*stt.Result, error) {
	res, name, err := Do(ctx, r.group, func(ctx context.Context, rec stt.Recognizer) (*stt.Result, error) {
		res, err := rec.Recognize(ctx, wav, opts)
		if err != nil {
			return nil, err
		}
		if err := stt.Validate(res); err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	observe.Logger(ctx).Debug("clip recognized", "engine", name)
	return res, nil
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, stt.ErrUnsupportedTask):
		return "unsupported"
	case errors.Is(err, stt.ErrMalformedResult):
		return "malformed"
	default:
		return "error"
	}
}
