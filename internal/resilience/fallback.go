package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every member of a [Group] failed or was
// skipped because its breaker is open.
var ErrAllFailed = errors.New("resilience: all engines failed")

// FallbackConfig configures the breaker created for each member of a
// [Group].
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig

	// OnFailure, when set, is called for every member that did not serve a
	// call, with the member's name and error (possibly [ErrCircuitOpen]).
	OnFailure func(ctx context.Context, name string, err error)
}

type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// Group is an ordered list of interchangeable engines. Calls go to the
// first member whose breaker admits them and move down the list on failure.
type Group[T any] struct {
	members []member[T]
	cfg     FallbackConfig
}

// NewGroup creates a [Group] whose first member is primary.
func NewGroup[T any](primaryName string, primary T, cfg FallbackConfig) *Group[T] {
	g := &Group[T]{cfg: cfg}
	g.Add(primaryName, primary)
	return g
}

// Add appends a fallback member. Members are tried in the order added.
// Add must not be called concurrently with [Do].
func (g *Group[T]) Add(name string, value T) {
	cbCfg := g.cfg.CircuitBreaker
	cbCfg.Name = name
	g.members = append(g.members, member[T]{name: name, value: value, breaker: NewCircuitBreaker(cbCfg)})
}

// Len returns the number of members.
func (g *Group[T]) Len() int { return len(g.members) }

// Names returns the member names in call order.
func (g *Group[T]) Names() []string {
	out := make([]string, len(g.members))
	for i, m := range g.members {
		out[i] = m.name
	}
	return out
}

// Breaker returns the breaker of the named member, or nil.
func (g *Group[T]) Breaker(name string) *CircuitBreaker {
	for _, m := range g.members {
		if m.name == name {
			return m.breaker
		}
	}
	return nil
}

// Do calls fn with each member in turn until one succeeds, and returns its
// result and name. Do stops early when ctx is done. When every member
// fails the error wraps [ErrAllFailed] and each member's error.
func Do[T, R any](ctx context.Context, g *Group[T], fn func(context.Context, T) (R, error)) (R, string, error) {
	var (
		zero R
		errs []error
	)
	for _, m := range g.members {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		var res R
		err := m.breaker.Execute(func() error {
			var innerErr error
			res, innerErr = fn(ctx, m.value)
			return innerErr
		})
		if err == nil {
			return res, m.name, nil
		}
		if g.cfg.OnFailure != nil {
			g.cfg.OnFailure(ctx, m.name, err)
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping engine, circuit open", "engine", m.name)
		} else {
			slog.Warn("engine failed, trying next", "engine", m.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
	}
	if err := ctx.Err(); err != nil {
		return zero, "", err
	}
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
