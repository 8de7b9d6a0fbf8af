package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/missiongenesis/internal/observe"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has an
// open circuit breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the template for every entry's breaker. Name is
	// overwritten with the entry name.
	CircuitBreaker CircuitBreakerConfig

	// Kind labels provider metrics, e.g. "llm" or "tts".
	Kind string

	// Metrics receives per-provider request and error counts. Nil selects
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup wraps a primary and zero or more fallback instances of the same
// provider type. When the primary fails or its breaker is open, the next
// entry is tried in registration order.
//
// Entries must be added before the group is shared between goroutines.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a fallback provider.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Primary returns the first entry's provider.
func (fg *FallbackGroup[T]) Primary() T {
	return fg.entries[0].value
}

// States reports each entry's breaker state, primary first.
func (fg *FallbackGroup[T]) States() []EntryState {
	out := make([]EntryState, len(fg.entries))
	for i := range fg.entries {
		out[i] = EntryState{Name: fg.entries[i].name, State: fg.entries[i].breaker.State()}
	}
	return out
}

// EntryState pairs a provider name with its breaker state.
type EntryState struct {
	Name  string
	State State
}

// Execute tries fn against each entry in order until one succeeds.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(T) error) error {
	_, err := ExecuteWithResult(ctx, fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult tries fn against each entry in the group until one
// succeeds. Open breakers are skipped. When ctx is done the loop stops and
// returns ctx's error rather than trying the next entry.
func ExecuteWithResult[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			fg.cfg.Metrics.RecordProviderRequest(ctx, entry.name, fg.cfg.Kind, "ok")
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fmt.Errorf("resilience: %s: %w", entry.name, ctxErr)
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider, circuit open", "provider", entry.name, "kind", fg.cfg.Kind)
			continue
		}
		fg.cfg.Metrics.RecordProviderRequest(ctx, entry.name, fg.cfg.Kind, "error")
		fg.cfg.Metrics.RecordProviderError(ctx, entry.name, fg.cfg.Kind)
		if i < len(fg.entries)-1 {
			slog.Warn("provider failed, trying next",
				"provider", entry.name, "kind", fg.cfg.Kind, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
