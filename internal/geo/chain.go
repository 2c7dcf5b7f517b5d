package geo

import (
	"context"
	"time"

	"github.com/axellelanca/clicktrail/internal/logging"
	"github.com/axellelanca/clicktrail/internal/metrics"
)

// attempt is one link of a fallback chain.
type attempt[T any] struct {
	name string
	skip bool
	run  func(ctx context.Context) (T, error)
}

// firstSuccess runs attempts strictly in order, each once and under its own timeout,
// and returns the first result without error. Skipped attempts are not run.
// It returns the last error seen, or nil if every attempt was skipped.
func firstSuccess[T any](ctx context.Context, kind string, timeout time.Duration, attempts []attempt[T]) (T, string, error) {
	var (
		zero    T
		lastErr error
	)

	for _, a := range attempts {
		if a.skip {
			metrics.GeoProviderRequests.WithLabelValues(a.name, "skipped").Inc()
			continue
		}

		v, err := runWithTimeout(ctx, timeout, a.run)
		if err != nil {
			metrics.GeoProviderRequests.WithLabelValues(a.name, "failure").Inc()
			logging.Ctx(ctx).Warn().Err(err).Str("kind", kind).Str("provider", a.name).Msg("Provider attempt failed")
			lastErr = err
			continue
		}

		metrics.GeoProviderRequests.WithLabelValues(a.name, "success").Inc()
		return v, a.name, nil
	}

	return zero, "", lastErr
}

type outcome[T any] struct {
	v   T
	err error
}

// runWithTimeout returns when run does or when the timeout fires, whichever is first,
// so an attempt that ignores its context still cannot stall the chain.
func runWithTimeout[T any](ctx context.Context, timeout time.Duration, run func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return run(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		v, err := run(tctx)
		done <- outcome[T]{v: v, err: err}
	}()

	select {
	case o := <-done:
		return o.v, o.err
	case <-tctx.Done():
		var zero T
		return zero, tctx.Err()
	}
}
