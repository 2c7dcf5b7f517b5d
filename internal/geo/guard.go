package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	customerrors "github.com/axellelanca/clicktrail/internal/errors"
	"github.com/axellelanca/clicktrail/internal/logging"
	"github.com/axellelanca/clicktrail/internal/metrics"
)

// GuardConfig bounds how hard a provider is hit.
// A zero RequestsPerMinute disables the limiter, a zero FailureThreshold the breaker.
type GuardConfig struct {
	RequestsPerMinute int
	FailureThreshold  uint32
	Cooldown          time.Duration
}

type guardedProvider struct {
	Provider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[Location]
}

// Guard wraps p with a quota limiter and a circuit breaker. A throttled call or an
// open circuit fails fast with ErrProviderUnavailable, which the chain treats like
// any other failed attempt.
func Guard(p Provider, cfg GuardConfig) Provider {
	g := &guardedProvider{Provider: p}

	if cfg.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}

	if cfg.FailureThreshold > 0 {
		name := "geo-" + p.Name()
		metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
		g.breaker = gobreaker.NewCircuitBreaker[Location](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     cfg.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
					Msg("[CIRCUIT BREAKER] State transition")
				metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			},
		})
	}

	return g
}

func (g *guardedProvider) Lookup(ctx context.Context, ip string) (Location, error) {
	if g.limiter != nil && !g.limiter.Allow() {
		return Location{}, fmt.Errorf("%w: %s quota exceeded", customerrors.ErrProviderUnavailable, g.Name())
	}

	if g.breaker == nil {
		return g.Provider.Lookup(ctx, ip)
	}

	loc, err := g.breaker.Execute(func() (Location, error) {
		return g.Provider.Lookup(ctx, ip)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Location{}, fmt.Errorf("%w: %s circuit %v", customerrors.ErrProviderUnavailable, g.Name(), err)
	}
	return loc, err
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
