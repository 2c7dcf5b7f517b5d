package geo

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	customerrors "github.com/axellelanca/clicktrail/internal/errors"
	"github.com/axellelanca/clicktrail/internal/logging"
)

// DefaultTimeout bounds each provider attempt.
const DefaultTimeout = 5 * time.Second

// LocationCache stores successful lookups. Implementations must be safe for concurrent use.
type LocationCache interface {
	GetLocation(ctx context.Context, ip string) (Location, bool, error)
	SetLocation(ctx context.Context, ip string, loc Location) error
}

// Resolver walks an ordered provider chain, one provider at a time.
type Resolver struct {
	providers []Provider
	timeout   time.Duration
	cache     LocationCache
}

// NewResolver creates a resolver; providers are tried in the given order.
func NewResolver(timeout time.Duration, providers ...Provider) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{providers: providers, timeout: timeout}
}

// WithCache enables the location cache in front of the chain.
func (r *Resolver) WithCache(cache LocationCache) *Resolver {
	r.cache = cache
	return r
}

// Lookup returns the first valid provider result for ip. It fails with
// ErrNoLocation when the address is unusable or every configured provider failed.
func (r *Resolver) Lookup(ctx context.Context, ip string) (Location, error) {
	ip = strings.TrimSpace(ip)
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}, fmt.Errorf("%w: invalid address %q", customerrors.ErrNoLocation, ip)
	}
	if IsPrivate(parsed) {
		return Location{}, fmt.Errorf("%w: private address %s", customerrors.ErrNoLocation, ip)
	}

	if loc, ok := r.cached(ctx, ip); ok {
		return loc, nil
	}

	attempts := make([]attempt[Location], 0, len(r.providers))
	for _, p := range r.providers {
		p := p
		attempts = append(attempts, attempt[Location]{
			name: p.Name(),
			skip: !p.Configured(),
			run:  func(ctx context.Context) (Location, error) { return p.Lookup(ctx, ip) },
		})
	}

	loc, provider, err := firstSuccess(ctx, "geo", r.timeout, attempts)
	if provider == "" {
		if err == nil {
			return Location{}, fmt.Errorf("%w: no provider configured", customerrors.ErrNoLocation)
		}
		return Location{}, fmt.Errorf("%w for %s: %v", customerrors.ErrNoLocation, ip, err)
	}

	logging.Ctx(ctx).Debug().Str("provider", provider).Str("ip", ip).Msg("Location resolved")
	r.store(ctx, ip, loc)
	return loc, nil
}

// Resolve never fails: any lookup error yields the sentinel location.
func (r *Resolver) Resolve(ctx context.Context, ip string) Location {
	loc, err := r.Lookup(ctx, ip)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("ip", ip).Msg("All geolocation providers failed")
		return Sentinel(ip)
	}
	return loc
}

func (r *Resolver) cached(ctx context.Context, ip string) (Location, bool) {
	if r.cache == nil {
		return Location{}, false
	}
	loc, ok, err := r.cache.GetLocation(ctx, ip)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("ip", ip).Msg("Location cache read failed")
		return Location{}, false
	}
	return loc, ok
}

func (r *Resolver) store(ctx context.Context, ip string, loc Location) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetLocation(ctx, ip, loc); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("ip", ip).Msg("Location cache write failed")
	}
}
