package loader

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"sogif-site/internal/kpi"
)

// BreakerOptions tune the upstream circuit breaker.
type BreakerOptions struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Breaker short-circuits loads while the wrapped source keeps failing, so a
// down content API costs the cache one fast error instead of a full timeout.
type Breaker struct {
	next   Loader
	cb     *gobreaker.CircuitBreaker
	logger zerolog.Logger
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next Loader, opts BreakerOptions, logger zerolog.Logger) *Breaker {
	if opts.Name == "" {
		opts.Name = "constants-upstream"
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 3
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = time.Minute
	}

	b := &Breaker{next: next, logger: logger.With().Str("component", "loader_breaker").Logger()}
	maxFailures := opts.MaxFailures
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    opts.Name,
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("breaker state changed")
		},
	})
	return b
}

// Load delegates to the wrapped loader unless the breaker is open.
func (b *Breaker) Load(ctx context.Context) (*kpi.Bundle, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Load(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.logger.Debug().Msg("upstream short-circuited")
		}
		return nil, Unavailable("breaker", err)
	}
	return result.(*kpi.Bundle), nil
}

// State reports the breaker state for diagnostics.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

var _ Loader = (*Breaker)(nil)
