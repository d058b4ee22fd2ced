package loader

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"sogif-site/internal/kpi"
)

// MirrorOptions configure the shared Redis copy of the document.
type MirrorOptions struct {
	Key string
	TTL time.Duration
}

// Mirror shares the last loaded document between site replicas through Redis so
// only one replica per TTL window hits the content API. Redis problems never fail
// a load; they only fall through to the wrapped loader.
type Mirror struct {
	next   Loader
	client redis.Cmdable
	opts   MirrorOptions
	logger zerolog.Logger
}

// NewMirror wraps next with a Redis read-through copy.
func NewMirror(next Loader, client redis.Cmdable, opts MirrorOptions, logger zerolog.Logger) *Mirror {
	if opts.Key == "" {
		opts.Key = "sogif:constants"
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	return &Mirror{
		next:   next,
		client: client,
		opts:   opts,
		logger: logger.With().Str("component", "redis_mirror").Logger(),
	}
}

// Load returns the mirrored document when present and valid, otherwise loads
// through and refreshes the mirror.
func (m *Mirror) Load(ctx context.Context) (*kpi.Bundle, error) {
	raw, err := m.client.Get(ctx, m.opts.Key).Bytes()
	switch {
	case err == nil:
		bundle, decodeErr := kpi.Decode(raw)
		if decodeErr == nil {
			m.logger.Debug().Str("key", m.opts.Key).Msg("constants served from mirror")
			return bundle, nil
		}
		m.logger.Warn().Err(decodeErr).Str("key", m.opts.Key).Msg("discarding malformed mirror entry")
	case errors.Is(err, redis.Nil):
	default:
		m.logger.Warn().Err(err).Str("key", m.opts.Key).Msg("mirror read failed")
	}

	bundle, err := m.next.Load(ctx)
	if err != nil {
		return nil, Unavailable("mirror", err)
	}

	encoded, err := json.Marshal(bundle)
	if err != nil {
		m.logger.Warn().Err(err).Msg("encode bundle for mirror")
		return bundle, nil
	}
	if err := m.client.Set(ctx, m.opts.Key, encoded, m.opts.TTL).Err(); err != nil {
		m.logger.Warn().Err(err).Str("key", m.opts.Key).Msg("mirror write failed")
	}
	return bundle, nil
}

var _ Loader = (*Mirror)(nil)
