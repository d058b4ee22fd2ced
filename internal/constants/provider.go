// Package constants hands one resolved bundle to every consumer of a request.
//
// A Provider is built once per request around a bundle that was already resolved
// by the cache, and is then passed explicitly to each section that needs it.
// Consumers read through Use; a consumer that was handed no provider gets
// ErrContextUnavailable instead of an empty bundle.
package constants

import (
	"errors"

	"sogif-site/internal/kpi"
)

// ErrContextUnavailable is returned when constants are read outside a provider scope.
var ErrContextUnavailable = errors.New("constants: read outside a provider scope")

// Provider scopes one immutable bundle to a request.
type Provider struct {
	bundle *kpi.Bundle
}

// NewProvider wraps bundle. A nil bundle yields a provider whose Use fails.
func NewProvider(bundle *kpi.Bundle) *Provider {
	return &Provider{bundle: bundle}
}

// Use returns the scoped bundle.
func (p *Provider) Use() (*kpi.Bundle, error) {
	if p == nil || p.bundle == nil {
		return nil, ErrContextUnavailable
	}
	return p.bundle, nil
}

// MustUse is Use for callers that treat a missing provider as a wiring bug.
func (p *Provider) MustUse() *kpi.Bundle {
	b, err := p.Use()
	if err != nil {
		panic(err)
	}
	return b
}
