package loader

import (
	"context"
	"errors"
	"fmt"

	"sogif-site/internal/kpi"
)

// ErrDataUnavailable is returned when the upstream source cannot produce a valid bundle.
var ErrDataUnavailable = errors.New("constants data unavailable")

// Loader produces a complete constants bundle or fails; it never returns a partial bundle.
type Loader interface {
	Load(ctx context.Context) (*kpi.Bundle, error)
}

// Func adapts a function to Loader.
type Func func(ctx context.Context) (*kpi.Bundle, error)

// Load calls f.
func (f Func) Load(ctx context.Context) (*kpi.Bundle, error) { return f(ctx) }

// Unavailable wraps cause so it matches ErrDataUnavailable. Errors that already match are returned as is.
func Unavailable(source string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrDataUnavailable, source)
	}
	if errors.Is(cause, ErrDataUnavailable) {
		return cause
	}
	return fmt.Errorf("%w: %s: %w", ErrDataUnavailable, source, cause)
}
