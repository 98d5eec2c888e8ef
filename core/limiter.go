package core

import (
	"context"

	"golang.org/x/time/rate"
)

// ModelLimiter throttles outbound model calls across all turns sharing an
// engine. A nil *ModelLimiter is a no-op.
type ModelLimiter struct {
	limiter *rate.Limiter
}

// NewModelLimiter returns a limiter allowing rps requests per second with the
// given burst. Non-positive rps disables limiting.
func NewModelLimiter(rps float64, burst int) *ModelLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &ModelLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a model call may proceed or ctx is cancelled.
func (m *ModelLimiter) Wait(ctx context.Context) error {
	if m == nil || m.limiter == nil {
		return nil
	}
	return m.limiter.Wait(ctx)
}
