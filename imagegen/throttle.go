package imagegen

import (
	"context"
	"image"
	"time"

	"golang.org/x/time/rate"
)

// Throttled paces calls to the wrapped provider with a token bucket. One
// Throttled is shared by every task using that provider, so the pace holds
// across concurrent slides.
type Throttled struct {
	Provider
	limiter *rate.Limiter
}

// NewThrottled wraps p so at most perMinute calls start each minute.
// perMinute <= 0 returns p unchanged.
func NewThrottled(p Provider, perMinute int) Provider {
	if perMinute <= 0 || p == nil {
		return p
	}
	return &Throttled{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Generate waits for a token, then delegates. A context that ends while
// waiting is a transport failure.
func (t *Throttled) Generate(ctx context.Context, req Request) (image.Image, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: t.Name(), Class: ClassTransport, Err: err}
	}
	return t.Provider.Generate(ctx, req)
}

// Unwrap returns the paced provider.
func (t *Throttled) Unwrap() Provider {
	return t.Provider
}

var _ Provider = (*Throttled)(nil)
