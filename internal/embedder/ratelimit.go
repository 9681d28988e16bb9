package embedder

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/54b3r/docchat/internal/rag"
)

// RateLimited wraps a rag.Embedder with a token bucket so that hosted
// embedding APIs are not called faster than their quota allows. Every Embed
// call consumes one token, whatever the batch size.
type RateLimited struct {
	// next is the wrapped embedder.
	next rag.Embedder
	// limiter gates calls to next.
	limiter *rate.Limiter
}

// NewRateLimited returns an embedder allowing at most perSecond calls per
// second with the given burst. burst < 1 is raised to 1.
func NewRateLimited(next rag.Embedder, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Embed waits for a token, then delegates to the wrapped embedder. It returns
// early with an error when ctx is cancelled while waiting.
func (r *RateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedder: rate limit wait: %w", err)
	}
	return r.next.Embed(ctx, texts)
}
