package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gc "github.com/patrickmn/go-cache"
)

// Cached memoizes frame results by payload hash. Analysis is deterministic,
// so identical bytes always produce the same result. Errors are not cached.
type Cached struct {
	next  Analyzer
	cache *gc.Cache
}

// NewCached wraps next with a result cache expiring after ttl.
func NewCached(next Analyzer, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: gc.New(ttl, 2*ttl),
	}
}

// Analyze returns the cached result for data or computes and stores it.
// Returned results are shared and must not be modified.
func (c *Cached) Analyze(ctx context.Context, data []byte) (*FrameResult, error) {
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	if hit, ok := c.cache.Get(key); ok {
		log.Tracef("pipeline: cache hit %s", key[:12])
		return hit.(*FrameResult), nil
	}

	result, err := c.next.Analyze(ctx, data)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(key, result)

	return result, nil
}

// Len returns the number of cached results.
func (c *Cached) Len() int {
	return c.cache.ItemCount()
}
