package indexerclient

import (
	"context"
	"time"

	"github.com/swapstream/swap-indexer/internal/cache"
)

// CachedCalls wraps call lookups with a TTL LRU. Call records are immutable
// once indexed, so replayed events hit the cache instead of the indexer.
// Unknown ids are not cached: the indexer may still be catching up.
type CachedCalls struct {
	client *Client
	calls  *cache.LRU[string, *Call]
}

func NewCachedCalls(client *Client, capacity int, ttl time.Duration) *CachedCalls {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedCalls{
		client: client,
		calls:  cache.NewLRU[string, *Call](capacity, ttl),
	}
}

func (c *CachedCalls) GetCall(ctx context.Context, id string) (*Call, error) {
	if call, ok := c.calls.Get(id); ok {
		return call, nil
	}
	call, err := c.client.GetCall(ctx, id)
	if err != nil {
		return nil, err
	}
	if call != nil {
		c.calls.Put(id, call)
	}
	return call, nil
}
