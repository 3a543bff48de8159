package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/basegraphhq/turnengine/internal/turn"
	"github.com/redis/go-redis/v9"
)

// HotCache is the research-cache Source: short-lived tool/workflow results keyed by
// query, so a repeated question within the freshness TTL skips re-invoking a tool.
// Adapted from the teacher's queue.redisProducer's direct *redis.Client use, repurposed
// from a stream producer into a read-through cache.
type HotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewHotCache(client *redis.Client, ttl time.Duration) *HotCache {
	return &HotCache{client: client, ttl: ttl}
}

func (h *HotCache) Name() string       { return "research_cache" }
func (h *HotCache) Priority() Priority { return PriorityResearchCache }

func (h *HotCache) Retrieve(ctx context.Context, query, sessionID string) ([]turn.Claim, error) {
	key := cacheKey(sessionID, query)
	raw, err := h.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("research cache get: %w", err)
	}

	var claims []turn.Claim
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		return nil, fmt.Errorf("research cache decode: %w", err)
	}
	for i := range claims {
		claims[i].Historical = true
	}
	return claims, nil
}

// Store writes claims to the cache under the volatile TTL. Neither the Coordinator nor
// any other engine code calls it.
func (h *HotCache) Store(ctx context.Context, query, sessionID string, claims []turn.Claim) error {
	key := cacheKey(sessionID, query)
	raw, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("research cache encode: %w", err)
	}
	if err := h.client.Set(ctx, key, raw, h.ttl).Err(); err != nil {
		return fmt.Errorf("research cache set: %w", err)
	}
	return nil
}

func cacheKey(sessionID, query string) string {
	return fmt.Sprintf("research:%s:%s", sessionID, query)
}
