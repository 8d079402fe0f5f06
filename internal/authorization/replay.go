package authorization

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayGuard records event ids. Claim reports true the first time an id is
// seen within ttl.
type ReplayGuard interface {
	Claim(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

type RedisGuard struct {
	client *redis.Client
	prefix string
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client, prefix: "litigation:event:"}
}

func (g *RedisGuard) Claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, g.prefix+id, 1, ttl).Result()
}

// MemoryGuard is the single-process guard used when no Redis is configured.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{seen: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) Claim(_ context.Context, id string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for k, exp := range g.seen {
		if !now.Before(exp) {
			delete(g.seen, k)
		}
	}
	if _, ok := g.seen[id]; ok {
		return false, nil
	}
	g.seen[id] = now.Add(ttl)
	return true, nil
}
