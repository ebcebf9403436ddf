package relay

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultGuardTTL is how long a processed payment id is remembered.
	DefaultGuardTTL = 24 * time.Hour

	guardKeyPrefix = "relay:payment:"
)

// DeliveryGuard remembers which payment ids have already been provisioned.
// Claim reports true only for the first caller of a given id.
type DeliveryGuard interface {
	Claim(ctx context.Context, paymentID string) (bool, error)
	Release(ctx context.Context, paymentID string) error
}

// MemoryGuard is a process-local DeliveryGuard, used when Redis is absent.
type MemoryGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &MemoryGuard{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) Claim(ctx context.Context, paymentID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if exp, ok := g.seen[paymentID]; ok && now.Before(exp) {
		return false, nil
	}
	g.seen[paymentID] = now.Add(g.ttl)
	g.evictExpired(now)
	return true, nil
}

func (g *MemoryGuard) Release(ctx context.Context, paymentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, paymentID)
	return nil
}

// evictExpired keeps the map bounded by the TTL window. Caller holds mu.
func (g *MemoryGuard) evictExpired(now time.Time) {
	for id, exp := range g.seen {
		if !now.Before(exp) {
			delete(g.seen, id)
		}
	}
}

// RedisGuard shares claims across replicas with SETNX.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Claim(ctx context.Context, paymentID string) (bool, error) {
	return g.client.SetNX(ctx, guardKeyPrefix+paymentID, time.Now().Unix(), g.ttl).Result()
}

func (g *RedisGuard) Release(ctx context.Context, paymentID string) error {
	return g.client.Del(ctx, guardKeyPrefix+paymentID).Err()
}
