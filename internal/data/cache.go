package data

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/sawpanic/horizon/internal/domain"
)

// Cache is a byte-level TTL cache. The memory implementation is the
// default; a Redis client is used when REDIS_ADDR is set so several
// engine processes can share one warm cache.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, val []byte, ttl time.Duration)
}

type memoryCache struct {
	mu sync.Mutex
	m  map[string]memEntry
}

type memEntry struct {
	b   []byte
	exp time.Time
}

func NewMemoryCache() Cache { return &memoryCache{m: make(map[string]memEntry)} }

func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false
	}
	return e.b, true
}

func (c *memoryCache) Set(key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memEntry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

type redisCache struct{ r *redis.Client }

// NewAutoCache returns the Redis cache when REDIS_ADDR is set, otherwise
// the in-process one.
func NewAutoCache() Cache {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return &redisCache{r: redis.NewClient(&redis.Options{Addr: addr})}
	}
	return NewMemoryCache()
}

func (r *redisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	v, err := r.r.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *redisCache) Set(key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = r.r.Set(ctx, key, val, ttl).Err()
}

// barTTL keeps cached history serviceably fresh per timeframe without
// hammering the feed inside one scan cycle.
func barTTL(tf domain.Timeframe) time.Duration {
	switch tf {
	case domain.TF15Min:
		return time.Minute
	case domain.TFHourly:
		return 5 * time.Minute
	case domain.TFDaily:
		return 15 * time.Minute
	case domain.TFWeekly:
		return time.Hour
	default:
		return time.Minute
	}
}

const (
	quoteTTL        = 5 * time.Second
	fundamentalsTTL = 24 * time.Hour
)

// CachedProvider fronts a Provider with the cache. Quotes are cached for
// seconds, bars per timeframe, fundamentals for a day. Negative results
// are not cached so a recovering feed is retried immediately.
type CachedProvider struct {
	next  Provider
	cache Cache
}

func NewCachedProvider(next Provider, cache Cache) *CachedProvider {
	return &CachedProvider{next: next, cache: cache}
}

func (p *CachedProvider) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	key := "quote:" + symbol
	if b, ok := p.cache.Get(key); ok {
		var q domain.Quote
		if err := json.Unmarshal(b, &q); err == nil {
			return q, nil
		}
	}
	q, err := p.next.Quote(ctx, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	if b, err := json.Marshal(q); err == nil {
		p.cache.Set(key, b, quoteTTL)
	}
	return q, nil
}

func (p *CachedProvider) Bars(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error) {
	key := fmt.Sprintf("bars:%s:%s:%d", symbol, tf, limit)
	if b, ok := p.cache.Get(key); ok {
		var bars []domain.Bar
		if err := json.Unmarshal(b, &bars); err == nil {
			return bars, nil
		}
	}
	bars, err := p.next.Bars(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(bars); err == nil {
		p.cache.Set(key, b, barTTL(tf))
	}
	return bars, nil
}

func (p *CachedProvider) Fundamentals(ctx context.Context, symbol string) (*domain.Fundamentals, error) {
	key := "fundamentals:" + symbol
	if b, ok := p.cache.Get(key); ok {
		var f domain.Fundamentals
		if err := json.Unmarshal(b, &f); err == nil {
			return &f, nil
		}
	}
	f, err := p.next.Fundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if f != nil {
		if b, err := json.Marshal(f); err == nil {
			p.cache.Set(key, b, fundamentalsTTL)
		}
	}
	return f, nil
}
