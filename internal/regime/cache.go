package regime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/horizon/internal/domain"
)

// ttl maps a timeframe to how long a reading stays fresh. Slower bars
// change regime slowly, so the reading lives longer.
func ttl(tf domain.Timeframe) time.Duration {
	switch tf {
	case domain.TF15Min:
		return 5 * time.Minute
	case domain.TFHourly:
		return 15 * time.Minute
	case domain.TFDaily:
		return 60 * time.Minute
	default:
		return 4 * time.Hour
	}
}

// BarSource supplies the bar series the classifier consumes on a miss.
type BarSource func(ctx context.Context, symbol string, tf domain.Timeframe) ([]domain.Bar, error)

type cacheEntry struct {
	reading    *Reading
	validUntil time.Time
}

// Cache serves readings per (symbol, timeframe) with timeframe-scaled
// TTLs. Concurrent misses for the same key converge on one recomputation:
// each key carries its own lock, held across fetch-and-classify.
type Cache struct {
	classifier *Classifier
	source     BarSource
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
	inFly   map[string]*sync.Mutex
}

func NewCache(classifier *Classifier, source BarSource) *Cache {
	return &Cache{
		classifier: classifier,
		source:     source,
		now:        time.Now,
		entries:    make(map[string]*cacheEntry),
		inFly:      make(map[string]*sync.Mutex),
	}
}

func cacheKey(symbol string, tf domain.Timeframe) string {
	return symbol + ":" + string(tf)
}

// Reading returns the cached reading for the key, recomputing on miss or
// expiry. Fetch or classification failure returns an error; callers treat
// it as "no trading signal this cycle".
func (c *Cache) Reading(ctx context.Context, symbol string, tf domain.Timeframe) (*Reading, error) {
	key := cacheKey(symbol, tf)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Before(e.validUntil) {
		c.mu.Unlock()
		return e.reading, nil
	}
	keyMu, ok := c.inFly[key]
	if !ok {
		keyMu = &sync.Mutex{}
		c.inFly[key] = keyMu
	}
	c.mu.Unlock()

	keyMu.Lock()
	defer keyMu.Unlock()

	// Another goroutine may have refreshed while we waited on the key lock.
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Before(e.validUntil) {
		c.mu.Unlock()
		return e.reading, nil
	}
	c.mu.Unlock()

	bars, err := c.source(ctx, symbol, tf)
	if err != nil {
		return nil, fmt.Errorf("fetch bars for %s %s: %w", symbol, tf, err)
	}
	reading, err := c.classifier.Classify(bars, tf)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = &cacheEntry{reading: reading, validUntil: c.now().Add(ttl(tf))}
	c.mu.Unlock()

	log.Debug().
		Str("symbol", symbol).
		Str("timeframe", string(tf)).
		Str("regime", string(reading.Label)).
		Float64("confidence", reading.Confidence).
		Msg("Regime reading refreshed")
	return reading, nil
}

// Snapshot returns the currently cached, unexpired readings keyed by
// timeframe for one symbol. Used by the status endpoint.
func (c *Cache) Snapshot(symbol string) map[domain.Timeframe]*Reading {
	out := make(map[domain.Timeframe]*Reading)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tf := range []domain.Timeframe{domain.TF15Min, domain.TFHourly, domain.TFDaily, domain.TFWeekly} {
		if e, ok := c.entries[cacheKey(symbol, tf)]; ok && c.now().Before(e.validUntil) {
			out[tf] = e.reading
		}
	}
	return out
}
