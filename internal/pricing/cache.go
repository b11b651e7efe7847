package pricing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelproxy/sentinel/internal/store"
)

// Cache is the in-memory read mirror of the Price Store, refreshed on a
// timer (or an admin-triggered refresh). It is a process-wide singleton;
// lookups never touch the KV store directly.
type Cache struct {
	kv     *store.KV
	logger *zap.Logger

	mu       sync.RWMutex
	snapshot map[string]Entry
	// keys holds a sorted copy of snapshot's keys, taken at the same time as
	// the snapshot itself, so substring-match iteration order is
	// deterministic within one snapshot even though Go map iteration is not.
	keys []string
}

func NewCache(kv *store.KV, logger *zap.Logger) *Cache {
	return &Cache{
		kv:       kv,
		logger:   logger,
		snapshot: make(map[string]Entry),
	}
}

// Refresh performs the full "KEYS price:*" scan and swaps in a new
// snapshot atomically.
func (c *Cache) Refresh(ctx context.Context) error {
	recs, err := c.kv.AllPrices(ctx)
	if err != nil {
		return err
	}

	snap := make(map[string]Entry, len(recs))
	keys := make([]string, 0, len(recs))
	for model, rec := range recs {
		snap[model] = Entry{
			ModelKey:    model,
			InputPrice:  rec.InputPrice,
			OutputPrice: rec.OutputPrice,
			VendorTag:   rec.Vendor,
		}
		keys = append(keys, model)
	}
	sort.Strings(keys)

	c.mu.Lock()
	c.snapshot = snap
	c.keys = keys
	c.mu.Unlock()

	c.logger.Info("price cache refreshed", zap.Int("entries", len(snap)))
	return nil
}

// Run refreshes the cache every interval (the server passes one hour) until
// ctx is canceled.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("price cache refresh failed", zap.Error(err))
			}
		}
	}
}

// Lookup resolves a caller-supplied model string to a price entry: exact
// normalized match first, then a deterministic first-match substring test in
// either direction, then the sentinel fallback.
func (c *Cache) Lookup(model string) Entry {
	key := Normalize(model)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.snapshot[key]; ok {
		return e
	}

	for _, k := range c.keys {
		if strings.Contains(k, key) || strings.Contains(key, k) {
			return c.snapshot[k]
		}
	}

	c.logger.Warn("price cache miss, using sentinel fallback", zap.String("model", key))
	fallback := SentinelFallback
	fallback.ModelKey = key
	return fallback
}
