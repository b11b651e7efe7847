package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const priceKeyPrefix = "price:"

// PriceRecord is the KV-layer shape of a model's unit prices, serialized as
// JSON under key "price:{normalized_model}".
type PriceRecord struct {
	InputPrice  float64 `json:"input_price"`
	OutputPrice float64 `json:"output_price"`
	Vendor      string  `json:"vendor"`
}

func priceKey(normalizedModel string) string {
	return priceKeyPrefix + normalizedModel
}

// PutPrice upserts one model's prices. Write failures are the caller's to
// log and skip per the StoreUnavailable policy; PutPrice itself just
// reports the error.
func (kv *KV) PutPrice(ctx context.Context, normalizedModel string, rec PriceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal price record: %w", err)
	}
	return kv.withPriceRetry(ctx, func(c *redis.Client) error {
		return c.Set(ctx, priceKey(normalizedModel), data, 0).Err()
	})
}

// GetPrice reads a single model's price record, if present.
func (kv *KV) GetPrice(ctx context.Context, normalizedModel string) (PriceRecord, bool, error) {
	var rec PriceRecord
	var found bool
	err := kv.withPriceRetry(ctx, func(c *redis.Client) error {
		data, err := c.Get(ctx, priceKey(normalizedModel)).Bytes()
		if err == redis.Nil {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		if uerr := json.Unmarshal(data, &rec); uerr != nil {
			return fmt.Errorf("unmarshal price record: %w", uerr)
		}
		found = true
		return nil
	})
	if err != nil {
		return PriceRecord{}, false, err
	}
	return rec, found, nil
}

// AllPrices performs the full "KEYS price:*" scan the Price Cache refresh
// uses to rebuild its in-memory snapshot.
func (kv *KV) AllPrices(ctx context.Context) (map[string]PriceRecord, error) {
	out := make(map[string]PriceRecord)
	err := kv.withPriceRetry(ctx, func(c *redis.Client) error {
		keys, err := c.Keys(ctx, priceKeyPrefix+"*").Result()
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}
		vals, err := c.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				continue
			}
			var rec PriceRecord
			if err := json.Unmarshal([]byte(s), &rec); err != nil {
				continue
			}
			model := keys[i][len(priceKeyPrefix):]
			out[model] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
