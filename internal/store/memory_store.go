package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	chatKeyPrefix = "sentinel:chat:"
	chatTTL       = 24 * time.Hour
)

func chatKey(sessionID string) string {
	return chatKeyPrefix + sessionID
}

// AppendMessage pushes a JSON-stringified message onto a session's ordered
// list and refreshes the key's TTL to 24h, so active sessions never expire
// and idle ones age out.
func (kv *KV) AppendMessage(ctx context.Context, sessionID string, message json.RawMessage) error {
	return kv.withChatRetry(ctx, func(c *redis.Client) error {
		key := chatKey(sessionID)
		pipe := c.TxPipeline()
		pipe.RPush(ctx, key, []byte(message))
		pipe.Expire(ctx, key, chatTTL)
		_, err := pipe.Exec(ctx)
		if err != nil {
			return fmt.Errorf("append session message: %w", err)
		}
		return nil
	})
}

// History returns the full ordered list of messages for a session. Malformed
// entries are dropped silently rather than failing the whole read.
func (kv *KV) History(ctx context.Context, sessionID string) ([]json.RawMessage, error) {
	var out []json.RawMessage
	err := kv.withChatRetry(ctx, func(c *redis.Client) error {
		raw, err := c.LRange(ctx, chatKey(sessionID), 0, -1).Result()
		if err != nil {
			return err
		}
		out = make([]json.RawMessage, 0, len(raw))
		for _, item := range raw {
			if !json.Valid([]byte(item)) {
				continue
			}
			out = append(out, json.RawMessage(item))
		}
		return nil
	})
	if err != nil {
		// Reader-side degrade: on persistent store failure, return an empty
		// history rather than erroring the request.
		return []json.RawMessage{}, err
	}
	return out, nil
}
