// Package store provides the two logical key-value databases the proxy
// depends on: model prices (DB 0) and session chat history (DB 1), both
// living on a single physical Redis instance. Connections are opened lazily
// and guarded by a double-checked lock so concurrent first-callers never
// open more than one client per database.
package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// lazyClient is an atomic one-shot cell around a *redis.Client: the happy
// path is a single atomic load, and only the first caller(s) racing before
// it is populated pay for the mutex.
type lazyClient struct {
	url string

	mu     sync.Mutex
	client atomic.Pointer[redis.Client]
}

func newLazyClient(url string) *lazyClient {
	return &lazyClient{url: url}
}

func (l *lazyClient) get(ctx context.Context) (*redis.Client, error) {
	if c := l.client.Load(); c != nil {
		return c, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if c := l.client.Load(); c != nil {
		return c, nil
	}

	opt, err := redis.ParseURL(l.url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	l.client.Store(c)
	return c, nil
}

// reset drops the cached client so the next get() reconnects. Used after a
// read failure to implement the one-shot-reconnect-then-degrade policy.
func (l *lazyClient) reset(stale *redis.Client) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client.CompareAndSwap(stale, nil) {
		stale.Close()
	}
}

// KV is the process-wide handle to both logical databases. It is a
// singleton constructed once at startup and shared by reference.
type KV struct {
	prices *lazyClient
	chat   *lazyClient
}

// New builds a KV handle. priceURL and chatURL are expected to point at DB 0
// and DB 1 respectively of the same physical Redis, but nothing here
// enforces that — they are opaque connection strings.
func New(priceURL, chatURL string) *KV {
	return &KV{
		prices: newLazyClient(priceURL),
		chat:   newLazyClient(chatURL),
	}
}

// priceConn returns the (lazily-initialized) price database client.
func (kv *KV) priceConn(ctx context.Context) (*redis.Client, error) {
	return kv.prices.get(ctx)
}

// chatConn returns the (lazily-initialized) chat database client.
func (kv *KV) chatConn(ctx context.Context) (*redis.Client, error) {
	return kv.chat.get(ctx)
}

// withPriceRetry runs fn against the price connection, reconnecting exactly
// once if fn reports a transport-level failure.
func (kv *KV) withPriceRetry(ctx context.Context, fn func(*redis.Client) error) error {
	return withRetry(ctx, kv.prices, fn)
}

func (kv *KV) withChatRetry(ctx context.Context, fn func(*redis.Client) error) error {
	return withRetry(ctx, kv.chat, fn)
}

func withRetry(ctx context.Context, lc *lazyClient, fn func(*redis.Client) error) error {
	c, err := lc.get(ctx)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		if isTransportErr(err) {
			lc.reset(c)
			c2, err2 := lc.get(ctx)
			if err2 != nil {
				return err2
			}
			return fn(c2)
		}
		return err
	}
	return nil
}

// isTransportErr distinguishes a dead connection (worth reconnecting for)
// from a normal redis.Nil / application-level error.
func isTransportErr(err error) bool {
	if err == nil || err == redis.Nil {
		return false
	}
	var netErr interface{ Timeout() bool }
	if ok := asNetErr(err, &netErr); ok {
		return true
	}
	return false
}

func asNetErr(err error, target *interface{ Timeout() bool }) bool {
	type timeouter interface{ Timeout() bool }
	if t, ok := err.(timeouter); ok {
		*target = t
		return true
	}
	return false
}
