package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKVWithMiniredis(t *testing.T) (*KV, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return New("redis://"+mr.Addr()+"/0", "redis://"+mr.Addr()+"/1"), mr
}

func TestPriceCRUDRoundTrip(t *testing.T) {
	kv, _ := newKVWithMiniredis(t)
	ctx := context.Background()

	_, found, err := kv.GetPrice(ctx, "qwen-plus")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.PutPrice(ctx, "qwen-plus", PriceRecord{InputPrice: 0.0008, OutputPrice: 0.0002, Vendor: "dashscope"}))

	rec, found, err := kv.GetPrice(ctx, "qwen-plus")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 0.0008, rec.InputPrice)
	assert.Equal(t, "dashscope", rec.Vendor)
}

func TestAllPricesScansEverything(t *testing.T) {
	kv, _ := newKVWithMiniredis(t)
	ctx := context.Background()

	require.NoError(t, kv.PutPrice(ctx, "a", PriceRecord{InputPrice: 1, OutputPrice: 1}))
	require.NoError(t, kv.PutPrice(ctx, "b", PriceRecord{InputPrice: 2, OutputPrice: 2}))

	all, err := kv.AllPrices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 1.0, all["a"].InputPrice)
	assert.Equal(t, 2.0, all["b"].InputPrice)
}

func TestAppendMessageSetsTTLAndOrdersHistory(t *testing.T) {
	kv, mr := newKVWithMiniredis(t)
	ctx := context.Background()

	first, _ := json.Marshal(map[string]string{"role": "user", "content": "hi"})
	second, _ := json.Marshal(map[string]string{"role": "assistant", "content": "hello"})

	require.NoError(t, kv.AppendMessage(ctx, "sess-1", first))
	require.NoError(t, kv.AppendMessage(ctx, "sess-1", second))

	history, err := kv.History(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.JSONEq(t, string(first), string(history[0]))
	assert.JSONEq(t, string(second), string(history[1]))

	ttl := mr.DB(1).TTL(chatKey("sess-1"))
	assert.Equal(t, 24*time.Hour, ttl)
}

func TestHistorySkipsMalformedEntries(t *testing.T) {
	kv, mr := newKVWithMiniredis(t)
	ctx := context.Background()

	valid, _ := json.Marshal(map[string]string{"role": "user", "content": "hi"})
	require.NoError(t, kv.AppendMessage(ctx, "sess-2", valid))
	_, err := mr.DB(1).Lpush(chatKey("sess-2"), "not json")
	require.NoError(t, err)

	history, err := kv.History(ctx, "sess-2")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestGetPriceAfterStoreUnavailableDegradesGracefully(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	kv := New("redis://"+mr.Addr()+"/0", "redis://"+mr.Addr()+"/1")

	require.NoError(t, kv.PutPrice(context.Background(), "warm", PriceRecord{InputPrice: 1, OutputPrice: 1}))
	mr.Close()

	_, _, err = kv.GetPrice(context.Background(), "warm")
	assert.Error(t, err, "a dead store must surface an error rather than panic")
}
