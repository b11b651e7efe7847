package pricing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sentinelproxy/sentinel/internal/store"
)

func TestCacheRefreshAndExactLookup(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.PutPrice(ctx, "qwen-plus", store.PriceRecord{
		InputPrice: 0.0008, OutputPrice: 0.0002, Vendor: "dashscope",
	}))

	cache := NewCache(kv, zap.NewNop())
	require.NoError(t, cache.Refresh(ctx))

	e := cache.Lookup("qwen-plus")
	assert.Equal(t, 0.0008, e.InputPrice)
	assert.Equal(t, 0.0002, e.OutputPrice)
	assert.Equal(t, "dashscope", e.VendorTag)
}

func TestCacheSubstringFallbackMatch(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.PutPrice(ctx, "deepseek-v3", store.PriceRecord{
		InputPrice: 0.000001, OutputPrice: 0.000002, Vendor: "deepseek",
	}))

	cache := NewCache(kv, zap.NewNop())
	require.NoError(t, cache.Refresh(ctx))

	e := cache.Lookup("deepseek-v3-0324")
	assert.Equal(t, 0.000001, e.InputPrice)
	assert.Equal(t, "deepseek", e.VendorTag)
}

func TestCacheUnknownModelFallsBackToSentinel(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	cache := NewCache(kv, zap.NewNop())
	require.NoError(t, cache.Refresh(ctx))

	e := cache.Lookup("totally-unknown-model")
	assert.Equal(t, SentinelFallback.InputPrice, e.InputPrice)
	assert.Equal(t, SentinelFallback.OutputPrice, e.OutputPrice)
	assert.Equal(t, SentinelFallback.VendorTag, e.VendorTag)
}

func TestCacheLookupDeterministicAcrossRepeatedCalls(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.PutPrice(ctx, "glm-4", store.PriceRecord{InputPrice: 1, OutputPrice: 2, Vendor: "zhipu"}))
	require.NoError(t, kv.PutPrice(ctx, "glm-4-air", store.PriceRecord{InputPrice: 3, OutputPrice: 4, Vendor: "zhipu"}))

	cache := NewCache(kv, zap.NewNop())
	require.NoError(t, cache.Refresh(ctx))

	first := cache.Lookup("glm-4-air-preview")
	for i := 0; i < 20; i++ {
		again := cache.Lookup("glm-4-air-preview")
		assert.Equal(t, first, again, "substring lookup must be stable within one snapshot")
	}
}
