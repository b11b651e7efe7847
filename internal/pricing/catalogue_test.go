package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sentinelproxy/sentinel/internal/store"
)

func newTestKV(t *testing.T) *store.KV {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return store.New("redis://"+mr.Addr()+"/0", "redis://"+mr.Addr()+"/1")
}

func TestCatalogueSyncFiltersAndUpserts(t *testing.T) {
	body := `{
		"gpt-4o-2024-05-13": {"input_cost_per_token": 0.000005, "output_cost_per_token": 0.000015},
		"claude-3-sonnet-20240229": {"input_cost_per_token": 0.000003, "output_cost_per_token": 0.000015},
		"gpt-4o-chat": {"input_cost_per_token": 0.000005, "output_cost_per_token": 0.000015},
		"gpt-4o:0": {"input_cost_per_token": 0.000005, "output_cost_per_token": 0.000015},
		"gpt-4o": {"input_cost_per_token": 0.000005, "output_cost_per_token": 0.000015},
		"free-model": {"input_cost_per_token": 0, "output_cost_per_token": 0}
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	kv := newTestKV(t)
	cat := NewCatalogue(kv, zap.NewNop(), srv.URL, nil)
	cat.SyncOnce(context.Background())

	_, found, err := kv.GetPrice(context.Background(), "gpt-4o")
	require.NoError(t, err)
	assert.True(t, found, "gpt-4o should have been upserted")

	for _, skipped := range []string{"gpt-4o-2024-05-13", "claude-3-sonnet-20240229", "gpt-4o-chat", "gpt-4o:0", "free-model"} {
		_, found, err := kv.GetPrice(context.Background(), skipped)
		require.NoError(t, err)
		assert.False(t, found, "%s should have been skipped", skipped)
	}
}

func TestCatalogueProtectedModelNotOverwritten(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.PutPrice(ctx, "qwen-vl-max", store.PriceRecord{
		InputPrice: 0.002, OutputPrice: 0.006, Vendor: "manual",
	}))

	body := `{"qwen-vl-max": {"input_cost_per_token": 0.000005, "output_cost_per_token": 0.000015}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	cat := NewCatalogue(kv, zap.NewNop(), srv.URL, []string{"qwen-vl-max"})
	cat.SyncOnce(ctx)

	rec, found, err := kv.GetPrice(ctx, "qwen-vl-max")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "manual", rec.Vendor, "protected entry must not be overwritten by sync")
}

func TestCatalogueFetchFailureLeavesStoreUntouched(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.PutPrice(ctx, "existing", store.PriceRecord{InputPrice: 1, OutputPrice: 1}))

	cat := NewCatalogue(kv, zap.NewNop(), "http://127.0.0.1:0/nonexistent", nil)
	cat.SyncOnce(ctx)

	_, found, err := kv.GetPrice(ctx, "existing")
	require.NoError(t, err)
	assert.True(t, found, "a failed fetch must not touch the store")
}
