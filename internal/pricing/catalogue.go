package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelproxy/sentinel/internal/metrics"
	"github.com/sentinelproxy/sentinel/internal/store"
)

// skippedSuffixes are raw model-ID suffixes the sync must never upsert —
// instruction-tuned/chat aliases and moving-target tags that would otherwise
// shadow the canonical entry.
var skippedSuffixes = []string{"instruct", "chat", "-latest", "-v1:0", ":0"}

// datedVariantPatterns enumerates the dated-release suffixes the catalogue
// source uses for pinned snapshots (yearly/monthly/daily, '@' date stamps,
// and "-preview-MM-DD" tags). A model carrying one of these is a frozen
// snapshot of a model we already track under its bare name.
var datedVariantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`-20\d{6}`),
	regexp.MustCompile(`-20\d{8}`),
	regexp.MustCompile(`-250\d`),
	regexp.MustCompile(`-23\d{2}`),
	regexp.MustCompile(`-24\d{2}`),
	regexp.MustCompile(`-25\d{2}`),
	regexp.MustCompile(`@20\d{6}`),
	regexp.MustCompile(`@20\d{8}`),
	regexp.MustCompile(`-preview-\d{2}-\d{2}`),
	regexp.MustCompile(`-\d{4}-\d{2}-\d{2}`),
}

// sourceEntry is the shape of one value in the public price JSON document.
type sourceEntry struct {
	InputCostPerToken  float64 `json:"input_cost_per_token"`
	OutputCostPerToken float64 `json:"output_cost_per_token"`
}

// Catalogue periodically pulls a public JSON price table into the Price
// Store, normalizing and filtering model identifiers along the way.
type Catalogue struct {
	kv         *store.KV
	logger     *zap.Logger
	httpClient *http.Client
	sourceURL  string
	protected  map[string]bool
	lastSync   atomic.Int64
}

// NewCatalogue builds a Catalogue. protectedModels are normalized keys whose
// existing Price Store entry must never be overwritten by a sync cycle.
func NewCatalogue(kv *store.KV, logger *zap.Logger, sourceURL string, protectedModels []string) *Catalogue {
	protected := make(map[string]bool, len(protectedModels))
	for _, m := range protectedModels {
		protected[Normalize(m)] = true
	}
	return &Catalogue{
		kv:     kv,
		logger: logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		sourceURL: sourceURL,
		protected: protected,
	}
}

// Run blocks, syncing once after startupDelay and then every syncInterval,
// until ctx is canceled.
func (c *Catalogue) Run(ctx context.Context, startupDelay, syncInterval time.Duration) {
	timer := time.NewTimer(startupDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			c.SyncOnce(ctx)
			timer.Reset(syncInterval)
		}
	}
}

// SyncOnce runs a single sync cycle. Fetch failures abort the cycle without
// touching the Price Store; individual malformed entries are skipped
// without aborting the rest of the batch.
func (c *Catalogue) SyncOnce(ctx context.Context) {
	entries, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("catalogue fetch failed, skipping this cycle", zap.Error(err))
		return
	}

	var upserted, skipped int
	for modelID, info := range entries {
		if !c.shouldUpsert(modelID, info) {
			skipped++
			continue
		}
		key := Normalize(modelID)
		if c.protected[key] {
			skipped++
			continue
		}

		rec := store.PriceRecord{
			InputPrice:  info.InputCostPerToken,
			OutputPrice: info.OutputCostPerToken,
			Vendor:      "litellm_auto",
		}
		if err := c.kv.PutPrice(ctx, key, rec); err != nil {
			c.logger.Warn("failed to write price entry, skipping", zap.String("model", key), zap.Error(err))
			continue
		}
		upserted++
	}

	c.logger.Info("catalogue sync complete", zap.Int("upserted", upserted), zap.Int("skipped", skipped))
	c.lastSync.Store(time.Now().Unix())
	metrics.CatalogueEntriesSynced.Set(float64(upserted))
}

// LastSyncUnix returns the unix timestamp of the last completed sync cycle,
// or zero if none has completed yet.
func (c *Catalogue) LastSyncUnix() int64 {
	return c.lastSync.Load()
}

func (c *Catalogue) shouldUpsert(modelID string, info sourceEntry) bool {
	if info.InputCostPerToken == 0 && info.OutputCostPerToken == 0 {
		return false
	}
	lower := strings.ToLower(modelID)
	for _, suf := range skippedSuffixes {
		if strings.HasSuffix(lower, suf) {
			return false
		}
	}
	for _, re := range datedVariantPatterns {
		if re.MatchString(modelID) {
			return false
		}
	}
	return true
}

func (c *Catalogue) fetch(ctx context.Context) (map[string]sourceEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalogue request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalogue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalogue source returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalogue body: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse catalogue JSON: %w", err)
	}
	entries := make(map[string]sourceEntry, len(raw))
	for modelID, v := range raw {
		var e sourceEntry
		if err := json.Unmarshal(v, &e); err != nil {
			continue // malformed entry: skip it, keep the rest of the batch
		}
		entries[modelID] = e
	}
	return entries, nil
}
