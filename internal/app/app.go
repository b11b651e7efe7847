// Package app wires every process-wide singleton — price cache, budget
// controller, billing bus, tokenizer, vendor dispatcher, session writer —
// behind one application context passed to request handlers by reference.
// Construction order is explicit here; there are no hidden package-level
// globals.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sentinelproxy/sentinel/internal/billing"
	"github.com/sentinelproxy/sentinel/internal/config"
	"github.com/sentinelproxy/sentinel/internal/meter"
	"github.com/sentinelproxy/sentinel/internal/pricing"
	"github.com/sentinelproxy/sentinel/internal/session"
	"github.com/sentinelproxy/sentinel/internal/store"
	"github.com/sentinelproxy/sentinel/internal/tokenizer"
	"github.com/sentinelproxy/sentinel/internal/vendor"
)

type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	KV         *store.KV
	Budget     *billing.Budget
	Bus        *billing.Bus
	PriceCache *pricing.Cache
	Catalogue  *pricing.Catalogue
	Tokenizer  *tokenizer.Tokenizer
	Dispatcher *vendor.Dispatcher
	Sessions   *session.Writer
	Meter      *meter.Meter
}

// New constructs every singleton in dependency order: KV store first (other
// services depend on it), then the tokenizer (expensive, built once), then
// the services that compose them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	kv := store.New(cfg.Redis.URL, cfg.Redis.ChatURL)

	tok, err := tokenizer.New()
	if err != nil {
		return nil, fmt.Errorf("construct tokenizer: %w", err)
	}

	budget := billing.NewBudget(cfg.Budget.DefaultLimit)
	bus := billing.NewBus()
	priceCache := pricing.NewCache(kv, logger)
	catalogue := pricing.NewCatalogue(kv, logger, cfg.Catalogue.SourceURL, protectedModels())
	dispatcher := vendor.New(cfg.Vendors)
	sessions := session.New(kv, logger)

	m := meter.New(budget, bus, priceCache, tok, sessions, cfg.Currency, logger)

	a := &App{
		Config:     cfg,
		Logger:     logger,
		KV:         kv,
		Budget:     budget,
		Bus:        bus,
		PriceCache: priceCache,
		Catalogue:  catalogue,
		Tokenizer:  tok,
		Dispatcher: dispatcher,
		Sessions:   sessions,
		Meter:      m,
	}

	if err := priceCache.Refresh(ctx); err != nil {
		logger.Warn("cold-start price cache load failed, continuing with empty cache", zap.Error(err))
	} else {
		logger.Info("price cache cold-start load complete")
	}

	return a, nil
}

// protectedModels preserves manually curated entries the catalogue sync
// must never overwrite.
func protectedModels() []string {
	return []string{"qwen-vl-max"}
}
