package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agroprecios/backend/internal/domain"
	"github.com/agroprecios/backend/internal/logger"
)

// FetchOrchestratorConfig holds configuration for per-retailer fetching
type FetchOrchestratorConfig struct {
	Workers         int
	CategoryTimeout time.Duration
	CategoryTTL     time.Duration
}

// RetailerResult is the outcome of fetching one retailer
type RetailerResult struct {
	Retailer         string                 `json:"retailer"`
	Records          []domain.ProductRecord `json:"-"`
	RecordCount      int                    `json:"records"`
	Categories       int                    `json:"categories"`
	FailedCategories int                    `json:"failedCategories"`
	Rejected         map[string]int         `json:"rejected"`
	Error            string                 `json:"error,omitempty"`
}

// FetchOrchestrator fetches and assembles every category of a retailer with a bounded worker pool
type FetchOrchestrator struct {
	assembler       *RecordAssembler
	cache           domain.CategoryCache
	logger          *zap.Logger
	workers         int
	categoryTimeout time.Duration
	categoryTTL     time.Duration
}

// NewFetchOrchestrator creates an orchestrator. cache may be nil.
func NewFetchOrchestrator(
	assembler *RecordAssembler,
	cache domain.CategoryCache,
	log *zap.Logger,
	config FetchOrchestratorConfig,
) *FetchOrchestrator {
	workers := config.Workers
	if workers <= 0 {
		workers = 8
	}

	timeout := config.CategoryTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	ttl := config.CategoryTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}

	return &FetchOrchestrator{
		assembler:       assembler,
		cache:           cache,
		logger:          logger.OrNop(log),
		workers:         workers,
		categoryTimeout: timeout,
		categoryTTL:     ttl,
	}
}

// categoryOutcome is what one worker produces; workers never share state
type categoryOutcome struct {
	records  []domain.ProductRecord
	rejected map[string]int
	failed   bool
}

// Run fetches every category of fetcher and assembles records stamped with observedAt.
// A failing category is logged and contributes zero records; Run itself never fails.
func (o *FetchOrchestrator) Run(ctx context.Context, fetcher domain.Fetcher, observedAt time.Time) RetailerResult {
	retailer := fetcher.Retailer()
	log := o.logger.With(zap.String("retailer", retailer))
	result := RetailerResult{Retailer: retailer, Rejected: make(map[string]int)}

	refs, cached, err := o.categories(ctx, fetcher)
	if err != nil {
		log.Warn("listing categories failed", zap.Error(err))
		result.Error = err.Error()
		return result
	}
	result.Categories = len(refs)
	if len(refs) == 0 {
		log.Info("no categories to fetch")
		return result
	}

	outcomes := make([]categoryOutcome, len(refs))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, ref := range refs {
		g.Go(func() error {
			outcomes[i] = o.fetchCategory(ctx, fetcher, ref, observedAt, log)
			return nil
		})
	}
	// Workers report failures through their outcome, Wait cannot fail
	_ = g.Wait()

	for _, out := range outcomes {
		if out.failed {
			result.FailedCategories++
		}
		result.Records = append(result.Records, out.records...)
		for reason, n := range out.rejected {
			result.Rejected[reason] += n
		}
	}
	result.RecordCount = len(result.Records)

	// every category of a cached list failed: list again next run
	if cached && result.FailedCategories == result.Categories {
		o.forget(ctx, fetcher.Retailer())
	}

	log.Info("retailer fetched",
		zap.Int("categories", result.Categories),
		zap.Int("failed_categories", result.FailedCategories),
		zap.Int("count", result.RecordCount),
	)
	return result
}

func categoriesKey(retailer string) string {
	return "categories:" + retailer
}

// categories returns the category references of fetcher and whether they came from the cache
func (o *FetchOrchestrator) categories(ctx context.Context, fetcher domain.Fetcher) ([]string, bool, error) {
	key := categoriesKey(fetcher.Retailer())
	if o.cache != nil {
		if refs, err := o.cache.Get(ctx, key); err == nil && len(refs) > 0 {
			return refs, true, nil
		}
	}

	refs, err := fetcher.ListCategories(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list categories: %w", err)
	}

	if o.cache != nil && len(refs) > 0 {
		if err := o.cache.Set(ctx, key, refs, o.categoryTTL); err != nil {
			o.logger.Debug("caching categories failed", zap.String("retailer", fetcher.Retailer()), zap.Error(err))
		}
	}
	return refs, false, nil
}

func (o *FetchOrchestrator) forget(ctx context.Context, retailer string) {
	if err := o.cache.Delete(ctx, categoriesKey(retailer)); err != nil {
		o.logger.Debug("dropping cached categories failed", zap.String("retailer", retailer), zap.Error(err))
		return
	}
	o.logger.Info("cached categories dropped, all failed", zap.String("retailer", retailer))
}

func (o *FetchOrchestrator) fetchCategory(
	ctx context.Context,
	fetcher domain.Fetcher,
	ref string,
	observedAt time.Time,
	log *zap.Logger,
) (out categoryOutcome) {
	log = log.With(zap.String("category", ref))
	defer func() {
		if r := recover(); r != nil {
			log.Error("category fetch panicked", zap.Any("panic", r))
			out = categoryOutcome{failed: true}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.categoryTimeout)
	defer cancel()

	listings, err := fetcher.FetchCategory(ctx, ref)
	if err != nil {
		log.Warn("category fetch failed", zap.Error(err))
		return categoryOutcome{failed: true}
	}

	out.rejected = make(map[string]int)
	for _, listing := range listings {
		if listing.Retailer == "" {
			listing.Retailer = fetcher.Retailer()
		}
		if listing.CategoryRef == "" {
			listing.CategoryRef = ref
		}
		record, err := o.assembler.Assemble(listing, observedAt)
		if err != nil {
			out.rejected[RejectionReason(err)]++
			continue
		}
		out.records = append(out.records, record)
	}

	log.Debug("category assembled",
		zap.Int("listings", len(listings)),
		zap.Int("count", len(out.records)),
	)
	return out
}
