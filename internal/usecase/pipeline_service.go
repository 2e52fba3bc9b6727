package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agroprecios/backend/internal/domain"
	"github.com/agroprecios/backend/internal/logger"
)

// maxOverflowSegments bounds rotation within one month: base, _2 ... _9
const maxOverflowSegments = 9

// PipelineConfig holds configuration for pipeline runs
type PipelineConfig struct {
	SheetName        string
	RotateOnOverflow bool
}

// RunSummary reports one pipeline run
type RunSummary struct {
	RunID      string           `json:"runId"`
	ObservedAt string           `json:"observedAt"`
	Segment    string           `json:"segment"`
	Retailers  []RetailerResult `json:"retailers"`
	Rejected   map[string]int   `json:"rejected"`
	Assembled  int              `json:"assembled"`
	Appended   int              `json:"appended"`
	Duplicates int              `json:"duplicates"`
	Segments   []SyncResult     `json:"segments"`
	Duration   string           `json:"duration"`
}

// PipelineService runs fetch, assembly and sync for a set of retailers
type PipelineService struct {
	fetchers     map[string]domain.Fetcher
	orchestrator *FetchOrchestrator
	sync         *IncrementalSync
	stores       domain.StoreOpener
	config       PipelineConfig
	logger       *zap.Logger
	running      atomic.Bool
	now          func() time.Time
}

// NewPipelineService creates a pipeline over the given fetchers
func NewPipelineService(
	fetchers []domain.Fetcher,
	orchestrator *FetchOrchestrator,
	sync *IncrementalSync,
	stores domain.StoreOpener,
	config PipelineConfig,
	log *zap.Logger,
) *PipelineService {
	byName := make(map[string]domain.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byName[f.Retailer()] = f
	}
	if config.SheetName == "" {
		config.SheetName = "precios_supermercados"
	}
	return &PipelineService{
		fetchers:     byName,
		orchestrator: orchestrator,
		sync:         sync,
		stores:       stores,
		config:       config,
		logger:       logger.OrNop(log),
		now:          time.Now,
	}
}

// Retailers returns the names of all configured retailers, sorted
func (s *PipelineService) Retailers() []string {
	names := make([]string, 0, len(s.fetchers))
	for name := range s.fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes one pipeline run for retailers (all when empty).
// Only store capacity and store access failures are returned as errors;
// retailer and category failures are reported in the summary.
func (s *PipelineService) Run(ctx context.Context, retailers []string) (*RunSummary, error) {
	selected, err := s.selectFetchers(retailers)
	if err != nil {
		return nil, err
	}

	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrRunInProgress
	}
	defer s.running.Store(false)

	started := s.now()
	observedAt := started.UTC().Truncate(time.Second)
	summary := &RunSummary{
		RunID:      uuid.NewString(),
		ObservedAt: domain.FormatTimestamp(observedAt),
		Rejected:   make(map[string]int),
	}
	log := s.logger.With(zap.String("run_id", summary.RunID))
	log.Info("pipeline run started", zap.Strings("retailers", namesOf(selected)))

	// Retailers are independent; each runs its own bounded worker pool
	results := make([]RetailerResult, len(selected))
	var g errgroup.Group
	for i, f := range selected {
		g.Go(func() error {
			results[i] = s.orchestrator.Run(ctx, f, observedAt)
			return nil
		})
	}
	_ = g.Wait()

	var records []domain.ProductRecord
	for _, r := range results {
		records = append(records, r.Records...)
		for reason, n := range r.Rejected {
			summary.Rejected[reason] += n
		}
	}
	summary.Retailers = results
	summary.Assembled = len(records)

	err = s.syncSegments(ctx, records, observedAt, summary, log)
	summary.Duration = s.now().Sub(started).String()
	if err != nil {
		log.Error("pipeline run failed", zap.Error(err))
		return summary, err
	}

	log.Info("pipeline run finished",
		zap.String("segment", summary.Segment),
		zap.Int("assembled", summary.Assembled),
		zap.Int("appended", summary.Appended),
		zap.Int("duplicates", summary.Duplicates),
	)
	return summary, nil
}

// syncSegments writes records into the month segment, rotating to overflow
// segments when the current one is full and rotation is enabled. Keys stored
// in any segment of the month count as duplicates.
func (s *PipelineService) syncSegments(
	ctx context.Context,
	records []domain.ProductRecord,
	observedAt time.Time,
	summary *RunSummary,
	log *zap.Logger,
) error {
	monthKeys, err := s.monthKeys(ctx, observedAt)
	if err != nil {
		return err
	}

	pending := records
	for n := 1; n <= maxOverflowSegments; n++ {
		name := SegmentName(s.config.SheetName, observedAt, n)
		summary.Segment = name

		store, err := s.stores.Open(ctx, name)
		if err != nil {
			return fmt.Errorf("open segment %s: %w", name, err)
		}

		res, err := s.sync.SyncExcluding(ctx, store, pending, siblingKeys(monthKeys, name))
		summary.Segments = append(summary.Segments, res)
		summary.Appended += res.Appended
		summary.Duplicates += res.Duplicates
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrStoreCapacityExceeded) || !s.config.RotateOnOverflow {
			return err
		}
		if len(res.Pending) == 0 && len(pending) > 0 {
			return fmt.Errorf("segment %s lost track of %d pending records: %w", name, len(pending), err)
		}

		log.Warn("rotating to overflow segment", zap.String("segment", name), zap.Int("pending", len(res.Pending)))
		pending = res.Pending
	}
	return fmt.Errorf("%w: all %d segments of %s are full",
		domain.ErrStoreCapacityExceeded, maxOverflowSegments, SegmentName(s.config.SheetName, observedAt, 1))
}

// monthKeys reads the dedup keys of every existing segment of the month of observedAt
func (s *PipelineService) monthKeys(ctx context.Context, observedAt time.Time) (map[string]map[domain.RecordKey]bool, error) {
	existing, err := s.stores.Segments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	month := make(map[string]bool, maxOverflowSegments)
	for n := 1; n <= maxOverflowSegments; n++ {
		month[SegmentName(s.config.SheetName, observedAt, n)] = true
	}

	keys := make(map[string]map[domain.RecordKey]bool)
	for _, name := range existing {
		if !month[name] {
			continue
		}
		store, err := s.stores.Open(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("open segment %s: %w", name, err)
		}
		k, err := s.sync.Keys(ctx, store)
		if err != nil {
			return nil, err
		}
		keys[name] = k
	}
	return keys, nil
}

// siblingKeys merges the keys of every month segment except segment
func siblingKeys(monthKeys map[string]map[domain.RecordKey]bool, segment string) map[domain.RecordKey]bool {
	merged := make(map[domain.RecordKey]bool)
	for name, keys := range monthKeys {
		if name == segment {
			continue
		}
		for k := range keys {
			merged[k] = true
		}
	}
	return merged
}

func (s *PipelineService) selectFetchers(retailers []string) ([]domain.Fetcher, error) {
	if len(retailers) == 0 {
		retailers = s.Retailers()
	}
	var selected []domain.Fetcher
	seen := make(map[string]bool)
	for _, name := range retailers {
		f, ok := s.fetchers[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRetailer, name)
		}
		if !seen[name] {
			seen[name] = true
			selected = append(selected, f)
		}
	}
	return selected, nil
}

// SegmentName returns the store segment for the month of t. n > 1 selects
// an overflow segment of that month.
func SegmentName(sheet string, t time.Time, n int) string {
	name := fmt.Sprintf("%s_%s", sheet, t.UTC().Format("2006_01"))
	if n > 1 {
		name = fmt.Sprintf("%s_%d", name, n)
	}
	return name
}

func namesOf(fetchers []domain.Fetcher) []string {
	names := make([]string, len(fetchers))
	for i, f := range fetchers {
		names[i] = f.Retailer()
	}
	return names
}

