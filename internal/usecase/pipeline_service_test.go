package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/agroprecios/backend/internal/domain"
)

// MockStoreOpener hands out MockSegmentStores by name
type MockStoreOpener struct {
	mu       sync.Mutex
	limits   domain.StoreLimits
	segments map[string]*MockSegmentStore
	opened   []string
	openErr  error
}

func NewMockStoreOpener(limits domain.StoreLimits) *MockStoreOpener {
	return &MockStoreOpener{limits: limits, segments: make(map[string]*MockSegmentStore)}
}

func (m *MockStoreOpener) Open(ctx context.Context, segment string) (domain.SegmentStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened = append(m.opened, segment)
	s, ok := m.segments[segment]
	if !ok {
		s = NewMockSegmentStore(segment, m.limits)
		m.segments[segment] = s
	}
	return s, nil
}

func (m *MockStoreOpener) Segments(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.segments))
	for name := range m.segments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func newTestPipeline(opener domain.StoreOpener, config PipelineConfig, fetchers ...domain.Fetcher) *PipelineService {
	orchestrator := newTestOrchestrator(nil, FetchOrchestratorConfig{Workers: 2})
	syncer := NewIncrementalSync(KeyGranularitySecond, zap.NewNop())
	p := NewPipelineService(fetchers, orchestrator, syncer, opener, config, zap.NewNop())
	p.now = func() time.Time { return time.Date(2025, 6, 27, 10, 15, 30, 500, time.UTC) }
	return p
}

func produceFetcher(name string, listings ...domain.RawListing) *MockFetcher {
	return &MockFetcher{
		name:       name,
		categories: []string{"verduras"},
		listings:   map[string][]domain.RawListing{"verduras": listings},
	}
}

func TestPipelineService_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("runs all retailers into the month segment", func(t *testing.T) {
		opener := NewMockStoreOpener(domain.StoreLimits{})
		p := newTestPipeline(opener, PipelineConfig{SheetName: "precios"},
			produceFetcher("stock", domain.RawListing{Name: "TOMATE PERITA 1KG", RawPrice: "8.000"}),
			produceFetcher("biggie",
				domain.RawListing{Name: "TOMATE PERITA 1KG", RawPrice: 7900},
				domain.RawListing{Name: "COMBO TOMATE", RawPrice: 7900},
			),
		)

		summary, err := p.Run(ctx, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if summary.Segment != "precios_2025_06" {
			t.Errorf("Segment = %q, want precios_2025_06", summary.Segment)
		}
		if summary.ObservedAt != "2025-06-27 10:15:30" {
			t.Errorf("ObservedAt = %q, want 2025-06-27 10:15:30", summary.ObservedAt)
		}
		if summary.Assembled != 2 || summary.Appended != 2 {
			t.Errorf("Assembled = %d, Appended = %d, want 2, 2", summary.Assembled, summary.Appended)
		}
		if summary.Rejected[ReasonExcluded] != 1 {
			t.Errorf("Rejected = %v, want one exclusion", summary.Rejected)
		}
		if summary.RunID == "" {
			t.Error("expected a run id")
		}
		if len(summary.Retailers) != 2 {
			t.Errorf("Retailers = %d, want 2", len(summary.Retailers))
		}
	})

	t.Run("rerun in the same second appends nothing", func(t *testing.T) {
		opener := NewMockStoreOpener(domain.StoreLimits{})
		p := newTestPipeline(opener, PipelineConfig{SheetName: "precios"},
			produceFetcher("stock", domain.RawListing{Name: "CEBOLLA X KG", RawPrice: "5.000"}),
		)

		if _, err := p.Run(ctx, []string{"stock"}); err != nil {
			t.Fatalf("first Run() error = %v", err)
		}
		summary, err := p.Run(ctx, []string{"stock"})
		if err != nil {
			t.Fatalf("second Run() error = %v", err)
		}
		if summary.Appended != 0 || summary.Duplicates != 1 {
			t.Errorf("Appended = %d, Duplicates = %d, want 0, 1", summary.Appended, summary.Duplicates)
		}
	})

	t.Run("unknown retailer", func(t *testing.T) {
		p := newTestPipeline(NewMockStoreOpener(domain.StoreLimits{}), PipelineConfig{}, produceFetcher("stock"))

		_, err := p.Run(ctx, []string{"carrefour"})
		if !errors.Is(err, domain.ErrUnknownRetailer) {
			t.Errorf("Run() error = %v, want ErrUnknownRetailer", err)
		}
	})

	t.Run("overflow without rotation is returned", func(t *testing.T) {
		cols := len(domain.StoreColumns())
		opener := NewMockStoreOpener(domain.StoreLimits{MaxCells: 2 * cols})
		p := newTestPipeline(opener, PipelineConfig{SheetName: "precios"},
			produceFetcher("stock",
				domain.RawListing{Name: "TOMATE PERITA 1KG", RawPrice: "8.000"},
				domain.RawListing{Name: "CEBOLLA X KG", RawPrice: "5.000"},
			),
		)

		_, err := p.Run(ctx, nil)
		if !errors.Is(err, domain.ErrStoreCapacityExceeded) {
			t.Fatalf("Run() error = %v, want ErrStoreCapacityExceeded", err)
		}
		if got := len(opener.segments["precios_2025_06"].rows); got != 0 {
			t.Errorf("rows written = %d, want 0", got)
		}
	})

	t.Run("overflow rotates to the next segment", func(t *testing.T) {
		cols := len(domain.StoreColumns())
		opener := NewMockStoreOpener(domain.StoreLimits{MaxCells: 3 * cols})
		p := newTestPipeline(opener, PipelineConfig{SheetName: "precios", RotateOnOverflow: true},
			produceFetcher("stock",
				domain.RawListing{Name: "TOMATE PERITA 1KG", RawPrice: "8.000"},
				domain.RawListing{Name: "CEBOLLA X KG", RawPrice: "5.000"},
			),
		)
		// month segment already holds one row
		first := NewMockSegmentStore("precios_2025_06", opener.limits)
		first.header = domain.StoreColumns()
		first.rows = [][]string{make([]string, cols)}
		first.alloc = domain.GridSize{Rows: 2, Cols: cols}
		opener.segments["precios_2025_06"] = first

		summary, err := p.Run(ctx, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if summary.Segment != "precios_2025_06_2" {
			t.Errorf("Segment = %q, want precios_2025_06_2", summary.Segment)
		}
		if summary.Appended != 2 {
			t.Errorf("Appended = %d, want 2", summary.Appended)
		}
		if len(first.rows) != 1 {
			t.Errorf("first segment rows = %d, want 1", len(first.rows))
		}
		if got := len(opener.segments["precios_2025_06_2"].rows); got != 2 {
			t.Errorf("overflow segment rows = %d, want 2", got)
		}
	})

	t.Run("legacy over-allocated segment keeps every record", func(t *testing.T) {
		opener := NewMockStoreOpener(domain.StoreLimits{MaxCells: 120})
		legacy := NewMockSegmentStore("precios_2025_06", opener.limits)
		legacy.header = append([]string(nil), domain.RecordColumns...)
		legacy.alloc = domain.GridSize{Rows: 10, Cols: len(domain.RecordColumns)}
		opener.segments["precios_2025_06"] = legacy
		p := newTestPipeline(opener, PipelineConfig{SheetName: "precios", RotateOnOverflow: true},
			produceFetcher("stock", domain.RawListing{Name: "TOMATE PERITA 1KG", RawPrice: "8.000"}),
		)

		summary, err := p.Run(ctx, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if summary.Assembled != 1 || summary.Appended != 1 {
			t.Errorf("Assembled = %d, Appended = %d, want 1, 1", summary.Assembled, summary.Appended)
		}
		if len(legacy.rows) != 1 {
			t.Errorf("legacy segment rows = %d, want 1", len(legacy.rows))
		}
	})

	t.Run("capacity failure while appending rotates every record", func(t *testing.T) {
		opener := NewMockStoreOpener(domain.StoreLimits{})
		full := NewMockSegmentStore("precios_2025_06", opener.limits)
		full.appendErr = fmt.Errorf("append rows: %w", domain.ErrStoreCapacityExceeded)
		opener.segments["precios_2025_06"] = full
		p := newTestPipeline(opener, PipelineConfig{SheetName: "precios", RotateOnOverflow: true},
			produceFetcher("stock",
				domain.RawListing{Name: "TOMATE PERITA 1KG", RawPrice: "8.000"},
				domain.RawListing{Name: "CEBOLLA X KG", RawPrice: "5.000"},
			),
		)

		summary, err := p.Run(ctx, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if summary.Appended != 2 {
			t.Errorf("Appended = %d, want 2", summary.Appended)
		}
		if got := len(opener.segments["precios_2025_06_2"].rows); got != 2 {
			t.Errorf("overflow segment rows = %d, want 2", got)
		}
	})

	t.Run("day keys hold across overflow segments", func(t *testing.T) {
		cols := len(domain.StoreColumns())
		opener := NewMockStoreOpener(domain.StoreLimits{MaxCells: 4 * cols})
		base := NewMockSegmentStore("precios_2025_06", opener.limits)
		base.header = domain.StoreColumns()
		base.rows = [][]string{make([]string, cols)}
		base.alloc = domain.GridSize{Rows: 2, Cols: cols}
		opener.segments["precios_2025_06"] = base

		dayPipeline := func(at time.Time, listings ...domain.RawListing) *PipelineService {
			orchestrator := newTestOrchestrator(nil, FetchOrchestratorConfig{Workers: 2})
			syncer := NewIncrementalSync(KeyGranularityDay, zap.NewNop())
			p := NewPipelineService([]domain.Fetcher{produceFetcher("stock", listings...)}, orchestrator, syncer, opener,
				PipelineConfig{SheetName: "precios", RotateOnOverflow: true}, zap.NewNop())
			p.now = func() time.Time { return at }
			return p
		}

		morning := dayPipeline(time.Date(2025, 6, 27, 10, 0, 0, 0, time.UTC),
			domain.RawListing{Name: "TOMATE PERITA 1KG", RawPrice: "8.000"},
			domain.RawListing{Name: "CEBOLLA X KG", RawPrice: "5.000"},
			domain.RawListing{Name: "PAPA X KG", RawPrice: "4.000"},
		)
		summary, err := morning.Run(ctx, nil)
		if err != nil {
			t.Fatalf("morning Run() error = %v", err)
		}
		if summary.Segment != "precios_2025_06_2" || summary.Appended != 3 {
			t.Fatalf("Segment = %q, Appended = %d, want precios_2025_06_2, 3", summary.Segment, summary.Appended)
		}

		afternoon := dayPipeline(time.Date(2025, 6, 27, 14, 0, 0, 0, time.UTC),
			domain.RawListing{Name: "TOMATE PERITA 1KG", RawPrice: "8.100"},
		)
		summary, err = afternoon.Run(ctx, nil)
		if err != nil {
			t.Fatalf("afternoon Run() error = %v", err)
		}
		if summary.Appended != 0 || summary.Duplicates != 1 {
			t.Errorf("Appended = %d, Duplicates = %d, want 0, 1", summary.Appended, summary.Duplicates)
		}
		if len(base.rows) != 1 {
			t.Errorf("base segment rows = %d, want 1", len(base.rows))
		}
	})

	t.Run("store open failure is returned", func(t *testing.T) {
		opener := NewMockStoreOpener(domain.StoreLimits{})
		opener.openErr = domain.ErrStoreAuth
		p := newTestPipeline(opener, PipelineConfig{}, produceFetcher("stock"))

		if _, err := p.Run(ctx, nil); !errors.Is(err, domain.ErrStoreAuth) {
			t.Errorf("Run() error = %v, want ErrStoreAuth", err)
		}
	})

	t.Run("concurrent run is rejected", func(t *testing.T) {
		p := newTestPipeline(NewMockStoreOpener(domain.StoreLimits{}), PipelineConfig{}, produceFetcher("stock"))
		p.running.Store(true)

		if _, err := p.Run(ctx, nil); !errors.Is(err, domain.ErrRunInProgress) {
			t.Errorf("Run() error = %v, want ErrRunInProgress", err)
		}
	})
}

func TestSegmentName(t *testing.T) {
	at := time.Date(2025, 1, 31, 23, 59, 59, 0, time.FixedZone("PYT", -3*3600))

	testCases := []struct {
		n    int
		want string
	}{
		{n: 1, want: "precios_supermercados_2025_02"},
		{n: 2, want: "precios_supermercados_2025_02_2"},
		{n: 9, want: "precios_supermercados_2025_02_9"},
	}

	for _, tc := range testCases {
		if got := SegmentName("precios_supermercados", at, tc.n); got != tc.want {
			t.Errorf("SegmentName(n=%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestPipelineService_Retailers(t *testing.T) {
	p := newTestPipeline(NewMockStoreOpener(domain.StoreLimits{}), PipelineConfig{},
		produceFetcher("superseis"), produceFetcher("arete"), produceFetcher("biggie"))

	got := p.Retailers()
	want := []string{"arete", "biggie", "superseis"}
	if len(got) != len(want) {
		t.Fatalf("Retailers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Retailers()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
