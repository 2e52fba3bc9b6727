package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agroprecios/backend/internal/domain"
)

// MemoryStore keeps segments in process memory
type MemoryStore struct {
	limits      domain.StoreLimits
	initialRows int

	mu       sync.Mutex
	segments map[string]*memorySegment
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(limits domain.StoreLimits, initialRows int) *MemoryStore {
	return &MemoryStore{
		limits:      limits,
		initialRows: initialRows,
		segments:    make(map[string]*memorySegment),
	}
}

// Open returns the named segment, creating it when needed
func (s *MemoryStore) Open(ctx context.Context, segment string) (domain.SegmentStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seg, ok := s.segments[segment]
	if !ok {
		seg = &memorySegment{
			name:   segment,
			limits: s.limits,
			alloc:  initialGrid(s.initialRows, s.limits),
		}
		s.segments[segment] = seg
	}
	return seg, nil
}

// Segments returns the names of all segments, sorted
func (s *MemoryStore) Segments(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.segments))
	for name := range s.segments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

type memorySegment struct {
	name   string
	limits domain.StoreLimits

	mu     sync.RWMutex
	header []string
	rows   [][]string
	alloc  domain.GridSize
}

func (m *memorySegment) Name() string { return m.name }

func (m *memorySegment) Limits() domain.StoreLimits { return m.limits }

func (m *memorySegment) Header(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.header...), nil
}

func (m *memorySegment) AddColumns(ctx context.Context, cols []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	width := len(m.header) + len(cols)
	if err := checkResize(grown(m.alloc, len(m.rows), width), len(m.rows), width, m.limits); err != nil {
		return fmt.Errorf("add columns: %w", err)
	}
	m.header = append(m.header, cols...)
	m.alloc = grown(m.alloc, len(m.rows), width)
	return nil
}

func (m *memorySegment) ReadAll(ctx context.Context) ([]map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]map[string]string, len(m.rows))
	for i, row := range m.rows {
		out[i] = rowMap(m.header, row)
	}
	return out, nil
}

func (m *memorySegment) RowCount(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows), nil
}

func (m *memorySegment) Dimensions(ctx context.Context) (domain.GridSize, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alloc, nil
}

func (m *memorySegment) Resize(ctx context.Context, size domain.GridSize) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkResize(size, len(m.rows), len(m.header), m.limits); err != nil {
		return err
	}
	m.alloc = size
	return nil
}

// AppendRows grows the allocation when the rows do not fit, as a spreadsheet append does
func (m *memorySegment) AppendRows(ctx context.Context, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := grown(m.alloc, len(m.rows)+len(rows), len(m.header))
	if err := checkResize(size, len(m.rows), len(m.header), m.limits); err != nil {
		return fmt.Errorf("append rows: %w", err)
	}
	for _, row := range rows {
		m.rows = append(m.rows, fitRow(row, len(m.header)))
	}
	m.alloc = size
	return nil
}
