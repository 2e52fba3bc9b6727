package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agroprecios/backend/internal/domain"
	"github.com/agroprecios/backend/internal/logger"
)

// KeyGranularity controls how FechaConsulta takes part in the dedup key
type KeyGranularity string

const (
	// KeyGranularitySecond keys on the full timestamp
	KeyGranularitySecond KeyGranularity = "second"
	// KeyGranularityDay keys on the calendar date: one observation per product per retailer per day
	KeyGranularityDay KeyGranularity = "day"
)

// SyncResult describes what one sync did to a store segment
type SyncResult struct {
	Segment       string   `json:"segment"`
	Appended      int      `json:"appended"`
	Duplicates    int      `json:"duplicates"`
	TotalRows     int      `json:"totalRows"`
	AddedColumns  []string `json:"addedColumns,omitempty"`
	CappedColumns []string `json:"cappedColumns,omitempty"`
	Compacted     bool     `json:"compacted"`
	// Pending holds the deduplicated records that were not written because the
	// segment is full. Only set together with domain.ErrStoreCapacityExceeded.
	Pending []domain.ProductRecord `json:"-"`
}

// IncrementalSync appends records not yet present in a store segment
type IncrementalSync struct {
	granularity KeyGranularity
	logger      *zap.Logger
}

// NewIncrementalSync creates a sync with the given dedup key granularity
func NewIncrementalSync(granularity KeyGranularity, log *zap.Logger) *IncrementalSync {
	if granularity != KeyGranularityDay {
		granularity = KeyGranularitySecond
	}
	return &IncrementalSync{granularity: granularity, logger: logger.OrNop(log)}
}

// Sync writes the records of fresh that the segment does not hold yet.
// The store is used from a single goroutine. On overflow nothing is appended
// and the returned error wraps domain.ErrStoreCapacityExceeded.
func (s *IncrementalSync) Sync(ctx context.Context, store domain.SegmentStore, fresh []domain.ProductRecord) (SyncResult, error) {
	return s.SyncExcluding(ctx, store, fresh, nil)
}

// SyncExcluding is Sync that also treats the keys in known as stored.
// known holds the keys of the other segments of the same month.
func (s *IncrementalSync) SyncExcluding(
	ctx context.Context,
	store domain.SegmentStore,
	fresh []domain.ProductRecord,
	known map[domain.RecordKey]bool,
) (result SyncResult, err error) {
	result = SyncResult{Segment: store.Name()}
	log := s.logger.With(zap.String("segment", store.Name()))
	limits := store.Limits()

	// nothing is appended when capacity fails, every pending record goes back to the caller
	pending := fresh
	defer func() {
		if errors.Is(err, domain.ErrStoreCapacityExceeded) && result.Appended == 0 {
			result.Pending = pending
		}
	}()

	header, err := store.Header(ctx)
	if err != nil {
		return result, fmt.Errorf("read header of %s: %w", store.Name(), err)
	}

	existing, err := store.ReadAll(ctx)
	if err != nil {
		return result, fmt.Errorf("read segment %s: %w", store.Name(), err)
	}

	seen := make(map[domain.RecordKey]bool, len(known)+len(existing)+len(fresh))
	for key := range known {
		seen[key] = true
	}
	for _, row := range existing {
		seen[s.rowKey(row)] = true
	}

	deduped := make([]domain.ProductRecord, 0, len(fresh))
	for _, rec := range fresh {
		key := s.recordKey(rec)
		if seen[key] {
			result.Duplicates++
			continue
		}
		seen[key] = true
		deduped = append(deduped, rec)
	}
	pending = deduped

	used, err := store.RowCount(ctx)
	if err != nil {
		return result, fmt.Errorf("count rows of %s: %w", store.Name(), err)
	}
	result.TotalRows = used

	add, capped := missingColumns(header, limits)
	result.CappedColumns = capped
	if len(capped) > 0 {
		log.Warn("store schema capped",
			zap.Error(domain.ErrSchemaCapped),
			zap.Strings("capped_columns", capped),
			zap.Int("max_columns", limits.MaxColumns),
		)
	}

	// Compact before the header grows so new columns are sized against the used area
	dims, err := store.Dimensions(ctx)
	if err != nil {
		return result, fmt.Errorf("measure segment %s: %w", store.Name(), err)
	}
	tight := domain.GridSize{
		Rows: used + 1,
		Cols: max(len(header), min(dims.Cols, len(header)+len(add))),
	}
	if dims.Rows > tight.Rows || dims.Cols > tight.Cols {
		if err := store.Resize(ctx, tight); err != nil {
			return result, fmt.Errorf("compact segment %s: %w", store.Name(), err)
		}
		result.Compacted = true
		log.Debug("segment compacted",
			zap.Int("rows", tight.Rows), zap.Int("cols", tight.Cols),
			zap.Int("previous_rows", dims.Rows), zap.Int("previous_cols", dims.Cols),
		)
	}

	if len(add) > 0 {
		if err := store.AddColumns(ctx, add); err != nil {
			return result, fmt.Errorf("add columns to %s: %w", store.Name(), err)
		}
		result.AddedColumns = add
		header = append(append([]string(nil), header...), add...)
	}

	if len(pending) == 0 {
		log.Info("segment already up to date", zap.Int("duplicates", result.Duplicates))
		return result, nil
	}

	required := domain.GridSize{Rows: used + 1 + len(pending), Cols: len(header)}
	if limits.MaxCells > 0 && required.Cells() > limits.MaxCells {
		log.Error("segment capacity exceeded",
			zap.Int("required_cells", required.Cells()),
			zap.Int("max_cells", limits.MaxCells),
			zap.Int("pending", len(pending)),
		)
		return result, fmt.Errorf("%w: segment %s needs %d cells, limit is %d",
			domain.ErrStoreCapacityExceeded, store.Name(), required.Cells(), limits.MaxCells)
	}

	if err := store.Resize(ctx, required); err != nil {
		return result, fmt.Errorf("grow segment %s: %w", store.Name(), err)
	}

	rows := make([][]string, len(pending))
	for i, rec := range pending {
		rows[i] = rec.Row(header, used+i+1)
	}
	if err := store.AppendRows(ctx, rows); err != nil {
		return result, fmt.Errorf("append to %s: %w", store.Name(), err)
	}

	result.Appended = len(rows)
	result.TotalRows = used + len(rows)
	log.Info("segment synced",
		zap.Int("appended", result.Appended),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("total_rows", result.TotalRows),
	)
	return result, nil
}

// Keys returns the dedup keys of every row stored in the segment
func (s *IncrementalSync) Keys(ctx context.Context, store domain.SegmentStore) (map[domain.RecordKey]bool, error) {
	rows, err := store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read segment %s: %w", store.Name(), err)
	}
	keys := make(map[domain.RecordKey]bool, len(rows))
	for _, row := range rows {
		keys[s.rowKey(row)] = true
	}
	return keys, nil
}

// keyColumns make up the dedup key and are added first when the column limit bites
var keyColumns = map[string]bool{
	domain.ColumnRetailer:   true,
	domain.ColumnProduct:    true,
	domain.ColumnObservedAt: true,
}

// missingColumns returns the canonical columns header lacks that fit under the
// column limit and the ones that do not fit, both in canonical order. Key
// columns are kept first when the limit bites.
func missingColumns(header []string, limits domain.StoreLimits) (add, capped []string) {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}
	var missing []string
	for _, col := range domain.StoreColumns() {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if limits.MaxColumns <= 0 {
		return missing, nil
	}
	room := max(limits.MaxColumns-len(header), 0)
	if room >= len(missing) {
		return missing, nil
	}

	keep := make(map[string]bool, room)
	for _, col := range missing {
		if len(keep) < room && keyColumns[col] {
			keep[col] = true
		}
	}
	for _, col := range missing {
		if len(keep) < room {
			keep[col] = true
		}
	}
	for _, col := range missing {
		if keep[col] {
			add = append(add, col)
		} else {
			capped = append(capped, col)
		}
	}
	return add, capped
}

func (s *IncrementalSync) recordKey(rec domain.ProductRecord) domain.RecordKey {
	return domain.RecordKey{
		Retailer:   strings.ToLower(strings.TrimSpace(rec.Retailer)),
		Product:    CleanProductName(rec.Product),
		ObservedAt: s.keyTime(domain.FormatTimestamp(rec.ObservedAt)),
	}
}

func (s *IncrementalSync) rowKey(row map[string]string) domain.RecordKey {
	return domain.RecordKey{
		Retailer:   strings.ToLower(strings.TrimSpace(row[domain.ColumnRetailer])),
		Product:    CleanProductName(row[domain.ColumnProduct]),
		ObservedAt: s.keyTime(row[domain.ColumnObservedAt]),
	}
}

// keyTime canonicalizes a stored FechaConsulta. Values that are not
// timestamps are kept verbatim so they still compare equal to themselves.
func (s *IncrementalSync) keyTime(value string) string {
	value = strings.TrimSpace(value)
	t, err := time.Parse(domain.TimestampLayout, value)
	if err != nil {
		if t, err = time.Parse(time.DateOnly, value); err != nil {
			return value
		}
	}
	if s.granularity == KeyGranularityDay {
		return t.Format(time.DateOnly)
	}
	return t.Format(domain.TimestampLayout)
}
