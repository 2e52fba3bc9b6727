package domain

import (
	"context"
	"time"
)

// Fetcher is the per-retailer collaborator producing raw listings
type Fetcher interface {
	// Retailer returns the lowercase site identifier
	Retailer() string
	// ListCategories returns the category references to crawl (may be empty)
	ListCategories(ctx context.Context) ([]string, error)
	// FetchCategory returns the raw listings of one category
	FetchCategory(ctx context.Context, categoryRef string) ([]RawListing, error)
}

// CategoryCache caches category references per retailer
type CategoryCache interface {
	Get(ctx context.Context, key string) ([]string, error)
	Set(ctx context.Context, key string, refs []string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GridSize is the allocated area of a store segment, header row included
type GridSize struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Cells returns the number of cells the grid occupies
func (g GridSize) Cells() int {
	return g.Rows * g.Cols
}

// StoreLimits are the hard quotas of one store segment
type StoreLimits struct {
	MaxCells   int `json:"maxCells"`
	MaxColumns int `json:"maxColumns"`
}

// SegmentStore is one bounded, spreadsheet-like instance of the persistent store
type SegmentStore interface {
	Name() string
	// Header returns the column names of the segment, empty for a new segment
	Header(ctx context.Context) ([]string, error)
	// AddColumns appends columns to the right of the header without touching rows
	AddColumns(ctx context.Context, cols []string) error
	// ReadAll returns every data row keyed by header column
	ReadAll(ctx context.Context) ([]map[string]string, error)
	// RowCount returns the number of data rows, header excluded
	RowCount(ctx context.Context) (int, error)
	// Dimensions returns the allocated grid
	Dimensions(ctx context.Context) (GridSize, error)
	// Resize sets the allocated grid; it never drops data rows or header columns
	Resize(ctx context.Context, size GridSize) error
	// AppendRows writes rows after the last data row, in header order
	AppendRows(ctx context.Context, rows [][]string) error
	Limits() StoreLimits
}

// StoreOpener opens (creating when needed) a named store segment
type StoreOpener interface {
	Open(ctx context.Context, segment string) (SegmentStore, error)
	// Segments returns the names of the segments that exist, sorted
	Segments(ctx context.Context) ([]string, error)
}
