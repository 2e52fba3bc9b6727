package store

import (
	"errors"
	"fmt"

	"github.com/agroprecios/backend/internal/domain"
)

// ErrShrinkBelowData is returned when a resize would drop data rows or header columns
var ErrShrinkBelowData = errors.New("resize would drop stored data")

// DefaultInitialRows is the row allocation of a newly created segment
const DefaultInitialRows = 1000

// checkResize validates a new allocation against the used area and the limits.
// usedRows counts data rows, the header row is added here.
func checkResize(size domain.GridSize, usedRows, headerCols int, limits domain.StoreLimits) error {
	if size.Rows < usedRows+1 || size.Cols < headerCols {
		return fmt.Errorf("%w: %dx%d is smaller than %dx%d", ErrShrinkBelowData, size.Rows, size.Cols, usedRows+1, headerCols)
	}
	if limits.MaxColumns > 0 && size.Cols > limits.MaxColumns {
		return fmt.Errorf("%w: %d columns, limit is %d", domain.ErrSchemaCapped, size.Cols, limits.MaxColumns)
	}
	if limits.MaxCells > 0 && size.Cells() > limits.MaxCells {
		return fmt.Errorf("%w: %d cells, limit is %d", domain.ErrStoreCapacityExceeded, size.Cells(), limits.MaxCells)
	}
	return nil
}

// initialGrid is the allocation of a new segment, clamped to the limits
func initialGrid(initialRows int, limits domain.StoreLimits) domain.GridSize {
	if initialRows <= 0 {
		initialRows = DefaultInitialRows
	}
	size := domain.GridSize{Rows: initialRows, Cols: len(domain.StoreColumns())}
	if limits.MaxColumns > 0 && size.Cols > limits.MaxColumns {
		size.Cols = limits.MaxColumns
	}
	if limits.MaxCells > 0 && size.Cols > 0 && size.Cells() > limits.MaxCells {
		size.Rows = max(limits.MaxCells/size.Cols, 1)
	}
	return size
}

// grown returns alloc enlarged to hold header columns and rows data rows
func grown(alloc domain.GridSize, rows, headerCols int) domain.GridSize {
	return domain.GridSize{Rows: max(alloc.Rows, rows+1), Cols: max(alloc.Cols, headerCols)}
}

// fitRow pads or truncates row to width cells
func fitRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

// rowMap keys a stored row by header column
func rowMap(header, row []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(row) {
			m[col] = row[i]
		} else {
			m[col] = ""
		}
	}
	return m
}
