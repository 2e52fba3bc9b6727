package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/agroprecios/backend/internal/domain"
	"github.com/agroprecios/backend/internal/logger"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS store_segments (
		name       TEXT PRIMARY KEY,
		header     TEXT NOT NULL DEFAULT '[]',
		alloc_rows INTEGER NOT NULL,
		alloc_cols INTEGER NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS store_rows (
		segment TEXT NOT NULL REFERENCES store_segments(name) ON DELETE CASCADE,
		seq     INTEGER NOT NULL,
		cells   TEXT NOT NULL,
		PRIMARY KEY (segment, seq)
	)`,
}

// SQLiteStore keeps segments in a single SQLite file. Header and cells are
// stored as JSON arrays.
type SQLiteStore struct {
	db          *sql.DB
	limits      domain.StoreLimits
	initialRows int
	logger      *zap.Logger
}

// NewSQLiteStore opens the database at path and creates the tables when missing
func NewSQLiteStore(ctx context.Context, path string, limits domain.StoreLimits, initialRows int, log *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create store tables: %w", err)
		}
	}

	log = logger.OrNop(log)
	log.Info("sqlite store opened", zap.String("path", path))

	return &SQLiteStore{db: db, limits: limits, initialRows: initialRows, logger: log}, nil
}

// Open returns the named segment, creating it when needed
func (s *SQLiteStore) Open(ctx context.Context, segment string) (domain.SegmentStore, error) {
	alloc := initialGrid(s.initialRows, s.limits)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO store_segments (name, alloc_rows, alloc_cols) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`,
		segment, alloc.Rows, alloc.Cols,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment %s: %w", segment, err)
	}
	return &sqliteSegment{store: s, name: segment}, nil
}

// Segments returns the names of all segments, sorted
func (s *SQLiteStore) Segments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM store_segments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan segment name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteSegment struct {
	store *SQLiteStore
	name  string
}

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (q *sqliteSegment) Name() string { return q.name }

func (q *sqliteSegment) Limits() domain.StoreLimits { return q.store.limits }

func (q *sqliteSegment) state(ctx context.Context, db queryer) (segmentState, error) {
	var (
		st     segmentState
		header string
	)
	err := db.QueryRowContext(ctx,
		`SELECT header, alloc_rows, alloc_cols FROM store_segments WHERE name = ?`, q.name,
	).Scan(&header, &st.alloc.Rows, &st.alloc.Cols)
	if err != nil {
		return st, fmt.Errorf("failed to read segment: %w", err)
	}
	if err := json.Unmarshal([]byte(header), &st.header); err != nil {
		return st, fmt.Errorf("failed to decode header: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM store_rows WHERE segment = ?`, q.name).Scan(&st.rows); err != nil {
		return st, fmt.Errorf("failed to count rows: %w", err)
	}
	return st, nil
}

func (q *sqliteSegment) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := q.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				q.store.logger.Error("failed to rollback transaction", zap.String("segment", q.name), zap.Error(rollbackErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (q *sqliteSegment) Header(ctx context.Context) ([]string, error) {
	st, err := q.state(ctx, q.store.db)
	if err != nil {
		return nil, err
	}
	return st.header, nil
}

func (q *sqliteSegment) AddColumns(ctx context.Context, cols []string) error {
	return q.inTx(ctx, func(tx *sql.Tx) error {
		st, err := q.state(ctx, tx)
		if err != nil {
			return err
		}
		width := len(st.header) + len(cols)
		size := grown(st.alloc, st.rows, width)
		if err := checkResize(size, st.rows, width, q.store.limits); err != nil {
			return fmt.Errorf("add columns: %w", err)
		}
		header, err := json.Marshal(append(st.header, cols...))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE store_segments SET header = ?, alloc_rows = ?, alloc_cols = ? WHERE name = ?`,
			string(header), size.Rows, size.Cols, q.name,
		)
		return err
	})
}

func (q *sqliteSegment) ReadAll(ctx context.Context) ([]map[string]string, error) {
	header, err := q.Header(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.store.db.QueryContext(ctx, `SELECT cells FROM store_rows WHERE segment = ? ORDER BY seq`, q.name)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []map[string]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return nil, fmt.Errorf("failed to decode row: %w", err)
		}
		out = append(out, rowMap(header, cells))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

func (q *sqliteSegment) RowCount(ctx context.Context) (int, error) {
	var n int
	if err := q.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM store_rows WHERE segment = ?`, q.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

func (q *sqliteSegment) Dimensions(ctx context.Context) (domain.GridSize, error) {
	st, err := q.state(ctx, q.store.db)
	if err != nil {
		return domain.GridSize{}, err
	}
	return st.alloc, nil
}

func (q *sqliteSegment) Resize(ctx context.Context, size domain.GridSize) error {
	return q.inTx(ctx, func(tx *sql.Tx) error {
		st, err := q.state(ctx, tx)
		if err != nil {
			return err
		}
		if err := checkResize(size, st.rows, len(st.header), q.store.limits); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE store_segments SET alloc_rows = ?, alloc_cols = ? WHERE name = ?`,
			size.Rows, size.Cols, q.name)
		return err
	})
}

func (q *sqliteSegment) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	return q.inTx(ctx, func(tx *sql.Tx) error {
		st, err := q.state(ctx, tx)
		if err != nil {
			return err
		}
		size := grown(st.alloc, st.rows+len(rows), len(st.header))
		if err := checkResize(size, st.rows, len(st.header), q.store.limits); err != nil {
			return fmt.Errorf("append rows: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO store_rows (segment, seq, cells) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, row := range rows {
			cells, err := json.Marshal(fitRow(row, len(st.header)))
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, q.name, st.rows+i+1, string(cells)); err != nil {
				return fmt.Errorf("failed to insert row: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx, `UPDATE store_segments SET alloc_rows = ?, alloc_cols = ? WHERE name = ?`,
			size.Rows, size.Cols, q.name)
		return err
	})
}
