package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/agroprecios/backend/internal/domain"
	"github.com/agroprecios/backend/internal/logger"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS store_segments (
	name       TEXT PRIMARY KEY,
	header     TEXT[] NOT NULL DEFAULT '{}',
	alloc_rows INTEGER NOT NULL,
	alloc_cols INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS store_rows (
	segment TEXT NOT NULL REFERENCES store_segments(name) ON DELETE CASCADE,
	seq     INTEGER NOT NULL,
	cells   TEXT[] NOT NULL,
	PRIMARY KEY (segment, seq)
);`

// PostgresStore keeps segments in PostgreSQL, one row per stored record
type PostgresStore struct {
	pool        *pgxpool.Pool
	limits      domain.StoreLimits
	initialRows int
	logger      *zap.Logger
}

// NewPostgresStore connects to dsn and creates the tables when missing
func NewPostgresStore(ctx context.Context, dsn string, limits domain.StoreLimits, initialRows int, log *zap.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", mapPostgresError(err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", mapPostgresError(err))
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create store tables: %w", mapPostgresError(err))
	}

	log = logger.OrNop(log)
	log.Info("postgres store connected")

	return &PostgresStore{pool: pool, limits: limits, initialRows: initialRows, logger: log}, nil
}

// Open returns the named segment, creating it when needed
func (s *PostgresStore) Open(ctx context.Context, segment string) (domain.SegmentStore, error) {
	alloc := initialGrid(s.initialRows, s.limits)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO store_segments (name, alloc_rows, alloc_cols)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING`,
		segment, alloc.Rows, alloc.Cols,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment %s: %w", segment, mapPostgresError(err))
	}
	return &postgresSegment{store: s, name: segment}, nil
}

// Segments returns the names of all segments, sorted
func (s *PostgresStore) Segments(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM store_segments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", mapPostgresError(err))
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", mapPostgresError(err))
	}
	return names, nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// mapPostgresError turns authentication and authorization failures into domain.ErrStoreAuth
func mapPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28000", "28P01", "42501":
			return fmt.Errorf("%w: %s", domain.ErrStoreAuth, pgErr.Message)
		}
	}
	return err
}

type postgresSegment struct {
	store *PostgresStore
	name  string
}

func (p *postgresSegment) Name() string { return p.name }

func (p *postgresSegment) Limits() domain.StoreLimits { return p.store.limits }

// segmentState is the locked view of a segment inside a transaction
type segmentState struct {
	header []string
	alloc  domain.GridSize
	rows   int
}

func (p *postgresSegment) lockState(ctx context.Context, tx pgx.Tx) (segmentState, error) {
	var st segmentState
	err := tx.QueryRow(ctx, `
		SELECT header, alloc_rows, alloc_cols
		FROM store_segments WHERE name = $1 FOR UPDATE`, p.name,
	).Scan(&st.header, &st.alloc.Rows, &st.alloc.Cols)
	if err != nil {
		return st, fmt.Errorf("failed to lock segment: %w", err)
	}
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM store_rows WHERE segment = $1`, p.name).Scan(&st.rows); err != nil {
		return st, fmt.Errorf("failed to count rows: %w", err)
	}
	return st, nil
}

// inTx runs fn in a transaction, rolling back when fn fails
func (p *postgresSegment) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := p.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				p.store.logger.Error("failed to rollback transaction", zap.String("segment", p.name), zap.Error(rollbackErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return mapPostgresError(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapPostgresError(err))
	}
	return nil
}

func (p *postgresSegment) Header(ctx context.Context) ([]string, error) {
	var header []string
	err := p.store.pool.QueryRow(ctx, `SELECT header FROM store_segments WHERE name = $1`, p.name).Scan(&header)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", mapPostgresError(err))
	}
	return header, nil
}

func (p *postgresSegment) AddColumns(ctx context.Context, cols []string) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		st, err := p.lockState(ctx, tx)
		if err != nil {
			return err
		}
		width := len(st.header) + len(cols)
		size := grown(st.alloc, st.rows, width)
		if err := checkResize(size, st.rows, width, p.store.limits); err != nil {
			return fmt.Errorf("add columns: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE store_segments SET header = $2, alloc_rows = $3, alloc_cols = $4
			WHERE name = $1`,
			p.name, append(st.header, cols...), size.Rows, size.Cols,
		)
		return err
	})
}

func (p *postgresSegment) ReadAll(ctx context.Context) ([]map[string]string, error) {
	header, err := p.Header(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := p.store.pool.Query(ctx, `SELECT cells FROM store_rows WHERE segment = $1 ORDER BY seq`, p.name)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var out []map[string]string
	for rows.Next() {
		var cells []string
		if err := rows.Scan(&cells); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, rowMap(header, cells))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

func (p *postgresSegment) RowCount(ctx context.Context) (int, error) {
	var n int
	if err := p.store.pool.QueryRow(ctx, `SELECT COUNT(*) FROM store_rows WHERE segment = $1`, p.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", mapPostgresError(err))
	}
	return n, nil
}

func (p *postgresSegment) Dimensions(ctx context.Context) (domain.GridSize, error) {
	var size domain.GridSize
	err := p.store.pool.QueryRow(ctx, `SELECT alloc_rows, alloc_cols FROM store_segments WHERE name = $1`, p.name).
		Scan(&size.Rows, &size.Cols)
	if err != nil {
		return size, fmt.Errorf("failed to read dimensions: %w", mapPostgresError(err))
	}
	return size, nil
}

func (p *postgresSegment) Resize(ctx context.Context, size domain.GridSize) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		st, err := p.lockState(ctx, tx)
		if err != nil {
			return err
		}
		if err := checkResize(size, st.rows, len(st.header), p.store.limits); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE store_segments SET alloc_rows = $2, alloc_cols = $3 WHERE name = $1`,
			p.name, size.Rows, size.Cols)
		return err
	})
}

func (p *postgresSegment) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	return p.inTx(ctx, func(tx pgx.Tx) error {
		st, err := p.lockState(ctx, tx)
		if err != nil {
			return err
		}
		size := grown(st.alloc, st.rows+len(rows), len(st.header))
		if err := checkResize(size, st.rows, len(st.header), p.store.limits); err != nil {
			return fmt.Errorf("append rows: %w", err)
		}

		batch := &pgx.Batch{}
		for i, row := range rows {
			batch.Queue(`INSERT INTO store_rows (segment, seq, cells) VALUES ($1, $2, $3)`,
				p.name, st.rows+i+1, fitRow(row, len(st.header)))
		}
		batch.Queue(`UPDATE store_segments SET alloc_rows = $2, alloc_cols = $3 WHERE name = $1`,
			p.name, size.Rows, size.Cols)

		br := tx.SendBatch(ctx, batch)
		for range batch.Len() {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to execute batch query: %w", err)
			}
		}
		return br.Close()
	})
}
