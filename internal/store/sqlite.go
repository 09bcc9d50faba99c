package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/seantiz/threadbench/internal/model"

	_ "modernc.org/sqlite"
)

const createSamplesTable = `
CREATE TABLE IF NOT EXISTS samples (
    id          TEXT PRIMARY KEY,
    request_id  INTEGER NOT NULL,
    mode        TEXT NOT NULL,
    executor    TEXT NOT NULL,
    worker      TEXT NOT NULL,
    lightweight INTEGER NOT NULL,
    delay_ms    INTEGER NOT NULL,
    elapsed_ms  INTEGER NOT NULL,
    error_kind  TEXT NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL
)`

const createSamplesIndex = `CREATE INDEX IF NOT EXISTS idx_samples_executor ON samples (executor, elapsed_ms)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
// An in-memory database lives on a single connection, so samples vanish when
// the process exits.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to :memory: opens its own empty database.
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createSamplesTable, createSamplesIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create samples table: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordSample inserts a finished request.
func (s *SQLiteStore) RecordSample(ctx context.Context, sm model.Sample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO samples (
			id, request_id, mode, executor, worker, lightweight,
			delay_ms, elapsed_ms, error_kind, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sm.ID, int64(sm.RequestID), string(sm.Mode), sm.ExecutorLabel, sm.Worker, sm.Lightweight,
		sm.DelayMillis, sm.ElapsedMillis, string(sm.ErrorKind), sm.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// ListSamples returns a page of samples, newest request first, along with the
// total number of samples.
func (s *SQLiteStore) ListSamples(ctx context.Context, limit, offset int) ([]model.Sample, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM samples").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count samples: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, request_id, mode, executor, worker, lightweight,
			delay_ms, elapsed_ms, error_kind, created_at
		FROM samples ORDER BY request_id DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	samples := []model.Sample{}
	for rows.Next() {
		var (
			sm        model.Sample
			requestID int64
			mode      string
			kind      string
		)
		if err := rows.Scan(
			&sm.ID, &requestID, &mode, &sm.ExecutorLabel, &sm.Worker, &sm.Lightweight,
			&sm.DelayMillis, &sm.ElapsedMillis, &kind, &sm.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan sample: %w", err)
		}
		sm.RequestID = uint64(requestID)
		sm.Mode = model.Mode(mode)
		sm.ErrorKind = model.Kind(kind)
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate samples: %w", err)
	}

	return samples, total, nil
}

// GetStats computes per-executor counts and latency percentiles (see
// model.Percentile) over every recorded sample.
func (s *SQLiteStore) GetStats(ctx context.Context) (*SampleStats, error) {
	stats := &SampleStats{
		CountByMode: make(map[string]int),
		ByExecutor:  []*ExecutorStats{},
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	modeRows, err := tx.QueryContext(ctx, "SELECT mode, COUNT(*) FROM samples GROUP BY mode")
	if err != nil {
		return nil, fmt.Errorf("count by mode: %w", err)
	}
	defer modeRows.Close()
	for modeRows.Next() {
		var mode string
		var count int
		if err := modeRows.Scan(&mode, &count); err != nil {
			return nil, fmt.Errorf("scan mode count: %w", err)
		}
		stats.CountByMode[mode] = count
		stats.Total += count
	}
	if err := modeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mode counts: %w", err)
	}
	modeRows.Close()

	rows, err := tx.QueryContext(ctx,
		"SELECT executor, elapsed_ms, error_kind FROM samples ORDER BY executor, elapsed_ms")
	if err != nil {
		return nil, fmt.Errorf("query latencies: %w", err)
	}
	defer rows.Close()

	latencies := make(map[string][]int64)
	byExecutor := make(map[string]*ExecutorStats)
	for rows.Next() {
		var executor, kind string
		var elapsed int64
		if err := rows.Scan(&executor, &elapsed, &kind); err != nil {
			return nil, fmt.Errorf("scan latency: %w", err)
		}
		es, ok := byExecutor[executor]
		if !ok {
			es = &ExecutorStats{Executor: executor}
			byExecutor[executor] = es
			stats.ByExecutor = append(stats.ByExecutor, es)
		}
		es.Count++
		if kind != "" {
			es.Errors++
			continue
		}
		latencies[executor] = append(latencies[executor], elapsed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latencies: %w", err)
	}

	for _, es := range stats.ByExecutor {
		sorted := latencies[es.Executor]
		if len(sorted) == 0 {
			continue
		}
		var sum int64
		for _, v := range sorted {
			sum += v
		}
		es.AvgMS = float64(sum) / float64(len(sorted))
		es.P50MS = model.Percentile(sorted, 50)
		es.P95MS = model.Percentile(sorted, 95)
		es.P99MS = model.Percentile(sorted, 99)
		es.MaxMS = slices.Max(sorted)
	}

	return stats, nil
}
