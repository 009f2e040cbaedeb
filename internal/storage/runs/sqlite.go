package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ballast/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists run records in a single-writer SQLite database.
type SQLiteStore struct {
	db        *sql.DB
	retention time.Duration // 0 disables pruning
}

// NewSQLite opens (creating if needed) the run database at path. A
// positive retentionDays prunes older records on each save.
func NewSQLite(path string, retentionDays int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; WAL readers do not block on it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	var retention time.Duration
	if retentionDays > 0 {
		retention = time.Duration(retentionDays) * 24 * time.Hour
	}

	return &SQLiteStore{db: db, retention: retention}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id              TEXT PRIMARY KEY,
			symbol          TEXT NOT NULL,
			start_ts        INTEGER NOT NULL,
			end_ts          INTEGER NOT NULL,
			initial_capital REAL NOT NULL,
			final_value     REAL NOT NULL,
			total_return    REAL NOT NULL,
			sharpe          REAL NOT NULL,
			max_drawdown    REAL NOT NULL,
			win_rate        REAL NOT NULL,
			trades          INTEGER NOT NULL,
			config_digest   TEXT NOT NULL,
			created_at      INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at);
	`)
	return err
}

func (s *SQLiteStore) SaveRun(ctx context.Context, record core.RunRecord) error {
	if record.ID == "" {
		return fmt.Errorf("run record has no id")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, symbol, start_ts, end_ts, initial_capital, final_value,
			 total_return, sharpe, max_drawdown, win_rate, trades,
			 config_digest, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Symbol,
		record.Start.Unix(),
		record.End.Unix(),
		record.InitialCapital,
		record.FinalValue,
		record.TotalReturn,
		record.Sharpe,
		record.MaxDrawdown,
		record.WinRate,
		record.Trades,
		record.ConfigDigest,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite insert run: %w", err)
	}

	// Prune failures never fail the save.
	if s.retention > 0 {
		cutoff := time.Now().Add(-s.retention).Unix()
		s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
	}

	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (core.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, start_ts, end_ts, initial_capital, final_value,
		       total_return, sharpe, max_drawdown, win_rate, trades,
		       config_digest, created_at
		FROM runs WHERE id = ?`, id)

	record, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RunRecord{}, core.WrapError(core.ErrRunNotFound, fmt.Errorf("run %q", id))
	}
	if err != nil {
		return core.RunRecord{}, fmt.Errorf("sqlite get run: %w", err)
	}
	return record, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]core.RunRecord, error) {
	if limit <= 0 {
		limit = -1 // sqlite treats negative LIMIT as unlimited
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, start_ts, end_ts, initial_capital, final_value,
		       total_return, sharpe, max_drawdown, win_rate, trades,
		       config_digest, created_at
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite list runs: %w", err)
	}
	defer rows.Close()

	var records []core.RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan run: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (core.RunRecord, error) {
	var record core.RunRecord
	var startTS, endTS, createdTS int64

	err := row.Scan(
		&record.ID,
		&record.Symbol,
		&startTS,
		&endTS,
		&record.InitialCapital,
		&record.FinalValue,
		&record.TotalReturn,
		&record.Sharpe,
		&record.MaxDrawdown,
		&record.WinRate,
		&record.Trades,
		&record.ConfigDigest,
		&createdTS,
	)
	if err != nil {
		return core.RunRecord{}, err
	}

	record.Start = time.Unix(startTS, 0).UTC()
	record.End = time.Unix(endTS, 0).UTC()
	record.CreatedAt = time.Unix(createdTS, 0).UTC()
	return record, nil
}
