package recon

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// IndexDriver is the database/sql driver name of the run index. Binaries
// link modernc.org/sqlite, or the glebarez fork of it that registers the same
// name, to provide it.
const IndexDriver = "sqlite"

// RunRecord is one finished reconciliation run.
type RunRecord struct {
	ID          string
	WindowStart time.Time
	WindowEnd   time.Time
	FinishedAt  time.Time
	Rows        int
	Anomalies   int
	CSVPath     string
	ParquetPath string
}

// Index keeps the history of reconciliation runs in a sqlite file.
type Index struct {
	db *sql.DB
}

// OpenIndex opens or creates the run index at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open(IndexDriver, path)
	if err != nil {
		return nil, fmt.Errorf("recon: open index: %w", err)
	}
	index := &Index{db: db}
	if err := index.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return index, nil
}

func (i *Index) init() error {
	stmt := `CREATE TABLE IF NOT EXISTS recon_runs (
            id TEXT PRIMARY KEY,
            window_start TEXT NOT NULL,
            window_end TEXT NOT NULL,
            finished_at TEXT NOT NULL,
            row_count INTEGER NOT NULL,
            anomaly_count INTEGER NOT NULL,
            csv_path TEXT NOT NULL,
            parquet_path TEXT NOT NULL
        );`
	if _, err := i.db.Exec(stmt); err != nil {
		return fmt.Errorf("recon: init index: %w", err)
	}
	return nil
}

// Close releases the index file.
func (i *Index) Close() error {
	if i == nil {
		return nil
	}
	return i.db.Close()
}

// Record stores a finished run.
func (i *Index) Record(ctx context.Context, run RunRecord) error {
	_, err := i.db.ExecContext(ctx,
		`INSERT INTO recon_runs (id, window_start, window_end, finished_at, row_count, anomaly_count, csv_path, parquet_path)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.WindowStart.UTC().Format(time.RFC3339Nano),
		run.WindowEnd.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Rows,
		run.Anomalies,
		run.CSVPath,
		run.ParquetPath,
	)
	if err != nil {
		return fmt.Errorf("recon: record run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (i *Index) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := i.db.QueryContext(ctx,
		`SELECT id, window_start, window_end, finished_at, row_count, anomaly_count, csv_path, parquet_path
         FROM recon_runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recon: query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			run                  RunRecord
			start, end, finished string
		)
		if err := rows.Scan(&run.ID, &start, &end, &finished, &run.Rows, &run.Anomalies, &run.CSVPath, &run.ParquetPath); err != nil {
			return nil, fmt.Errorf("recon: scan run: %w", err)
		}
		if run.WindowStart, err = time.Parse(time.RFC3339Nano, start); err != nil {
			return nil, fmt.Errorf("recon: parse window start: %w", err)
		}
		if run.WindowEnd, err = time.Parse(time.RFC3339Nano, end); err != nil {
			return nil, fmt.Errorf("recon: parse window end: %w", err)
		}
		if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("recon: parse finished at: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// LastWindowEnd returns the latest window end of any recorded run.
func (i *Index) LastWindowEnd(ctx context.Context) (time.Time, bool, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT window_end FROM recon_runs`)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("recon: query window ends: %w", err)
	}
	defer rows.Close()

	var (
		latest time.Time
		found  bool
	)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return time.Time{}, false, fmt.Errorf("recon: scan window end: %w", err)
		}
		end, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("recon: parse window end: %w", err)
		}
		if !found || end.After(latest) {
			latest, found = end, true
		}
	}
	return latest, found, rows.Err()
}
