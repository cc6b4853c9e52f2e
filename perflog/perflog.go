// Package perflog archives request performance entries in SQLite so they
// outlive the in-memory ring of a PerformanceMonitor.
package perflog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	websmith "github.com/pcak20/websmith-frontend-v2-sub001"
)

const createTable = `
CREATE TABLE IF NOT EXISTS request_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at INTEGER NOT NULL,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	duration_us INTEGER NOT NULL,
	success INTEGER NOT NULL,
	status INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_request_log_time ON request_log(created_at);
`

// Summary aggregates archived entries.
type Summary struct {
	TotalRequests       int           `json:"totalRequests"`
	SuccessfulRequests  int           `json:"successfulRequests"`
	SuccessRate         float64       `json:"successRate"`
	ErrorRate           float64       `json:"errorRate"`
	AverageResponseTime time.Duration `json:"averageResponseTime"`
	MinResponseTime     time.Duration `json:"minResponseTime"`
	MaxResponseTime     time.Duration `json:"maxResponseTime"`
}

// Log is a SQLite-backed websmith.PerformanceSink.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive at path and runs migrations.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open perflog db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate perflog db: %w", err)
	}

	return &Log{db: db}, nil
}

// Write stores one entry.
func (l *Log) Write(entry websmith.PerformanceEntry) error {
	return l.WriteContext(context.Background(), entry)
}

// WriteContext stores one entry.
func (l *Log) WriteContext(ctx context.Context, entry websmith.PerformanceEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO request_log (created_at, method, url, duration_us, success, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ts.UnixMilli(), entry.Method, entry.URL, entry.Duration.Microseconds(), boolToInt(entry.Success), entry.Status, entry.Error,
	)
	if err != nil {
		return fmt.Errorf("record performance entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]websmith.PerformanceEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT created_at, method, url, duration_us, success, status, error
		 FROM request_log ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent entries: %w", err)
	}
	defer rows.Close()

	var entries []websmith.PerformanceEntry
	for rows.Next() {
		var (
			e          websmith.PerformanceEntry
			createdAt  int64
			durationUs int64
			success    int
		)
		if err := rows.Scan(&createdAt, &e.Method, &e.URL, &durationUs, &success, &e.Status, &e.Error); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Timestamp = time.UnixMilli(createdAt)
		e.Duration = time.Duration(durationUs) * time.Microsecond
		e.Success = success != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summary aggregates entries recorded at or after since. A zero since covers
// the whole archive.
func (l *Log) Summary(ctx context.Context, since time.Time) (Summary, error) {
	var (
		s                   Summary
		successful          sql.NullInt64
		avgUs, minUs, maxUs sql.NullFloat64
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(success), AVG(duration_us), MIN(duration_us), MAX(duration_us)
		 FROM request_log WHERE created_at >= ?`,
		sinceMillis(since),
	).Scan(&s.TotalRequests, &successful, &avgUs, &minUs, &maxUs)
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	if s.TotalRequests == 0 {
		return Summary{}, nil
	}

	s.SuccessfulRequests = int(successful.Int64)
	s.SuccessRate = float64(s.SuccessfulRequests) / float64(s.TotalRequests)
	s.ErrorRate = 1 - s.SuccessRate
	s.AverageResponseTime = time.Duration(avgUs.Float64) * time.Microsecond
	s.MinResponseTime = time.Duration(minUs.Float64) * time.Microsecond
	s.MaxResponseTime = time.Duration(maxUs.Float64) * time.Microsecond
	return s, nil
}

// Prune deletes entries recorded before cutoff and returns how many were removed.
func (l *Log) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM request_log WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune entries: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

func sinceMillis(since time.Time) int64 {
	if since.IsZero() {
		return 0
	}
	return since.UnixMilli()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
