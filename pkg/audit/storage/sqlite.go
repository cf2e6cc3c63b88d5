package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"foundry-hq/hermes/pkg/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id              TEXT PRIMARY KEY,
	request_id      TEXT NOT NULL,
	model           TEXT NOT NULL,
	deployment      TEXT NOT NULL,
	stream          INTEGER NOT NULL,
	outcome         TEXT NOT NULL,
	http_status     INTEGER NOT NULL,
	upstream_status INTEGER NOT NULL DEFAULT 0,
	latency_ms      INTEGER NOT NULL,
	bytes_in        INTEGER NOT NULL DEFAULT 0,
	bytes_out       INTEGER NOT NULL DEFAULT 0,
	elided_regions  INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_records(created_at);
CREATE INDEX IF NOT EXISTS idx_audit_model ON audit_records(model);
`

// SQLite persists the audit trail in a single-file database. WAL mode and
// a busy timeout keep the recorder's writer and CLI readers from blocking
// each other. Timestamps are stored as unix microseconds so ordering and
// cutoff comparisons are plain integer comparisons.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path and ensures the schema.
func NewSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing audit schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Append inserts one record.
func (s *SQLite) Append(ctx context.Context, rec audit.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records
			(id, request_id, model, deployment, stream, outcome, http_status,
			 upstream_status, latency_ms, bytes_in, bytes_out, elided_regions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RequestID, rec.Model, rec.Deployment, boolToInt(rec.Stream),
		rec.Outcome, rec.HTTPStatus, rec.UpstreamStatus, rec.LatencyMS,
		rec.BytesIn, rec.BytesOut, rec.ElidedRegions, rec.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}
	return nil
}

// List returns matching records, newest first.
func (s *SQLite) List(ctx context.Context, f audit.Filter) ([]audit.Record, error) {
	query := `SELECT id, request_id, model, deployment, stream, outcome, http_status,
		upstream_status, latency_ms, bytes_in, bytes_out, elided_regions, created_at
		FROM audit_records`

	var conds []string
	var args []any
	if f.Model != "" {
		conds = append(conds, "model = ?")
		args = append(args, f.Model)
	}
	if f.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since.UnixMicro())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var (
			rec       audit.Record
			stream    int
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Model, &rec.Deployment,
			&stream, &rec.Outcome, &rec.HTTPStatus, &rec.UpstreamStatus,
			&rec.LatencyMS, &rec.BytesIn, &rec.BytesOut, &rec.ElidedRegions,
			&createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}
		rec.Stream = stream != 0
		rec.CreatedAt = time.UnixMicro(createdAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of stored records.
func (s *SQLite) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting audit records: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes records created before cutoff.
func (s *SQLite) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_records WHERE created_at < ?", cutoff.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("deleting old audit records: %w", err)
	}
	return res.RowsAffected()
}

// TrimToCount removes the oldest records until at most max remain.
func (s *SQLite) TrimToCount(ctx context.Context, max int) (int64, error) {
	if max < 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM audit_records WHERE id NOT IN
			(SELECT id FROM audit_records ORDER BY created_at DESC, id DESC LIMIT ?)`, max)
	if err != nil {
		return 0, fmt.Errorf("trimming audit records: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
