package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/neurotask/internal/core/domain"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
	schemaLockID       = int64(2026101901)
)

// ExtractionLogRepository persists extraction outcomes. Extracted text is
// never written; only document metadata and the outcome are kept.
type ExtractionLogRepository struct {
	db *sql.DB
}

func NewExtractionLogRepository(db *sql.DB) *ExtractionLogRepository {
	return &ExtractionLogRepository{db: db}
}

func (r *ExtractionLogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS extraction_log (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	media_type TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	format TEXT NOT NULL,
	outcome TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	chars INTEGER NOT NULL DEFAULT 0,
	duration_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_extraction_log_created_at ON extraction_log(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_extraction_log_outcome ON extraction_log(outcome);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ExtractionLogRepository) Record(ctx context.Context, rec domain.ExtractionRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO extraction_log (
	id, name, media_type, size_bytes, format, outcome, detail, chars, duration_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		rec.ID, rec.Name, rec.MediaType, rec.SizeBytes, string(rec.Format), string(rec.Outcome),
		rec.Detail, rec.Chars, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert extraction record: %w", err)
	}
	return nil
}

// Recent returns the newest records first.
func (r *ExtractionLogRepository) Recent(ctx context.Context, limit int) ([]domain.ExtractionRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, media_type, size_bytes, format, outcome, detail, chars, duration_ms, created_at
FROM extraction_log
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query extraction log: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ExtractionRecord, 0, limit)
	for rows.Next() {
		var (
			rec     domain.ExtractionRecord
			format  string
			outcome string
		)
		if err := rows.Scan(
			&rec.ID, &rec.Name, &rec.MediaType, &rec.SizeBytes, &format, &outcome,
			&rec.Detail, &rec.Chars, &rec.DurationMS, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan extraction record: %w", err)
		}
		rec.Format = domain.FormatClass(format)
		rec.Outcome = domain.ExtractionOutcome(outcome)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate extraction log: %w", err)
	}
	return out, nil
}

// NopExtractionLog is used when no database is configured.
type NopExtractionLog struct{}

func (NopExtractionLog) Record(context.Context, domain.ExtractionRecord) error { return nil }

func (NopExtractionLog) Recent(context.Context, int) ([]domain.ExtractionRecord, error) {
	return []domain.ExtractionRecord{}, nil
}
