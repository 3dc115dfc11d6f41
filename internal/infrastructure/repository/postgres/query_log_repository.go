package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
)

// QueryLogRepository records processed pipeline queries for later
// inspection. Writes are best effort at the call site.
type QueryLogRepository struct {
	db *sql.DB
}

func NewQueryLogRepository(db *sql.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

func (r *QueryLogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026021002)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS query_log (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	techniques JSONB NOT NULL DEFAULT '[]'::jsonb,
	faithfulness_score DOUBLE PRECISION NOT NULL,
	context_precision DOUBLE PRECISION NOT NULL,
	contexts_used INTEGER NOT NULL,
	processing_time_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_query_log_created_at ON query_log(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *QueryLogRepository) Insert(ctx context.Context, entry domain.QueryLogEntry) error {
	techniquesJSON, err := json.Marshal(entry.TechniquesUsed)
	if err != nil {
		return fmt.Errorf("marshal techniques: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO query_log (
	id, question, answer, techniques, faithfulness_score, context_precision, contexts_used, processing_time_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		entry.ID, entry.Question, entry.Answer, techniquesJSON,
		entry.FaithfulnessScore, entry.ContextPrecision, entry.NumContextsUsed,
		entry.ProcessingTimeMs, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert query log entry: %w", err)
	}
	return nil
}
