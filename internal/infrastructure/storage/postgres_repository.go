package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"SourceGuard/internal/domain"
	"SourceGuard/internal/ports"
)

// Schema creates the tables used by PostgresRepository.
const Schema = `
CREATE TABLE IF NOT EXISTS quality_runs (
    run_id         TEXT PRIMARY KEY,
    state          TEXT NOT NULL,
    keyword        TEXT NOT NULL DEFAULT '',
    passed         BOOLEAN NOT NULL,
    critical_count INTEGER NOT NULL,
    warning_count  INTEGER NOT NULL,
    fixes          TEXT[] NOT NULL DEFAULT '{}',
    started_at     TIMESTAMPTZ NOT NULL,
    duration_ms    BIGINT NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS quality_findings (
    run_id   TEXT NOT NULL REFERENCES quality_runs(run_id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    severity TEXT NOT NULL,
    code     TEXT NOT NULL,
    message  TEXT NOT NULL,
    locator  TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, position)
);
CREATE TABLE IF NOT EXISTS source_verdicts (
    run_id      TEXT NOT NULL REFERENCES quality_runs(run_id) ON DELETE CASCADE,
    position    INTEGER NOT NULL,
    url         TEXT NOT NULL,
    origin      TEXT NOT NULL,
    status      TEXT NOT NULL,
    final_url   TEXT NOT NULL DEFAULT '',
    http_status INTEGER NOT NULL DEFAULT 0,
    reason      TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, position)
);`

// PostgresRepository persists pipeline runs into Postgres.
type PostgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.RunRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// Migrate applies Schema.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SaveRun upserts the run summary and replaces its findings and verdicts.
func (r *PostgresRepository) SaveRun(ctx context.Context, run ports.RunRecord) error {
	if r.db == nil {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := r.saveRun(ctx, tx, run); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.RunID, err)
	}
	return nil
}

func (r *PostgresRepository) saveRun(ctx context.Context, tx *sql.Tx, run ports.RunRecord) error {
	fixes := make([]string, 0, len(run.Report.FixesApplied))
	for _, f := range run.Report.FixesApplied {
		fixes = append(fixes, f.Fix)
	}

	upsert := r.sb.Insert("quality_runs").
		Columns("run_id", "state", "keyword", "passed", "critical_count", "warning_count", "fixes", "started_at", "duration_ms").
		Values(
			run.RunID,
			run.State,
			run.Keyword,
			run.Report.Passed,
			domain.CountSeverity(run.Report.Findings, domain.SeverityCritical),
			domain.CountSeverity(run.Report.Findings, domain.SeverityWarning),
			pq.Array(fixes),
			run.StartedAt,
			run.Duration.Milliseconds(),
		).
		Suffix(`ON CONFLICT (run_id) DO UPDATE
              SET state = EXCLUDED.state,
                  passed = EXCLUDED.passed,
                  critical_count = EXCLUDED.critical_count,
                  warning_count = EXCLUDED.warning_count,
                  fixes = EXCLUDED.fixes,
                  duration_ms = EXCLUDED.duration_ms,
                  updated_at = NOW()`)
	if err := exec(ctx, tx, upsert, "upsert run"); err != nil {
		return err
	}

	for _, table := range []string{"quality_findings", "source_verdicts"} {
		del := r.sb.Delete(table).Where(sq.Eq{"run_id": run.RunID})
		if err := exec(ctx, tx, del, "clear "+table); err != nil {
			return err
		}
	}

	if len(run.Report.Findings) > 0 {
		insert := r.sb.Insert("quality_findings").Columns("run_id", "position", "severity", "code", "message", "locator")
		for i, f := range run.Report.Findings {
			insert = insert.Values(run.RunID, i, string(f.Severity), f.Code, f.Message, f.Locator)
		}
		if err := exec(ctx, tx, insert, "insert findings"); err != nil {
			return err
		}
	}

	if len(run.Verdicts) > 0 {
		insert := r.sb.Insert("source_verdicts").Columns("run_id", "position", "url", "origin", "status", "final_url", "http_status", "reason")
		for i, v := range run.Verdicts {
			insert = insert.Values(run.RunID, i, v.Source.URL, string(v.Source.Origin), string(v.Status), v.FinalURL, v.HTTPStatus, v.Reason)
		}
		if err := exec(ctx, tx, insert, "insert verdicts"); err != nil {
			return err
		}
	}
	return nil
}

func exec(ctx context.Context, tx *sql.Tx, b sq.Sqlizer, what string) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", what, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
