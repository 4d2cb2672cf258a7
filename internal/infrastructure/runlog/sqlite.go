package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"ToolCurator/internal/domain"
	"ToolCurator/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    pipeline    TEXT NOT NULL,
    outcome     TEXT NOT NULL,
    started_at  TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    duration_ms INTEGER NOT NULL,
    metrics     TEXT NOT NULL DEFAULT '{}',
    attributes  TEXT NOT NULL DEFAULT '{}',
    error_note  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_pipeline
    ON pipeline_runs (pipeline, finished_at DESC);
`

// SQLiteStore appends pipeline run summaries to a local SQLite database and
// answers history queries over it.
type SQLiteStore struct {
	db *sql.DB
}

var _ ports.RunRecorder = (*SQLiteStore)(nil)

// Open opens (creating if needed) the run-history database at path.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init run log schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record appends one run summary.
func (s *SQLiteStore) Record(ctx context.Context, summary domain.RunSummary) error {
	metrics, err := json.Marshal(summary.Metrics)
	if err != nil {
		return fmt.Errorf("encode run metrics: %w", err)
	}
	attrs, err := json.Marshal(summary.Attributes)
	if err != nil {
		return fmt.Errorf("encode run attributes: %w", err)
	}

	query, args, err := sq.Insert("pipeline_runs").
		Columns("pipeline", "outcome", "started_at", "finished_at", "duration_ms", "metrics", "attributes", "error_note").
		Values(
			summary.Pipeline,
			string(summary.Outcome),
			summary.StartedAt.UTC().Format(time.RFC3339Nano),
			summary.FinishedAt.UTC().Format(time.RFC3339Nano),
			summary.Duration.Milliseconds(),
			string(metrics),
			string(attrs),
			summary.ErrorNote,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Latest returns the most recent run for a pipeline, or nil when the
// pipeline has never run.
func (s *SQLiteStore) Latest(ctx context.Context, pipeline string) (*domain.RunSummary, error) {
	runs, err := s.query(ctx, sq.Eq{"pipeline": pipeline}, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// History returns up to limit runs for a pipeline, newest first. An empty
// pipeline returns runs across all pipelines.
func (s *SQLiteStore) History(ctx context.Context, pipeline string, limit int) ([]domain.RunSummary, error) {
	var where any
	if pipeline != "" {
		where = sq.Eq{"pipeline": pipeline}
	}
	return s.query(ctx, where, limit)
}

func (s *SQLiteStore) query(ctx context.Context, where any, limit int) ([]domain.RunSummary, error) {
	builder := sq.Select("pipeline", "outcome", "started_at", "finished_at", "duration_ms", "metrics", "attributes", "error_note").
		From("pipeline_runs").
		OrderBy("finished_at DESC", "id DESC")
	if where != nil {
		builder = builder.Where(where)
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build run query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var result []domain.RunSummary
	for rows.Next() {
		var (
			summary              domain.RunSummary
			outcome              string
			startedAt, finished  string
			durationMS           int64
			metricsRaw, attrsRaw string
		)
		if err := rows.Scan(&summary.Pipeline, &outcome, &startedAt, &finished, &durationMS, &metricsRaw, &attrsRaw, &summary.ErrorNote); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		summary.Outcome = domain.RunOutcome(outcome)
		if summary.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if summary.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		summary.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(metricsRaw), &summary.Metrics); err != nil {
			return nil, fmt.Errorf("decode run metrics: %w", err)
		}
		if err := json.Unmarshal([]byte(attrsRaw), &summary.Attributes); err != nil {
			return nil, fmt.Errorf("decode run attributes: %w", err)
		}
		result = append(result, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return result, nil
}
