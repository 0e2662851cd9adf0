package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied idempotently at startup when persistence is enabled
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		fingerprint TEXT,
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		counts JSONB NOT NULL,
		analyses JSONB,
		exclusions JSONB,
		exclusions_total INTEGER NOT NULL DEFAULT 0,
		tier_breakpoints JSONB,
		fatal_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS feature_rows (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id),
		geo_key TEXT NOT NULL,
		state_code TEXT NOT NULL,
		year INTEGER NOT NULL,
		provenance TEXT NOT NULL,
		total_funding DOUBLE PRECISION NOT NULL,
		grant_count INTEGER NOT NULL,
		per_capita_funding DOUBLE PRECISION,
		funding_tier TEXT,
		payload JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feature_rows_run ON feature_rows(run_id)`,
	`CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id),
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		validity TEXT NOT NULL,
		sample_size INTEGER NOT NULL,
		excluded_rows INTEGER NOT NULL,
		statistic DOUBLE PRECISION,
		p_value DOUBLE PRECISION,
		q_value DOUBLE PRECISION,
		effect_size DOUBLE PRECISION,
		payload JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id)`,
}

// EnsureSchema creates the artifact tables if they do not exist
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
