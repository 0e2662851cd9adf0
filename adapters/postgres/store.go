package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"grantlens/domain/analysis"
	"grantlens/domain/core"
	"grantlens/domain/run"
	"grantlens/domain/table"
	"grantlens/ports"
)

// artifactStore persists run artifacts in postgres
type artifactStore struct {
	db *sqlx.DB
}

// NewArtifactStore creates a store over an open connection
func NewArtifactStore(db *sqlx.DB) ports.ArtifactStore {
	return &artifactStore{db: db}
}

// Connect opens a postgres connection and verifies it
func Connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}

// SaveReport upserts the run's audit report. Reports are written once at
// run start and once at completion; nothing else touches them.
func (s *artifactStore) SaveReport(ctx context.Context, report *run.Report) error {
	countsJSON, err := json.Marshal(report.Counts)
	if err != nil {
		return fmt.Errorf("marshal counts: %w", err)
	}
	analysesJSON, err := json.Marshal(report.Analyses)
	if err != nil {
		return fmt.Errorf("marshal analyses: %w", err)
	}
	exclusionsJSON, err := json.Marshal(report.Exclusions)
	if err != nil {
		return fmt.Errorf("marshal exclusions: %w", err)
	}
	breakpointsJSON, err := json.Marshal(report.TierBreakpoints)
	if err != nil {
		return fmt.Errorf("marshal tier breakpoints: %w", err)
	}

	query := `INSERT INTO runs (
		id, fingerprint, status, started_at, completed_at,
		counts, analyses, exclusions, exclusions_total, tier_breakpoints, fatal_error
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		completed_at = EXCLUDED.completed_at,
		counts = EXCLUDED.counts,
		analyses = EXCLUDED.analyses,
		exclusions = EXCLUDED.exclusions,
		exclusions_total = EXCLUDED.exclusions_total,
		tier_breakpoints = EXCLUDED.tier_breakpoints,
		fatal_error = EXCLUDED.fatal_error`

	var completedAt interface{}
	if report.CompletedAt != nil {
		completedAt = report.CompletedAt.Time()
	}

	_, err = s.db.ExecContext(ctx, query,
		report.RunID.String(), report.Fingerprint.String(), string(report.Status),
		report.StartedAt.Time(), completedAt,
		countsJSON, analysesJSON, exclusionsJSON, report.ExclusionsTotal,
		breakpointsJSON, report.FatalError,
	)
	if err != nil {
		return fmt.Errorf("save run report: %w", err)
	}
	return nil
}

// SaveFeatureRows inserts the feature table for a run
func (s *artifactStore) SaveFeatureRows(ctx context.Context, runID core.RunID, rows []table.FeatureRow) error {
	query := `INSERT INTO feature_rows (
		run_id, geo_key, state_code, year, provenance,
		total_funding, grant_count, per_capita_funding, funding_tier, payload
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal feature row %s: %w", row.Key(), err)
		}

		var perCapita interface{}
		if row.PerCapitaFunding != nil {
			perCapita = *row.PerCapitaFunding
		}

		_, err = s.db.ExecContext(ctx, query,
			runID.String(), row.Geography.Key(), row.Geography.StateCode, row.Year.Int(),
			string(row.Provenance), row.Grants.TotalFunding, row.Grants.GrantCount,
			perCapita, row.FundingTier, payload,
		)
		if err != nil {
			return fmt.Errorf("save feature row %s: %w", row.Key(), err)
		}
	}
	return nil
}

// SaveResults inserts the statistical results for a run
func (s *artifactStore) SaveResults(ctx context.Context, results []analysis.StatisticalResult) error {
	query := `INSERT INTO results (
		id, run_id, name, kind, validity, sample_size, excluded_rows,
		statistic, p_value, q_value, effect_size, payload
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, result := range results {
		payload, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result %s: %w", result.Name, err)
		}

		_, err = s.db.ExecContext(ctx, query,
			result.ID.String(), result.RunID.String(), result.Name, string(result.Kind),
			string(result.Validity), result.SampleSize, result.ExcludedRows,
			nullable(result.Statistic), nullable(result.PValue),
			nullable(result.QValue), nullable(result.EffectSize), payload,
		)
		if err != nil {
			return fmt.Errorf("save result %s: %w", result.Name, err)
		}
	}
	return nil
}

// GetReport retrieves the stored audit report for a run
func (s *artifactStore) GetReport(ctx context.Context, runID core.RunID) (*run.Report, error) {
	query := `SELECT
		id, COALESCE(fingerprint, '') AS fingerprint, status, started_at, completed_at,
		counts, analyses, exclusions, exclusions_total, tier_breakpoints,
		COALESCE(fatal_error, '') AS fatal_error
	FROM runs WHERE id = $1`

	var (
		id, fingerprint, status, fatalError string
		startedAt                           sql.NullTime
		completedAt                         sql.NullTime
		countsJSON, analysesJSON            []byte
		exclusionsJSON, breakpointsJSON     []byte
		exclusionsTotal                     int
	)
	err := s.db.QueryRowContext(ctx, query, runID.String()).Scan(
		&id, &fingerprint, &status, &startedAt, &completedAt,
		&countsJSON, &analysesJSON, &exclusionsJSON, &exclusionsTotal,
		&breakpointsJSON, &fatalError,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: run %s", core.ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run report: %w", err)
	}

	report := &run.Report{
		RunID:           core.RunID(id),
		Fingerprint:     core.InputFingerprint(fingerprint),
		Status:          run.Status(status),
		ExclusionsTotal: exclusionsTotal,
		FatalError:      fatalError,
	}
	if startedAt.Valid {
		report.StartedAt = core.NewTimestamp(startedAt.Time)
	}
	if completedAt.Valid {
		ts := core.NewTimestamp(completedAt.Time)
		report.CompletedAt = &ts
	}
	if err := json.Unmarshal(countsJSON, &report.Counts); err != nil {
		return nil, fmt.Errorf("unmarshal counts: %w", err)
	}
	if len(analysesJSON) > 0 {
		if err := json.Unmarshal(analysesJSON, &report.Analyses); err != nil {
			return nil, fmt.Errorf("unmarshal analyses: %w", err)
		}
	}
	if len(exclusionsJSON) > 0 {
		if err := json.Unmarshal(exclusionsJSON, &report.Exclusions); err != nil {
			return nil, fmt.Errorf("unmarshal exclusions: %w", err)
		}
	}
	if len(breakpointsJSON) > 0 {
		if err := json.Unmarshal(breakpointsJSON, &report.TierBreakpoints); err != nil {
			return nil, fmt.Errorf("unmarshal tier breakpoints: %w", err)
		}
	}
	return report, nil
}

// GetResults retrieves the stored results for a run ordered by name
func (s *artifactStore) GetResults(ctx context.Context, runID core.RunID) ([]analysis.StatisticalResult, error) {
	query := `SELECT payload FROM results WHERE run_id = $1 ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, runID.String())
	if err != nil {
		return nil, fmt.Errorf("get results: %w", err)
	}
	defer rows.Close()

	var results []analysis.StatisticalResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var result analysis.StatisticalResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
