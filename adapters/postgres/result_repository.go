package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"gorisk/domain/core"
	"gorisk/domain/simulation"
	"gorisk/ports"
)

// ResultRepositoryImpl implements ResultRepository for PostgreSQL. Results
// are immutable, so the whole report is stored as a JSONB payload keyed by
// the scenario fingerprint.
type ResultRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultRepository creates a new PostgreSQL result repository
func NewResultRepository(db *sqlx.DB) *ResultRepositoryImpl {
	return &ResultRepositoryImpl{db: db}
}

var _ ports.ResultRepository = (*ResultRepositoryImpl)(nil)

// EnsureSchema creates the results table if it does not exist
func (r *ResultRepositoryImpl) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS simulation_results (
			fingerprint   TEXT PRIMARY KEY,
			run_id        TEXT NOT NULL,
			scenario_name TEXT NOT NULL,
			payload       JSONB NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// Save stores a result under its fingerprint. A rerun of the same
// configuration overwrites the previous row; the payloads are identical by
// construction for seeded scenarios.
func (r *ResultRepositoryImpl) Save(ctx context.Context, result *simulation.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO simulation_results (fingerprint, run_id, scenario_name, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fingerprint) DO UPDATE
		SET run_id = EXCLUDED.run_id, payload = EXCLUDED.payload, created_at = EXCLUDED.created_at
	`, result.Fingerprint.String(), result.RunID.String(), result.ScenarioName, payload, time.Now())
	return err
}

// GetByFingerprint loads a cached result
func (r *ResultRepositoryImpl) GetByFingerprint(ctx context.Context, fp core.Fingerprint) (*simulation.Result, error) {
	var payload []byte
	err := r.db.GetContext(ctx, &payload, `
		SELECT payload FROM simulation_results WHERE fingerprint = $1
	`, fp.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}

	var result simulation.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
