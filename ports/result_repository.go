package ports

import (
	"context"

	"gorisk/domain/core"
	"gorisk/domain/simulation"
)

// ResultRepository caches finished simulation results keyed by scenario
// fingerprint. The engine core never requires persistence; this port exists
// so outer layers can avoid recomputing identical configurations.
type ResultRepository interface {
	// Save stores an immutable result under its fingerprint
	Save(ctx context.Context, result *simulation.Result) error

	// GetByFingerprint returns the cached result or core.ErrResultNotFound
	GetByFingerprint(ctx context.Context, fp core.Fingerprint) (*simulation.Result, error)
}
