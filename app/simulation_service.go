package app

import (
	"context"
	"fmt"

	"gorisk/domain/core"
	"gorisk/domain/scenario"
	"gorisk/domain/simulation"
	"gorisk/internal"
	"gorisk/internal/analyzer"
	"gorisk/internal/config"
	"gorisk/internal/correlation"
	"gorisk/internal/distribution"
	"gorisk/internal/errors"
	"gorisk/internal/executor"
	"gorisk/ports"
)

// failureSampleCap bounds how many per-trial failures a Result carries
const failureSampleCap = 5

// SimulationService is the engine's construction and execution entry point.
// Engine defaults come in as explicit configuration; the service holds no
// mutable state and is safe for concurrent use.
type SimulationService struct {
	cfg  config.EngineConfig
	repo ports.ResultRepository
	log  *internal.Logger
}

// NewSimulationService wires the service. repo may be nil to disable result
// caching.
func NewSimulationService(cfg config.EngineConfig, repo ports.ResultRepository, logger *internal.Logger) *SimulationService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SimulationService{cfg: cfg, repo: repo, log: logger}
}

// RunOptions tune one execution of a validated scenario
type RunOptions struct {
	// Iterations overrides the scenario's iteration count when positive
	Iterations int
	// Parallel distributes chunks across a worker pool; off means one worker
	Parallel bool
	// Workers caps the pool size; 0 means one per CPU
	Workers int
	// Percentiles overrides the default 5/25/50/75/95 grid
	Percentiles []float64
	// Thresholds enables risk scoring per output name
	Thresholds map[string]analyzer.Threshold
}

// BuildScenario applies engine defaults, validates every invariant and
// compiles output expressions. It returns either a ready-to-run scenario or
// the full list of validation issues; no simulation work happens here, so
// callers always learn about bad configurations before paying compute cost.
func (s *SimulationService) BuildScenario(scn scenario.Scenario) (*scenario.Scenario, []scenario.Issue) {
	if scn.Iterations == 0 {
		scn.Iterations = s.cfg.DefaultIterations
	}
	if scn.ConfidenceLevel == 0 {
		scn.ConfidenceLevel = s.cfg.ConfidenceLevel
	}

	issues := scn.Validate(s.cfg.MaxIterations)
	for i, v := range scn.Variables {
		if err := distribution.Validate(v.Dist); err != nil {
			issues = append(issues, scenario.Issue{
				Field:   fmt.Sprintf("variables[%d].dist", i),
				Message: err.Error(),
			})
		}
	}
	if len(issues) > 0 {
		return nil, issues
	}
	return &scn, nil
}

// Template returns a predefined scenario by name, built through the same
// validation path as user scenarios.
func (s *SimulationService) Template(name string) (*scenario.Scenario, error) {
	tpl, err := scenario.Template(name)
	if err != nil {
		return nil, err
	}
	built, issues := s.BuildScenario(*tpl)
	if len(issues) > 0 {
		// A shipped template failing validation is a programming error
		return nil, errors.InternalError(fmt.Sprintf("template %q invalid: %v", name, issues))
	}
	return built, nil
}

// Templates lists the predefined scenario templates
func (s *SimulationService) Templates() []scenario.TemplateInfo {
	return scenario.Templates()
}

// Distributions lists the supported distribution kinds and their parameter
// contracts for UI and help generation
func (s *SimulationService) Distributions() []distribution.Info {
	return distribution.Catalog()
}

// Fingerprint computes the stable configuration hash callers can key
// external caches on
func (s *SimulationService) Fingerprint(scn *scenario.Scenario) (core.Fingerprint, error) {
	return scn.Fingerprint()
}

// Run executes a validated scenario and returns the immutable result.
// Execution errors are distinct from validation errors: the scenario must
// already have passed BuildScenario. A cancelled context yields a partial
// result flagged incomplete, not an error. The result carries the
// fingerprint of the effective configuration (iteration override and
// resolved seed included), which for a pinned-seed scenario run without
// overrides equals Fingerprint of the scenario itself.
func (s *SimulationService) Run(ctx context.Context, scn *scenario.Scenario, opts RunOptions) (*simulation.Result, error) {
	for i := range scn.Outputs {
		if !scn.Outputs[i].Compiled() {
			return nil, errors.ValidationError("scenario has uncompiled outputs; use BuildScenario first")
		}
	}

	dists := make([]distribution.Dist, len(scn.Variables))
	for i, v := range scn.Variables {
		d, err := distribution.New(v.Dist)
		if err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, err)
		}
		dists[i] = d
	}

	transform, err := correlation.Build(scn.Correlation, scn.VariableIndex(), s.cfg.StrictCorrelation)
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if transform.Adjusted {
		s.log.Warn("correlation matrix for scenario %q corrected to nearest PSD", scn.Name)
	}

	iterations := scn.Iterations
	if opts.Iterations > 0 {
		iterations = opts.Iterations
	}
	if iterations > s.cfg.MaxIterations {
		return nil, errors.ValidationError(fmt.Sprintf("iteration override %d exceeds maximum %d", iterations, s.cfg.MaxIterations))
	}
	workers := 1
	if opts.Parallel {
		workers = opts.Workers
		if workers <= 0 {
			workers = s.cfg.Workers
		}
	}

	seed := executor.Seed(scn)

	// The result's fingerprint must name the configuration that actually
	// ran: fold the iteration override and the resolved seed back into the
	// scenario before hashing, so a cached result always matches the
	// configuration its key describes.
	effective := *scn
	effective.Iterations = iterations
	effective.Seed = &seed
	fp, err := effective.Fingerprint()
	if err != nil {
		return nil, errors.Wrap(err, "failed to fingerprint scenario")
	}
	s.log.Debug("scenario %q: effective fingerprint %s (seed=%d, iterations=%d)",
		scn.Name, fp, seed, iterations)

	runner := executor.New(scn, dists, transform)
	ens, err := runner.Run(ctx, executor.Options{
		Iterations:       iterations,
		Workers:          workers,
		ChunkSize:        s.cfg.ChunkSize,
		Seed:             seed,
		FailureThreshold: s.cfg.FailureThreshold,
	})
	if err != nil {
		return nil, errors.WithCode(errors.CodeExecutionError, err)
	}
	if ens.Incomplete {
		s.log.Warn("run of scenario %q cancelled: %d of %d trials completed", scn.Name, ens.Completed, ens.Requested)
	}

	outputs, variables := analyzer.Analyze(ens, analyzer.Config{
		ConfidenceLevel: scn.ConfidenceLevel,
		Percentiles:     opts.Percentiles,
		Thresholds:      opts.Thresholds,
	})

	result := &simulation.Result{
		RunID:               core.NewRunID(),
		Fingerprint:         fp,
		ScenarioName:        scn.Name,
		ConfidenceLevel:     scn.ConfidenceLevel,
		Seed:                seed,
		Requested:           ens.Requested,
		Completed:           ens.Completed,
		FailedTrials:        len(ens.Failures),
		FailureSamples:      sampleFailures(ens.Failures),
		Incomplete:          ens.Incomplete,
		CorrelationAdjusted: ens.CorrelationAdjusted,
		Workers:             ens.Workers,
		Duration:            ens.Duration,
		Outputs:             outputs,
		Variables:           variables,
		CreatedAt:           core.Now(),
	}

	// Custom percentile grids and thresholds change the report body without
	// changing the fingerprinted configuration, so only canonical reports
	// are cached.
	canonical := len(opts.Percentiles) == 0 && len(opts.Thresholds) == 0
	if s.repo != nil && !result.Incomplete && canonical {
		if err := s.repo.Save(ctx, result); err != nil {
			s.log.Warn("failed to cache result %s: %v", fp, err)
		}
	}

	s.log.Info("scenario %q: %d trials in %s (workers=%d, failed=%d)",
		scn.Name, result.Completed, result.Duration, result.Workers, result.FailedTrials)
	return result, nil
}

// CachedResult fetches a previously stored result by fingerprint
func (s *SimulationService) CachedResult(ctx context.Context, fp core.Fingerprint) (*simulation.Result, error) {
	if s.repo == nil {
		return nil, core.ErrResultNotFound
	}
	return s.repo.GetByFingerprint(ctx, fp)
}

func sampleFailures(failures []simulation.TrialFailure) []simulation.TrialFailure {
	if len(failures) <= failureSampleCap {
		return failures
	}
	return failures[:failureSampleCap]
}
