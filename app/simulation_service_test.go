package app

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"gorisk/domain/core"
	"gorisk/domain/scenario"
	"gorisk/domain/simulation"
	"gorisk/internal/analyzer"
	"gorisk/internal/config"
)

// memoryRepo is an in-memory ResultRepository for service tests
type memoryRepo struct {
	mu      sync.Mutex
	results map[core.Fingerprint]*simulation.Result
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{results: make(map[core.Fingerprint]*simulation.Result)}
}

func (r *memoryRepo) Save(_ context.Context, result *simulation.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result.Fingerprint] = result
	return nil
}

func (r *memoryRepo) GetByFingerprint(_ context.Context, fp core.Fingerprint) (*simulation.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.results[fp]
	if !ok {
		return nil, core.ErrResultNotFound
	}
	return result, nil
}

func newTestService(repo *memoryRepo) *SimulationService {
	cfg := config.DefaultEngine()
	if repo == nil {
		return NewSimulationService(cfg, nil, nil)
	}
	return NewSimulationService(cfg, repo, nil)
}

func profitScenario(seed int64) scenario.Scenario {
	return scenario.Scenario{
		Name: "profit-model",
		Variables: []scenario.Variable{
			{Name: "revenue", Dist: scenario.DistSpec{Kind: scenario.DistNormal, Params: map[string]float64{"mean": 100, "std": 10}}},
			{Name: "cost", Dist: scenario.DistSpec{Kind: scenario.DistNormal, Params: map[string]float64{"mean": 80, "std": 5}}},
		},
		Correlation: &scenario.CorrelationSpec{
			Variables: []string{"revenue", "cost"},
			Matrix:    [][]float64{{1, 0.3}, {0.3, 1}},
		},
		Outputs:    []scenario.Output{{Name: "profit", Expr: "revenue - cost"}},
		Iterations: 10000,
		Seed:       &seed,
	}
}

func TestSimulationService_EndToEnd(t *testing.T) {
	svc := newTestService(nil)

	scn, issues := svc.BuildScenario(profitScenario(42))
	require.Empty(t, issues)

	result, err := svc.Run(context.Background(), scn, RunOptions{Parallel: true})
	require.NoError(t, err)

	require.Equal(t, 10000, result.Completed)
	require.False(t, result.Incomplete)
	require.Zero(t, result.FailedTrials)
	require.Equal(t, int64(42), result.Seed)
	require.InDelta(t, 0.95, result.ConfidenceLevel, 1e-12)

	profit, ok := result.Output("profit")
	require.True(t, ok)

	// E[profit] = 20, Var = 100 + 25 - 2*0.3*10*5 = 95
	require.InDelta(t, 20.0, profit.Mean, 0.5)
	require.InDelta(t, math.Sqrt(95), profit.Std, 0.5)
	require.Less(t, profit.CILower, profit.Mean)
	require.Greater(t, profit.CIUpper, profit.Mean)
	require.Len(t, profit.Percentiles, len(analyzer.DefaultPercentiles))

	// Both inputs should rank, revenue's wider spread dominating
	require.Len(t, profit.Sensitivity, 2)
	require.Equal(t, "revenue", profit.Sensitivity[0].Variable)

	require.Len(t, result.Variables, 2)
	require.InDelta(t, 100.0, result.Variables[0].Mean, 0.5)
	require.InDelta(t, 80.0, result.Variables[1].Mean, 0.5)
}

func TestSimulationService_SeededRunsAreReproducible(t *testing.T) {
	svc := newTestService(nil)

	run := func(parallel bool, workers int) *simulation.Result {
		scn, issues := svc.BuildScenario(profitScenario(42))
		require.Empty(t, issues)
		result, err := svc.Run(context.Background(), scn, RunOptions{Parallel: parallel, Workers: workers})
		require.NoError(t, err)
		return result
	}

	serial := run(false, 0)
	parallel := run(true, 4)

	require.Equal(t, serial.Fingerprint, parallel.Fingerprint)
	sp, _ := serial.Output("profit")
	pp, _ := parallel.Output("profit")
	require.Equal(t, sp.Mean, pp.Mean)
	require.Equal(t, sp.Std, pp.Std)
	require.Equal(t, sp.CILower, pp.CILower)
	require.Equal(t, sp.CIUpper, pp.CIUpper)
	require.Equal(t, sp.Percentiles, pp.Percentiles)
}

func TestSimulationService_BuildScenarioReportsIssues(t *testing.T) {
	svc := newTestService(nil)

	bad := profitScenario(1)
	bad.Correlation.Matrix = [][]float64{{1, 1.5}, {1.5, 1}}
	bad.Outputs = append(bad.Outputs, scenario.Output{Name: "broken", Expr: "revenue - tax"})
	bad.Variables[1].Dist.Params["std"] = -5

	built, issues := svc.BuildScenario(bad)
	require.Nil(t, built)
	require.GreaterOrEqual(t, len(issues), 3)
}

func TestSimulationService_BuildScenarioAppliesDefaults(t *testing.T) {
	svc := newTestService(nil)

	scn := profitScenario(1)
	scn.Iterations = 0
	scn.ConfidenceLevel = 0

	built, issues := svc.BuildScenario(scn)
	require.Empty(t, issues)
	require.Equal(t, config.DefaultEngine().DefaultIterations, built.Iterations)
	require.InDelta(t, config.DefaultEngine().ConfidenceLevel, built.ConfidenceLevel, 1e-12)
}

func TestSimulationService_RunRejectsUncompiledScenario(t *testing.T) {
	svc := newTestService(nil)

	raw := profitScenario(1)
	_, err := svc.Run(context.Background(), &raw, RunOptions{})
	require.Error(t, err)
}

func TestSimulationService_IterationOverride(t *testing.T) {
	svc := newTestService(nil)

	scn, issues := svc.BuildScenario(profitScenario(42))
	require.Empty(t, issues)

	result, err := svc.Run(context.Background(), scn, RunOptions{Iterations: 500})
	require.NoError(t, err)
	require.Equal(t, 500, result.Requested)

	_, err = svc.Run(context.Background(), scn, RunOptions{Iterations: config.DefaultEngine().MaxIterations + 1})
	require.Error(t, err)
}

func TestSimulationService_DegenerateTrialsDoNotAbortRun(t *testing.T) {
	svc := newTestService(nil)

	seed := int64(42)
	scn, issues := svc.BuildScenario(scenario.Scenario{
		Name: "ratio-model",
		Variables: []scenario.Variable{
			{Name: "num", Dist: scenario.DistSpec{Kind: scenario.DistNormal, Params: map[string]float64{"mean": 10, "std": 1}}},
			{Name: "den", Dist: scenario.DistSpec{Kind: scenario.DistUniform, Params: map[string]float64{"low": -1, "high": 1}}},
		},
		Outputs:    []scenario.Output{{Name: "ratio", Expr: "num / den"}},
		Iterations: 5000,
		Seed:       &seed,
	})
	require.Empty(t, issues)

	result, err := svc.Run(context.Background(), scn, RunOptions{})
	require.NoError(t, err)
	require.Equal(t, 5000, result.Completed)
	require.Zero(t, result.FailedTrials)

	ratio, ok := result.Output("ratio")
	require.True(t, ok)
	// A continuous uniform essentially never realizes exactly zero, but the
	// quantile transform can; either way the run must complete and report
	// whatever NaNs arose
	require.GreaterOrEqual(t, ratio.DegenerateTrials, 0)
	require.False(t, ratio.NoData)
}

func TestSimulationService_RiskThresholds(t *testing.T) {
	svc := newTestService(nil)

	scn, issues := svc.BuildScenario(profitScenario(42))
	require.Empty(t, issues)

	result, err := svc.Run(context.Background(), scn, RunOptions{
		Thresholds: map[string]analyzer.Threshold{
			"profit": {Value: 10, Direction: analyzer.DirectionBelow},
		},
	})
	require.NoError(t, err)

	profit, _ := result.Output("profit")
	require.NotNil(t, profit.Risk)
	// P(profit < 10) with profit ~ N(20, 95) is about 0.15
	require.InDelta(t, 0.15, profit.Risk.Probability, 0.03)
	require.GreaterOrEqual(t, profit.Risk.Score, 0.0)
	require.LessOrEqual(t, profit.Risk.Score, 1.0)
}

func TestSimulationService_ResultCaching(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	scn, issues := svc.BuildScenario(profitScenario(42))
	require.Empty(t, issues)

	result, err := svc.Run(context.Background(), scn, RunOptions{})
	require.NoError(t, err)

	// Pinned seed, no overrides: the result's fingerprint is the scenario's
	scenarioFP, err := svc.Fingerprint(scn)
	require.NoError(t, err)
	require.Equal(t, scenarioFP, result.Fingerprint)

	cached, err := svc.CachedResult(context.Background(), result.Fingerprint)
	require.NoError(t, err)
	require.Equal(t, result.RunID, cached.RunID)

	_, err = svc.CachedResult(context.Background(), core.Fingerprint("missing"))
	require.True(t, core.IsNotFoundError(err))
}

func TestSimulationService_CacheKeyedByEffectiveConfiguration(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	scn, issues := svc.BuildScenario(profitScenario(42))
	require.Empty(t, issues)

	scenarioFP, err := svc.Fingerprint(scn)
	require.NoError(t, err)

	result, err := svc.Run(context.Background(), scn, RunOptions{Iterations: 500})
	require.NoError(t, err)
	require.Equal(t, 500, result.Requested)

	// A 500-trial run must not answer for the scenario's 10000-trial
	// configuration
	require.NotEqual(t, scenarioFP, result.Fingerprint)
	_, err = svc.CachedResult(context.Background(), scenarioFP)
	require.True(t, core.IsNotFoundError(err))

	cached, err := svc.CachedResult(context.Background(), result.Fingerprint)
	require.NoError(t, err)
	require.Equal(t, 500, cached.Requested)
}

func TestSimulationService_DerivedSeedFoldedIntoFingerprint(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	unpinned := profitScenario(1)
	unpinned.Seed = nil
	scn, issues := svc.BuildScenario(unpinned)
	require.Empty(t, issues)

	scenarioFP, err := svc.Fingerprint(scn)
	require.NoError(t, err)

	result, err := svc.Run(context.Background(), scn, RunOptions{Iterations: 200})
	require.NoError(t, err)

	// The clock-derived seed is part of the run's identity
	require.NotEqual(t, scenarioFP, result.Fingerprint)

	cached, err := svc.CachedResult(context.Background(), result.Fingerprint)
	require.NoError(t, err)
	require.Equal(t, result.Seed, cached.Seed)
	require.Equal(t, 200, cached.Requested)
}

func TestSimulationService_CustomAnalysisOptionsNotCached(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	scn, issues := svc.BuildScenario(profitScenario(42))
	require.Empty(t, issues)

	result, err := svc.Run(context.Background(), scn, RunOptions{
		Thresholds: map[string]analyzer.Threshold{
			"profit": {Value: 10, Direction: analyzer.DirectionBelow},
		},
	})
	require.NoError(t, err)

	_, err = svc.CachedResult(context.Background(), result.Fingerprint)
	require.True(t, core.IsNotFoundError(err))
}

func TestSimulationService_CachingDisabledWithoutRepo(t *testing.T) {
	svc := newTestService(nil)
	_, err := svc.CachedResult(context.Background(), core.Fingerprint("anything"))
	require.True(t, core.IsNotFoundError(err))
}

func TestSimulationService_Templates(t *testing.T) {
	svc := newTestService(nil)

	infos := svc.Templates()
	require.Len(t, infos, len(scenario.TemplateNames()))

	for _, info := range infos {
		scn, err := svc.Template(info.Name)
		require.NoError(t, err, "template %s", info.Name)

		result, err := svc.Run(context.Background(), scn, RunOptions{Iterations: 1000, Parallel: true})
		require.NoError(t, err, "template %s", info.Name)
		require.Equal(t, 1000, result.Completed, "template %s", info.Name)
		for _, o := range result.Outputs {
			require.False(t, o.NoData, "template %s output %s", info.Name, o.Name)
		}
	}

	_, err := svc.Template("nope")
	require.Error(t, err)
	require.True(t, core.IsNotFoundError(err))
}

func TestSimulationService_Distributions(t *testing.T) {
	svc := newTestService(nil)
	require.Len(t, svc.Distributions(), len(scenario.Kinds()))
}
