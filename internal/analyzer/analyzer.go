// Package analyzer reduces a raw ensemble into the immutable per-run report:
// moments, percentiles, confidence intervals, risk scores and sensitivity
// rankings. Pure data in, data out; nothing here touches the RNG or any
// shared state.
//
// Pinned numeric contracts (stable for downstream callers):
//
//   - Percentiles use linear interpolation between order statistics
//     (gonum stat.Quantile with stat.LinInterp).
//   - The confidence interval for an output's mean is the normal
//     approximation mean ± z·s/√n with z = Φ⁻¹(1-α/2). Ensembles here are
//     large enough (10³+) that the approximation is accurate and O(1).
//   - The risk score against threshold T with adverse direction "below" is
//     P·(0.5 + 0.5·min(E/(|mean|+ε), 1)) where P is the shortfall
//     probability #{x<T}/n, E is the mean shortfall mean(max(T-x, 0)) over
//     all valid trials, and ε = 1e-12. Direction "above" mirrors with
//     max(x-T, 0). The score is in [0, 1] and reproducible from the raw
//     ensemble and threshold alone.
package analyzer

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"gorisk/domain/simulation"
)

// DirectionBelow and DirectionAbove select which tail of an output counts
// as adverse for risk scoring
const (
	DirectionBelow = "below"
	DirectionAbove = "above"
)

const epsilon = 1e-12

// Threshold configures risk scoring for one output
type Threshold struct {
	Value     float64 `json:"value"`
	Direction string  `json:"direction"`
}

// Config controls one analysis pass
type Config struct {
	ConfidenceLevel float64
	Percentiles     []float64
	Thresholds      map[string]Threshold
}

// DefaultPercentiles is the standard percentile grid
var DefaultPercentiles = []float64{5, 25, 50, 75, 95}

// Analyze reduces the ensemble to per-output and per-variable summaries.
// Outputs whose every trial is degenerate get an explicit no-data state
// rather than NaN statistics. Failed trials carry NaN outputs and are
// therefore included in the degenerate count; the run-level failure count
// is reported separately on the Result.
func Analyze(ens *simulation.Ensemble, cfg Config) ([]simulation.OutputSummary, []simulation.VariableSummary) {
	if cfg.ConfidenceLevel <= 0 || cfg.ConfidenceLevel >= 1 {
		cfg.ConfidenceLevel = 0.95
	}
	if len(cfg.Percentiles) == 0 {
		cfg.Percentiles = DefaultPercentiles
	}

	outputs := make([]simulation.OutputSummary, len(ens.OutputNames))
	for j, name := range ens.OutputNames {
		outputs[j] = analyzeOutput(ens, j, name, cfg)
	}

	variables := make([]simulation.VariableSummary, len(ens.VariableNames))
	for i, name := range ens.VariableNames {
		variables[i] = summarizeVariable(name, ens.Variables[i])
	}

	return outputs, variables
}

func analyzeOutput(ens *simulation.Ensemble, j int, name string, cfg Config) simulation.OutputSummary {
	all := ens.Outputs[j]
	valid, validMask := filterFinite(all)
	summary := simulation.OutputSummary{
		Name:             name,
		DegenerateTrials: len(all) - len(valid),
	}

	if len(valid) == 0 {
		summary.NoData = true
		return summary
	}

	mean, _ := stats.Mean(valid)
	std := 0.0
	if len(valid) > 1 {
		std, _ = stats.StandardDeviationSample(valid)
	}
	min, _ := stats.Min(valid)
	max, _ := stats.Max(valid)

	summary.Mean = mean
	summary.Std = std
	summary.Min = min
	summary.Max = max
	summary.Percentiles = percentiles(valid, cfg.Percentiles)

	if std == 0 {
		summary.ZeroVariance = true
		summary.CILower, summary.CIUpper = mean, mean
	} else {
		alpha := 1 - cfg.ConfidenceLevel
		z := distuv.UnitNormal.Quantile(1 - alpha/2)
		half := z * std / math.Sqrt(float64(len(valid)))
		summary.CILower, summary.CIUpper = mean-half, mean+half
	}

	if thr, ok := cfg.Thresholds[name]; ok {
		risk := RiskScore(valid, mean, thr)
		summary.Risk = &risk
	}

	summary.Sensitivity = sensitivity(ens, validMask, valid)
	return summary
}

// RiskScore evaluates the pinned risk formula for one output's valid values
func RiskScore(valid []float64, mean float64, thr Threshold) simulation.RiskScore {
	direction := thr.Direction
	if direction != DirectionAbove {
		direction = DirectionBelow
	}

	adverse := 0
	shortfallSum := 0.0
	for _, v := range valid {
		var s float64
		if direction == DirectionBelow {
			s = thr.Value - v
		} else {
			s = v - thr.Value
		}
		if s > 0 {
			adverse++
			shortfallSum += s
		}
	}

	n := float64(len(valid))
	p := float64(adverse) / n
	meanShortfall := shortfallSum / n
	rel := meanShortfall / (math.Abs(mean) + epsilon)
	if rel > 1 {
		rel = 1
	}

	return simulation.RiskScore{
		Threshold:     thr.Value,
		Direction:     direction,
		Probability:   p,
		MeanShortfall: meanShortfall,
		Score:         p * (0.5 + 0.5*rel),
	}
}

// sensitivity ranks inputs by absolute Spearman rank correlation with the
// output, over the trials where the output is valid
func sensitivity(ens *simulation.Ensemble, validMask []bool, valid []float64) []simulation.SensitivityEntry {
	if len(valid) < 3 {
		return nil
	}
	entries := make([]simulation.SensitivityEntry, 0, len(ens.VariableNames))
	for i, name := range ens.VariableNames {
		varValid := ens.Variables[i]
		if len(valid) != len(varValid) {
			subset := make([]float64, 0, len(valid))
			for t, ok := range validMask {
				if ok {
					subset = append(subset, ens.Variables[i][t])
				}
			}
			varValid = subset
		}
		entries = append(entries, simulation.SensitivityEntry{
			Variable: name,
			Rho:      Spearman(varValid, valid),
		})
	}
	sort.SliceStable(entries, func(a, b int) bool {
		return math.Abs(entries[a].Rho) > math.Abs(entries[b].Rho)
	})
	return entries
}

func summarizeVariable(name string, values []float64) simulation.VariableSummary {
	if len(values) == 0 {
		return simulation.VariableSummary{Name: name}
	}
	mean, _ := stats.Mean(values)
	std := 0.0
	if len(values) > 1 {
		std, _ = stats.StandardDeviationSample(values)
	}
	min, _ := stats.Min(values)
	max, _ := stats.Max(values)
	return simulation.VariableSummary{Name: name, Mean: mean, Std: std, Min: min, Max: max}
}

// percentiles evaluates the grid with linear interpolation between order
// statistics on a sorted copy
func percentiles(valid []float64, grid []float64) []simulation.PercentilePoint {
	sorted := make([]float64, len(valid))
	copy(sorted, valid)
	sort.Float64s(sorted)

	points := make([]simulation.PercentilePoint, len(grid))
	for i, p := range grid {
		points[i] = simulation.PercentilePoint{
			P:     p,
			Value: stat.Quantile(p/100, stat.LinInterp, sorted, nil),
		}
	}
	return points
}

func filterFinite(values []float64) ([]float64, []bool) {
	valid := make([]float64, 0, len(values))
	mask := make([]bool, len(values))
	for i, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			valid = append(valid, v)
			mask[i] = true
		}
	}
	return valid, mask
}
