package simulation

import (
	"time"

	"gorisk/domain/core"
)

// TrialFailure records one trial that raised an unexpected error during
// evaluation. NaN outputs from defined degenerate arithmetic (division by
// zero) are not failures; the analyzer counts those separately.
type TrialFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Ensemble is the raw outcome of one simulation run: one realized value per
// variable and per output for every completed trial, in trial-index order.
// It is retained in memory for the duration of analysis because sensitivity
// ranking needs the per-variable realizations alongside the outputs.
type Ensemble struct {
	VariableNames []string
	OutputNames   []string

	// Variables[i][t] is variable i's realized value in trial t;
	// Outputs[j][t] likewise for output j. Columns are index-aligned.
	Variables [][]float64
	Outputs   [][]float64

	Requested           int
	Completed           int
	Failures            []TrialFailure
	Incomplete          bool
	CorrelationAdjusted bool
	Seed                int64
	Workers             int
	Duration            time.Duration
}

// PercentilePoint is one entry of a percentile grid
type PercentilePoint struct {
	P     float64 `json:"p"`
	Value float64 `json:"value"`
}

// RiskScore summarizes the probability and severity of an adverse outcome
// relative to a caller-supplied threshold. Score is a pure function of the
// ensemble and the threshold; see the analyzer for the pinned formula.
type RiskScore struct {
	Threshold     float64 `json:"threshold"`
	Direction     string  `json:"direction"`
	Probability   float64 `json:"probability"`
	MeanShortfall float64 `json:"mean_shortfall"`
	Score         float64 `json:"score"`
}

// SensitivityEntry ranks one input variable's influence on an output by the
// absolute Spearman rank correlation across the ensemble
type SensitivityEntry struct {
	Variable string  `json:"variable"`
	Rho      float64 `json:"rho"`
}

// OutputSummary is the analyzed statistics for one output expression
type OutputSummary struct {
	Name             string             `json:"name"`
	NoData           bool               `json:"no_data"`
	ZeroVariance     bool               `json:"zero_variance"`
	DegenerateTrials int                `json:"degenerate_trials"`
	Mean             float64            `json:"mean"`
	Std              float64            `json:"std"`
	Min              float64            `json:"min"`
	Max              float64            `json:"max"`
	Percentiles      []PercentilePoint  `json:"percentiles"`
	CILower          float64            `json:"ci_lower"`
	CIUpper          float64            `json:"ci_upper"`
	Risk             *RiskScore         `json:"risk,omitempty"`
	Sensitivity      []SensitivityEntry `json:"sensitivity,omitempty"`
}

// VariableSummary carries realized sample moments for one input variable so
// callers can sanity-check that sampling matched the configured distribution
type VariableSummary struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Result is the immutable report for one simulation run. It is created once
// when the run finishes and never mutated afterward.
type Result struct {
	RunID           core.RunID       `json:"run_id"`
	Fingerprint     core.Fingerprint `json:"fingerprint"`
	ScenarioName    string           `json:"scenario_name"`
	ConfidenceLevel float64          `json:"confidence_level"`
	Seed            int64            `json:"seed"`

	Requested           int            `json:"requested_iterations"`
	Completed           int            `json:"completed_iterations"`
	FailedTrials        int            `json:"failed_trials"`
	FailureSamples      []TrialFailure `json:"failure_samples,omitempty"`
	Incomplete          bool           `json:"incomplete"`
	CorrelationAdjusted bool           `json:"correlation_adjusted"`
	Workers             int            `json:"workers"`
	Duration            time.Duration  `json:"duration_ns"`

	Outputs   []OutputSummary   `json:"outputs"`
	Variables []VariableSummary `json:"variables"`

	CreatedAt core.Timestamp `json:"created_at"`
}

// Output looks up an output summary by name
func (r *Result) Output(name string) (OutputSummary, bool) {
	for _, o := range r.Outputs {
		if o.Name == name {
			return o, true
		}
	}
	return OutputSummary{}, false
}
