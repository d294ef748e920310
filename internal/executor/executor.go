// Package executor runs the trial loop. Trials are embarrassingly parallel:
// they are partitioned into fixed-size chunks, each chunk owns an RNG
// substream derived from the master seed and the chunk index, and workers
// write into disjoint regions of a preallocated ensemble. Results are
// therefore bit-reproducible for a given seed regardless of worker count.
package executor

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"gorisk/domain/core"
	"gorisk/domain/scenario"
	"gorisk/domain/simulation"
	"gorisk/internal/correlation"
	"gorisk/internal/distribution"
)

// Options controls one run
type Options struct {
	Iterations int
	Workers    int
	ChunkSize  int
	Seed       int64
	// FailureThreshold is the tolerated fraction of failed trials before the
	// whole run is escalated to an execution error. Zero disables the cap.
	FailureThreshold float64
}

// Runner executes trials of one compiled scenario. The scenario, marginals
// and correlation transform are shared read-only across all workers; each
// worker owns its RNG substreams and scratch buffers.
type Runner struct {
	scn       *scenario.Scenario
	dists     []distribution.Dist
	transform *correlation.Transform
}

// New wires a runner. dists must be index-aligned with scn.Variables and all
// output expressions must already be compiled.
func New(scn *scenario.Scenario, dists []distribution.Dist, transform *correlation.Transform) *Runner {
	return &Runner{scn: scn, dists: dists, transform: transform}
}

// Run executes opts.Iterations trials and returns the raw ensemble in
// trial-index order. Cancellation is cooperative and checked at chunk
// boundaries: a cancelled run returns the chunks that finished, flagged
// incomplete, never partial trial records.
func (r *Runner) Run(ctx context.Context, opts Options) (*simulation.Ensemble, error) {
	if opts.Iterations <= 0 {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidIterations, opts.Iterations)
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 2048
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	nVars := len(r.scn.Variables)
	nOuts := len(r.scn.Outputs)
	total := opts.Iterations
	numChunks := (total + chunkSize - 1) / chunkSize

	variables := make([][]float64, nVars)
	for i := range variables {
		variables[i] = make([]float64, total)
	}
	outputs := make([][]float64, nOuts)
	for i := range outputs {
		outputs[i] = make([]float64, total)
	}

	chunkDone := make([]bool, numChunks)
	chunkFailures := make([][]simulation.TrialFailure, numChunks)

	start := time.Now()

	chunks := make(chan int)
	go func() {
		defer close(chunks)
		for c := 0; c < numChunks; c++ {
			select {
			case chunks <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			z := make([]float64, nVars)
			row := make([]float64, nVars)
			scratch := make([]float64, r.transform.Members())
			for c := range chunks {
				lo := c * chunkSize
				hi := lo + chunkSize
				if hi > total {
					hi = total
				}
				chunkFailures[c] = r.runChunk(opts.Seed, c, lo, hi, z, row, scratch, variables, outputs)
				chunkDone[c] = true
			}
			return nil
		})
	}
	// Workers only record failures; Wait is for completion, not errors.
	_ = g.Wait()

	ens := &simulation.Ensemble{
		VariableNames:       variableNames(r.scn),
		OutputNames:         outputNames(r.scn),
		Requested:           total,
		CorrelationAdjusted: r.transform != nil && r.transform.Adjusted,
		Seed:                opts.Seed,
		Workers:             workers,
		Duration:            time.Since(start),
	}

	completedChunks := 0
	for _, done := range chunkDone {
		if done {
			completedChunks++
		}
	}

	if completedChunks == numChunks {
		ens.Completed = total
		ens.Variables = variables
		ens.Outputs = outputs
	} else {
		ens.Incomplete = true
		ens.Variables, ens.Outputs, ens.Completed = compact(chunkDone, chunkSize, total, variables, outputs)
	}

	for c, done := range chunkDone {
		if done {
			ens.Failures = append(ens.Failures, chunkFailures[c]...)
		}
	}

	if opts.FailureThreshold > 0 && ens.Completed > 0 {
		rate := float64(len(ens.Failures)) / float64(ens.Completed)
		if rate > opts.FailureThreshold {
			return nil, fmt.Errorf("%w: %.4f > %.4f", core.ErrFailureThreshold, rate, opts.FailureThreshold)
		}
	}

	return ens, nil
}

// runChunk executes trials [lo, hi) with the chunk's own RNG substream.
// One NormFloat64 is consumed per variable per trial, in variable order,
// which pins the draw sequence for reproducibility.
func (r *Runner) runChunk(seed int64, chunkIdx, lo, hi int, z, row, scratch []float64, variables, outputs [][]float64) []simulation.TrialFailure {
	rng := rand.New(rand.NewSource(chunkSeed(seed, chunkIdx)))
	var failures []simulation.TrialFailure

	for t := lo; t < hi; t++ {
		for i := range z {
			z[i] = rng.NormFloat64()
		}
		if err := r.runTrial(t, z, row, scratch, variables, outputs); err != nil {
			failures = append(failures, simulation.TrialFailure{Index: t, Error: err.Error()})
			for j := range outputs {
				outputs[j][t] = math.NaN()
			}
		}
	}
	return failures
}

// runTrial evaluates one trial. A panic anywhere in marginal transformation
// or expression evaluation is captured as a per-trial failure so a single
// bad trial never aborts the run.
func (r *Runner) runTrial(t int, z, row, scratch []float64, variables, outputs [][]float64) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: trial %d: %v", core.ErrTrialFailed, t, rec)
		}
	}()

	r.transform.Apply(z, scratch)
	for i, d := range r.dists {
		row[i] = distribution.FromNormal(d, z[i])
		variables[i][t] = row[i]
	}
	for j := range r.scn.Outputs {
		outputs[j][t] = r.scn.Outputs[j].Eval(row)
	}
	return nil
}

// chunkSeed derives a substream seed from the master seed and chunk index
// using SplitMix64, so adjacent chunks get statistically independent streams
func chunkSeed(master int64, chunk int) int64 {
	x := uint64(master) + (uint64(chunk)+1)*0x9E3779B97F4A7C15
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return int64(x)
}

// compact gathers trials of completed chunks in ascending index order.
// Partial ensembles keep whole chunks only, so no trial record is truncated.
func compact(chunkDone []bool, chunkSize, total int, variables, outputs [][]float64) ([][]float64, [][]float64, int) {
	kept := 0
	for c, done := range chunkDone {
		if done {
			kept += chunkLen(c, chunkSize, total)
		}
	}

	cv := make([][]float64, len(variables))
	for i := range cv {
		cv[i] = make([]float64, 0, kept)
	}
	co := make([][]float64, len(outputs))
	for i := range co {
		co[i] = make([]float64, 0, kept)
	}

	for c, done := range chunkDone {
		if !done {
			continue
		}
		lo := c * chunkSize
		hi := lo + chunkLen(c, chunkSize, total)
		for i := range variables {
			cv[i] = append(cv[i], variables[i][lo:hi]...)
		}
		for i := range outputs {
			co[i] = append(co[i], outputs[i][lo:hi]...)
		}
	}
	return cv, co, kept
}

func chunkLen(c, chunkSize, total int) int {
	lo := c * chunkSize
	hi := lo + chunkSize
	if hi > total {
		hi = total
	}
	return hi - lo
}

func variableNames(s *scenario.Scenario) []string {
	names := make([]string, len(s.Variables))
	for i, v := range s.Variables {
		names[i] = v.Name
	}
	return names
}

func outputNames(s *scenario.Scenario) []string {
	names := make([]string, len(s.Outputs))
	for i, o := range s.Outputs {
		names[i] = o.Name
	}
	return names
}

// Seed picks the run seed: the scenario's pinned seed when present,
// otherwise a time-derived one. Exposed so callers can record the seed that
// actually governed the run.
func Seed(s *scenario.Scenario) int64 {
	if s.Seed != nil {
		return *s.Seed
	}
	return time.Now().UnixNano()
}
