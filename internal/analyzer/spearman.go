package analyzer

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Spearman computes the rank correlation between two aligned samples.
// Ranks use average-rank tie handling, then Pearson correlation on the
// ranks, which stays exact when marginals produce ties (Poisson counts,
// clamped values). Returns 0 for degenerate inputs.
func Spearman(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 3 {
		return 0
	}
	rho := stat.Correlation(ranks(x), ranks(y), nil)
	if math.IsNaN(rho) {
		return 0
	}
	// Clamp to [-1, 1] against floating point drift
	if rho > 1 {
		rho = 1
	} else if rho < -1 {
		rho = -1
	}
	return rho
}

// ranks converts values to ranks, averaging tied groups
func ranks(data []float64) []float64 {
	n := len(data)
	if n == 0 {
		return []float64{}
	}

	type pair struct {
		value float64
		index int
	}
	pairs := make([]pair, n)
	for i, val := range data {
		pairs[i] = pair{value: val, index: i}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	out := make([]float64, n)
	i := 0
	for i < n {
		j := i + 1
		for j < n && pairs[j].value == pairs[i].value {
			j++
		}
		groupSize := j - i
		avgRank := float64(i+1) + float64(groupSize-1)/2.0
		for k := i; k < j; k++ {
			out[pairs[k].index] = avgRank
		}
		i = j
	}
	return out
}
