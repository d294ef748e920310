// Package correlation builds the Gaussian-copula transform that turns
// independent standard-normal draws into correlated ones. The linear
// correlation is imposed on the normal scale by the Cholesky factor of the
// correlation matrix; each variable is then mapped to its own marginal via
// the inverse CDF, which preserves marginals exactly while approximating the
// target rank correlation.
package correlation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"gorisk/domain/core"
	"gorisk/domain/scenario"
)

// eigenFloor replaces non-positive eigenvalues during nearest-PSD correction
const eigenFloor = 1e-10

// Transform maps a vector of independent standard normals (in scenario
// variable order) to correlated standard normals. It is built once per run,
// immutable afterward, and safe for concurrent read-only use by workers.
type Transform struct {
	// memberIdx[i] is the scenario variable index of correlation member i
	memberIdx []int
	// lower Cholesky factor of the (possibly corrected) correlation matrix
	lower *mat.TriDense
	// Adjusted reports that a nearest-PSD correction was applied
	Adjusted bool
}

// Identity reports whether the transform is a no-op (no correlated members)
func (t *Transform) Identity() bool {
	return t == nil || t.lower == nil
}

// Build validates the correlation specification against the scenario's
// variable order and factors the matrix. A non-PSD matrix is corrected to
// the nearest PSD matrix by eigenvalue clipping and flagged, unless strict
// is set, in which case it is a hard configuration error. A nil spec or an
// identity matrix yields the identity transform (independent sampling).
func Build(spec *scenario.CorrelationSpec, varIndex map[string]int, strict bool) (*Transform, error) {
	if spec == nil {
		return &Transform{}, nil
	}

	n := len(spec.Variables)
	memberIdx := make([]int, n)
	for i, name := range spec.Variables {
		idx, ok := varIndex[name]
		if !ok {
			return nil, core.NewCorrelationError(fmt.Sprintf("unknown variable %q", name))
		}
		memberIdx[i] = idx
	}

	if isIdentity(spec.Matrix) {
		return &Transform{}, nil
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, spec.Matrix[i][j])
		}
	}

	adjusted := false
	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		if strict {
			return nil, fmt.Errorf("%w (strict mode)", core.ErrNotPositiveSemiDefinite)
		}
		corrected, err := nearestPSD(sym)
		if err != nil {
			return nil, err
		}
		if !chol.Factorize(corrected) {
			return nil, fmt.Errorf("%w: correction failed to produce a factorizable matrix", core.ErrNotPositiveSemiDefinite)
		}
		adjusted = true
	}

	lower := mat.NewTriDense(n, mat.Lower, nil)
	chol.LTo(lower)

	return &Transform{memberIdx: memberIdx, lower: lower, Adjusted: adjusted}, nil
}

// Apply mixes the correlated members of z in place. z holds one independent
// standard-normal draw per scenario variable; non-member entries pass
// through untouched. scratch must have capacity for the member count and
// lets the hot loop run allocation-free; each worker owns its own.
func (t *Transform) Apply(z []float64, scratch []float64) {
	if t.Identity() {
		return
	}
	n := len(t.memberIdx)
	scratch = scratch[:n]
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j <= i; j++ {
			sum += t.lower.At(i, j) * z[t.memberIdx[j]]
		}
		scratch[i] = sum
	}
	for i, idx := range t.memberIdx {
		z[idx] = scratch[i]
	}
}

// Members returns the number of correlated variables
func (t *Transform) Members() int {
	if t == nil {
		return 0
	}
	return len(t.memberIdx)
}

func isIdentity(matrix [][]float64) bool {
	for i, row := range matrix {
		for j, v := range row {
			if i == j {
				if v != 1 {
					return false
				}
			} else if v != 0 {
				return false
			}
		}
	}
	return true
}

// nearestPSD clips negative eigenvalues to a small positive floor and
// renormalizes the result back to unit diagonal. This is the standard
// eigenvalue-clipping correction; the caller reports the adjustment in the
// run metadata so it is never silent.
func nearestPSD(sym *mat.SymDense) (*mat.SymDense, error) {
	n := sym.SymmetricDim()

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return nil, core.NewCorrelationError("eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	for i, v := range vals {
		if v < eigenFloor {
			vals[i] = eigenFloor
		}
	}

	// Reconstruct V * D * V^T
	rebuilt := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sum := 0.0
			for k := 0; k < n; k++ {
				sum += vecs.At(i, k) * vals[k] * vecs.At(j, k)
			}
			rebuilt.SetSym(i, j, sum)
		}
	}

	// Renormalize to a correlation matrix (unit diagonal)
	scale := make([]float64, n)
	for i := 0; i < n; i++ {
		d := rebuilt.At(i, i)
		if d <= 0 {
			return nil, core.NewCorrelationError("degenerate diagonal after eigenvalue clipping")
		}
		scale[i] = 1 / math.Sqrt(d)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			rebuilt.SetSym(i, j, rebuilt.At(i, j)*scale[i]*scale[j])
		}
	}

	return rebuilt, nil
}
