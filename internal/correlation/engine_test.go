package correlation

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gorisk/domain/core"
	"gorisk/domain/scenario"
)

var threeVars = map[string]int{"a": 0, "b": 1, "c": 2}

func TestBuild_NilSpecIsIdentity(t *testing.T) {
	tr, err := Build(nil, threeVars, false)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !tr.Identity() {
		t.Error("nil spec should yield identity transform")
	}

	z := []float64{1.5, -0.5, 2.0}
	want := append([]float64(nil), z...)
	tr.Apply(z, make([]float64, tr.Members()))
	for i := range z {
		if z[i] != want[i] {
			t.Errorf("z[%d] = %g, want untouched %g", i, z[i], want[i])
		}
	}
}

func TestBuild_IdentityMatrixFastPath(t *testing.T) {
	spec := &scenario.CorrelationSpec{
		Variables: []string{"a", "b"},
		Matrix:    [][]float64{{1, 0}, {0, 1}},
	}
	tr, err := Build(spec, threeVars, true)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !tr.Identity() {
		t.Error("identity matrix should yield identity transform")
	}
}

func TestBuild_UnknownVariable(t *testing.T) {
	spec := &scenario.CorrelationSpec{
		Variables: []string{"a", "ghost"},
		Matrix:    [][]float64{{1, 0.5}, {0.5, 1}},
	}
	_, err := Build(spec, threeVars, false)
	if err == nil {
		t.Fatal("expected error for unknown variable")
	}
	if !errors.Is(err, core.ErrInvalidCorrelation) {
		t.Errorf("error = %v, want ErrInvalidCorrelation", err)
	}
}

func TestBuild_NonPSDStrictVersusLenient(t *testing.T) {
	// Pairwise -0.9 among three variables cannot hold simultaneously; the
	// matrix has a negative eigenvalue.
	nonPSD := &scenario.CorrelationSpec{
		Variables: []string{"a", "b", "c"},
		Matrix: [][]float64{
			{1, -0.9, -0.9},
			{-0.9, 1, -0.9},
			{-0.9, -0.9, 1},
		},
	}

	t.Run("strict rejects", func(t *testing.T) {
		_, err := Build(nonPSD, threeVars, true)
		if !errors.Is(err, core.ErrNotPositiveSemiDefinite) {
			t.Errorf("error = %v, want ErrNotPositiveSemiDefinite", err)
		}
	})

	t.Run("lenient corrects and flags", func(t *testing.T) {
		tr, err := Build(nonPSD, threeVars, false)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if !tr.Adjusted {
			t.Error("corrected transform not flagged as adjusted")
		}
		if tr.Identity() {
			t.Error("corrected transform should not be identity")
		}

		// The corrected factor must reproduce a valid correlation matrix:
		// unit variances on the normal scale.
		n := 200000
		rng := rand.New(rand.NewSource(11))
		sums := make([]float64, 3)
		sumsSq := make([]float64, 3)
		z := make([]float64, 3)
		scratch := make([]float64, tr.Members())
		for i := 0; i < n; i++ {
			for j := range z {
				z[j] = rng.NormFloat64()
			}
			tr.Apply(z, scratch)
			for j, v := range z {
				sums[j] += v
				sumsSq[j] += v * v
			}
		}
		for j := 0; j < 3; j++ {
			mean := sums[j] / float64(n)
			variance := sumsSq[j]/float64(n) - mean*mean
			if math.Abs(variance-1) > 0.02 {
				t.Errorf("member %d variance = %g, want 1", j, variance)
			}
		}
	})
}

func TestApply_ReproducesTargetCorrelation(t *testing.T) {
	rho := 0.6
	spec := &scenario.CorrelationSpec{
		Variables: []string{"a", "c"},
		Matrix:    [][]float64{{1, rho}, {rho, 1}},
	}
	tr, err := Build(spec, threeVars, true)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if tr.Members() != 2 {
		t.Fatalf("Members = %d, want 2", tr.Members())
	}

	const n = 100000
	rng := rand.New(rand.NewSource(42))
	xs := make([]float64, n)
	ys := make([]float64, n)
	mids := make([]float64, n)
	z := make([]float64, 3)
	scratch := make([]float64, tr.Members())
	for i := 0; i < n; i++ {
		for j := range z {
			z[j] = rng.NormFloat64()
		}
		tr.Apply(z, scratch)
		xs[i], mids[i], ys[i] = z[0], z[1], z[2]
	}

	if got := samplePearson(xs, ys); math.Abs(got-rho) > 0.02 {
		t.Errorf("correlation(a, c) = %g, want %g +/- 0.02", got, rho)
	}
	// b is not a member and must stay independent
	if got := samplePearson(xs, mids); math.Abs(got) > 0.02 {
		t.Errorf("correlation(a, b) = %g, want ~0", got)
	}
}

func samplePearson(x, y []float64) float64 {
	n := float64(len(x))
	var sx, sy float64
	for i := range x {
		sx += x[i]
		sy += y[i]
	}
	mx, my := sx/n, sy/n
	var cov, vx, vy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	return cov / math.Sqrt(vx*vy)
}
