// Package distribution implements the eight supported probability
// distributions on top of gonum's distuv, exposing quantile-based sampling so
// the correlation engine can impose a Gaussian copula without distorting
// marginals.
package distribution

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"gorisk/domain/core"
	"gorisk/domain/scenario"
)

// Dist is a validated, immutable distribution. Quantile is the inverse CDF;
// sampling is always quantile(u) for a uniform u so that correlated and
// independent draws share one code path.
type Dist interface {
	Quantile(p float64) float64
	Mean() float64
	Variance() float64
}

// Moments holds the closed-form mean and variance of a specification
type Moments struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// New validates a specification and constructs the distribution. Invalid
// parameter combinations return a configuration error naming the offending
// field; an unknown kind returns core.ErrUnsupportedDistribution.
func New(spec scenario.DistSpec) (Dist, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}
	d, err := build(spec)
	if err != nil {
		return nil, err
	}
	if spec.Bounds != nil && (spec.Bounds.Lower != nil || spec.Bounds.Upper != nil) {
		d = clamped{inner: d, bounds: *spec.Bounds}
	}
	return d, nil
}

// Describe returns the closed-form moments for a valid specification.
// All eight supported kinds have closed forms. Clamp bounds are not folded
// into the moments; Describe reports the unclamped distribution.
func Describe(spec scenario.DistSpec) (Moments, error) {
	if err := Validate(spec); err != nil {
		return Moments{}, err
	}
	d, err := build(spec)
	if err != nil {
		return Moments{}, err
	}
	return Moments{Mean: d.Mean(), Variance: d.Variance()}, nil
}

// Sample draws n independent values using the standard-normal-to-quantile
// path (z -> Phi(z) -> Q(u)). n == 0 returns an empty slice, not an error.
// Referentially transparent given a fixed rng state.
func Sample(d Dist, n int, rng *rand.Rand) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = FromNormal(d, rng.NormFloat64())
	}
	return out
}

// FromNormal maps one standard-normal draw to the distribution's marginal
// via the probability integral transform
func FromNormal(d Dist, z float64) float64 {
	return d.Quantile(distuv.UnitNormal.CDF(z))
}

// Validate checks parameter sanity for the given kind without constructing
// anything. Returns nil when valid.
func Validate(spec scenario.DistSpec) error {
	contract, ok := contracts[spec.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrUnsupportedDistribution, spec.Kind)
	}
	required := make(map[string]bool, len(contract.params))
	for _, p := range contract.params {
		required[p.Name] = true
		if _, supplied := spec.Param(p.Name); !supplied {
			return core.NewDistributionError(string(spec.Kind)+"."+p.Name, "parameter is required")
		}
	}
	for name := range spec.Params {
		if !required[name] {
			return core.NewDistributionError(string(spec.Kind)+"."+name, "unknown parameter")
		}
	}
	for name, v := range spec.Params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.NewDistributionError(string(spec.Kind)+"."+name, "parameter must be finite")
		}
	}
	return contract.check(spec)
}

func build(spec scenario.DistSpec) (Dist, error) {
	p := func(name string) float64 { return spec.Params[name] }
	switch spec.Kind {
	case scenario.DistNormal:
		if p("std") == 0 {
			// Degenerate normal: a constant. distuv rejects Sigma == 0 but
			// zero-variance variables are allowed.
			return constant{v: p("mean")}, nil
		}
		return wrap{distuv.Normal{Mu: p("mean"), Sigma: p("std")}}, nil
	case scenario.DistLogNormal:
		return wrap{distuv.LogNormal{Mu: p("mu"), Sigma: p("sigma")}}, nil
	case scenario.DistUniform:
		return wrap{distuv.Uniform{Min: p("low"), Max: p("high")}}, nil
	case scenario.DistExponential:
		return wrap{distuv.Exponential{Rate: p("rate")}}, nil
	case scenario.DistGamma:
		return wrap{distuv.Gamma{Alpha: p("shape"), Beta: p("rate")}}, nil
	case scenario.DistBeta:
		return wrap{distuv.Beta{Alpha: p("alpha"), Beta: p("beta")}}, nil
	case scenario.DistWeibull:
		return wrap{distuv.Weibull{K: p("shape"), Lambda: p("scale")}}, nil
	case scenario.DistPoisson:
		return poisson{lambda: p("lambda")}, nil
	}
	return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedDistribution, spec.Kind)
}

// quantiler is the distuv surface we rely on
type quantiler interface {
	Quantile(p float64) float64
	Mean() float64
	Variance() float64
}

type wrap struct {
	d quantiler
}

func (w wrap) Quantile(p float64) float64 { return w.d.Quantile(p) }
func (w wrap) Mean() float64              { return w.d.Mean() }
func (w wrap) Variance() float64          { return w.d.Variance() }

// constant is the zero-variance degenerate distribution
type constant struct {
	v float64
}

func (c constant) Quantile(float64) float64 { return c.v }
func (c constant) Mean() float64            { return c.v }
func (c constant) Variance() float64        { return 0 }

// poisson implements the quantile by CDF search; distuv has no closed-form
// Poisson quantile. The search walks the pmf recurrence p_k = p_{k-1}*λ/k,
// which is exact and monotone for the supported lambda range.
type poisson struct {
	lambda float64
}

func (p poisson) Mean() float64     { return p.lambda }
func (p poisson) Variance() float64 { return p.lambda }

func (p poisson) Quantile(u float64) float64 {
	if u <= 0 {
		return 0
	}
	kMax := int(p.lambda + 20*math.Sqrt(p.lambda) + 100)
	pmf := math.Exp(-p.lambda)
	cum := pmf
	k := 0
	for cum < u && k < kMax {
		k++
		pmf *= p.lambda / float64(k)
		cum += pmf
	}
	return float64(k)
}

// clamped applies optional bounds after the quantile transform. Moments
// still report the unclamped closed forms.
type clamped struct {
	inner  Dist
	bounds scenario.Bounds
}

func (c clamped) Quantile(p float64) float64 {
	v := c.inner.Quantile(p)
	if c.bounds.Lower != nil && v < *c.bounds.Lower {
		v = *c.bounds.Lower
	}
	if c.bounds.Upper != nil && v > *c.bounds.Upper {
		v = *c.bounds.Upper
	}
	return v
}

func (c clamped) Mean() float64     { return c.inner.Mean() }
func (c clamped) Variance() float64 { return c.inner.Variance() }

// ParamInfo describes one required parameter of a distribution kind
type ParamInfo struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint"`
}

type kindContract struct {
	description string
	params      []ParamInfo
	check       func(scenario.DistSpec) error
}

func positive(kind scenario.DistKind, name string) func(scenario.DistSpec) error {
	return func(spec scenario.DistSpec) error {
		if spec.Params[name] <= 0 {
			return core.NewDistributionError(string(kind)+"."+name, "must be > 0")
		}
		return nil
	}
}

func allOf(checks ...func(scenario.DistSpec) error) func(scenario.DistSpec) error {
	return func(spec scenario.DistSpec) error {
		for _, c := range checks {
			if err := c(spec); err != nil {
				return err
			}
		}
		return nil
	}
}

var contracts = map[scenario.DistKind]kindContract{
	scenario.DistNormal: {
		description: "Gaussian distribution",
		params: []ParamInfo{
			{Name: "mean", Constraint: "finite"},
			{Name: "std", Constraint: ">= 0"},
		},
		check: func(spec scenario.DistSpec) error {
			if spec.Params["std"] < 0 {
				return core.NewDistributionError("normal.std", "must be >= 0")
			}
			return nil
		},
	},
	scenario.DistLogNormal: {
		description: "Log-normal distribution (mu, sigma on the log scale)",
		params: []ParamInfo{
			{Name: "mu", Constraint: "finite"},
			{Name: "sigma", Constraint: "> 0"},
		},
		check: positive(scenario.DistLogNormal, "sigma"),
	},
	scenario.DistUniform: {
		description: "Continuous uniform on [low, high)",
		params: []ParamInfo{
			{Name: "low", Constraint: "< high"},
			{Name: "high", Constraint: "> low"},
		},
		check: func(spec scenario.DistSpec) error {
			if spec.Params["low"] >= spec.Params["high"] {
				return core.NewDistributionError("uniform.low", "must be below high")
			}
			return nil
		},
	},
	scenario.DistExponential: {
		description: "Exponential distribution",
		params: []ParamInfo{
			{Name: "rate", Constraint: "> 0"},
		},
		check: positive(scenario.DistExponential, "rate"),
	},
	scenario.DistGamma: {
		description: "Gamma distribution (shape/rate parameterization)",
		params: []ParamInfo{
			{Name: "shape", Constraint: "> 0"},
			{Name: "rate", Constraint: "> 0"},
		},
		check: allOf(positive(scenario.DistGamma, "shape"), positive(scenario.DistGamma, "rate")),
	},
	scenario.DistBeta: {
		description: "Beta distribution on (0, 1)",
		params: []ParamInfo{
			{Name: "alpha", Constraint: "> 0"},
			{Name: "beta", Constraint: "> 0"},
		},
		check: allOf(positive(scenario.DistBeta, "alpha"), positive(scenario.DistBeta, "beta")),
	},
	scenario.DistWeibull: {
		description: "Weibull distribution (shape k, scale lambda)",
		params: []ParamInfo{
			{Name: "shape", Constraint: "> 0"},
			{Name: "scale", Constraint: "> 0"},
		},
		check: allOf(positive(scenario.DistWeibull, "shape"), positive(scenario.DistWeibull, "scale")),
	},
	scenario.DistPoisson: {
		description: "Poisson counting distribution",
		params: []ParamInfo{
			{Name: "lambda", Constraint: "> 0"},
		},
		check: positive(scenario.DistPoisson, "lambda"),
	},
}

// Info describes one supported distribution kind for listing endpoints
type Info struct {
	Kind        scenario.DistKind `json:"kind"`
	Description string            `json:"description"`
	Params      []ParamInfo       `json:"params"`
}

// Catalog lists the supported kinds with their parameter contracts, in the
// stable order of scenario.Kinds
func Catalog() []Info {
	infos := make([]Info, 0, len(contracts))
	for _, kind := range scenario.Kinds() {
		c := contracts[kind]
		infos = append(infos, Info{Kind: kind, Description: c.description, Params: c.params})
	}
	return infos
}
