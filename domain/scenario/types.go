package scenario

import (
	"fmt"
	"math"

	"gorisk/domain/core"
)

// DistKind enumerates the supported distribution families
type DistKind string

const (
	DistNormal      DistKind = "normal"
	DistLogNormal   DistKind = "lognormal"
	DistUniform     DistKind = "uniform"
	DistExponential DistKind = "exponential"
	DistGamma       DistKind = "gamma"
	DistBeta        DistKind = "beta"
	DistWeibull     DistKind = "weibull"
	DistPoisson     DistKind = "poisson"
)

// Kinds returns all supported distribution kinds in a stable order
func Kinds() []DistKind {
	return []DistKind{
		DistNormal, DistLogNormal, DistUniform, DistExponential,
		DistGamma, DistBeta, DistWeibull, DistPoisson,
	}
}

// Bounds optionally clamps sampled values to [Lower, Upper]
type Bounds struct {
	Lower *float64 `json:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty"`
}

// DistSpec is an immutable distribution specification. Parameter semantics
// depend on Kind; see the distribution package for the per-kind contracts.
type DistSpec struct {
	Kind   DistKind           `json:"kind"`
	Params map[string]float64 `json:"params"`
	Bounds *Bounds            `json:"bounds,omitempty"`
}

// Param returns a named parameter and whether it was supplied
func (d DistSpec) Param(name string) (float64, bool) {
	v, ok := d.Params[name]
	return v, ok
}

// Variable binds a unique name to a distribution. Variables never depend on
// each other's realized values; dependency is expressed solely through the
// correlation specification.
type Variable struct {
	Name  string   `json:"name"`
	Dist  DistSpec `json:"dist"`
	Group string   `json:"group,omitempty"`
}

// CorrelationSpec is a symmetric correlation matrix over a subset of the
// scenario's variables. Variables not listed remain independent. The only
// supported copula family is the Gaussian copula.
type CorrelationSpec struct {
	Variables []string    `json:"variables"`
	Matrix    [][]float64 `json:"matrix"`
	Copula    string      `json:"copula,omitempty"`
}

// CopulaGaussian is the default (and only) copula family
const CopulaGaussian = "gaussian"

// Output names a derived quantity computed from sampled variable values
type Output struct {
	Name string `json:"name"`
	Expr string `json:"expr"`

	node Expr
}

// Eval evaluates the compiled expression against one row of sampled values,
// indexed in scenario variable order. Compile must have succeeded first.
func (o *Output) Eval(values []float64) float64 {
	return o.node.eval(values)
}

// Compiled reports whether the output expression has been parsed and bound
func (o *Output) Compiled() bool {
	return o.node != nil
}

// Scenario is a validated, immutable simulation definition: variables bound
// to distributions, an optional correlation structure, and derived outputs.
type Scenario struct {
	Name            string           `json:"name"`
	Variables       []Variable       `json:"variables"`
	Correlation     *CorrelationSpec `json:"correlation,omitempty"`
	Outputs         []Output         `json:"outputs"`
	Iterations      int              `json:"iterations"`
	Seed            *int64           `json:"seed,omitempty"`
	ConfidenceLevel float64          `json:"confidence_level"`
}

// Issue is a single structured validation failure
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// VariableIndex maps variable names to their position in Variables
func (s *Scenario) VariableIndex() map[string]int {
	idx := make(map[string]int, len(s.Variables))
	for i, v := range s.Variables {
		idx[v.Name] = i
	}
	return idx
}

// Validate checks every structural invariant and compiles output expressions.
// Distribution parameter sanity is the distribution package's concern and
// positive-semi-definiteness is checked when the correlation transform is
// built; everything else is enforced here. Returns nil when the scenario is
// well formed.
func (s *Scenario) Validate(maxIterations int) []Issue {
	var issues []Issue

	if s.Name == "" {
		issues = append(issues, Issue{Field: "name", Message: "scenario name is required"})
	}
	if len(s.Variables) == 0 {
		issues = append(issues, Issue{Field: "variables", Message: "at least one variable is required"})
	}
	if s.Iterations <= 0 {
		issues = append(issues, Issue{Field: "iterations", Message: "iteration count must be positive"})
	} else if maxIterations > 0 && s.Iterations > maxIterations {
		issues = append(issues, Issue{
			Field:   "iterations",
			Message: fmt.Sprintf("iteration count %d exceeds maximum %d", s.Iterations, maxIterations),
		})
	}
	if s.ConfidenceLevel <= 0 || s.ConfidenceLevel >= 1 {
		issues = append(issues, Issue{Field: "confidence_level", Message: "confidence level must be in (0, 1)"})
	}

	seen := make(map[string]bool, len(s.Variables))
	for i, v := range s.Variables {
		field := fmt.Sprintf("variables[%d]", i)
		if v.Name == "" {
			issues = append(issues, Issue{Field: field, Message: "variable name is required"})
			continue
		}
		if seen[v.Name] {
			issues = append(issues, Issue{Field: field, Message: fmt.Sprintf("duplicate variable name %q", v.Name)})
		}
		seen[v.Name] = true
		if v.Dist.Bounds != nil && v.Dist.Bounds.Lower != nil && v.Dist.Bounds.Upper != nil {
			if *v.Dist.Bounds.Lower >= *v.Dist.Bounds.Upper {
				issues = append(issues, Issue{Field: field + ".bounds", Message: "lower bound must be below upper bound"})
			}
		}
	}

	if s.Correlation != nil {
		issues = append(issues, s.validateCorrelation(seen)...)
	}

	if len(s.Outputs) == 0 {
		issues = append(issues, Issue{Field: "outputs", Message: "at least one output is required"})
	}
	varIdx := s.VariableIndex()
	outSeen := make(map[string]bool, len(s.Outputs))
	for i := range s.Outputs {
		o := &s.Outputs[i]
		field := fmt.Sprintf("outputs[%d]", i)
		if o.Name == "" {
			issues = append(issues, Issue{Field: field, Message: "output name is required"})
		}
		if outSeen[o.Name] {
			issues = append(issues, Issue{Field: field, Message: fmt.Sprintf("duplicate output name %q", o.Name)})
		}
		outSeen[o.Name] = true
		node, err := Parse(o.Expr, varIdx)
		if err != nil {
			issues = append(issues, Issue{Field: field + ".expr", Message: core.NewExpressionError(o.Name, err.Error()).Error()})
			continue
		}
		o.node = node
	}

	return issues
}

// validateCorrelation checks shape, symmetry, diagonal and range. Tolerances
// absorb round-tripping through JSON.
func (s *Scenario) validateCorrelation(known map[string]bool) []Issue {
	const tol = 1e-9
	var issues []Issue
	c := s.Correlation

	if c.Copula != "" && c.Copula != CopulaGaussian {
		issues = append(issues, Issue{
			Field:   "correlation.copula",
			Message: fmt.Sprintf("unsupported copula family %q (only %q)", c.Copula, CopulaGaussian),
		})
	}

	n := len(c.Variables)
	if n < 2 {
		issues = append(issues, Issue{Field: "correlation.variables", Message: "correlation requires at least two variables"})
		return issues
	}
	memberSeen := make(map[string]bool, n)
	for i, name := range c.Variables {
		if !known[name] {
			issues = append(issues, Issue{
				Field:   fmt.Sprintf("correlation.variables[%d]", i),
				Message: fmt.Sprintf("unknown variable %q", name),
			})
		}
		if memberSeen[name] {
			issues = append(issues, Issue{
				Field:   fmt.Sprintf("correlation.variables[%d]", i),
				Message: fmt.Sprintf("variable %q listed twice", name),
			})
		}
		memberSeen[name] = true
	}

	if len(c.Matrix) != n {
		issues = append(issues, Issue{
			Field:   "correlation.matrix",
			Message: fmt.Sprintf("matrix has %d rows for %d variables", len(c.Matrix), n),
		})
		return issues
	}
	for i, row := range c.Matrix {
		if len(row) != n {
			issues = append(issues, Issue{
				Field:   fmt.Sprintf("correlation.matrix[%d]", i),
				Message: fmt.Sprintf("row has %d entries, want %d", len(row), n),
			})
			return issues
		}
	}
	for i := 0; i < n; i++ {
		if math.Abs(c.Matrix[i][i]-1.0) > tol {
			issues = append(issues, Issue{
				Field:   fmt.Sprintf("correlation.matrix[%d][%d]", i, i),
				Message: fmt.Sprintf("diagonal entry must be 1.0, got %g", c.Matrix[i][i]),
			})
		}
		for j := i + 1; j < n; j++ {
			v := c.Matrix[i][j]
			if math.IsNaN(v) || v < -1 || v > 1 {
				issues = append(issues, Issue{
					Field:   fmt.Sprintf("correlation.matrix[%d][%d]", i, j),
					Message: fmt.Sprintf("correlation must be in [-1, 1], got %g", v),
				})
			}
			if math.Abs(v-c.Matrix[j][i]) > tol {
				issues = append(issues, Issue{
					Field:   fmt.Sprintf("correlation.matrix[%d][%d]", i, j),
					Message: fmt.Sprintf("matrix is not symmetric: %g vs %g", v, c.Matrix[j][i]),
				})
			}
		}
	}

	return issues
}
