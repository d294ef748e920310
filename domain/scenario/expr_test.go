package scenario

import (
	"math"
	"strings"
	"testing"
)

func TestParse_Evaluation(t *testing.T) {
	vars := map[string]int{"a": 0, "b": 1, "c": 2}
	values := []float64{6, 3, 2}

	cases := []struct {
		expr string
		want float64
	}{
		{"a + b", 9},
		{"a - b - c", 1}, // left associative
		{"a + b * c", 12},
		{"(a + b) * c", 18},
		{"a / b", 2},
		{"a / b / c", 1},
		{"-a + b", -3},
		{"-(a + b)", -9},
		{"- -a", 6},
		{"b ^ c", 9},
		{"c ^ b ^ 2", 512}, // right associative: 2^(3^2)
		{"2 * a ^ 2", 72},  // ^ binds tighter than *
		{"1.5e2 + a", 156},
		{"0.5 * b", 1.5},
		{"42", 42},
	}

	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			node, err := Parse(tc.expr, vars)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tc.expr, err)
			}
			got := node.eval(values)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("eval(%q) = %g, want %g", tc.expr, got, tc.want)
			}
		})
	}
}

func TestParse_DivisionByZeroIsNaN(t *testing.T) {
	vars := map[string]int{"x": 0}

	node, err := Parse("1 / x", vars)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := node.eval([]float64{0}); !math.IsNaN(got) {
		t.Errorf("1/0 = %g, want NaN", got)
	}
	// The same compiled node must still divide normally
	if got := node.eval([]float64{4}); got != 0.25 {
		t.Errorf("1/4 = %g, want 0.25", got)
	}
}

func TestParse_Errors(t *testing.T) {
	vars := map[string]int{"a": 0}

	cases := []struct {
		name    string
		expr    string
		wantMsg string
	}{
		{"unknown variable", "a + missing", "unknown variable"},
		{"trailing operator", "a +", "unexpected end"},
		{"empty", "", "unexpected end"},
		{"unbalanced paren", "(a + 1", "missing closing parenthesis"},
		{"stray rparen", "a)", "unexpected"},
		{"double operator", "a * * 2", "unexpected"},
		{"bad number", "1.2.3", "invalid number"},
		{"unsupported char", "a % 2", "unexpected"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.expr, vars)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tc.expr)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("Parse(%q) error = %q, want substring %q", tc.expr, err, tc.wantMsg)
			}
		})
	}
}

func TestOutput_CompiledOnlyAfterValidate(t *testing.T) {
	scn := Scenario{
		Name: "compile-check",
		Variables: []Variable{
			{Name: "x", Dist: DistSpec{Kind: DistNormal, Params: params("mean", 0, "std", 1)}},
		},
		Outputs:         []Output{{Name: "y", Expr: "x * 2"}},
		Iterations:      100,
		ConfidenceLevel: 0.95,
	}

	if scn.Outputs[0].Compiled() {
		t.Fatal("output reports compiled before Validate")
	}
	if issues := scn.Validate(0); len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
	if !scn.Outputs[0].Compiled() {
		t.Fatal("output not compiled after Validate")
	}
	if got := scn.Outputs[0].Eval([]float64{3}); got != 6 {
		t.Errorf("Eval = %g, want 6", got)
	}
}
