package scenario

import (
	"fmt"

	"gorisk/domain/core"
)

// Predefined scenario templates. Templates are plain data: each builder
// returns a fresh Scenario that flows through the same validation and
// execution path as a user-supplied one. Nothing downstream treats them
// specially.

// TemplateInfo describes a predefined template for listing endpoints
type TemplateInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Variables   []string `json:"variables"`
	Outputs     []string `json:"outputs"`
}

const (
	templateIterations = 10000
	templateConfidence = 0.95
)

var templateBuilders = map[string]func() *Scenario{
	"risk_assessment":  riskAssessmentTemplate,
	"project_planning": projectPlanningTemplate,
	"supply_chain":     supplyChainTemplate,
	"technology_risk":  technologyRiskTemplate,
	"environmental":    environmentalTemplate,
	"compliance":       complianceTemplate,
}

var templateDescriptions = map[string]string{
	"risk_assessment":  "Profit and margin under revenue/cost uncertainty with operational loss events",
	"project_planning": "Project duration with correlated build and test phases plus rework",
	"supply_chain":     "Pipeline stock and holding cost under demand and lead-time variability",
	"technology_risk":  "Annualized technology loss after mitigation, plus downtime cost",
	"environmental":    "Flood and heat stress indices from rainfall, wind and temperature",
	"compliance":       "Expected regulatory penalty and total compliance exposure",
}

// TemplateNames returns the template names in a stable order
func TemplateNames() []string {
	return []string{
		"risk_assessment", "project_planning", "supply_chain",
		"technology_risk", "environmental", "compliance",
	}
}

// Template returns a fresh copy of a predefined scenario by name
func Template(name string) (*Scenario, error) {
	build, ok := templateBuilders[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", core.ErrTemplateNotFound, name)
	}
	return build(), nil
}

// Templates lists all predefined templates
func Templates() []TemplateInfo {
	infos := make([]TemplateInfo, 0, len(templateBuilders))
	for _, name := range TemplateNames() {
		s := templateBuilders[name]()
		info := TemplateInfo{Name: name, Description: templateDescriptions[name]}
		for _, v := range s.Variables {
			info.Variables = append(info.Variables, v.Name)
		}
		for _, o := range s.Outputs {
			info.Outputs = append(info.Outputs, o.Name)
		}
		infos = append(infos, info)
	}
	return infos
}

func params(kv ...interface{}) map[string]float64 {
	m := make(map[string]float64, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = toFloat(kv[i+1])
	}
	return m
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	}
	return 0
}

func riskAssessmentTemplate() *Scenario {
	return &Scenario{
		Name: "risk_assessment",
		Variables: []Variable{
			{Name: "revenue", Dist: DistSpec{Kind: DistNormal, Params: params("mean", 1200000, "std", 180000)}},
			{Name: "operating_cost", Dist: DistSpec{Kind: DistNormal, Params: params("mean", 850000, "std", 90000)}},
			{Name: "loss_events", Dist: DistSpec{Kind: DistPoisson, Params: params("lambda", 3)}},
			{Name: "loss_severity", Dist: DistSpec{Kind: DistLogNormal, Params: params("mu", 10.5, "sigma", 0.8)}},
		},
		Correlation: &CorrelationSpec{
			Variables: []string{"revenue", "operating_cost"},
			Matrix:    [][]float64{{1, 0.35}, {0.35, 1}},
		},
		Outputs: []Output{
			{Name: "profit", Expr: "revenue - operating_cost - loss_events * loss_severity"},
			{Name: "margin", Expr: "(revenue - operating_cost - loss_events * loss_severity) / revenue"},
		},
		Iterations:      templateIterations,
		ConfidenceLevel: templateConfidence,
	}
}

func projectPlanningTemplate() *Scenario {
	lower := 10.0
	return &Scenario{
		Name: "project_planning",
		Variables: []Variable{
			{Name: "design_days", Dist: DistSpec{Kind: DistUniform, Params: params("low", 20, "high", 40)}},
			{Name: "build_days", Dist: DistSpec{Kind: DistNormal, Params: params("mean", 60, "std", 12), Bounds: &Bounds{Lower: &lower}}},
			{Name: "test_days", Dist: DistSpec{Kind: DistGamma, Params: params("shape", 6, "rate", 0.2)}},
			{Name: "rework_factor", Dist: DistSpec{Kind: DistBeta, Params: params("alpha", 2, "beta", 8)}},
		},
		Correlation: &CorrelationSpec{
			Variables: []string{"build_days", "test_days"},
			Matrix:    [][]float64{{1, 0.5}, {0.5, 1}},
		},
		Outputs: []Output{
			{Name: "duration_days", Expr: "design_days + build_days + test_days"},
			{Name: "adjusted_days", Expr: "(design_days + build_days + test_days) * (1 + rework_factor)"},
		},
		Iterations:      templateIterations,
		ConfidenceLevel: templateConfidence,
	}
}

func supplyChainTemplate() *Scenario {
	return &Scenario{
		Name: "supply_chain",
		Variables: []Variable{
			{Name: "daily_demand", Dist: DistSpec{Kind: DistPoisson, Params: params("lambda", 140)}},
			{Name: "lead_time_days", Dist: DistSpec{Kind: DistWeibull, Params: params("shape", 2, "scale", 9)}},
			{Name: "unit_cost", Dist: DistSpec{Kind: DistUniform, Params: params("low", 8, "high", 14)}},
			{Name: "disruptions", Dist: DistSpec{Kind: DistExponential, Params: params("rate", 0.1)}},
		},
		Correlation: &CorrelationSpec{
			Variables: []string{"daily_demand", "unit_cost"},
			Matrix:    [][]float64{{1, 0.2}, {0.2, 1}},
		},
		Outputs: []Output{
			{Name: "pipeline_stock", Expr: "daily_demand * lead_time_days"},
			{Name: "holding_cost", Expr: "daily_demand * lead_time_days * unit_cost"},
			{Name: "disruption_buffer", Expr: "daily_demand * disruptions"},
		},
		Iterations:      templateIterations,
		ConfidenceLevel: templateConfidence,
	}
}

func technologyRiskTemplate() *Scenario {
	return &Scenario{
		Name: "technology_risk",
		Variables: []Variable{
			{Name: "incidents", Dist: DistSpec{Kind: DistPoisson, Params: params("lambda", 4)}},
			{Name: "incident_impact", Dist: DistSpec{Kind: DistLogNormal, Params: params("mu", 11, "sigma", 1)}},
			{Name: "mitigation", Dist: DistSpec{Kind: DistBeta, Params: params("alpha", 4, "beta", 2)}},
			{Name: "downtime_hours", Dist: DistSpec{Kind: DistGamma, Params: params("shape", 3, "rate", 0.5)}},
		},
		Correlation: &CorrelationSpec{
			Variables: []string{"incidents", "downtime_hours"},
			Matrix:    [][]float64{{1, 0.45}, {0.45, 1}},
		},
		Outputs: []Output{
			{Name: "annual_loss", Expr: "incidents * incident_impact * (1 - mitigation)"},
			{Name: "downtime_cost", Expr: "downtime_hours * 5000"},
		},
		Iterations:      templateIterations,
		ConfidenceLevel: templateConfidence,
	}
}

func environmentalTemplate() *Scenario {
	return &Scenario{
		Name: "environmental",
		Variables: []Variable{
			{Name: "rainfall_mm", Dist: DistSpec{Kind: DistGamma, Params: params("shape", 3, "rate", 0.02)}},
			{Name: "peak_temperature", Dist: DistSpec{Kind: DistNormal, Params: params("mean", 32, "std", 4)}},
			{Name: "wind_speed", Dist: DistSpec{Kind: DistWeibull, Params: params("shape", 2, "scale", 12)}},
		},
		Correlation: &CorrelationSpec{
			Variables: []string{"rainfall_mm", "wind_speed"},
			Matrix:    [][]float64{{1, 0.4}, {0.4, 1}},
		},
		Outputs: []Output{
			{Name: "flood_index", Expr: "rainfall_mm / 150 + wind_speed / 25"},
			{Name: "heat_stress", Expr: "(peak_temperature - 30) * 0.1"},
		},
		Iterations:      templateIterations,
		ConfidenceLevel: templateConfidence,
	}
}

func complianceTemplate() *Scenario {
	return &Scenario{
		Name: "compliance",
		Variables: []Variable{
			{Name: "audit_findings", Dist: DistSpec{Kind: DistPoisson, Params: params("lambda", 2)}},
			{Name: "fine_amount", Dist: DistSpec{Kind: DistLogNormal, Params: params("mu", 9.2, "sigma", 0.7)}},
			{Name: "detection_prob", Dist: DistSpec{Kind: DistBeta, Params: params("alpha", 8, "beta", 2)}},
			{Name: "remediation_cost", Dist: DistSpec{Kind: DistGamma, Params: params("shape", 4, "rate", 0.001)}},
		},
		Outputs: []Output{
			{Name: "expected_penalty", Expr: "audit_findings * fine_amount * detection_prob"},
			{Name: "total_exposure", Expr: "audit_findings * fine_amount * detection_prob + remediation_cost"},
		},
		Iterations:      templateIterations,
		ConfidenceLevel: templateConfidence,
	}
}
