package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"gorisk/domain/simulation"
	"gorisk/ports"
)

// ResultWriter exports a simulation result to an Excel workbook with a
// summary sheet, a per-output statistics sheet and a sensitivity sheet.
type ResultWriter struct{}

// NewResultWriter creates a new Excel result exporter
func NewResultWriter() *ResultWriter {
	return &ResultWriter{}
}

var _ ports.ResultExporter = (*ResultWriter)(nil)

// Export writes the workbook to path
func (w *ResultWriter) Export(result *simulation.Result, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := w.writeSummary(f, result); err != nil {
		return err
	}
	if err := w.writeOutputs(f, result); err != nil {
		return err
	}
	if err := w.writeSensitivity(f, result); err != nil {
		return err
	}

	return f.SaveAs(path)
}

func (w *ResultWriter) writeSummary(f *excelize.File, result *simulation.Result) error {
	const sheet = "Summary"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Scenario", result.ScenarioName},
		{"Run ID", result.RunID.String()},
		{"Fingerprint", result.Fingerprint.String()},
		{"Seed", result.Seed},
		{"Requested iterations", result.Requested},
		{"Completed iterations", result.Completed},
		{"Failed trials", result.FailedTrials},
		{"Incomplete", result.Incomplete},
		{"Correlation adjusted", result.CorrelationAdjusted},
		{"Confidence level", result.ConfidenceLevel},
		{"Workers", result.Workers},
		{"Duration", result.Duration.String()},
		{"Created at", result.CreatedAt.Time()},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func (w *ResultWriter) writeOutputs(f *excelize.File, result *simulation.Result) error {
	const sheet = "Outputs"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := []interface{}{"Output", "Mean", "Std", "Min", "Max", "CI lower", "CI upper", "Degenerate trials", "Risk score"}
	for _, o := range result.Outputs {
		for _, p := range o.Percentiles {
			header = append(header, fmt.Sprintf("P%g", p.P))
		}
		break
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, o := range result.Outputs {
		row := []interface{}{o.Name, o.Mean, o.Std, o.Min, o.Max, o.CILower, o.CIUpper, o.DegenerateTrials}
		if o.Risk != nil {
			row = append(row, o.Risk.Score)
		} else {
			row = append(row, "")
		}
		for _, p := range o.Percentiles {
			row = append(row, p.Value)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func (w *ResultWriter) writeSensitivity(f *excelize.File, result *simulation.Result) error {
	const sheet = "Sensitivity"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := []interface{}{"Output", "Variable", "Spearman rho"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	rowIdx := 2
	for _, o := range result.Outputs {
		for _, s := range o.Sensitivity {
			row := []interface{}{o.Name, s.Variable, s.Rho}
			cell, err := excelize.CoordinatesToCellName(1, rowIdx)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return err
			}
			rowIdx++
		}
	}
	return nil
}
