package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gorisk/adapters/excel"
	"gorisk/app"
	"gorisk/domain/scenario"
	"gorisk/domain/simulation"
	"gorisk/internal"
	"gorisk/internal/analyzer"
	"gorisk/internal/config"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "gorisk",
		Short: "Monte Carlo simulation and risk assessment engine",
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newTemplatesCmd(),
		newDistributionsCmd(),
		newValidateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		file        string
		iterations  int
		seed        int64
		seedSet     bool
		parallel    bool
		workers     int
		percentiles []float64
		thresholds  []string
		xlsxPath    string
		jsonOut     bool
	)

	cmd := &cobra.Command{
		Use:   "run [template-name]",
		Short: "Run a simulation from a template or a scenario file",
		Long: `Run a Monte Carlo simulation from a predefined template or a scenario
JSON file and print the analyzed result.

Examples:
  gorisk run risk_assessment --iterations 50000 --seed 42
  gorisk run --file scenario.json --parallel --threshold "profit:0:below"
  gorisk run project_planning --xlsx report.xlsx`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seedSet = cmd.Flags().Changed("seed")

			svc, err := newService()
			if err != nil {
				return err
			}

			scn, err := loadScenario(svc, args, file)
			if err != nil {
				return err
			}
			if seedSet {
				scn.Seed = &seed
			}

			thr, err := parseThresholds(thresholds)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := svc.Run(ctx, scn, app.RunOptions{
				Iterations:  iterations,
				Parallel:    parallel,
				Workers:     workers,
				Percentiles: percentiles,
				Thresholds:  thr,
			})
			if err != nil {
				return err
			}

			if xlsxPath != "" {
				if err := excel.NewResultWriter().Export(result, xlsxPath); err != nil {
					return fmt.Errorf("excel export failed: %w", err)
				}
				fmt.Printf("Exported workbook to %s\n", filepath.Clean(xlsxPath))
			}

			if jsonOut {
				return printJSON(result)
			}
			printResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Scenario JSON file (instead of a template name)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Override the scenario's iteration count")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for reproducible runs")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Distribute trials across a worker pool")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker pool size (0 = one per CPU)")
	cmd.Flags().Float64SliceVar(&percentiles, "percentiles", nil, "Percentile grid, e.g. 1,5,50,95,99")
	cmd.Flags().StringArrayVar(&thresholds, "threshold", nil, `Risk threshold "output:value:below|above" (repeatable)`)
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Export the result to an Excel workbook at this path")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full result as JSON")

	return cmd
}

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the predefined scenario templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			for _, t := range svc.Templates() {
				fmt.Printf("%-20s %s\n", t.Name, t.Description)
			}
			return nil
		},
	}
}

func newDistributionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distributions",
		Short: "List the supported distributions and their parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			for _, d := range svc.Distributions() {
				params := make([]string, len(d.Params))
				for i, p := range d.Params {
					params[i] = fmt.Sprintf("%s (%s)", p.Name, p.Constraint)
				}
				fmt.Printf("%-12s %s\n", d.Kind, strings.Join(params, ", "))
			}
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a scenario file without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			svc, err := newService()
			if err != nil {
				return err
			}

			scn, err := readScenarioFile(file)
			if err != nil {
				return err
			}

			built, issues := svc.BuildScenario(*scn)
			if len(issues) > 0 {
				for _, issue := range issues {
					fmt.Fprintf(os.Stderr, "%s: %s\n", issue.Field, issue.Message)
				}
				return fmt.Errorf("scenario has %d validation issue(s)", len(issues))
			}

			fp, err := svc.Fingerprint(built)
			if err != nil {
				return err
			}
			fmt.Printf("Scenario %q is valid (fingerprint %s)\n", built.Name, fp)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Scenario JSON file")
	return cmd
}

func newService() (*app.SimulationService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.NewSimulationService(cfg.Engine, nil, internal.DefaultLogger), nil
}

func loadScenario(svc *app.SimulationService, args []string, file string) (*scenario.Scenario, error) {
	switch {
	case file != "":
		scn, err := readScenarioFile(file)
		if err != nil {
			return nil, err
		}
		built, issues := svc.BuildScenario(*scn)
		if len(issues) > 0 {
			for _, issue := range issues {
				fmt.Fprintf(os.Stderr, "%s: %s\n", issue.Field, issue.Message)
			}
			return nil, fmt.Errorf("scenario has %d validation issue(s)", len(issues))
		}
		return built, nil
	case len(args) == 1:
		return svc.Template(args[0])
	default:
		return nil, fmt.Errorf("a template name or --file is required")
	}
}

func readScenarioFile(path string) (*scenario.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	scn, err := scenario.FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("invalid scenario file %s: %w", path, err)
	}
	return scn, nil
}

// parseThresholds turns "output:value:below" specs into analyzer thresholds
func parseThresholds(specs []string) (map[string]analyzer.Threshold, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(map[string]analyzer.Threshold, len(specs))
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid threshold %q (want output:value:below|above)", spec)
		}
		value, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold value in %q: %w", spec, err)
		}
		direction := parts[2]
		if direction != analyzer.DirectionBelow && direction != analyzer.DirectionAbove {
			return nil, fmt.Errorf("invalid threshold direction %q (want below or above)", direction)
		}
		out[parts[0]] = analyzer.Threshold{Value: value, Direction: direction}
	}
	return out, nil
}

func printJSON(result *simulation.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func printResult(r *simulation.Result) {
	fmt.Printf("Scenario:    %s\n", r.ScenarioName)
	fmt.Printf("Fingerprint: %s\n", r.Fingerprint)
	fmt.Printf("Seed:        %d\n", r.Seed)
	fmt.Printf("Trials:      %d/%d completed", r.Completed, r.Requested)
	if r.Incomplete {
		fmt.Printf(" (cancelled)")
	}
	fmt.Println()
	if r.FailedTrials > 0 {
		fmt.Printf("Failed:      %d trials\n", r.FailedTrials)
		for _, f := range r.FailureSamples {
			fmt.Printf("  trial %d: %s\n", f.Index, f.Error)
		}
	}
	if r.CorrelationAdjusted {
		fmt.Println("Note:        correlation matrix corrected to nearest PSD")
	}
	fmt.Printf("Duration:    %s (workers=%d)\n", r.Duration, r.Workers)

	for _, o := range r.Outputs {
		fmt.Printf("\nOutput %s\n", o.Name)
		if o.NoData {
			fmt.Println("  no finite data")
			continue
		}
		fmt.Printf("  mean %.6g  std %.6g  min %.6g  max %.6g\n", o.Mean, o.Std, o.Min, o.Max)
		fmt.Printf("  %.0f%% CI [%.6g, %.6g]\n", r.ConfidenceLevel*100, o.CILower, o.CIUpper)
		if o.DegenerateTrials > 0 {
			fmt.Printf("  degenerate trials: %d\n", o.DegenerateTrials)
		}
		for _, p := range o.Percentiles {
			fmt.Printf("  P%-5g %.6g\n", p.P, p.Value)
		}
		if o.Risk != nil {
			fmt.Printf("  risk score %.4f (P[%s %v] = %.4f, mean shortfall %.6g)\n",
				o.Risk.Score, o.Risk.Direction, o.Risk.Threshold, o.Risk.Probability, o.Risk.MeanShortfall)
		}
		for _, s := range o.Sensitivity {
			fmt.Printf("  sensitivity %-16s rho=%+.4f\n", s.Variable, s.Rho)
		}
	}

	if len(r.Variables) > 0 {
		fmt.Println("\nInput variables (realized moments)")
		for _, v := range r.Variables {
			fmt.Printf("  %-16s mean %.6g  std %.6g  min %.6g  max %.6g\n", v.Name, v.Mean, v.Std, v.Min, v.Max)
		}
	}
}
