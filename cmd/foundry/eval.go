package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/workcell-labs/foundry/internal/evaluator"
)

var (
	evalDatasetPath string
	evalJSONOutput  bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Replay a recorded dataset and score the baseline policy",
	Long: `Reads a JSON-lines dataset of labeled examples, each holding the candidate
executions recorded for one task, and reports how the selection policy
scores against the per-example oracle.`,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVarP(&evalDatasetPath, "dataset", "d", "", "Path to the JSON-lines dataset (required)")
	evalCmd.Flags().BoolVar(&evalJSONOutput, "json", false, "Emit the report as JSON")
	_ = evalCmd.MarkFlagRequired("dataset")
}

func runEval(cmd *cobra.Command, args []string) error {
	dataset, err := evaluator.LoadDataset(evalDatasetPath)
	if err != nil {
		return err
	}

	report, err := evaluator.Evaluate(cmd.Context(), dataset, evaluator.BaselinePolicy{})
	if err != nil {
		return err
	}

	if evalJSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(report)
	return nil
}

func printReport(r *evaluator.Report) {
	header := color.New(color.Bold)
	metric := color.New(color.FgCyan)

	header.Printf("Evaluation over %d examples\n\n", r.Examples)
	metric.Printf("  pass rate          ")
	fmt.Printf("%.3f (%d/%d)\n", r.PassRate, r.Passes, r.Examples)
	metric.Printf("  mean time to pass  ")
	fmt.Printf("%.1fs\n", r.MeanTimeToPass)
	metric.Printf("  duration per pass  ")
	fmt.Printf("%.1fs\n", r.DurationPerPass)
	metric.Printf("  cost per pass      ")
	fmt.Printf("$%.4f\n", r.CostPerPass)
	metric.Printf("  oracle match rate  ")
	fmt.Printf("%.3f (over %d comparable)\n", r.OracleMatchRate, r.OracleComparable)
	metric.Printf("  mean regret        ")
	fmt.Printf("%.1fs (over %d examples)\n", r.MeanRegret, r.RegretExamples)
}
