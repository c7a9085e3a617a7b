package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/damsaniajay/qaflow/internal/recorder"
	"github.com/damsaniajay/qaflow/internal/types"
)

var (
	recordResultsFile string
	recordOverall     string
)

var recordCmd = &cobra.Command{
	Use:   "record <test-case-key>",
	Short: "Record step results for a test case",
	Long: `Record step results for a test case from a JSON file.

The file holds an array of step results in the shape the AI operator
reports:

  [
    {"test_step": "Open the login page", "log_or_error": "ok", "result": "Pass"},
    {"test_step": "Sign in", "log_or_error": "button missing", "result": "Fail"}
  ]

Results are written to the local store first; the tracker case moves to
Done only when the overall verdict is Pass. Without --overall the
verdict is derived from the steps: Pass only when every step passed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(recordResultsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var steps []types.StepResult
		if err := json.Unmarshal(data, &steps); err != nil {
			fmt.Fprintf(os.Stderr, "Error: parsing %s: %v\n", recordResultsFile, err)
			os.Exit(1)
		}

		overall := types.DeriveOverall(steps)
		if recordOverall != "" {
			overall = types.OverallResult(recordOverall)
			if !overall.IsValid() {
				fmt.Fprintf(os.Stderr, "Error: invalid --overall %q (want Pass or Fail)\n", recordOverall)
				os.Exit(1)
			}
		}

		source, err := newSource()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		store, err := newStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		rec := recorder.New(source, store, cfg.Results.LogsDir, logg)
		result, err := rec.Record(context.Background(), args[0], steps, overall)
		if err != nil {
			if result != nil {
				fmt.Fprintf(os.Stderr, "Warning: result stored locally, but the tracker update failed: %v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Recorded %s: %s (%d step(s))\n", green("✓"), result.TestCaseKey, result.OverallResult, len(result.Results))
		if result.Passed() {
			fmt.Println("Tracker case moved to Done.")
		}
	},
}

func init() {
	recordCmd.Flags().StringVar(&recordResultsFile, "results", "", "JSON file with step results (required)")
	recordCmd.Flags().StringVar(&recordOverall, "overall", "", "overall verdict, Pass or Fail (default derived from steps)")
	recordCmd.MarkFlagRequired("results")
	rootCmd.AddCommand(recordCmd)
}
