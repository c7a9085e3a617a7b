package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/damsaniajay/qaflow/internal/executor"
	"github.com/damsaniajay/qaflow/internal/workqueue"
)

var runCmd = &cobra.Command{
	Use:   "run [test-case-key]",
	Short: "Execute a test case through the AI operator",
	Long: `Execute one test case through the AI operator and record the outcome.

Without a key the next incomplete test case is picked. The operator
receives the dependency-ordered prompt, walks the steps, and reports
per-step results; qaflow stores them locally and moves the case to Done
in the tracker when everything passed.

Requires ANTHROPIC_API_KEY (or ai.api_key in the config file).`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
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

		operator, err := newOperator()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		exec, err := executor.New(&executor.Config{
			Source:  source,
			Store:   store,
			Runner:  operator,
			LogsDir: cfg.Results.LogsDir,
			Logger:  logg,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx := context.Background()

		key := ""
		if len(args) == 1 {
			key = args[0]
		} else {
			incomplete, err := workqueue.New(source, store).Incomplete(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if len(incomplete) == 0 {
				fmt.Println("Nothing to run: every test case is complete.")
				return
			}
			key = incomplete[0].Key
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("Executing %s with %s...\n", cyan(key), operator.Model())

		result, err := exec.ExecuteOne(ctx, key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		verdict := color.New(color.FgRed).SprintFunc()(string(result.OverallResult))
		if result.Passed() {
			verdict = color.New(color.FgGreen).SprintFunc()(string(result.OverallResult))
		}
		fmt.Printf("\n%s %s\n", result.TestCaseKey, verdict)
		for _, sr := range result.Results {
			fmt.Printf("  [%s] %s\n", sr.Result, sr.TestStep)
		}
		if result.Passed() {
			fmt.Println("\nTracker case moved to Done.")
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		usage := operator.Usage()
		fmt.Printf("%s\n", gray(fmt.Sprintf("Tokens: %d in, %d out", usage.InputTokens, usage.OutputTokens)))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
