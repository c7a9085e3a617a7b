package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/damsaniajay/qaflow/internal/ai"
	"github.com/damsaniajay/qaflow/internal/results"
	"github.com/damsaniajay/qaflow/internal/tracker"
	"github.com/damsaniajay/qaflow/internal/workqueue"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracker, store and AI operator status",
	Long:  `Display tracker connectivity, local result store contents, and AI operator configuration.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== qaflow Status ==="))

		// Tracker connectivity
		fmt.Printf("%s\n", yellow("Tracker:"))
		var source tracker.Source
		if demoMode {
			source = demoSource()
			fmt.Printf("  %s demo (in-memory test set)\n", green("●"))
		} else if cfg.Jira.URL == "" {
			fmt.Printf("  %s not configured %s\n", gray("○"), gray("(set jira.url or JIRA_URL)"))
		} else {
			fmt.Printf("  URL:     %s\n", cfg.Jira.URL)
			fmt.Printf("  Project: %s\n", cfg.Jira.Project)
			client, err := newSource()
			if err != nil {
				fmt.Printf("  %s %v\n", red("⚠"), err)
			} else if jc, ok := client.(*tracker.JiraClient); ok {
				if err := jc.Ping(ctx); err != nil {
					fmt.Printf("  %s unreachable: %v\n", red("⚠"), err)
				} else {
					fmt.Printf("  %s connected\n", green("●"))
					source = client
				}
			}
		}
		fmt.Println()

		// Local result store
		fmt.Printf("%s\n", yellow("Result Store:"))
		backend, path := "json file", cfg.Results.File
		if cfg.Results.DBPath != "" {
			backend, path = "sqlite", cfg.Results.DBPath
		}
		fmt.Printf("  Backend: %s\n", backend)
		fmt.Printf("  Path:    %s\n", path)

		var store results.Store
		if s, err := newStore(); err != nil {
			fmt.Printf("  %s %v\n", red("⚠"), err)
		} else {
			store = s
			defer store.Close()

			if stored, err := store.ListResults(ctx); err != nil {
				fmt.Printf("  %s %v\n", red("⚠"), err)
			} else {
				fmt.Printf("  Recorded: %d result(s)\n", len(stored))
				if hl, ok := store.(results.HistoryLister); ok {
					for _, r := range stored {
						attempts, err := hl.History(ctx, r.TestCaseKey)
						if err != nil {
							continue
						}
						fmt.Printf("    %s: %s, %d attempt(s)\n", r.TestCaseKey, r.OverallResult, len(attempts))
					}
				}
			}
		}
		fmt.Println()

		// AI operator
		fmt.Printf("%s\n", yellow("AI Operator:"))
		if cfg.AI.APIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
			fmt.Printf("  %s no API key %s\n", gray("○"), gray("(set ANTHROPIC_API_KEY)"))
		} else {
			model := cfg.AI.Model
			if model == "" {
				model = ai.GetDefaultModel()
			}
			fmt.Printf("  %s key configured\n", green("●"))
			fmt.Printf("  Model:   %s\n", model)
		}
		fmt.Println()

		// Work queue
		if source != nil && store != nil {
			fmt.Printf("%s\n", yellow("Work Queue:"))
			incomplete, err := workqueue.New(source, store).Incomplete(ctx)
			if err != nil {
				fmt.Printf("  %s %v\n", red("⚠"), err)
			} else if len(incomplete) == 0 {
				fmt.Printf("  %s\n", gray("Nothing to do: every test case is complete."))
			} else {
				fmt.Printf("  %s test case(s) waiting for a successful run\n", yellow(fmt.Sprintf("%d", len(incomplete))))
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
