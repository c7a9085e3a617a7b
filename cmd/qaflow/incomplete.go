package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/damsaniajay/qaflow/internal/workqueue"
)

var incompleteCmd = &cobra.Command{
	Use:   "incomplete",
	Short: "List test cases that still need a successful run",
	Long: `List test cases that still need a successful run.

A test case is complete when the tracker already shows it Done or when
the local store holds a passing result for it. Everything else is listed
here, in tracker order.`,
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

		queue := workqueue.New(source, store)
		cases, err := queue.Incomplete(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(cases) == 0 {
			fmt.Printf("%s\n", gray("Nothing to do: every test case is complete."))
			return
		}

		yellow := color.New(color.FgYellow, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n\n", yellow(fmt.Sprintf("Incomplete Test Cases (%d)", len(cases))))
		for _, tc := range cases {
			fmt.Printf("  %s %s  %s %s\n", yellow("○"), tc.Key, tc.Title, gray("("+string(tc.Status)+")"))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(incompleteCmd)
}
