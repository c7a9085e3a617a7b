package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/damsaniajay/qaflow/internal/executor"
	"github.com/damsaniajay/qaflow/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive qaflow shell",
	Long: `Start an interactive shell for browsing and executing test cases.

The shell provides:
- list: test cases and their completion state
- show KEY: one case with steps and stored result
- prompt KEY: the generated execution prompt
- run KEY: execute through the AI operator and record the outcome

Type 'help' in the shell for available commands.`,
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

		// The run command needs the AI operator; without an API key the
		// shell still works for browsing.
		var exec *executor.Executor
		if operator, opErr := newOperator(); opErr == nil {
			exec, err = executor.New(&executor.Config{
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
		}

		r, err := repl.New(&repl.Config{
			Source:   source,
			Store:    store,
			Executor: exec,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create shell: %v\n", err)
			os.Exit(1)
		}

		if err := r.Run(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
