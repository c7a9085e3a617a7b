package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/damsaniajay/qaflow/internal/prompt"
	"github.com/damsaniajay/qaflow/internal/resolver"
)

var promptCmd = &cobra.Command{
	Use:   "prompt <test-case-key>",
	Short: "Print the execution prompt for a test case",
	Long: `Print the dependency-ordered execution prompt for one test case.

The prompt lists every transitive dependency as a setup section in
execution order, then the target case itself, and ends with reporting
instructions for the AI operator. Output goes to stdout uncolored so it
can be piped into other tools.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source, err := newSource()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		sequence, err := resolver.New(source).Resolve(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		generator, err := prompt.NewGenerator()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		text, err := generator.Generate(sequence)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(text)
	},
}

func init() {
	rootCmd.AddCommand(promptCmd)
}
