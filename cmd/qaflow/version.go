package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the qaflow version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("qaflow %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
