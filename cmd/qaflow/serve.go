package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/damsaniajay/qaflow/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the qaflow HTTP API",
	Long: `Serve the HTTP API used by external test operators.

Endpoints:
  GET  /healthz            Liveness probe
  GET  /incomplete-tests   Test cases that still need a successful run
  POST /get-test-prompt    Dependency-ordered execution prompt for one case
  POST /send-test-results  Record step results and update the tracker

The listen address comes from server.addr in the config file or
QAFLOW_ADDR (default :8000). The server stops cleanly on SIGINT and
SIGTERM.`,
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

		handlers, err := server.NewHandlers(source, store, cfg.Results.LogsDir, logg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		srv := server.New(cfg.Server.Addr, handlers, logg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
