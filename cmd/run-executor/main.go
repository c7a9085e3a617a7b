package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/damsaniajay/qaflow/internal/ai"
	"github.com/damsaniajay/qaflow/internal/config"
	"github.com/damsaniajay/qaflow/internal/executor"
	"github.com/damsaniajay/qaflow/internal/logger"
	"github.com/damsaniajay/qaflow/internal/results"
	"github.com/damsaniajay/qaflow/internal/tracker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.New(logger.ParseLevel(cfg.Logging.Level))
	slog.SetDefault(logg)

	// Connect to the tracker
	source, err := tracker.NewJiraClient(tracker.JiraConfig{
		BaseURL:           cfg.Jira.URL,
		User:              cfg.Jira.User,
		Token:             cfg.Jira.Token,
		Project:           cfg.Jira.Project,
		RequestsPerSecond: cfg.Jira.RequestsPerSecond,
	})
	if err != nil {
		log.Fatalf("Failed to create Jira client: %v", err)
	}

	// Open the result store
	store, err := results.Open(&results.Config{
		Path:   cfg.Results.File,
		DBPath: cfg.Results.DBPath,
	})
	if err != nil {
		log.Fatalf("Failed to open result store: %v", err)
	}
	defer store.Close()

	// Create the AI operator
	operator, err := ai.NewOperator(&ai.Config{
		APIKey: cfg.AI.APIKey,
		Model:  cfg.AI.Model,
	})
	if err != nil {
		log.Fatalf("Failed to create AI operator: %v", err)
	}

	exec, err := executor.New(&executor.Config{
		Source:       source,
		Store:        store,
		Runner:       operator,
		LogsDir:      cfg.Results.LogsDir,
		PollInterval: cfg.Executor.Interval(),
		Logger:       logg,
	})
	if err != nil {
		log.Fatalf("Failed to create executor: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Executor running with model %s. Press Ctrl+C to stop.\n", operator.Model())

	if err := exec.Run(ctx); err != nil {
		log.Fatalf("Executor failed: %v", err)
	}

	usage := operator.Usage()
	fmt.Printf("Executor stopped. API usage: %d call(s), %d token(s).\n",
		usage.Calls, usage.TotalTokens())
}
