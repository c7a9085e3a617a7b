package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/damsaniajay/qaflow/internal/ai"
	"github.com/damsaniajay/qaflow/internal/config"
	"github.com/damsaniajay/qaflow/internal/logger"
	"github.com/damsaniajay/qaflow/internal/results"
	"github.com/damsaniajay/qaflow/internal/tracker"
	"github.com/damsaniajay/qaflow/internal/types"
)

var (
	cfgFile  string
	demoMode bool

	cfg  *config.Config
	logg *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "qaflow",
	Short: "AI-driven execution for tracker test cases",
	Long: `qaflow connects an issue tracker holding manual test cases to an AI
operator that executes them.

Test cases live in the tracker as issues with numbered steps and
"depends on" links. qaflow resolves each case's dependency chain into an
ordered execution prompt, hands it to the AI operator, records step
results locally, and moves passing cases to Done in the tracker.

Common workflows:

  See what still needs a successful run:
    qaflow incomplete

  Print the execution prompt for one case:
    qaflow prompt QA-12

  Execute one case through the AI operator:
    qaflow run QA-12

  Serve the HTTP API for external operators:
    qaflow serve

Configuration comes from qaflow.yaml (or ~/.qaflow.yaml) plus
environment variables; 'qaflow status' shows the resolved settings.
With --demo every command runs against a built-in in-memory test set
instead of Jira.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgFile != "" {
			if _, statErr := os.Stat(cfgFile); statErr != nil {
				return fmt.Errorf("config file %s: %w", cfgFile, statErr)
			}
			cfg, err = config.LoadFile(cfgFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}

		logg = logger.New(logger.ParseLevel(cfg.Logging.Level))
		slog.SetDefault(logg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default qaflow.yaml, then ~/.qaflow.yaml)")
	rootCmd.PersistentFlags().BoolVar(&demoMode, "demo", false, "use a built-in demo test set instead of Jira")
}

// newSource connects to the configured tracker, or returns the built-in
// demo set when --demo is given.
func newSource() (tracker.Source, error) {
	if demoMode {
		return demoSource(), nil
	}
	return tracker.NewJiraClient(tracker.JiraConfig{
		BaseURL:           cfg.Jira.URL,
		User:              cfg.Jira.User,
		Token:             cfg.Jira.Token,
		Project:           cfg.Jira.Project,
		RequestsPerSecond: cfg.Jira.RequestsPerSecond,
	})
}

func newStore() (results.Store, error) {
	return results.Open(&results.Config{
		Path:   cfg.Results.File,
		DBPath: cfg.Results.DBPath,
	})
}

func newOperator() (*ai.Operator, error) {
	return ai.NewOperator(&ai.Config{
		APIKey: cfg.AI.APIKey,
		Model:  cfg.AI.Model,
	})
}

// demoSource returns an in-memory tracker with a small linked test set,
// handy for trying qaflow without Jira credentials.
func demoSource() tracker.Source {
	source := tracker.NewMemorySource()
	source.Add(types.TestCase{
		Key:    "QA-1",
		Title:  "User can log in",
		Status: types.StatusToDo,
		Steps: []types.TestStep{
			{Description: "Open the login page", Expected: "Login form is shown"},
			{Description: "Sign in as demo@example.com", Expected: "Dashboard loads"},
		},
	})
	source.Add(types.TestCase{
		Key:          "QA-2",
		Title:        "User can add an item to the cart",
		Status:       types.StatusToDo,
		Dependencies: []string{"QA-1"},
		Steps: []types.TestStep{
			{Description: "Open the catalog page"},
			{Description: "Add the first item to the cart", Expected: "Cart badge shows 1"},
		},
	})
	source.Add(types.TestCase{
		Key:          "QA-3",
		Title:        "User can check out",
		Status:       types.StatusToDo,
		Dependencies: []string{"QA-2"},
		Steps: []types.TestStep{
			{Description: "Open the cart and start checkout"},
			{Description: "Pay with the test card", Expected: "Order confirmation appears"},
		},
	})
	return source
}
