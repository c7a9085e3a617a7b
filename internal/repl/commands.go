package repl

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/damsaniajay/qaflow/internal/types"
)

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"list", "List test cases and their completion state"},
		{"show KEY", "Show one test case with steps and stored result"},
		{"prompt KEY", "Print the generated execution prompt for KEY"},
		{"run KEY", "Execute KEY through the AI operator and record the outcome"},
		{"help, ?", "Show this help message"},
		{"exit, quit", "Exit the shell"},
	}

	for _, cmd := range commands {
		fmt.Fprintf(r.out, "  %s\n      %s\n", green(cmd.name), cmd.desc)
	}
	fmt.Fprintln(r.out)

	return nil
}

// cmdList lists all test cases with their completion state
func (r *REPL) cmdList(args []string) error {
	cases, err := r.source.ListTestCases(r.ctx, "")
	if err != nil {
		return fmt.Errorf("listing test cases: %w", err)
	}
	if len(cases) == 0 {
		fmt.Fprintln(r.out, "No test cases found.")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintln(r.out)
	for _, tc := range cases {
		stored, err := r.store.GetResult(r.ctx, tc.Key)
		if err != nil {
			return fmt.Errorf("reading stored result for %s: %w", tc.Key, err)
		}

		icon := gray("○")
		note := string(tc.Status)
		switch {
		case tc.Status == types.StatusDone:
			icon = green("●")
		case stored != nil && stored.Passed():
			icon = green("●")
			note += ", passed locally"
		case stored != nil:
			icon = yellow("⚠")
			note += ", failed locally"
		default:
			icon = yellow("○")
		}

		fmt.Fprintf(r.out, "  %s %s  %s %s\n", icon, tc.Key, tc.Title, gray("("+note+")"))
	}
	fmt.Fprintln(r.out)

	return nil
}

// cmdShow shows one test case in detail
func (r *REPL) cmdShow(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: show KEY")
	}

	tc, err := r.source.GetTestCase(r.ctx, args[0])
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(r.out, "\n%s\n", cyan(fmt.Sprintf("%s - %s", tc.Key, tc.Title)))
	fmt.Fprintf(r.out, "  Status: %s\n", tc.Status)
	if len(tc.Dependencies) > 0 {
		fmt.Fprintf(r.out, "  Depends on: %s\n", strings.Join(tc.Dependencies, ", "))
	}

	if len(tc.Steps) == 0 {
		fmt.Fprintf(r.out, "  %s\n", gray("No steps declared"))
	}
	for i, step := range tc.Steps {
		fmt.Fprintf(r.out, "  %d. %s\n", i+1, step.Description)
		if step.Expected != "" {
			fmt.Fprintf(r.out, "     Expected: %s\n", step.Expected)
		}
	}

	stored, err := r.store.GetResult(r.ctx, tc.Key)
	if err != nil {
		return fmt.Errorf("reading stored result: %w", err)
	}
	if stored == nil {
		fmt.Fprintf(r.out, "\n  %s\n\n", gray("No recorded result"))
		return nil
	}

	verdict := color.New(color.FgRed).SprintFunc()(string(stored.OverallResult))
	if stored.Passed() {
		verdict = color.New(color.FgGreen).SprintFunc()(string(stored.OverallResult))
	}
	fmt.Fprintf(r.out, "\n  Last result: %s (%s)\n", verdict, stored.RecordedAt.Format("2006-01-02 15:04:05"))
	for _, sr := range stored.Results {
		fmt.Fprintf(r.out, "    [%s] %s: %s\n", sr.Result, sr.TestStep, sr.LogOrError)
	}
	fmt.Fprintln(r.out)

	return nil
}

// cmdPrompt prints the generated execution prompt for a test case
func (r *REPL) cmdPrompt(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: prompt KEY")
	}

	sequence, err := r.resolver.Resolve(r.ctx, args[0])
	if err != nil {
		return err
	}

	text, err := r.generator.Generate(sequence)
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "\n%s\n", text)
	return nil
}

// cmdRun executes one test case through the AI operator
func (r *REPL) cmdRun(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: run KEY")
	}
	if r.executor == nil {
		return fmt.Errorf("AI operator not configured (set ANTHROPIC_API_KEY)")
	}

	fmt.Fprintf(r.out, "Running %s through the AI operator...\n", args[0])

	result, err := r.executor.ExecuteOne(r.ctx, args[0])
	if err != nil {
		return err
	}

	verdict := color.New(color.FgRed).SprintFunc()(string(result.OverallResult))
	if result.Passed() {
		verdict = color.New(color.FgGreen).SprintFunc()(string(result.OverallResult))
	}
	fmt.Fprintf(r.out, "\n%s %s\n", result.TestCaseKey, verdict)
	for _, sr := range result.Results {
		fmt.Fprintf(r.out, "  [%s] %s\n", sr.Result, sr.TestStep)
	}

	incomplete, err := r.queue.Incomplete(r.ctx)
	if err != nil {
		return fmt.Errorf("computing incomplete tests: %w", err)
	}
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", gray(fmt.Sprintf("%d test case(s) still incomplete", len(incomplete))))

	return nil
}
