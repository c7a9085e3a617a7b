package tracker

import (
	"regexp"
	"strings"

	"github.com/damsaniajay/qaflow/internal/types"
)

var (
	htmlRowRe  = regexp.MustCompile(`(?s)<tr>(.*?)</tr>`)
	htmlCellRe = regexp.MustCompile(`(?s)<td>(.*?)</td>`)
)

// ParseSteps extracts test steps from a tracker description field. Step
// tables arrive in two shapes: Jira wiki markup (a ||-delimited header row
// followed by |-delimited data rows) or a plain HTML table. Three-cell rows
// carry (test label, step, expected outcome); two-cell rows carry
// (step, expected outcome). A description without a recognizable table
// yields no steps.
func ParseSteps(description string) []types.TestStep {
	if strings.Contains(description, "||") {
		return parseWikiTable(description)
	}
	if strings.Contains(description, "<table>") || strings.Contains(description, "<tbody>") {
		return parseHTMLTable(description)
	}
	return nil
}

func parseWikiTable(description string) []types.TestStep {
	var steps []types.TestStep
	headerSeen := false
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "||") {
			headerSeen = true
			continue
		}
		if !headerSeen || !strings.HasPrefix(line, "|") {
			continue
		}
		var cells []string
		for _, cell := range strings.Split(line, "|") {
			if trimmed := strings.TrimSpace(cell); trimmed != "" {
				cells = append(cells, trimmed)
			}
		}
		if step, ok := stepFromCells(cells); ok {
			steps = append(steps, step)
		}
	}
	return steps
}

func parseHTMLTable(description string) []types.TestStep {
	var steps []types.TestStep
	for i, row := range htmlRowRe.FindAllStringSubmatch(description, -1) {
		if i == 0 {
			// header row
			continue
		}
		var cells []string
		for _, cell := range htmlCellRe.FindAllStringSubmatch(row[1], -1) {
			cells = append(cells, strings.TrimSpace(cell[1]))
		}
		if step, ok := stepFromCells(cells); ok {
			steps = append(steps, step)
		}
	}
	return steps
}

// stepFromCells maps a table row to a step. The first cell of a three-cell
// row is the tracker's test-label column and is not carried: the prompt
// only ever uses the step text and its expected outcome.
func stepFromCells(cells []string) (types.TestStep, bool) {
	var step types.TestStep
	switch {
	case len(cells) >= 3:
		step = types.TestStep{Description: cells[1], Expected: cells[2]}
	case len(cells) == 2:
		step = types.TestStep{Description: cells[0], Expected: cells[1]}
	default:
		return types.TestStep{}, false
	}
	if step.Description == "" {
		return types.TestStep{}, false
	}
	return step, true
}
