package tracker

import (
	"testing"
)

// TestParseStepsWikiTable verifies the Jira wiki-markup table format:
// a || header row followed by | data rows
func TestParseStepsWikiTable(t *testing.T) {
	description := "Preconditions: user account exists.\n" +
		"||Test||Test Step||Expected Output||\n" +
		"|TC1|Open the login page|Login form is displayed|\n" +
		"|TC1|Enter valid credentials|Dashboard loads|\n"

	steps := ParseSteps(description)
	if len(steps) != 2 {
		t.Fatalf("Expected 2 steps, got %d: %+v", len(steps), steps)
	}
	if steps[0].Description != "Open the login page" {
		t.Errorf("First step description wrong: %q", steps[0].Description)
	}
	if steps[0].Expected != "Login form is displayed" {
		t.Errorf("First step expected output wrong: %q", steps[0].Expected)
	}
	if steps[1].Description != "Enter valid credentials" || steps[1].Expected != "Dashboard loads" {
		t.Errorf("Second step parsed wrong: %+v", steps[1])
	}
}

// TestParseStepsWikiTwoColumns verifies rows without the leading test-label
// column still map to (step, expected)
func TestParseStepsWikiTwoColumns(t *testing.T) {
	description := "||Step||Expected||\n" +
		"|Click checkout|Payment form appears|\n"

	steps := ParseSteps(description)
	if len(steps) != 1 {
		t.Fatalf("Expected 1 step, got %d", len(steps))
	}
	if steps[0].Description != "Click checkout" || steps[0].Expected != "Payment form appears" {
		t.Errorf("Two-column row parsed wrong: %+v", steps[0])
	}
}

// TestParseStepsRowsBeforeHeaderIgnored verifies data rows only count once
// a header row has been seen
func TestParseStepsRowsBeforeHeaderIgnored(t *testing.T) {
	description := "|stray|row|here|\n" +
		"||Test||Step||Expected||\n" +
		"|TC1|Do the thing|Thing happens|\n"

	steps := ParseSteps(description)
	if len(steps) != 1 {
		t.Fatalf("Expected 1 step, got %d: %+v", len(steps), steps)
	}
	if steps[0].Description != "Do the thing" {
		t.Errorf("Wrong step survived: %+v", steps[0])
	}
}

// TestParseStepsHTMLTable verifies the HTML fallback, including skipping
// the header row
func TestParseStepsHTMLTable(t *testing.T) {
	description := `<table><tbody>
<tr><td>Test</td><td>Step</td><td>Expected</td></tr>
<tr><td>TC1</td><td>Open the cart</td><td>Cart page loads</td></tr>
<tr><td>TC1</td><td>Remove one item</td><td>Item disappears</td></tr>
</tbody></table>`

	steps := ParseSteps(description)
	if len(steps) != 2 {
		t.Fatalf("Expected 2 steps, got %d: %+v", len(steps), steps)
	}
	if steps[0].Description != "Open the cart" || steps[0].Expected != "Cart page loads" {
		t.Errorf("First HTML step parsed wrong: %+v", steps[0])
	}
	if steps[1].Description != "Remove one item" {
		t.Errorf("Second HTML step parsed wrong: %+v", steps[1])
	}
}

// TestParseStepsNoTable verifies plain prose yields no steps
func TestParseStepsNoTable(t *testing.T) {
	if steps := ParseSteps("Just a description with no table at all."); len(steps) != 0 {
		t.Errorf("Expected no steps, got %+v", steps)
	}
	if steps := ParseSteps(""); len(steps) != 0 {
		t.Errorf("Expected no steps for empty description, got %+v", steps)
	}
}

// TestParseStepsSkipsUnusableRows verifies one-cell rows and rows with an
// empty step cell are dropped rather than half-parsed
func TestParseStepsSkipsUnusableRows(t *testing.T) {
	description := "||Test||Step||Expected||\n" +
		"|only-one-cell|\n" +
		"|TC1|Real step|Real outcome|\n"

	steps := ParseSteps(description)
	if len(steps) != 1 {
		t.Fatalf("Expected 1 step, got %d: %+v", len(steps), steps)
	}
	if steps[0].Description != "Real step" {
		t.Errorf("Wrong row survived: %+v", steps[0])
	}

	html := `<table><tr><td>h</td><td>h</td><td>h</td></tr><tr><td>TC1</td><td></td><td>outcome</td></tr></table>`
	if steps := ParseSteps(html); len(steps) != 0 {
		t.Errorf("Expected empty-step HTML row to be dropped, got %+v", steps)
	}
}
