package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"

	"github.com/damsaniajay/qaflow/internal/types"
)

// ErrEmptySequence is returned when Generate is handed zero test cases.
// That is a resolver bug or caller misuse, never a user-facing condition.
var ErrEmptySequence = errors.New("resolved sequence is empty")

// Generator renders a resolved test-case sequence into the instruction
// document handed to the AI test operator. Dependency cases render first
// as setup/context, the resolution target renders last as the test to
// execute. Output is deterministic: no clock, no randomness, the same
// sequence always renders byte-identical text.
type Generator struct {
	template *template.Template
}

// promptTemplate defines the operator instruction document. The response
// contract at the bottom is what ParseStepResults on the other side
// expects back: a bare JSON array of step result objects.
const promptTemplate = `You are an AI test operator. Execute the test case below by performing each step in order.

If any intermediate UI state, confirmation, or popup appears, handle it automatically without asking for input.

After executing all steps, return only a JSON array with one object per performed step:
- test_step: the action performed (no markdown formatting such as ** in this value)
- log_or_error: success message or error detail
- result: "Pass" or "Fail"
- timestamp: completion time in ISO 8601 format

{{if .Setup -}}
# SETUP / CONTEXT

The steps below come from dependency test cases. They establish the state the
target test relies on, so perform them first, in the order given.

{{range .Setup -}}
## Setup: {{.Key}} - {{.Title}}

{{if .Steps -}}
Steps:
{{range $i, $step := .Steps -}}
{{inc $i}}. **{{$step.Description}}**
   Expected Result: {{expectedOr $step.Expected}}
{{end}}
{{else -}}
(no test steps declared)

{{end -}}
{{end -}}
{{end -}}
# TEST TO EXECUTE

## {{.Target.Key}} - {{.Target.Title}}

{{if .Target.Steps -}}
Steps:
{{range $i, $step := .Target.Steps -}}
{{inc $i}}. **{{$step.Description}}**
   Expected Result: {{expectedOr $step.Expected}}
{{end}}
{{else -}}
(no test steps declared)

{{end -}}
IMPORTANT FORMATTING INSTRUCTIONS:
1. Return ONLY the final JSON array with no other text
2. Do NOT include markdown formatting like ** in your JSON values
3. Ensure all JSON values are properly escaped
4. Report one object per executed step, in execution order
5. Example format:
[
  {
    "test_step": "Launch browser and go to https://example.com",
    "log_or_error": "Homepage loaded successfully",
    "result": "Pass",
    "timestamp": "2023-05-01T10:15:00Z"
  }
]`

// NewGenerator creates a Generator with the default template
func NewGenerator() (*Generator, error) {
	tmpl := template.New("prompt").Funcs(template.FuncMap{
		"inc":        inc,
		"expectedOr": expectedOr,
	})

	tmpl, err := tmpl.Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	return &Generator{template: tmpl}, nil
}

// Generate renders the sequence. It is a pure function over the in-memory
// sequence: no data-source calls, and no case or step is ever dropped or
// reordered.
func (g *Generator) Generate(seq types.ResolvedSequence) (string, error) {
	if len(seq) == 0 {
		return "", ErrEmptySequence
	}

	data := struct {
		Setup  []types.TestCase
		Target types.TestCase
	}{
		Setup:  seq[:len(seq)-1],
		Target: seq[len(seq)-1],
	}

	var buf bytes.Buffer
	if err := g.template.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// inc converts a zero-based range index to one-based step numbering
func inc(i int) int {
	return i + 1
}

// expectedOr substitutes the placeholder the operator sees when a step
// declares no expected outcome
func expectedOr(expected string) string {
	if expected == "" {
		return "No expected result provided"
	}
	return expected
}
