package prompt

import (
	"fmt"

	"github.com/sokinpui/gfix/model"
)

const fixTemplate = `Given the following code, provide the fully corrected version.
- Keep the original structure.
- Do not return partial code, return the full corrected version.
- Format the output within triple backticks for easy extraction.
%s`

const explainTemplate = `Analyze the given code and explain the errors.
- Clearly state the issues.
- Provide a solution.
- Finally, return the fully corrected code in triple backticks so it can be applied directly.
Code:
%s`

const optimizeTemplate = `Analyze the following code and check if it's optimized.
If it's already optimized, return: "Code is already optimized."
Otherwise, provide an optimized version of the code and explain why it's better.

Code:
%s`

const debugTemplate = `Analyze the following code and generate:
- An ASCII art representation of the flow diagram.
- A list of potential edge cases to consider.
%s`

const testGenTemplate = "Generate simple unit test inputs for the given function.\n" +
	"Provide only test inputs like:\n" +
	"- For addition function: \"10 20\", \"50 60\", \"0 -1\", etc.\n" +
	"- For an array function: \"[1,2,3]\", \"[10,20,30]\", \"[-1,0,1]\"\n" +
	"- No explanations, only inputs in raw format.\n\n" +
	"**Code:**\n" +
	"```\n%s\n```"

const cicdTemplate = `Provide CI/CD integration steps for the following code:
%s`

var templates = map[model.Mode]string{
	model.Fix:      fixTemplate,
	model.Explain:  explainTemplate,
	model.Optimize: optimizeTemplate,
	model.Debug:    debugTemplate,
	model.TestGen:  testGenTemplate,
	model.CICD:     cicdTemplate,
}

// Build returns the prompt for mode with source embedded verbatim.
func Build(mode model.Mode, source string) (string, error) {
	tmpl, ok := templates[mode]
	if !ok {
		return "", fmt.Errorf("no prompt for mode %s", mode)
	}
	return fmt.Sprintf(tmpl, source), nil
}
