package prompts

import (
	_ "embed"
)

//go:embed template/diagram_analyzer_prompt.txt
var diagramAnalyzerPrompt string

//go:embed template/diagram_output_prompt.txt
var diagramOutputPrompt string

// DiagramAnalyzer returns the static Mermaid.js tool-use system prompt.
func DiagramAnalyzer() string {
	return diagramAnalyzerPrompt
}

// DiagramOutput returns the structured artifact extraction prompt.
func DiagramOutput() string {
	return diagramOutputPrompt
}
