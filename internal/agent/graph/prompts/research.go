package prompts

import (
	_ "embed"
	"strings"
)

//go:embed template/query_extraction_prompt.txt
var queryExtractionPrompt string

//go:embed template/research_synthesis_prompt.txt
var researchSynthesisPrompt string

// RenderQueryExtraction renders the search query extraction prompt.
func RenderQueryExtraction(conversationContext string) string {
	return strings.NewReplacer(
		"{context}", conversationContext,
	).Replace(queryExtractionPrompt)
}

// ResearchSynthesis returns the static multi-source synthesis prompt.
func ResearchSynthesis() string {
	return researchSynthesisPrompt
}
