package prompts

import (
	_ "embed"
	"strings"
)

//go:embed template/document_processing_prompt.txt
var documentProcessingPrompt string

//go:embed template/query_optimization_prompt.txt
var queryOptimizationPrompt string

//go:embed template/context_analysis_prompt.txt
var contextAnalysisPrompt string

//go:embed template/answer_generation_prompt.txt
var answerGenerationPrompt string

// RenderDocumentProcessing renders the ingestion intent classifier prompt.
func RenderDocumentProcessing(message string) string {
	return strings.NewReplacer(
		"{message}", message,
	).Replace(documentProcessingPrompt)
}

// RenderQueryOptimization renders the vector search query rewrite prompt.
func RenderQueryOptimization(conversationContext string) string {
	return strings.NewReplacer(
		"{context}", conversationContext,
	).Replace(queryOptimizationPrompt)
}

// RenderContextAnalysis renders the retrieved context relevance prompt.
func RenderContextAnalysis(query, retrievedContext string) string {
	return strings.NewReplacer(
		"{query}", query,
		"{context}", retrievedContext,
	).Replace(contextAnalysisPrompt)
}

// RenderAnswerGeneration renders the grounded answer prompt.
func RenderAnswerGeneration(query, analysis string) string {
	return strings.NewReplacer(
		"{query}", query,
		"{analysis}", analysis,
	).Replace(answerGenerationPrompt)
}
