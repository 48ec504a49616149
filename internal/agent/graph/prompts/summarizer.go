package prompts

import (
	_ "embed"
	"strings"
)

//go:embed template/chunk_summary_prompt.txt
var chunkSummaryPrompt string

//go:embed template/final_summary_prompt.txt
var finalSummaryPrompt string

//go:embed template/chunk_size_prompt.txt
var chunkSizePrompt string

// RenderChunkSummary renders the per-chunk summarization prompt.
func RenderChunkSummary(chunk string) string {
	return strings.NewReplacer(
		"{chunk}", chunk,
	).Replace(chunkSummaryPrompt)
}

// RenderFinalSummary renders the chunk summary combination prompt.
func RenderFinalSummary(chunkSummaries []string) string {
	return strings.NewReplacer(
		"{chunk_summaries}", strings.Join(chunkSummaries, "\n\n"),
	).Replace(finalSummaryPrompt)
}

// RenderChunkSize renders the adaptive chunk sizing prompt.
func RenderChunkSize(documentPreview, metadata string) string {
	return strings.NewReplacer(
		"{document_preview}", documentPreview,
		"{metadata}", metadata,
	).Replace(chunkSizePrompt)
}
