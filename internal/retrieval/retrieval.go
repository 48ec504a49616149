// Package retrieval defines the vector store collaborator contract the RAG
// sub-workflow consumes.
package retrieval

import "context"

// ContextEntry is one ranked retrieval hit. Score is normalised to [0,1].
type ContextEntry struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
	Source   string         `json:"source"`
}

// IngestResult reports the outcome of a document ingestion. Failures come back
// as a populated Error with Status "error", never as a raised error.
type IngestResult struct {
	Status    string         `json:"status"`
	NumChunks int            `json:"num_chunks"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Retriever is the vector store boundary.
type Retriever interface {
	// Ingest chunks, embeds and indexes a document.
	Ingest(ctx context.Context, content string, metadata map[string]any) (*IngestResult, error)

	// Query returns up to k entries ranked by relevance.
	Query(ctx context.Context, text string, k int) ([]ContextEntry, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
