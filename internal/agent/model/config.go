package model

// ================ Config ================

// RouterModelConfig configures the model used for routing, direct answers and
// chat-history summarization.
type RouterModelConfig struct {
	Model       string  `envconfig:"ROUTER_MODEL" default:"gemini-2.0-flash"`
	MaxTokens   int     `envconfig:"ROUTER_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"ROUTER_TEMPERATURE" default:"0.1"`
}

// WorkerModelConfig configures the model shared by the sub-workflows
// (research synthesis, RAG analysis, chunk summaries, diagram loop).
type WorkerModelConfig struct {
	Model       string  `envconfig:"WORKER_MODEL" default:"gemini-2.0-flash"`
	MaxTokens   int     `envconfig:"WORKER_MAX_TOKENS" default:"4000"`
	Temperature float32 `envconfig:"WORKER_TEMPERATURE" default:"0.4"`
}

// ConversationConfig controls history retention and pruning.
type ConversationConfig struct {
	TTL string `envconfig:"CONVERSATION_TTL" default:"72h"`

	// SummaryThreshold is the message count above which a completed exchange
	// triggers history summarization.
	SummaryThreshold int `envconfig:"CONVERSATION_SUMMARY_THRESHOLD" default:"10"`

	// KeepLast is how many of the newest messages survive pruning verbatim.
	KeepLast int `envconfig:"CONVERSATION_KEEP_LAST" default:"2"`
}

// SearchConfig configures the external search collaborators.
type SearchConfig struct {
	TavilyAPIKey  string `envconfig:"TAVILY_API_KEY"`
	TavilyBaseURL string `envconfig:"TAVILY_BASE_URL" default:"https://api.tavily.com"`
	MaxResults    int    `envconfig:"SEARCH_MAX_RESULTS" default:"5"`
	WikiMaxDocs   int    `envconfig:"SEARCH_WIKI_MAX_DOCS" default:"2"`
}

// RetrievalConfig configures the vector store collaborator.
type RetrievalConfig struct {
	QdrantBaseURL  string `envconfig:"QDRANT_BASE_URL" default:"http://localhost:6333"`
	QdrantAPIKey   string `envconfig:"QDRANT_API_KEY"`
	Collection     string `envconfig:"QDRANT_COLLECTION" default:"rag_documents"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	TopK           int    `envconfig:"RETRIEVAL_TOP_K" default:"4"`
}

// StorageConfig names the local directories collaborators read and write.
type StorageConfig struct {
	DocsDir     string `envconfig:"DOCS_DIR" default:"data/test_docs"`
	DiagramsDir string `envconfig:"DIAGRAMS_DIR" default:"data/diagrams"`
}

// DiagramConfig bounds the diagram tool loop.
type DiagramConfig struct {
	MaxSteps int `envconfig:"DIAGRAM_MAX_STEPS" default:"6"`
}
