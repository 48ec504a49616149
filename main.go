package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/convoflow-poc/server/internal/agent/gateway"
	"github.com/convoflow-poc/server/internal/agent/graph"
	"github.com/convoflow-poc/server/internal/agent/graph/diagram"
	"github.com/convoflow-poc/server/internal/agent/graph/docsum"
	"github.com/convoflow-poc/server/internal/agent/graph/rag"
	"github.com/convoflow-poc/server/internal/agent/graph/research"
	"github.com/convoflow-poc/server/internal/agent/model"
	"github.com/convoflow-poc/server/internal/agent/repo"
	"github.com/convoflow-poc/server/internal/core"
	"github.com/convoflow-poc/server/internal/files"
	"github.com/convoflow-poc/server/internal/retrieval"
	"github.com/convoflow-poc/server/internal/search"
	logx "github.com/convoflow-poc/server/pkg/logger"
	pkgredis "github.com/convoflow-poc/server/pkg/redis"
	"github.com/convoflow-poc/server/pkg/tokenizer"
)

// AppConfig defines all configurable parameters for the agent example,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Router       model.RouterModelConfig
	Worker       model.WorkerModelConfig
	Conversation model.ConversationConfig
	Search       model.SearchConfig
	Retrieval    model.RetrievalConfig
	Storage      model.StorageConfig
	Diagram      model.DiagramConfig
}

func main() {
	fmt.Println("Starting conversation orchestrator example...")
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(os.Getenv("APP_ENV"))})

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	fmt.Println("Connected to Redis successfully")

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		log.Fatalf("Invalid CONVERSATION_TTL '%s': %v", envCfg.Conversation.TTL, err)
	}
	store := repo.NewRedisCheckpointStore(rdb, ttl)

	client, err := gateway.NewClient(ctx, envCfg.APIKey, envCfg.BaseURL)
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}

	routerGW, err := gateway.NewGemini(ctx, gateway.GeminiConfig{
		Client:      client,
		Model:       envCfg.Router.Model,
		Temperature: envCfg.Router.Temperature,
		MaxTokens:   envCfg.Router.MaxTokens,
	})
	if err != nil {
		log.Fatalf("Failed to create router gateway: %v", err)
	}

	workerCfg := gateway.GeminiConfig{
		Client:      client,
		Model:       envCfg.Worker.Model,
		Temperature: envCfg.Worker.Temperature,
		MaxTokens:   envCfg.Worker.MaxTokens,
	}
	workerGW, err := gateway.NewGemini(ctx, workerCfg)
	if err != nil {
		log.Fatalf("Failed to create worker gateway: %v", err)
	}

	// Collaborators
	embedder := retrieval.NewGeminiEmbedder(client, envCfg.Retrieval.EmbeddingModel)
	retriever := retrieval.NewQdrantRetriever(envCfg.Retrieval, embedder)
	reader := files.NewReader(envCfg.Storage.DocsDir)

	// Sub-workflows
	researchWf, err := research.Build(ctx, research.Config{
		Gateway:     workerGW,
		Web:         search.NewTavilyClient(envCfg.Search.TavilyAPIKey, envCfg.Search.TavilyBaseURL, envCfg.Search.MaxResults),
		Wiki:        search.NewWikipediaClient(""),
		WikiMaxDocs: envCfg.Search.WikiMaxDocs,
	})
	if err != nil {
		log.Fatalf("Failed to build research workflow: %v", err)
	}

	ragWf, err := rag.Build(ctx, rag.Config{
		Gateway:   workerGW,
		Retriever: retriever,
		Reader:    reader,
		TopK:      envCfg.Retrieval.TopK,
	})
	if err != nil {
		log.Fatalf("Failed to build RAG workflow: %v", err)
	}

	docsumWf, err := docsum.Build(ctx, docsum.Config{
		Gateway: workerGW,
		Chunker: tokenizer.New("cl100k_base"),
		Reader:  reader,
	})
	if err != nil {
		log.Fatalf("Failed to build summarization workflow: %v", err)
	}

	diagramTools := diagram.Tools(envCfg.Storage.DiagramsDir)
	toolInfos, err := diagram.ToolInfos(ctx, diagramTools)
	if err != nil {
		log.Fatalf("Failed to collect diagram tool infos: %v", err)
	}
	toolModel, err := gateway.NewGeminiToolModel(ctx, workerCfg, toolInfos)
	if err != nil {
		log.Fatalf("Failed to create diagram tool model: %v", err)
	}
	analyzer, err := diagram.NewAnalyzer(diagram.Config{
		Model:    toolModel,
		Gateway:  workerGW,
		Tools:    diagramTools,
		MaxSteps: envCfg.Diagram.MaxSteps,
	})
	if err != nil {
		log.Fatalf("Failed to build diagram analyzer: %v", err)
	}

	orch, err := graph.Build(ctx, graph.Config{
		Gateway:      routerGW,
		Store:        store,
		Research:     researchWf,
		RAG:          ragWf,
		Summarizer:   docsumWf,
		Diagram:      analyzer,
		Conversation: envCfg.Conversation,
	})
	if err != nil {
		log.Fatalf("Failed to build orchestrator: %v", err)
	}

	testTurns := []struct {
		description string
		text        string
	}{
		{
			description: "Simple greeting handled directly",
			text:        "Hi! What can you help me with?",
		},
		{
			description: "Current-events question routed to research",
			text:        "What are the latest developments in battery storage technology?",
		},
		{
			description: "Document ingestion routed to RAG",
			text:        "Please load sample_report.txt so I can ask about it",
		},
		{
			description: "Follow-up question answered from the document",
			text:        "According to the document, what were the main findings?",
		},
		{
			description: "Diagram request",
			text:        "Create a flowchart of the process described in the document",
		},
	}

	threadID := uuid.NewString()
	fmt.Printf("Thread: %s\n", threadID)

	for i, turn := range testTurns {
		fmt.Printf("\n🚀 Turn %d: %s\n", i+1, turn.description)
		fmt.Printf("User: %q\n", turn.text)
		fmt.Println("Processing...")

		conv, err := orch.HandleTurn(ctx, threadID, turn.text)
		if err != nil {
			log.Fatalf("Failed to handle turn %d: %v", i+1, err)
		}

		reply := ""
		if last := conv.LastMessage(); last != nil {
			reply = last.Content
		}
		fmt.Printf("✅ Reply %d: %s\n", i+1, reply)
		fmt.Println("─────────────────────────────────────────────")

		// add slight delay between turns for readability
		time.Sleep(500 * time.Millisecond)
	}

	fmt.Println("🎉 All turns completed successfully!")
}
