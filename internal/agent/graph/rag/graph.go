// Package rag implements the document sub-workflow: ingestion of referenced
// or inline documents, and retrieval-grounded question answering.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/convoflow-poc/server/internal/agent/gateway"
	"github.com/convoflow-poc/server/internal/agent/graph/prompts"
	"github.com/convoflow-poc/server/internal/agent/model"
	"github.com/convoflow-poc/server/internal/files"
	"github.com/convoflow-poc/server/internal/retrieval"
	logx "github.com/convoflow-poc/server/pkg/logger"
)

// Node names
const (
	NodeClassify        = "classify"
	NodeProcessDocument = "process_document"
	NodeOptimizeQuery   = "optimize_query"
	NodeRetrieve        = "retrieve"
	NodeAnalyzeContext  = "analyze_context"
	NodeAnswerQuery     = "answer_query"
)

const (
	noContextAnalysis = "No context to analyze"
	noAnalysisAnswer  = "No analysis to generate answer from"
	noDocumentError   = "No valid file or content found to process"
)

const processCheckPrompt = `Determine if this message is requesting to process or save the previous message/content into a database.
Return 'true' only if the message clearly indicates an intent to process, save, or store previous content.
Consider phrases like 'process this', 'save this', 'store this', etc.
Return 'false' otherwise.`

// DocumentReader resolves file references mentioned in messages.
type DocumentReader interface {
	Read(name string) (*files.Document, error)
}

// Config holds the collaborators the RAG workflow needs.
type Config struct {
	Gateway   gateway.Gateway
	Retriever retrieval.Retriever
	Reader    DocumentReader
	TopK      int
}

type classified struct {
	Conv    *model.Conversation
	Process bool
}

type ragQuery struct {
	Optimized string
	Original  string
}

type optimizedQuery struct {
	Query string `json:"query"`
}

type ragContext struct {
	Query   *ragQuery
	Entries []retrieval.ContextEntry
}

type ragAnalysis struct {
	Query    *ragQuery
	Analysis string
}

// Workflow is the compiled RAG sub-graph.
type Workflow struct {
	runnable compose.Runnable[*model.Conversation, *model.RAGResponse]
}

// Build constructs and compiles the RAG sub-graph.
func Build(ctx context.Context, cfg Config) (*Workflow, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("rag: gateway is nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("rag: retriever is nil")
	}
	if cfg.Reader == nil {
		return nil, fmt.Errorf("rag: document reader is nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}

	g := compose.NewGraph[*model.Conversation, *model.RAGResponse]()

	g.AddLambdaNode(NodeClassify, compose.InvokableLambda(newClassifyNode(cfg.Gateway)))
	g.AddLambdaNode(NodeProcessDocument, compose.InvokableLambda(newProcessDocumentNode(cfg)))
	g.AddLambdaNode(NodeOptimizeQuery, compose.InvokableLambda(newOptimizeQueryNode(cfg.Gateway)))
	g.AddLambdaNode(NodeRetrieve, compose.InvokableLambda(newRetrieveNode(cfg)))
	g.AddLambdaNode(NodeAnalyzeContext, compose.InvokableLambda(newAnalyzeContextNode(cfg.Gateway)))
	g.AddLambdaNode(NodeAnswerQuery, compose.InvokableLambda(newAnswerQueryNode(cfg.Gateway)))

	if err := g.AddEdge(compose.START, NodeClassify); err != nil {
		return nil, fmt.Errorf("rag: add start edge: %w", err)
	}

	dispatch := compose.NewGraphBranch(
		func(ctx context.Context, in *classified) (string, error) {
			if in.Process {
				return NodeProcessDocument, nil
			}
			return NodeOptimizeQuery, nil
		},
		map[string]bool{
			NodeProcessDocument: true,
			NodeOptimizeQuery:   true,
		},
	)
	if err := g.AddBranch(NodeClassify, dispatch); err != nil {
		return nil, fmt.Errorf("rag: add dispatch branch: %w", err)
	}

	edges := [][2]string{
		{NodeProcessDocument, compose.END},
		{NodeOptimizeQuery, NodeRetrieve},
		{NodeRetrieve, NodeAnalyzeContext},
		{NodeAnalyzeContext, NodeAnswerQuery},
		{NodeAnswerQuery, compose.END},
	}
	for _, edge := range edges {
		if err := g.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("rag: add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runnable, err := g.Compile(ctx, compose.WithMaxRunSteps(12))
	if err != nil {
		return nil, fmt.Errorf("rag: compile graph: %w", err)
	}
	return &Workflow{runnable: runnable}, nil
}

// Run executes the workflow for one turn.
func (w *Workflow) Run(ctx context.Context, conv *model.Conversation) (*model.RAGResponse, error) {
	return w.runnable.Invoke(ctx, conv)
}

// newClassifyNode decides whether the turn asks for document ingestion or a
// grounded answer.
func newClassifyNode(gw gateway.Gateway) func(context.Context, *model.Conversation) (*classified, error) {
	return func(ctx context.Context, conv *model.Conversation) (*classified, error) {
		out := &classified{Conv: conv}
		if conv == nil || len(conv.Messages) == 0 {
			return out, nil
		}

		msg, err := gw.Generate(ctx, []*schema.Message{
			schema.SystemMessage(prompts.RenderDocumentProcessing(conv.LastMessage().Content)),
		})
		if err != nil {
			return nil, err
		}
		out.Process = strings.EqualFold(strings.TrimSpace(msg.Content), "true")
		return out, nil
	}
}

func newProcessDocumentNode(cfg Config) func(context.Context, *classified) (*model.RAGResponse, error) {
	return func(ctx context.Context, in *classified) (*model.RAGResponse, error) {
		resp := &model.RAGResponse{Source: "process_document"}
		conv := in.Conv
		if conv == nil || len(conv.Messages) == 0 {
			return resp, nil
		}

		lastMessage := conv.LastMessage().Content

		var previousMessage string
		if len(conv.Messages) > 1 {
			previousMessage = conv.Messages[len(conv.Messages)-2].Content
		}

		var content string
		var metadata map[string]any

		if fileName := files.FindFilename(lastMessage); fileName != "" {
			doc, err := cfg.Reader.Read(fileName)
			if err != nil {
				resp.DocumentStatus = &model.DocumentStatus{
					Status: "error",
					Error:  fmt.Sprintf("Could not read file %s: %v", fileName, err),
				}
				return resp, nil
			}
			content = doc.Content
			metadata = make(map[string]any, len(doc.Metadata))
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
		} else {
			check, err := cfg.Gateway.Generate(ctx, []*schema.Message{
				schema.SystemMessage(processCheckPrompt),
				schema.UserMessage(lastMessage),
			})
			if err != nil {
				return nil, err
			}
			shouldProcess := strings.EqualFold(strings.TrimSpace(check.Content), "true")

			if !shouldProcess || previousMessage == "" {
				resp.DocumentStatus = &model.DocumentStatus{
					Status: "error",
					Error:  noDocumentError,
				}
				return resp, nil
			}

			source := "chat"
			if strings.Contains(strings.ToLower(previousMessage), "research") {
				source = "research_results"
			}
			content = previousMessage
			metadata = map[string]any{
				"type":      "inline",
				"source":    source,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}
		}

		result, err := cfg.Retriever.Ingest(ctx, content, metadata)
		if err != nil {
			return nil, err
		}
		resp.DocumentStatus = &model.DocumentStatus{
			Status:    result.Status,
			NumChunks: result.NumChunks,
			Metadata:  result.Metadata,
			Error:     result.Error,
		}
		return resp, nil
	}
}

func newOptimizeQueryNode(gw gateway.Gateway) func(context.Context, *classified) (*ragQuery, error) {
	return func(ctx context.Context, in *classified) (*ragQuery, error) {
		query := &ragQuery{}
		conv := in.Conv
		if conv == nil || len(conv.Messages) == 0 {
			return query, nil
		}

		optimized := &optimizedQuery{}
		msgs := []*schema.Message{
			schema.SystemMessage(prompts.RenderQueryOptimization(conv.RecentContext(true))),
			schema.UserMessage("Optimize this query for semantic search: " + conv.LastMessage().Content),
		}
		if err := gw.GenerateStructured(ctx, msgs, optimized); err != nil {
			return nil, err
		}

		query.Optimized = optimized.Query
		query.Original = conv.LastMessage().Content
		return query, nil
	}
}

func newRetrieveNode(cfg Config) func(context.Context, *ragQuery) (*ragContext, error) {
	return func(ctx context.Context, query *ragQuery) (*ragContext, error) {
		out := &ragContext{Query: query}
		if strings.TrimSpace(query.Optimized) == "" {
			return out, nil
		}

		entries, err := cfg.Retriever.Query(ctx, query.Optimized, cfg.TopK)
		if err != nil {
			logx.Warn().Err(err).Str("query", query.Optimized).Msg("context retrieval failed")
			return out, nil
		}
		out.Entries = entries
		return out, nil
	}
}

func newAnalyzeContextNode(gw gateway.Gateway) func(context.Context, *ragContext) (*ragAnalysis, error) {
	return func(ctx context.Context, in *ragContext) (*ragAnalysis, error) {
		out := &ragAnalysis{Query: in.Query}
		if in.Query.Optimized == "" || len(in.Entries) == 0 {
			out.Analysis = noContextAnalysis
			return out, nil
		}

		msg, err := gw.Generate(ctx, []*schema.Message{
			schema.SystemMessage(prompts.RenderContextAnalysis(in.Query.Optimized, formatContext(in.Entries))),
		})
		if err != nil {
			return nil, err
		}
		out.Analysis = msg.Content
		return out, nil
	}
}

func newAnswerQueryNode(gw gateway.Gateway) func(context.Context, *ragAnalysis) (*model.RAGResponse, error) {
	return func(ctx context.Context, in *ragAnalysis) (*model.RAGResponse, error) {
		if in.Query.Optimized == "" || in.Analysis == "" {
			return &model.RAGResponse{
				RAGAnalysis: noAnalysisAnswer,
				Source:      "answer_query",
			}, nil
		}

		msg, err := gw.Generate(ctx, []*schema.Message{
			schema.SystemMessage(prompts.RenderAnswerGeneration(in.Query.Optimized, in.Analysis)),
		})
		if err != nil {
			return nil, err
		}
		return &model.RAGResponse{
			RAGAnalysis: msg.Content,
			Source:      "answer_query",
		}, nil
	}
}

// formatContext renders entries highest relevance first.
func formatContext(entries []retrieval.ContextEntry) string {
	sorted := make([]retrieval.ContextEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	parts := make([]string, 0, len(sorted))
	for _, entry := range sorted {
		lines := []string{"Content:", entry.Content}
		if entry.Score != 0 {
			lines = append(lines, "Relevance:", fmt.Sprintf("%.3f", entry.Score))
		}
		if entry.Source != "" {
			lines = append(lines, "Source:", entry.Source)
		}
		if len(entry.Metadata) > 0 {
			lines = append(lines, "Additional Info:", fmt.Sprint(entry.Metadata))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
