// Package docsum implements the document summarization sub-workflow: content
// resolution, adaptive chunking, parallel chunk summarization and reduction.
package docsum

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"github.com/convoflow-poc/server/internal/agent/gateway"
	"github.com/convoflow-poc/server/internal/agent/graph/prompts"
	"github.com/convoflow-poc/server/internal/agent/model"
	"github.com/convoflow-poc/server/internal/files"
	logx "github.com/convoflow-poc/server/pkg/logger"
)

// Node names
const (
	NodeProcessDocument  = "process_document"
	NodeSummarizeChunks  = "summarize_chunks"
	NodeCombineSummaries = "combine_summaries"
)

// Chunk setting bounds the adaptive recommendation is clamped to.
const (
	minChunkSize    = 100
	maxChunkSize    = 4000
	minChunkOverlap = 20
	maxChunkOverlap = 500
)

const noSummariesPlaceholder = "No summaries to combine"

// Chunker splits text into bounded token-sized pieces.
type Chunker interface {
	Count(text string) (int, error)
	Chunk(text string, chunkSize, overlap int) ([]string, error)
}

// DocumentReader resolves file references mentioned in messages.
type DocumentReader interface {
	Read(name string) (*files.Document, error)
}

// Config holds the collaborators the summarization workflow needs.
type Config struct {
	Gateway gateway.Gateway
	Chunker Chunker
	Reader  DocumentReader
}

type chunkSizeRecommendation struct {
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	Reasoning    string `json:"reasoning"`
}

// docState carries the resolved document through the workflow. A non-empty
// ErrorSummary short-circuits the remaining nodes.
type docState struct {
	Document     string
	Chunks       []string
	ErrorSummary string
}

type summarized struct {
	Summaries    []string
	ErrorSummary string
}

// Workflow is the compiled summarization sub-graph.
type Workflow struct {
	runnable compose.Runnable[*model.Conversation, *model.SummarizerResponse]
}

// Build constructs and compiles the summarization sub-graph.
func Build(ctx context.Context, cfg Config) (*Workflow, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("docsum: gateway is nil")
	}
	if cfg.Chunker == nil {
		return nil, fmt.Errorf("docsum: chunker is nil")
	}
	if cfg.Reader == nil {
		return nil, fmt.Errorf("docsum: document reader is nil")
	}

	g := compose.NewGraph[*model.Conversation, *model.SummarizerResponse]()

	g.AddLambdaNode(NodeProcessDocument, compose.InvokableLambda(newProcessDocumentNode(cfg)))
	g.AddLambdaNode(NodeSummarizeChunks, compose.InvokableLambda(newSummarizeChunksNode(cfg.Gateway)))
	g.AddLambdaNode(NodeCombineSummaries, compose.InvokableLambda(newCombineSummariesNode(cfg.Gateway)))

	edges := [][2]string{
		{compose.START, NodeProcessDocument},
		{NodeProcessDocument, NodeSummarizeChunks},
		{NodeSummarizeChunks, NodeCombineSummaries},
		{NodeCombineSummaries, compose.END},
	}
	for _, edge := range edges {
		if err := g.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("docsum: add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runnable, err := g.Compile(ctx, compose.WithMaxRunSteps(10))
	if err != nil {
		return nil, fmt.Errorf("docsum: compile graph: %w", err)
	}
	return &Workflow{runnable: runnable}, nil
}

// Run executes the workflow for one turn.
func (w *Workflow) Run(ctx context.Context, conv *model.Conversation) (*model.SummarizerResponse, error) {
	return w.runnable.Invoke(ctx, conv)
}

// newProcessDocumentNode resolves the document and splits it into chunks.
// Resolution priority: prior research output, prior retrieval output, a file
// reference in the latest message, then the raw message text.
func newProcessDocumentNode(cfg Config) func(context.Context, *model.Conversation) (*docState, error) {
	return func(ctx context.Context, conv *model.Conversation) (*docState, error) {
		if conv == nil || len(conv.Messages) == 0 {
			return &docState{ErrorSummary: "Error: No document provided"}, nil
		}

		lastMessage := strings.TrimSpace(conv.LastMessage().Content)

		var document string
		switch {
		case conv.Research != nil:
			document = conv.Research.ResearchFindings
		case conv.RAG != nil:
			document = conv.RAG.RAGAnalysis
		default:
			if fileName := files.FindFilename(lastMessage); fileName != "" {
				doc, err := cfg.Reader.Read(fileName)
				if err != nil {
					return &docState{ErrorSummary: fmt.Sprintf("Error reading file: %v", err)}, nil
				}
				document = doc.Content
			} else {
				document = lastMessage
			}
		}

		if document == "" {
			return &docState{ErrorSummary: "Error: No content to summarize"}, nil
		}

		chunkSize, chunkOverlap, err := recommendChunkSettings(ctx, cfg, document)
		if err != nil {
			return nil, err
		}

		chunks, err := cfg.Chunker.Chunk(document, chunkSize, chunkOverlap)
		if err != nil {
			return &docState{
				Document:     document,
				ErrorSummary: fmt.Sprintf("Error chunking document: %v", err),
			}, nil
		}

		logx.Debug().
			Int("chunks", len(chunks)).
			Int("chunk_size", chunkSize).
			Int("chunk_overlap", chunkOverlap).
			Msg("document chunked")
		return &docState{Document: document, Chunks: chunks}, nil
	}
}

// recommendChunkSettings asks the model for chunk settings based on a preview
// and coarse stats, then clamps the answer to sane bounds.
func recommendChunkSettings(ctx context.Context, cfg Config, document string) (int, int, error) {
	preview := document
	if len(preview) > 500 {
		preview = preview[:500]
	}
	totalTokens, err := cfg.Chunker.Count(document)
	if err != nil {
		return 0, 0, err
	}
	metadata := fmt.Sprintf(
		"{'total_tokens': %d, 'total_length': %d, 'has_headers': %t}",
		totalTokens, len(document), strings.Contains(document, "#"),
	)

	rec := &chunkSizeRecommendation{}
	msgs := []*schema.Message{
		schema.SystemMessage(prompts.RenderChunkSize(preview, metadata)),
	}
	if err := cfg.Gateway.GenerateStructured(ctx, msgs, rec); err != nil {
		return 0, 0, err
	}

	return clampInt(rec.ChunkSize, minChunkSize, maxChunkSize),
		clampInt(rec.ChunkOverlap, minChunkOverlap, maxChunkOverlap), nil
}

// newSummarizeChunksNode summarizes every chunk concurrently. Each branch
// contributes one labeled summary through a channel, so entries land in
// completion order; the zero-based index in the label preserves logical order
// for the reduction step.
func newSummarizeChunksNode(gw gateway.Gateway) func(context.Context, *docState) (*summarized, error) {
	return func(ctx context.Context, in *docState) (*summarized, error) {
		if in.ErrorSummary != "" {
			return &summarized{ErrorSummary: in.ErrorSummary}, nil
		}

		results := make(chan string, len(in.Chunks))
		eg, egCtx := errgroup.WithContext(ctx)
		for i, chunk := range in.Chunks {
			eg.Go(func() error {
				msg, err := gw.Generate(egCtx, []*schema.Message{
					schema.SystemMessage(prompts.RenderChunkSummary(chunk)),
				})
				if err != nil {
					return err
				}
				results <- fmt.Sprintf("[Chunk %d] %s", i, msg.Content)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		close(results)

		summaries := make([]string, 0, len(in.Chunks))
		for summary := range results {
			summaries = append(summaries, summary)
		}
		return &summarized{Summaries: summaries}, nil
	}
}

func newCombineSummariesNode(gw gateway.Gateway) func(context.Context, *summarized) (*model.SummarizerResponse, error) {
	return func(ctx context.Context, in *summarized) (*model.SummarizerResponse, error) {
		if in.ErrorSummary != "" {
			return &model.SummarizerResponse{
				ChunkSummaries: []string{},
				FinalSummary:   in.ErrorSummary,
				NumChunks:      0,
				Metadata:       map[string]any{"error": in.ErrorSummary},
			}, nil
		}
		if len(in.Summaries) == 0 {
			return &model.SummarizerResponse{
				ChunkSummaries: []string{},
				FinalSummary:   noSummariesPlaceholder,
				NumChunks:      0,
				Metadata:       map[string]any{"error": "No summaries generated"},
			}, nil
		}

		msg, err := gw.Generate(ctx, []*schema.Message{
			schema.SystemMessage(prompts.RenderFinalSummary(in.Summaries)),
		})
		if err != nil {
			return nil, err
		}

		totalLen := 0
		for _, s := range in.Summaries {
			totalLen += len(s)
		}
		return &model.SummarizerResponse{
			ChunkSummaries: in.Summaries,
			FinalSummary:   msg.Content,
			NumChunks:      len(in.Summaries),
			Metadata: map[string]any{
				"num_chunks":       len(in.Summaries),
				"avg_chunk_length": float64(totalLen) / float64(len(in.Summaries)),
			},
		}, nil
	}
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
