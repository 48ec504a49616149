// Package research implements the external knowledge sub-workflow: query
// extraction, parallel web and Wikipedia search, and finding synthesis.
package research

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
	"github.com/convoflow-poc/server/internal/search"
	logx "github.com/convoflow-poc/server/pkg/logger"
)

// Node names
const (
	NodeExtractQuery = "extract_query"
	NodeSearch       = "search"
	NodeCombine      = "combine"
)

// WebSearcher is the web search collaborator boundary.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]search.WebResult, error)
}

// WikiSearcher is the Wikipedia collaborator boundary.
type WikiSearcher interface {
	Search(ctx context.Context, query string, maxDocs int) ([]search.WikiResult, error)
}

// Config holds the collaborators the research workflow needs.
type Config struct {
	Gateway     gateway.Gateway
	Web         WebSearcher
	Wiki        WikiSearcher
	WikiMaxDocs int
}

type searchQueries struct {
	WebQuery  string `json:"web_query"`
	WikiQuery string `json:"wiki_query"`
}

type searchResults struct {
	Web  string
	Wiki string
}

// Workflow is the compiled research sub-graph.
type Workflow struct {
	runnable compose.Runnable[*model.Conversation, *model.ResearchResponse]
}

// Build constructs and compiles the research sub-graph.
func Build(ctx context.Context, cfg Config) (*Workflow, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("research: gateway is nil")
	}
	if cfg.Web == nil || cfg.Wiki == nil {
		return nil, fmt.Errorf("research: search collaborators are nil")
	}
	if cfg.WikiMaxDocs <= 0 {
		cfg.WikiMaxDocs = 2
	}

	g := compose.NewGraph[*model.Conversation, *model.ResearchResponse]()

	g.AddLambdaNode(NodeExtractQuery, compose.InvokableLambda(newExtractQueryNode(cfg.Gateway)))
	g.AddLambdaNode(NodeSearch, compose.InvokableLambda(newSearchNode(cfg)))
	g.AddLambdaNode(NodeCombine, compose.InvokableLambda(newCombineNode(cfg.Gateway)))

	edges := [][2]string{
		{compose.START, NodeExtractQuery},
		{NodeExtractQuery, NodeSearch},
		{NodeSearch, NodeCombine},
		{NodeCombine, compose.END},
	}
	for _, edge := range edges {
		if err := g.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("research: add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runnable, err := g.Compile(ctx, compose.WithMaxRunSteps(10))
	if err != nil {
		return nil, fmt.Errorf("research: compile graph: %w", err)
	}
	return &Workflow{runnable: runnable}, nil
}

// Run executes the workflow for one turn.
func (w *Workflow) Run(ctx context.Context, conv *model.Conversation) (*model.ResearchResponse, error) {
	return w.runnable.Invoke(ctx, conv)
}

func newExtractQueryNode(gw gateway.Gateway) func(context.Context, *model.Conversation) (*searchQueries, error) {
	return func(ctx context.Context, conv *model.Conversation) (*searchQueries, error) {
		queries := &searchQueries{}
		if conv == nil || len(conv.Messages) == 0 {
			return queries, nil
		}

		msgs := []*schema.Message{
			schema.SystemMessage(prompts.RenderQueryExtraction(conv.RecentContext(true))),
			schema.UserMessage(conv.LastMessage().Content),
		}
		if err := gw.GenerateStructured(ctx, msgs, queries); err != nil {
			return nil, err
		}
		return queries, nil
	}
}

// newSearchNode runs both searches concurrently. A failed or empty search
// degrades to empty results so the other source still contributes.
func newSearchNode(cfg Config) func(context.Context, *searchQueries) (*searchResults, error) {
	return func(ctx context.Context, queries *searchQueries) (*searchResults, error) {
		results := &searchResults{}

		eg, egCtx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			if strings.TrimSpace(queries.WebQuery) == "" {
				return nil
			}
			hits, err := cfg.Web.Search(egCtx, queries.WebQuery)
			if err != nil {
				logx.Warn().Err(err).Str("query", queries.WebQuery).Msg("web search failed")
				return nil
			}
			results.Web = formatWebResults(hits)
			return nil
		})
		eg.Go(func() error {
			if strings.TrimSpace(queries.WikiQuery) == "" {
				return nil
			}
			hits, err := cfg.Wiki.Search(egCtx, queries.WikiQuery, cfg.WikiMaxDocs)
			if err != nil {
				logx.Warn().Err(err).Str("query", queries.WikiQuery).Msg("wikipedia search failed")
				return nil
			}
			results.Wiki = formatWikiResults(hits)
			return nil
		})
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		return results, nil
	}
}

func newCombineNode(gw gateway.Gateway) func(context.Context, *searchResults) (*model.ResearchResponse, error) {
	return func(ctx context.Context, results *searchResults) (*model.ResearchResponse, error) {
		synthesisText := "Web Search Results:\n" + results.Web +
			"\n\nWikipedia Results:\n" + results.Wiki

		msg, err := gw.Generate(ctx, []*schema.Message{
			schema.SystemMessage(prompts.ResearchSynthesis()),
			schema.UserMessage("Please synthesize these search results:\n\n" + synthesisText),
		})
		if err != nil {
			return nil, err
		}

		return &model.ResearchResponse{
			ResearchFindings: msg.Content,
			Source:           "researcher",
		}, nil
	}
}

func formatWebResults(hits []search.WebResult) string {
	parts := make([]string, 0, len(hits))
	for _, hit := range hits {
		href := hit.URL
		if href == "" {
			href = "Unknown"
		}
		parts = append(parts, fmt.Sprintf("<Document href=%q>\n%s\n</Document>", href, hit.Content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func formatWikiResults(hits []search.WikiResult) string {
	parts := make([]string, 0, len(hits))
	for _, hit := range hits {
		title := hit.Title
		if title == "" {
			title = "Wikipedia Article"
		}
		parts = append(parts, fmt.Sprintf("<Document source=\"Wikipedia\" title=%q>\n%s\n</Document>", title, hit.Content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
