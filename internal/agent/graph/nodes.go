package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/convoflow-poc/server/internal/agent/gateway"
	"github.com/convoflow-poc/server/internal/agent/graph/parsers"
	"github.com/convoflow-poc/server/internal/agent/graph/prompts"
	"github.com/convoflow-poc/server/internal/agent/model"
	logx "github.com/convoflow-poc/server/pkg/logger"
)

// Node names. Sub-workflow node names double as route values so the dispatch
// branch can jump straight to the parsed route.
const (
	NodeRouter     = "router"
	NodeAnswer     = string(model.RouteAnswer)
	NodeResearch   = string(model.RouteResearch)
	NodeRAG        = string(model.RouteRAG)
	NodeSummarize  = string(model.RouteSummarize)
	NodeDiagram    = string(model.RouteDiagram)
	NodeSynthesize = "synthesize"
	NodePrune      = "summarize_history"
)

const (
	fallbackMessage     = "I encountered an unexpected state and cannot provide a proper response."
	summaryErrorMessage = "I encountered an error while processing the summary."
	noQueryMessage      = "No query found to process."

	diagramFailureMessage = `I apologize, but I wasn't able to generate a diagram for this request.

To create a diagram, I need to:
1. Analyze the content
2. Create a Mermaid.js diagram using the create_mermaid_diagram tool
3. Save it using the save_diagram tool

Please try rephrasing your request, specifying what kind of diagram you'd like (flowchart, gantt chart, etc.) and what elements should be included.`
)

// newRouterNode classifies the turn and stores the raw decision text on the
// conversation. The route itself is re-derived from that text by the dispatch
// branch and the synthesizer through the same parser.
func newRouterNode(gw gateway.Gateway) func(context.Context, *model.Conversation) (*model.Conversation, error) {
	return func(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
		conv.RoutingDecision = ""
		if len(conv.Messages) == 0 {
			return conv, nil
		}

		system, err := prompts.RenderRouterSystem(ctx, conv.RecentContext(false))
		if err != nil {
			return nil, err
		}
		msg, err := gw.Generate(ctx, []*schema.Message{
			schema.SystemMessage(system),
			schema.UserMessage(conv.LastMessage().Content),
		})
		if err != nil {
			return nil, err
		}

		conv.RoutingDecision = msg.Content
		logx.Debug().
			Str("thread_id", conv.ThreadID).
			Str("route", string(parsers.ParseRoute(conv.RoutingDecision))).
			Msg("turn routed")
		return conv, nil
	}
}

// newAnswerNode handles basic interactions directly; its output skips the
// synthesizer.
func newAnswerNode(gw gateway.Gateway) func(context.Context, *model.Conversation) (*model.Conversation, error) {
	return func(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
		if len(conv.Messages) == 0 {
			return conv, nil
		}

		msgs := make([]*schema.Message, 0, len(conv.Messages)+1)
		msgs = append(msgs, schema.SystemMessage(prompts.RenderAnswerSystem(conv.RecentContext(false))))
		msgs = append(msgs, conv.Messages...)

		msg, err := gw.Generate(ctx, msgs)
		if err != nil {
			return nil, err
		}
		conv.Messages = append(conv.Messages, schema.AssistantMessage(msg.Content, nil))
		return conv, nil
	}
}

// ResearchRunner is the research sub-workflow boundary.
type ResearchRunner interface {
	Run(ctx context.Context, conv *model.Conversation) (*model.ResearchResponse, error)
}

// RAGRunner is the retrieval sub-workflow boundary.
type RAGRunner interface {
	Run(ctx context.Context, conv *model.Conversation) (*model.RAGResponse, error)
}

// SummarizerRunner is the document summarization sub-workflow boundary.
type SummarizerRunner interface {
	Run(ctx context.Context, conv *model.Conversation) (*model.SummarizerResponse, error)
}

// DiagramRunner is the diagram sub-workflow boundary. A nil artifact without
// an error means the tool loop declined to produce one.
type DiagramRunner interface {
	Run(ctx context.Context, conv *model.Conversation) (*model.DiagramResponse, error)
}

func newResearchNode(runner ResearchRunner) func(context.Context, *model.Conversation) (*model.Conversation, error) {
	return func(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
		resp, err := runner.Run(ctx, conv)
		if err != nil {
			return nil, err
		}
		conv.Research = resp
		return conv, nil
	}
}

func newRAGNode(runner RAGRunner) func(context.Context, *model.Conversation) (*model.Conversation, error) {
	return func(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
		resp, err := runner.Run(ctx, conv)
		if err != nil {
			return nil, err
		}
		conv.RAG = resp
		return conv, nil
	}
}

func newDocSummarizeNode(runner SummarizerRunner) func(context.Context, *model.Conversation) (*model.Conversation, error) {
	return func(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
		resp, err := runner.Run(ctx, conv)
		if err != nil {
			return nil, err
		}
		conv.Summarizer = resp
		return conv, nil
	}
}

func newDiagramNode(runner DiagramRunner) func(context.Context, *model.Conversation) (*model.Conversation, error) {
	return func(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
		artifact, err := runner.Run(ctx, conv)
		if err != nil {
			return nil, err
		}
		conv.Diagram = artifact
		return conv, nil
	}
}

// newSynthesizeNode maps the populated response slot for the parsed route to
// one user-facing assistant message. Every reachable state appends a message;
// an inconsistent slot/route combination falls back to a generic reply.
func newSynthesizeNode() func(context.Context, *model.Conversation) (*model.Conversation, error) {
	return func(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
		route := parsers.ParseRoute(conv.RoutingDecision)

		var content string
		switch route {
		case model.RouteRAG:
			content = synthesizeRAG(conv.RAG)
		case model.RouteResearch:
			content = synthesizeResearch(conv.Research)
		case model.RouteDiagram:
			return synthesizeDiagram(conv), nil
		case model.RouteSummarize:
			content = synthesizeSummary(conv.Summarizer)
		}
		if content == "" {
			content = fallbackMessage
		}

		conv.Messages = append(conv.Messages, schema.AssistantMessage(content, nil))
		return conv, nil
	}
}

func synthesizeRAG(resp *model.RAGResponse) string {
	if resp == nil {
		return ""
	}

	if resp.Source == "process_document" && resp.DocumentStatus != nil {
		status := resp.DocumentStatus
		if status.Error != "" {
			return "I wasn't able to process the document: " + status.Error
		}

		source := metadataString(status.Metadata, "source", "document")
		docType := metadataString(status.Metadata, "type", "unknown")
		return fmt.Sprintf(`Successfully processed document: %s
- Number of chunks: %d
- Document type: %s

You can now ask questions about this document!`, source, status.NumChunks, docType)
	}

	if resp.Source == "answer_query" && resp.RAGAnalysis != "" {
		if strings.Contains(resp.RAGAnalysis, "[Answer]") {
			cleaned := strings.ReplaceAll(resp.RAGAnalysis, "[Answer]", "")
			cleaned = strings.ReplaceAll(cleaned, "[Sources]", "\nBased on:")
			return "Here's what I found in the document:\n\n" + strings.TrimSpace(cleaned)
		}
		return resp.RAGAnalysis
	}

	return ""
}

func metadataString(metadata map[string]any, key, fallback string) string {
	if v, ok := metadata[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func synthesizeResearch(resp *model.ResearchResponse) string {
	if resp == nil || resp.Source != "researcher" {
		return ""
	}
	return "Here are the findings from my research:\n\n" + resp.ResearchFindings
}

// synthesizeDiagram collapses the conversation tail after the triggering
// human message so intermediate tool noise never survives the turn, then
// reports either the artifact or the fixed failure explanation.
func synthesizeDiagram(conv *model.Conversation) *model.Conversation {
	humanIdx := conv.LastHumanIndex()
	if humanIdx < 0 {
		conv.Messages = append(conv.Messages, schema.AssistantMessage(noQueryMessage, nil))
		return conv
	}
	conv.Messages = conv.Messages[:humanIdx+1]

	if conv.Diagram == nil || conv.Diagram.Diagram == "" {
		conv.Messages = append(conv.Messages, schema.AssistantMessage(diagramFailureMessage, nil))
		return conv
	}

	diagram := conv.Diagram.Diagram
	if idx := strings.Index(diagram, "```mermaid\n"); idx >= 0 {
		diagram = diagram[idx+len("```mermaid\n"):]
		if end := strings.Index(diagram, "```"); end >= 0 {
			diagram = diagram[:end]
		}
	}

	content := fmt.Sprintf(`I've created a visual representation of the components and their relationships.

The Mermaid.js diagram has been generated and saved to: %s

Here's the diagram content:

%s

You can now ask questions about the diagram!`, conv.Diagram.Filename, diagram)
	conv.Messages = append(conv.Messages, schema.AssistantMessage(content, nil))
	return conv
}

func synthesizeSummary(resp *model.SummarizerResponse) string {
	if resp == nil {
		return ""
	}
	if resp.FinalSummary == "" {
		logx.Warn().Msg("summarizer response missing final summary")
		return summaryErrorMessage
	}
	return fmt.Sprintf(`Here's the summary I generated:

%s

Document Statistics:
- Number of chunks processed: %d`, resp.FinalSummary, resp.NumChunks)
}

// newPruneHistoryNode rolls older history into the summary. All but the last
// keepLast messages are replaced by one system message carrying the new
// summary text.
func newPruneHistoryNode(gw gateway.Gateway, keepLast int) func(context.Context, *model.Conversation) (*model.Conversation, error) {
	return func(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
		prompt := "Create a summary of the conversation above:"
		if conv.Summary != "" {
			prompt = "This is summary of the conversation to date: " + conv.Summary +
				"\n\nExtend the summary by taking into account the new messages above:"
		}

		msgs := make([]*schema.Message, 0, len(conv.Messages)+1)
		msgs = append(msgs, conv.Messages...)
		msgs = append(msgs, schema.UserMessage(prompt))

		msg, err := gw.Generate(ctx, msgs)
		if err != nil {
			return nil, err
		}

		kept := conv.Messages
		if len(kept) > keepLast {
			kept = kept[len(kept)-keepLast:]
		}
		summaryMsg := schema.SystemMessage("Previous conversation summary: " + msg.Content)

		conv.Summary = msg.Content
		conv.Messages = append([]*schema.Message{summaryMsg}, kept...)

		logx.Debug().
			Str("thread_id", conv.ThreadID).
			Int("kept_messages", len(kept)).
			Msg("conversation history pruned")
		return conv, nil
	}
}

// shouldSummarize is true only after a complete exchange once the message
// count passes the threshold. A trailing system message signals an incomplete
// tool sequence and always blocks pruning.
func shouldSummarize(conv *model.Conversation, threshold int) bool {
	if len(conv.Messages) <= threshold {
		return false
	}
	last := conv.LastMessage()
	if last == nil || last.Role == schema.System {
		return false
	}
	return last.Role == schema.Assistant
}
