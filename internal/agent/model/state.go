package model

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// Route identifies the handling path selected for a turn. The string value is
// also the orchestrator graph node name the dispatch branch jumps to.
type Route string

const (
	RouteAnswer    Route = "answer"
	RouteResearch  Route = "research"
	RouteRAG       Route = "rag"
	RouteSummarize Route = "doc_summarize"
	RouteDiagram   Route = "diagram_analyze"
)

// ResearchResponse is the record the research sub-workflow hands back to the
// orchestrator.
type ResearchResponse struct {
	ResearchFindings string `json:"research_findings"`
	Source           string `json:"source"`
}

// DocumentStatus reports the outcome of a document ingestion attempt. A
// resolution failure is carried in Error as a normal status value, never as a
// raised error.
type DocumentStatus struct {
	Status    string         `json:"status"`
	NumChunks int            `json:"num_chunks"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// RAGResponse is the record the RAG sub-workflow hands back. Exactly one of
// DocumentStatus and RAGAnalysis is populated depending on which path ran;
// Source names the producing node.
type RAGResponse struct {
	DocumentStatus *DocumentStatus `json:"document_status,omitempty"`
	RAGAnalysis    string          `json:"rag_analysis,omitempty"`
	Source         string          `json:"source"`
}

// SummarizerResponse is the record the document summarization sub-workflow
// hands back.
type SummarizerResponse struct {
	ChunkSummaries []string       `json:"chunk_summaries"`
	FinalSummary   string         `json:"final_summary"`
	NumChunks      int            `json:"num_chunks"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// DiagramResponse is the structured artifact the diagram sub-workflow must
// produce. Its absence on the conversation is the failure signal the
// synthesizer acts on.
type DiagramResponse struct {
	Diagram  string `json:"diagram"`
	Filename string `json:"filename"`
}

// Conversation is the state record carried through the orchestrator graph for
// one thread. Messages are append-only except for summarization, which may
// replace a prefix strictly older than the last two messages with a single
// system message. At most one response slot is populated per turn, matching
// the route parsed from RoutingDecision.
type Conversation struct {
	ThreadID        string            `json:"thread_id"`
	Messages        []*schema.Message `json:"messages"`
	Summary         string            `json:"summary,omitempty"`
	RoutingDecision string            `json:"routing_decision,omitempty"`

	Research   *ResearchResponse   `json:"research_response,omitempty"`
	RAG        *RAGResponse        `json:"rag_response,omitempty"`
	Summarizer *SummarizerResponse `json:"summarizer_response,omitempty"`
	Diagram    *DiagramResponse    `json:"structured_response,omitempty"`
}

// NewConversation creates an empty conversation for a thread.
func NewConversation(threadID string) *Conversation {
	return &Conversation{ThreadID: threadID}
}

// ClearResponses drops the per-turn sub-workflow output slots. Called at the
// start of each turn so a stale slot from a previous turn can never be
// synthesized again.
func (c *Conversation) ClearResponses() {
	c.Research = nil
	c.RAG = nil
	c.Summarizer = nil
	c.Diagram = nil
}

// AppendUser appends a user message with the given text.
func (c *Conversation) AppendUser(text string) {
	c.Messages = append(c.Messages, schema.UserMessage(text))
}

// LastMessage returns the newest message or nil.
func (c *Conversation) LastMessage() *schema.Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// LastHumanIndex returns the index of the newest user message, or -1.
func (c *Conversation) LastHumanIndex() int {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i] != nil && c.Messages[i].Role == schema.User {
			return i
		}
	}
	return -1
}

// RecentMessages returns up to n of the newest messages.
func (c *Conversation) RecentMessages(n int) []*schema.Message {
	if len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// TurnState is the orchestrator graph's eino local state. It holds per-turn
// bookkeeping only; everything that outlives the turn lives on Conversation.
type TurnState struct {
	ThreadID  string
	Route     Route
	StartedAt time.Time
}
