// Package graph composes the turn orchestrator: a routed graph that
// classifies each user turn, dispatches it to the matching sub-workflow,
// synthesizes the user-facing reply and prunes long histories.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/convoflow-poc/server/internal/agent/gateway"
	"github.com/convoflow-poc/server/internal/agent/graph/parsers"
	"github.com/convoflow-poc/server/internal/agent/model"
	logx "github.com/convoflow-poc/server/pkg/logger"
)

// Config holds everything needed to compose the orchestrator graph.
type Config struct {
	Gateway      gateway.Gateway
	Store        model.CheckpointStore
	Research     ResearchRunner
	RAG          RAGRunner
	Summarizer   SummarizerRunner
	Diagram      DiagramRunner
	Conversation model.ConversationConfig
}

// GraphBuilder handles the construction of the orchestrator graph.
type GraphBuilder struct {
	config *Config
	graph  *compose.Graph[*model.Conversation, *model.Conversation]
}

// Orchestrator runs one conversation turn end to end against the compiled
// graph, loading and saving thread state around the invocation.
type Orchestrator struct {
	runnable compose.Runnable[*model.Conversation, *model.Conversation]
	store    model.CheckpointStore
}

// Build validates the config, constructs the graph and compiles it.
func Build(ctx context.Context, cfg Config) (*Orchestrator, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("orchestrator: gateway is nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("orchestrator: checkpoint store is nil")
	}
	if cfg.Research == nil || cfg.RAG == nil || cfg.Summarizer == nil || cfg.Diagram == nil {
		return nil, fmt.Errorf("orchestrator: sub-workflow runner is nil")
	}
	if cfg.Conversation.SummaryThreshold <= 0 {
		cfg.Conversation.SummaryThreshold = 10
	}
	if cfg.Conversation.KeepLast <= 0 {
		cfg.Conversation.KeepLast = 2
	}

	builder := &GraphBuilder{
		config: &cfg,
		graph: compose.NewGraph[*model.Conversation, *model.Conversation](
			compose.WithGenLocalState(func(ctx context.Context) *model.TurnState {
				return &model.TurnState{StartedAt: time.Now()}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{runnable: runnable, store: cfg.Store}, nil
}

// addNodes adds all processing nodes to the graph. Each node receives and
// returns the conversation; the post handlers checkpoint it so a crash
// mid-turn never loses completed work.
func (b *GraphBuilder) addNodes() {
	persist := newPersistPostHandler(b.config.Store)

	b.graph.AddLambdaNode(NodeRouter,
		compose.InvokableLambda(newRouterNode(b.config.Gateway)),
		compose.WithStatePostHandler(newRouterPostHandler(b.config.Store)),
	)
	b.graph.AddLambdaNode(NodeAnswer,
		compose.InvokableLambda(newAnswerNode(b.config.Gateway)),
		compose.WithStatePostHandler(persist),
	)
	b.graph.AddLambdaNode(NodeResearch,
		compose.InvokableLambda(newResearchNode(b.config.Research)),
		compose.WithStatePostHandler(persist),
	)
	b.graph.AddLambdaNode(NodeRAG,
		compose.InvokableLambda(newRAGNode(b.config.RAG)),
		compose.WithStatePostHandler(persist),
	)
	b.graph.AddLambdaNode(NodeSummarize,
		compose.InvokableLambda(newDocSummarizeNode(b.config.Summarizer)),
		compose.WithStatePostHandler(persist),
	)
	b.graph.AddLambdaNode(NodeDiagram,
		compose.InvokableLambda(newDiagramNode(b.config.Diagram)),
		compose.WithStatePostHandler(persist),
	)
	b.graph.AddLambdaNode(NodeSynthesize,
		compose.InvokableLambda(newSynthesizeNode()),
		compose.WithStatePostHandler(newSynthesizePostHandler(b.config.Store)),
	)
	b.graph.AddLambdaNode(NodePrune,
		compose.InvokableLambda(newPruneHistoryNode(b.config.Gateway, b.config.Conversation.KeepLast)),
		compose.WithStatePostHandler(persist),
	)
}

// addEdges creates the unconditional flow connections. The sub-workflow nodes
// all converge on the synthesizer; the direct answer path bypasses it.
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, NodeRouter},
		{NodeResearch, NodeSynthesize},
		{NodeRAG, NodeSynthesize},
		{NodeSummarize, NodeSynthesize},
		{NodeDiagram, NodeSynthesize},
		{NodePrune, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches wires the route dispatch after the router and the pruning
// decision after both reply-producing nodes.
func (b *GraphBuilder) addBranches() error {
	dispatch := compose.NewGraphBranch(
		newDispatchCondition(),
		map[string]bool{
			NodeAnswer:    true,
			NodeResearch:  true,
			NodeRAG:       true,
			NodeSummarize: true,
			NodeDiagram:   true,
		},
	)
	if err := b.graph.AddBranch(NodeRouter, dispatch); err != nil {
		return fmt.Errorf("orchestrator: add dispatch branch: %w", err)
	}

	threshold := b.config.Conversation.SummaryThreshold
	for _, node := range []string{NodeAnswer, NodeSynthesize} {
		prune := compose.NewGraphBranch(
			newPruneCondition(threshold),
			map[string]bool{
				NodePrune:   true,
				compose.END: true,
			},
		)
		if err := b.graph.AddBranch(node, prune); err != nil {
			return fmt.Errorf("orchestrator: add prune branch after %s: %w", node, err)
		}
	}
	return nil
}

func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.Conversation, *model.Conversation], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(20))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling orchestrator graph")
		return nil, fmt.Errorf("orchestrator: compile graph: %w", err)
	}

	logx.Debug().Msg("Orchestrator graph compiled successfully")
	return runnable, nil
}

// newDispatchCondition re-derives the route from the stored decision text.
// Every caller that needs the route goes through the same parser, so the
// dispatched node and the synthesized reply can never disagree.
func newDispatchCondition() func(context.Context, *model.Conversation) (string, error) {
	return func(ctx context.Context, conv *model.Conversation) (string, error) {
		return string(parsers.ParseRoute(conv.RoutingDecision)), nil
	}
}

func newPruneCondition(threshold int) func(context.Context, *model.Conversation) (string, error) {
	return func(ctx context.Context, conv *model.Conversation) (string, error) {
		if shouldSummarize(conv, threshold) {
			return NodePrune, nil
		}
		return compose.END, nil
	}
}

// newPersistPostHandler checkpoints the conversation after a node completes.
func newPersistPostHandler(store model.CheckpointStore) func(context.Context, *model.Conversation, *model.TurnState) (*model.Conversation, error) {
	return func(ctx context.Context, conv *model.Conversation, state *model.TurnState) (*model.Conversation, error) {
		if err := store.Save(ctx, conv.ThreadID, conv); err != nil {
			return nil, fmt.Errorf("orchestrator: checkpoint thread %s: %w", conv.ThreadID, err)
		}
		return conv, nil
	}
}

// newRouterPostHandler records the parsed route on the turn state before
// checkpointing, so later handlers can report it.
func newRouterPostHandler(store model.CheckpointStore) func(context.Context, *model.Conversation, *model.TurnState) (*model.Conversation, error) {
	persist := newPersistPostHandler(store)
	return func(ctx context.Context, conv *model.Conversation, state *model.TurnState) (*model.Conversation, error) {
		state.ThreadID = conv.ThreadID
		state.Route = parsers.ParseRoute(conv.RoutingDecision)
		return persist(ctx, conv, state)
	}
}

// newSynthesizePostHandler logs turn latency alongside the checkpoint.
func newSynthesizePostHandler(store model.CheckpointStore) func(context.Context, *model.Conversation, *model.TurnState) (*model.Conversation, error) {
	persist := newPersistPostHandler(store)
	return func(ctx context.Context, conv *model.Conversation, state *model.TurnState) (*model.Conversation, error) {
		logx.Info().
			Str("thread_id", state.ThreadID).
			Str("route", string(state.Route)).
			Dur("elapsed", time.Since(state.StartedAt)).
			Msg("turn synthesized")
		return persist(ctx, conv, state)
	}
}

// HandleTurn runs one user turn for a thread: load or create the thread's
// conversation, clear stale per-turn slots, append the user message and run
// the graph. The returned conversation's last message is the reply.
func (o *Orchestrator) HandleTurn(ctx context.Context, threadID, text string) (*model.Conversation, error) {
	conv, err := o.store.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load thread %s: %w", threadID, err)
	}
	if conv == nil {
		conv = model.NewConversation(threadID)
	}

	conv.ClearResponses()
	conv.AppendUser(text)

	out, err := o.runnable.Invoke(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: run turn for thread %s: %w", threadID, err)
	}

	if err := o.store.Save(ctx, threadID, out); err != nil {
		return nil, fmt.Errorf("orchestrator: save thread %s: %w", threadID, err)
	}
	return out, nil
}
