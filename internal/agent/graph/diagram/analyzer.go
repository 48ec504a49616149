// Package diagram implements the Mermaid.js sub-workflow: a bounded
// tool-calling loop that must create and save a diagram before the structured
// artifact is extracted.
package diagram

import (
	"context"
	"encoding/json"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/convoflow-poc/server/internal/agent/gateway"
	"github.com/convoflow-poc/server/internal/agent/graph/prompts"
	"github.com/convoflow-poc/server/internal/agent/model"
	logx "github.com/convoflow-poc/server/pkg/logger"
)

// ToolCallingModel is the tool-bound chat model boundary.
type ToolCallingModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// Config holds the collaborators the diagram workflow needs.
type Config struct {
	Model    ToolCallingModel
	Gateway  gateway.Gateway
	Tools    []tool.BaseTool
	MaxSteps int
}

// Analyzer runs the diagram tool loop.
type Analyzer struct {
	model    ToolCallingModel
	gw       gateway.Gateway
	tools    map[string]tool.InvokableTool
	maxSteps int
}

// NewAnalyzer builds the analyzer. Every configured tool must be invokable.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("diagram: model is nil")
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("diagram: gateway is nil")
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 6
	}

	tools := make(map[string]tool.InvokableTool, len(cfg.Tools))
	for _, t := range cfg.Tools {
		info, err := t.Info(context.Background())
		if err != nil {
			return nil, fmt.Errorf("diagram: tool info: %w", err)
		}
		invokable, ok := t.(tool.InvokableTool)
		if !ok {
			return nil, fmt.Errorf("diagram: tool %s is not invokable", info.Name)
		}
		tools[info.Name] = invokable
	}

	return &Analyzer{
		model:    cfg.Model,
		gw:       cfg.Gateway,
		tools:    tools,
		maxSteps: cfg.MaxSteps,
	}, nil
}

// Run executes the tool loop for one turn. It returns nil (and no error) when
// the loop finishes without both creating and saving a diagram; the caller
// treats that as the workflow declining to produce an artifact.
func (a *Analyzer) Run(ctx context.Context, conv *model.Conversation) (*model.DiagramResponse, error) {
	msgs := []*schema.Message{schema.SystemMessage(prompts.DiagramAnalyzer())}
	if conv != nil {
		msgs = append(msgs, conv.RecentMessages(model.RecentContextCount)...)
	}

	created := false
	saved := false

	for step := 0; step < a.maxSteps; step++ {
		resp, err := a.model.Generate(ctx, msgs)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, resp)

		if len(resp.ToolCalls) == 0 {
			break
		}

		for _, call := range resp.ToolCalls {
			name := call.Function.Name
			invokable, ok := a.tools[name]
			if !ok {
				logx.Warn().Str("tool_name", name).Msg("unknown tool call in diagram loop")
				msgs = append(msgs, schema.ToolMessage(
					fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q}", name), call.ID))
				continue
			}

			result, err := invokable.InvokableRun(ctx, call.Function.Arguments)
			if err != nil {
				logx.Warn().Err(err).Str("tool_name", name).Msg("diagram tool failed")
				msgs = append(msgs, schema.ToolMessage(
					fmt.Sprintf("{\"error\":%q}", err.Error()), call.ID))
				continue
			}
			msgs = append(msgs, schema.ToolMessage(result, call.ID))

			// Saving only counts after a create, and only when the save
			// record reports an actual write.
			switch name {
			case ToolCreateMermaidDiagram:
				created = true
			case ToolSaveDiagram:
				if created && saveSucceeded(result) {
					saved = true
				}
			}
		}
	}

	if !created || !saved {
		logx.Warn().
			Bool("created", created).
			Bool("saved", saved).
			Msg("diagram loop ended without a saved artifact")
		return nil, nil
	}

	artifact := &model.DiagramResponse{}
	extraction := append(msgs, schema.UserMessage(prompts.DiagramOutput()))
	if err := a.gw.GenerateStructured(ctx, extraction, artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}

// saveSucceeded reads the save tool's result record. The tool reports write
// failures inside the record with a nil invocation error, so the record is
// the only signal that a file actually exists.
func saveSucceeded(result string) bool {
	var out SaveDiagramOutput
	if err := json.Unmarshal([]byte(result), &out); err != nil {
		return false
	}
	return out.Error == "" && out.Filename != ""
}
