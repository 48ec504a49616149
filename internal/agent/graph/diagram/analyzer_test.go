package diagram

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoflow-poc/server/internal/agent/gateway/gatewaytest"
	"github.com/convoflow-poc/server/internal/agent/model"
)

type scriptedModel struct {
	replies []*schema.Message
	step    int
}

func (s *scriptedModel) Generate(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	if s.step >= len(s.replies) {
		return schema.AssistantMessage("done", nil), nil
	}
	reply := s.replies[s.step]
	s.step++
	return reply, nil
}

func toolCall(id, name string, args any) schema.ToolCall {
	b, _ := json.Marshal(args)
	return schema.ToolCall{
		ID:       id,
		Function: schema.FunctionCall{Name: name, Arguments: string(b)},
	}
}

func conversationWith(text string) *model.Conversation {
	conv := model.NewConversation("t1")
	conv.Messages = append(conv.Messages, schema.UserMessage(text))
	return conv
}

func TestAnalyzerCreatesAndSavesDiagram(t *testing.T) {
	dir := t.TempDir()
	mdl := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{
			toolCall("c1", ToolCreateMermaidDiagram, CreateDiagramInput{Content: `A["Start"] --> B["End"]`}),
		}),
		schema.AssistantMessage("", []schema.ToolCall{
			toolCall("c2", ToolSaveDiagram, SaveDiagramInput{Diagram: "graph TD\nA --> B", Filename: "flow"}),
		}),
		schema.AssistantMessage("Diagram created and saved.", nil),
	}}
	gw := &gatewaytest.Fake{
		StructuredJSON: `{"diagram": "graph TD\nA --> B", "filename": "flow.mmd"}`,
	}

	analyzer, err := NewAnalyzer(Config{Model: mdl, Gateway: gw, Tools: Tools(dir), MaxSteps: 6})
	require.NoError(t, err)

	artifact, err := analyzer.Run(context.Background(), conversationWith("draw my pipeline"))
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, "flow.mmd", artifact.Filename)
	assert.Contains(t, artifact.Diagram, "graph TD")

	saved, err := os.ReadFile(filepath.Join(dir, "flow.mmd"))
	require.NoError(t, err)
	assert.Equal(t, "graph TD\nA --> B", string(saved))
}

func TestAnalyzerNoToolsUsed(t *testing.T) {
	mdl := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("here is a diagram: graph TD", nil),
	}}
	gw := &gatewaytest.Fake{}

	analyzer, err := NewAnalyzer(Config{Model: mdl, Gateway: gw, Tools: Tools(t.TempDir())})
	require.NoError(t, err)

	artifact, err := analyzer.Run(context.Background(), conversationWith("draw it"))
	require.NoError(t, err)
	assert.Nil(t, artifact)
	assert.Zero(t, gw.CallCount())
}

func TestAnalyzerStepBound(t *testing.T) {
	// The model keeps creating without ever saving; the loop must stop.
	looping := make([]*schema.Message, 0, 10)
	for i := 0; i < 10; i++ {
		looping = append(looping, schema.AssistantMessage("", []schema.ToolCall{
			toolCall("c", ToolCreateMermaidDiagram, CreateDiagramInput{Content: "A --> B"}),
		}))
	}
	mdl := &scriptedModel{replies: looping}

	analyzer, err := NewAnalyzer(Config{Model: mdl, Gateway: &gatewaytest.Fake{}, Tools: Tools(t.TempDir()), MaxSteps: 3})
	require.NoError(t, err)

	artifact, err := analyzer.Run(context.Background(), conversationWith("draw it"))
	require.NoError(t, err)
	assert.Nil(t, artifact)
	assert.Equal(t, 3, mdl.step)
}

func TestAnalyzerUnknownTool(t *testing.T) {
	dir := t.TempDir()
	mdl := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{
			toolCall("x1", "delete_everything", map[string]string{}),
			toolCall("c1", ToolCreateMermaidDiagram, CreateDiagramInput{Content: "A --> B"}),
		}),
		schema.AssistantMessage("", []schema.ToolCall{
			toolCall("c2", ToolSaveDiagram, SaveDiagramInput{Diagram: "graph TD\nA --> B", Filename: "x"}),
		}),
		schema.AssistantMessage("done", nil),
	}}
	gw := &gatewaytest.Fake{StructuredJSON: `{"diagram": "graph TD\nA --> B", "filename": "x.mmd"}`}

	analyzer, err := NewAnalyzer(Config{Model: mdl, Gateway: gw, Tools: Tools(dir)})
	require.NoError(t, err)

	artifact, err := analyzer.Run(context.Background(), conversationWith("draw it"))
	require.NoError(t, err)
	require.NotNil(t, artifact)
}

func TestAnalyzerFailedSaveYieldsNoArtifact(t *testing.T) {
	// The filename sanitizes to nothing, so the save tool reports an error
	// record and no file exists; the loop must not claim an artifact.
	dir := t.TempDir()
	mdl := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{
			toolCall("c1", ToolCreateMermaidDiagram, CreateDiagramInput{Content: "A --> B"}),
		}),
		schema.AssistantMessage("", []schema.ToolCall{
			toolCall("c2", ToolSaveDiagram, SaveDiagramInput{Diagram: "graph TD\nA --> B", Filename: "&&&"}),
		}),
		schema.AssistantMessage("done", nil),
	}}
	gw := &gatewaytest.Fake{StructuredJSON: `{"diagram": "graph TD", "filename": ".mmd"}`}

	analyzer, err := NewAnalyzer(Config{Model: mdl, Gateway: gw, Tools: Tools(dir)})
	require.NoError(t, err)

	artifact, err := analyzer.Run(context.Background(), conversationWith("draw it"))
	require.NoError(t, err)
	assert.Nil(t, artifact)
	assert.Zero(t, gw.CallCount())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnalyzerSaveBeforeCreateDoesNotCount(t *testing.T) {
	dir := t.TempDir()
	mdl := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{
			toolCall("c1", ToolSaveDiagram, SaveDiagramInput{Diagram: "graph TD\nA --> B", Filename: "early"}),
		}),
		schema.AssistantMessage("", []schema.ToolCall{
			toolCall("c2", ToolCreateMermaidDiagram, CreateDiagramInput{Content: "A --> B"}),
		}),
		schema.AssistantMessage("done", nil),
	}}
	gw := &gatewaytest.Fake{StructuredJSON: `{"diagram": "graph TD", "filename": "early.mmd"}`}

	analyzer, err := NewAnalyzer(Config{Model: mdl, Gateway: gw, Tools: Tools(dir)})
	require.NoError(t, err)

	artifact, err := analyzer.Run(context.Background(), conversationWith("draw it"))
	require.NoError(t, err)
	assert.Nil(t, artifact)
	assert.Zero(t, gw.CallCount())
}

func TestCreateMermaidDiagramPrependsDirective(t *testing.T) {
	tools := Tools(t.TempDir())
	info, err := tools[0].Info(context.Background())
	require.NoError(t, err)
	require.Equal(t, ToolCreateMermaidDiagram, info.Name)

	invokable, ok := tools[0].(tool.InvokableTool)
	require.True(t, ok)

	raw, err := invokable.InvokableRun(context.Background(), `{"content": "A --> B"}`)
	require.NoError(t, err)

	var out CreateDiagramOutput
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	assert.Equal(t, "graph TD\nA --> B", out.Diagram)

	raw, err = invokable.InvokableRun(context.Background(), `{"content": "flowchart LR\nA --> B"}`)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	assert.Equal(t, "flowchart LR\nA --> B", out.Diagram)
}

func TestSaveDiagramSanitizesFilename(t *testing.T) {
	dir := t.TempDir()
	tools := Tools(dir)

	invokable, ok := tools[1].(tool.InvokableTool)
	require.True(t, ok)

	raw, err := invokable.InvokableRun(context.Background(), `{"diagram": "graph TD", "filename": "my/../diagram!.svg"}`)
	require.NoError(t, err)

	var out SaveDiagramOutput
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	assert.Empty(t, out.Error)
	assert.Equal(t, "my..diagram.mmd", out.Filename)

	_, err = os.Stat(filepath.Join(dir, out.Filename))
	assert.NoError(t, err)
}
