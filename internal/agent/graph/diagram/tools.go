package diagram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// Tool names
const (
	ToolCreateMermaidDiagram = "create_mermaid_diagram"
	ToolSaveDiagram          = "save_diagram"
)

var knownDirectives = []string{
	"graph",
	"flowchart",
	"gantt",
	"sequencediagram",
	"classdiagram",
	"statediagram",
	"erdiagram",
}

type CreateDiagramInput struct {
	Content     string `json:"content"`
	DiagramType string `json:"diagram_type,omitempty"`
}

type CreateDiagramOutput struct {
	Diagram string `json:"diagram"`
	Type    string `json:"type"`
}

type SaveDiagramInput struct {
	Diagram  string `json:"diagram"`
	Filename string `json:"filename"`
}

type SaveDiagramOutput struct {
	Filepath string `json:"filepath,omitempty"`
	Filename string `json:"filename,omitempty"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

func createMermaidDiagramTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolCreateMermaidDiagram,
			Desc: "Create a Mermaid.js diagram from input content. If the content does not already start with a Mermaid directive the diagram_type is prepended.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"content": {
					Type:     "string",
					Desc:     "The content to visualize. Must be valid Mermaid.js syntax or will have diagram_type prepended. Wrap node text in double quotes and place all relationships before subgraphs.",
					Required: true,
				},
				"diagram_type": {
					Type: "string",
					Desc: "The type of Mermaid diagram (e.g., graph TD, flowchart LR, gantt, etc.).",
				},
			}),
		},
		func(ctx context.Context, in *CreateDiagramInput) (*CreateDiagramOutput, error) {
			diagramType := in.DiagramType
			if diagramType == "" {
				diagramType = "graph TD"
			}

			firstLine := ""
			for _, line := range strings.Split(in.Content, "\n") {
				if trimmed := strings.TrimSpace(line); trimmed != "" {
					firstLine = strings.ToLower(trimmed)
					break
				}
			}

			diagram := strings.TrimSpace(in.Content)
			hasDirective := false
			for _, directive := range knownDirectives {
				if strings.HasPrefix(firstLine, directive) {
					hasDirective = true
					break
				}
			}
			if !hasDirective {
				diagram = diagramType + "\n" + diagram
			}

			return &CreateDiagramOutput{Diagram: diagram, Type: diagramType}, nil
		},
	)
}

// createSaveDiagramTool writes diagrams as .mmd files under dir. Filenames are
// sanitized to a safe character set; failures come back in the output record
// so the model can react instead of aborting the loop.
func createSaveDiagramTool(dir string) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSaveDiagram,
			Desc: "Save the generated Mermaid.js diagram to a file.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"diagram": {
					Type:     "string",
					Desc:     "The Mermaid.js diagram content to save",
					Required: true,
				},
				"filename": {
					Type:     "string",
					Desc:     "Name of the file to save the diagram to (without extension)",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *SaveDiagramInput) (*SaveDiagramOutput, error) {
			base := strings.TrimSuffix(in.Filename, filepath.Ext(in.Filename))
			safe := sanitizeFilename(base)
			if safe == "" {
				return &SaveDiagramOutput{Status: "error", Error: "empty filename after sanitization"}, nil
			}
			mmdName := safe + ".mmd"

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return &SaveDiagramOutput{Status: "error", Error: err.Error()}, nil
			}
			fullPath := filepath.Join(dir, mmdName)
			if err := os.WriteFile(fullPath, []byte(in.Diagram), 0o644); err != nil {
				return &SaveDiagramOutput{Status: "error", Error: err.Error()}, nil
			}

			return &SaveDiagramOutput{Filepath: fullPath, Filename: mmdName}, nil
		},
	)
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '.' || c == '_' || c == '-' || c == ' ':
			b.WriteRune(c)
		}
	}
	return strings.TrimSpace(b.String())
}

// Tools returns the diagram tool set writing into dir.
func Tools(dir string) []tool.BaseTool {
	return []tool.BaseTool{
		createMermaidDiagramTool(),
		createSaveDiagramTool(dir),
	}
}

// ToolInfos resolves the ToolInfo of every tool for model binding.
func ToolInfos(ctx context.Context, tools []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("diagram: tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
