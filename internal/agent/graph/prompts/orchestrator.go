package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/router_prompt.txt
var routerSystemPrompt string

//go:embed template/answer_prompt.txt
var answerSystemPrompt string

// RenderRouterSystem renders the routing system prompt via the Eino prompt
// component and returns the final system prompt string.
func RenderRouterSystem(ctx context.Context, conversationContext string) (string, error) {
	// Replace known tokens only so literal braces in the template survive
	content := strings.NewReplacer(
		"{context}", conversationContext,
	).Replace(routerSystemPrompt)

	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("router prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("router prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// RenderAnswerSystem renders the basic interaction system prompt.
func RenderAnswerSystem(conversationContext string) string {
	return strings.NewReplacer(
		"{context}", conversationContext,
	).Replace(answerSystemPrompt)
}
