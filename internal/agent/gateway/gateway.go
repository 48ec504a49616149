// Package gateway abstracts the language model behind a small interface so
// every graph node receives it as an injected dependency and tests can swap in
// a scripted fake.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Gateway is the language model boundary used by all graph nodes.
type Gateway interface {
	// Generate produces one assistant message for the given conversation.
	Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error)

	// GenerateStructured produces a response constrained to the JSON shape of
	// out and unmarshals it into out.
	GenerateStructured(ctx context.Context, messages []*schema.Message, out any) error
}

const jsonOnlyInstruction = "Respond with a single JSON object only. No prose, no code fences, no trailing commentary."

// structuredMessages appends the JSON-only instruction to a prompt.
func structuredMessages(messages []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages)+1)
	out = append(out, messages...)
	out = append(out, schema.SystemMessage(jsonOnlyInstruction))
	return out
}

// decodeStructured strips an optional code fence and unmarshals the payload.
// Models occasionally wrap JSON in ```json fences despite instructions.
func decodeStructured(content string, out any) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("decode structured output: %w", err)
	}
	return nil
}
