// Package gatewaytest provides a scripted Gateway for graph tests.
package gatewaytest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// Call records one gateway invocation.
type Call struct {
	Kind     string // "generate" or "structured"
	Messages []*schema.Message
}

// Fake is a scripted Gateway implementation. GenerateFunc and StructuredFunc
// can be set per test; unset, Generate replies with a canned message and
// GenerateStructured decodes StructuredJSON into the target.
type Fake struct {
	mu    sync.Mutex
	calls []Call

	GenerateFunc   func(ctx context.Context, messages []*schema.Message) (*schema.Message, error)
	StructuredFunc func(ctx context.Context, messages []*schema.Message, out any) error

	// Reply is the canned Generate content when GenerateFunc is nil.
	Reply string
	// StructuredJSON is decoded into out when StructuredFunc is nil.
	StructuredJSON string
}

func (f *Fake) record(kind string, messages []*schema.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Kind: kind, Messages: messages})
}

// Calls returns a copy of all recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of recorded invocations.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *Fake) Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	f.record("generate", messages)
	if f.GenerateFunc != nil {
		return f.GenerateFunc(ctx, messages)
	}
	reply := f.Reply
	if reply == "" {
		reply = "ok"
	}
	return schema.AssistantMessage(reply, nil), nil
}

func (f *Fake) GenerateStructured(ctx context.Context, messages []*schema.Message, out any) error {
	f.record("structured", messages)
	if f.StructuredFunc != nil {
		return f.StructuredFunc(ctx, messages, out)
	}
	if f.StructuredJSON == "" {
		return fmt.Errorf("gatewaytest: no structured script configured")
	}
	return json.Unmarshal([]byte(f.StructuredJSON), out)
}
