package model

import "context"

// CheckpointStore persists conversation state per thread. Implementations must
// guarantee at-most-one-writer-per-thread; the orchestrator relies on the
// store for cross-turn mutual exclusion and does not lock itself.
type CheckpointStore interface {
	// Load returns the conversation for a thread, or (nil, nil) when the
	// thread has no saved state yet.
	Load(ctx context.Context, threadID string) (*Conversation, error)

	// Save persists the conversation for a thread, replacing any prior state.
	Save(ctx context.Context, threadID string, conv *Conversation) error

	// Delete removes all state for a thread.
	Delete(ctx context.Context, threadID string) error
}
