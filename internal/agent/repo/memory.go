package repo

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/convoflow-poc/server/internal/agent/model"
)

// MemoryCheckpointStore is an in-process CheckpointStore for tests and local
// development. State is deep-copied through JSON on both Save and Load so a
// caller can never mutate stored state behind the store's back.
type MemoryCheckpointStore struct {
	mu      sync.Mutex
	threads map[string][]byte
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{threads: make(map[string][]byte)}
}

func (m *MemoryCheckpointStore) Load(_ context.Context, threadID string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.threads[threadID]
	if !ok {
		return nil, nil
	}
	var conv model.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (m *MemoryCheckpointStore) Save(_ context.Context, threadID string, conv *model.Conversation) error {
	b, err := json.Marshal(conv)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[threadID] = b
	return nil
}

func (m *MemoryCheckpointStore) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
	return nil
}

var _ model.CheckpointStore = (*MemoryCheckpointStore)(nil)
