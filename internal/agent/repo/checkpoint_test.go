package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoflow-poc/server/internal/agent/model"
)

func newTestStore(t *testing.T) (*RedisCheckpointStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisCheckpointStore(rdb, time.Hour), mr
}

func TestRedisCheckpointRoundtrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	conv := model.NewConversation("t1")
	conv.AppendUser("hello")
	conv.Summary = "earlier summary"
	conv.RoutingDecision = "[Selected Route]\nanswer"
	conv.Research = &model.ResearchResponse{ResearchFindings: "facts", Source: "researcher"}

	require.NoError(t, store.Save(ctx, "t1", conv))

	got, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "t1", got.ThreadID)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0].Content)
	assert.Equal(t, "earlier summary", got.Summary)
	require.NotNil(t, got.Research)
	assert.Equal(t, "facts", got.Research.ResearchFindings)
}

func TestRedisCheckpointLoadMissingThread(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCheckpointDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "t1", model.NewConversation("t1")))
	require.NoError(t, store.Delete(ctx, "t1"))

	got, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCheckpointAppliesTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "t1", model.NewConversation("t1")))
	assert.Equal(t, time.Hour, mr.TTL("thread:t1:state"))

	mr.FastForward(2 * time.Hour)
	got, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCheckpointCorruptPayload(t *testing.T) {
	store, mr := newTestStore(t)

	require.NoError(t, mr.Set("thread:t1:state", "{not json"))

	_, err := store.Load(context.Background(), "t1")
	assert.Error(t, err)
}

func TestMemoryCheckpointIsolatesStoredState(t *testing.T) {
	store := NewMemoryCheckpointStore()
	ctx := context.Background()

	conv := model.NewConversation("t1")
	conv.AppendUser("original")
	require.NoError(t, store.Save(ctx, "t1", conv))

	// Mutating the saved value must not leak into the store.
	conv.Messages[0].Content = "mutated"

	got, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "original", got.Messages[0].Content)
}
