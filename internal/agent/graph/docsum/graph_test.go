package docsum

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoflow-poc/server/internal/agent/gateway/gatewaytest"
	"github.com/convoflow-poc/server/internal/agent/model"
	"github.com/convoflow-poc/server/internal/files"
)

type fakeChunker struct {
	chunks []string
	err    error

	gotSize    int
	gotOverlap int
}

func (f *fakeChunker) Count(text string) (int, error) { return len(text), nil }

func (f *fakeChunker) Chunk(text string, chunkSize, overlap int) ([]string, error) {
	f.gotSize = chunkSize
	f.gotOverlap = overlap
	if f.err != nil {
		return nil, f.err
	}
	if f.chunks != nil {
		return f.chunks, nil
	}
	return []string{text}, nil
}

type fakeReader struct {
	docs map[string]*files.Document
}

func (f *fakeReader) Read(name string) (*files.Document, error) {
	if doc, ok := f.docs[name]; ok {
		return doc, nil
	}
	return nil, fmt.Errorf("file not found: %s", name)
}

func conversationWith(texts ...string) *model.Conversation {
	conv := model.NewConversation("t1")
	for i, text := range texts {
		if i%2 == 0 {
			conv.Messages = append(conv.Messages, schema.UserMessage(text))
		} else {
			conv.Messages = append(conv.Messages, schema.AssistantMessage(text, nil))
		}
	}
	return conv
}

// summarizerGateway scripts chunk sizing, chunk summaries and the final
// reduction. Chunk summaries optionally stall per chunk to force a specific
// completion order.
func summarizerGateway(delays map[string]time.Duration) *gatewaytest.Fake {
	var mu sync.Mutex
	return &gatewaytest.Fake{
		StructuredFunc: func(_ context.Context, _ []*schema.Message, out any) error {
			return json.Unmarshal([]byte(`{"chunk_size": 1000, "chunk_overlap": 100, "reasoning": "medium document"}`), out)
		},
		GenerateFunc: func(_ context.Context, messages []*schema.Message) (*schema.Message, error) {
			system := messages[0].Content
			if strings.Contains(system, "chunk summaries") {
				// Final reduction echoes its input so tests can assert labels.
				return schema.AssistantMessage(system, nil), nil
			}
			mu.Lock()
			var delay time.Duration
			for marker, d := range delays {
				if strings.Contains(system, marker) {
					delay = d
				}
			}
			mu.Unlock()
			time.Sleep(delay)
			for marker := range delays {
				if strings.Contains(system, marker) {
					return schema.AssistantMessage("summary of "+marker, nil), nil
				}
			}
			return schema.AssistantMessage("chunk summary", nil), nil
		},
	}
}

func TestSummarizeFanOutAllChunksLabeled(t *testing.T) {
	// Completion order 2, 0, 1.
	delays := map[string]time.Duration{
		"alpha": 20 * time.Millisecond,
		"beta":  40 * time.Millisecond,
		"gamma": 0,
	}
	gw := summarizerGateway(delays)
	chunker := &fakeChunker{chunks: []string{"alpha", "beta", "gamma"}}

	wf, err := Build(context.Background(), Config{Gateway: gw, Chunker: chunker, Reader: &fakeReader{}})
	require.NoError(t, err)

	resp, err := wf.Run(context.Background(), conversationWith("summarize this long text"))
	require.NoError(t, err)

	assert.Equal(t, 3, resp.NumChunks)
	require.Len(t, resp.ChunkSummaries, 3)
	for _, label := range []string{"[Chunk 0]", "[Chunk 1]", "[Chunk 2]"} {
		assert.Equal(t, 1, strings.Count(resp.FinalSummary, label), "label %s", label)
	}
	assert.Equal(t, 1000, chunker.gotSize)
	assert.Equal(t, 100, chunker.gotOverlap)
}

func TestSummarizeResolvesResearchFirst(t *testing.T) {
	gw := summarizerGateway(nil)
	chunker := &fakeChunker{}

	conv := conversationWith("summarize the findings")
	conv.Research = &model.ResearchResponse{ResearchFindings: "deep research findings", Source: "researcher"}

	var sawChunk string
	gw.GenerateFunc = func(_ context.Context, messages []*schema.Message) (*schema.Message, error) {
		system := messages[0].Content
		if strings.Contains(system, "chunk summaries") {
			return schema.AssistantMessage("final summary", nil), nil
		}
		sawChunk = system
		return schema.AssistantMessage("chunk summary", nil), nil
	}

	wf, err := Build(context.Background(), Config{Gateway: gw, Chunker: chunker, Reader: &fakeReader{}})
	require.NoError(t, err)

	resp, err := wf.Run(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, "final summary", resp.FinalSummary)
	assert.Contains(t, sawChunk, "deep research findings")
}

func TestSummarizeFileResolution(t *testing.T) {
	gw := summarizerGateway(nil)
	chunker := &fakeChunker{}
	reader := &fakeReader{docs: map[string]*files.Document{
		"report.txt": {Content: "file body"},
	}}

	wf, err := Build(context.Background(), Config{Gateway: gw, Chunker: chunker, Reader: reader})
	require.NoError(t, err)

	resp, err := wf.Run(context.Background(), conversationWith("summarize report.txt"))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.NumChunks)
	assert.Contains(t, resp.ChunkSummaries[0], "[Chunk 0]")
}

func TestSummarizeUnreadableFile(t *testing.T) {
	gw := summarizerGateway(nil)

	wf, err := Build(context.Background(), Config{Gateway: gw, Chunker: &fakeChunker{}, Reader: &fakeReader{}})
	require.NoError(t, err)

	resp, err := wf.Run(context.Background(), conversationWith("summarize missing.md"))
	require.NoError(t, err)

	assert.Contains(t, resp.FinalSummary, "Error reading file")
	assert.Empty(t, resp.ChunkSummaries)
	assert.Zero(t, resp.NumChunks)
}

func TestSummarizeNoDocument(t *testing.T) {
	gw := summarizerGateway(nil)

	wf, err := Build(context.Background(), Config{Gateway: gw, Chunker: &fakeChunker{}, Reader: &fakeReader{}})
	require.NoError(t, err)

	resp, err := wf.Run(context.Background(), model.NewConversation("t1"))
	require.NoError(t, err)
	assert.Equal(t, "Error: No document provided", resp.FinalSummary)
	assert.Zero(t, resp.NumChunks)
}

func TestSummarizeEmptyChunks(t *testing.T) {
	gw := summarizerGateway(nil)
	chunker := &fakeChunker{chunks: []string{}}

	wf, err := Build(context.Background(), Config{Gateway: gw, Chunker: chunker, Reader: &fakeReader{}})
	require.NoError(t, err)

	resp, err := wf.Run(context.Background(), conversationWith("summarize this"))
	require.NoError(t, err)
	assert.Equal(t, noSummariesPlaceholder, resp.FinalSummary)
	assert.Zero(t, resp.NumChunks)
}

func TestChunkSettingsClamped(t *testing.T) {
	gw := summarizerGateway(nil)
	gw.StructuredFunc = func(_ context.Context, _ []*schema.Message, out any) error {
		return json.Unmarshal([]byte(`{"chunk_size": 99999, "chunk_overlap": 1, "reasoning": "x"}`), out)
	}
	chunker := &fakeChunker{}

	wf, err := Build(context.Background(), Config{Gateway: gw, Chunker: chunker, Reader: &fakeReader{}})
	require.NoError(t, err)

	_, err = wf.Run(context.Background(), conversationWith("summarize this text"))
	require.NoError(t, err)
	assert.Equal(t, maxChunkSize, chunker.gotSize)
	assert.Equal(t, minChunkOverlap, chunker.gotOverlap)
}
