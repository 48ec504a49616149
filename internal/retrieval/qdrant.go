package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/convoflow-poc/server/internal/agent/model"
	logx "github.com/convoflow-poc/server/pkg/logger"
	"github.com/convoflow-poc/server/pkg/tokenizer"
)

const (
	ingestChunkSize    = 1000
	ingestChunkOverlap = 200
)

var pointNamespace = uuid.MustParse("7c9a52de-1b44-4c0e-9f3d-2a6e8b1d4f5c")

// QdrantRetriever implements Retriever against Qdrant's REST API. Documents
// are chunked before indexing and each chunk becomes one point whose payload
// carries the chunk text plus the document metadata.
type QdrantRetriever struct {
	baseURL    string
	apiKey     string
	collection string
	embedder   Embedder
	tok        *tokenizer.Tokenizer
	client     *http.Client

	ensureOnce sync.Once
	ensureErr  error
}

func NewQdrantRetriever(cfg model.RetrievalConfig, embedder Embedder) *QdrantRetriever {
	base := strings.TrimRight(strings.TrimSpace(cfg.QdrantBaseURL), "/")
	if base == "" {
		base = "http://localhost:6333"
	}
	return &QdrantRetriever{
		baseURL:    base,
		apiKey:     cfg.QdrantAPIKey,
		collection: cfg.Collection,
		embedder:   embedder,
		tok:        tokenizer.New(""),
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (q *QdrantRetriever) Ingest(ctx context.Context, content string, metadata map[string]any) (*IngestResult, error) {
	if strings.TrimSpace(content) == "" {
		return &IngestResult{Status: "error", Error: "empty document content"}, nil
	}

	chunks, err := q.tok.Chunk(content, ingestChunkSize, ingestChunkOverlap)
	if err != nil {
		return &IngestResult{Status: "error", Error: err.Error()}, nil
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload,omitempty"`
	}

	docID := uuid.NewString()
	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := q.embedder.Embed(ctx, chunk)
		if err != nil {
			return &IngestResult{Status: "error", Error: err.Error()}, nil
		}
		if i == 0 {
			if err := q.ensureCollection(ctx, len(vec)); err != nil {
				return &IngestResult{Status: "error", Error: err.Error()}, nil
			}
		}
		payload := map[string]any{
			"content":     chunk,
			"metadata":    metadata,
			"doc_id":      docID,
			"chunk_index": i,
		}
		points = append(points, point{
			ID:      uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s:%d", docID, i))).String(),
			Vector:  vec,
			Payload: payload,
		})
	}

	req := struct {
		Points []point `json:"points"`
	}{Points: points}

	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(q.collection))
	if err := q.doJSON(ctx, http.MethodPut, path, req, nil); err != nil {
		return &IngestResult{Status: "error", Error: err.Error()}, nil
	}

	logx.Debug().Int("chunks", len(points)).Str("doc_id", docID).Msg("document indexed")
	return &IngestResult{Status: "success", NumChunks: len(points), Metadata: metadata}, nil
}

func (q *QdrantRetriever) Query(ctx context.Context, text string, k int) ([]ContextEntry, error) {
	if k <= 0 {
		return []ContextEntry{}, nil
	}
	vec, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	req := struct {
		Vector      []float32 `json:"vector"`
		Limit       int       `json:"limit"`
		WithPayload bool      `json:"with_payload"`
	}{Vector: vec, Limit: k, WithPayload: true}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(q.collection))
	if err := q.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	out := make([]ContextEntry, 0, len(resp.Result))
	for _, r := range resp.Result {
		entry := ContextEntry{Score: r.Score, Source: "vector_store"}
		if r.Payload != nil {
			if v, ok := r.Payload["content"].(string); ok {
				entry.Content = v
			}
			if m, ok := r.Payload["metadata"].(map[string]any); ok {
				entry.Metadata = m
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (q *QdrantRetriever) ensureCollection(ctx context.Context, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be > 0")
	}
	q.ensureOnce.Do(func() {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		}
		path := fmt.Sprintf("/collections/%s", url.PathEscape(q.collection))
		err := q.doJSON(ctx, http.MethodPut, path, body, nil)
		if err != nil && strings.Contains(err.Error(), "status=409") {
			// Collection already exists.
			err = nil
		}
		q.ensureErr = err
	})
	return q.ensureErr
}

func (q *QdrantRetriever) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
