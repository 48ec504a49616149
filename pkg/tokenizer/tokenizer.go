package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the cl100k_base encoding used for all token accounting.
const DefaultEncoding = "cl100k_base"

// Tokenizer wraps a tiktoken encoding with lazy initialisation. The encoding
// data may be downloaded on first use, so construction never fails; Count and
// Chunk surface the init error instead.
type Tokenizer struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// New creates a Tokenizer for the given encoding. An empty encoding selects
// DefaultEncoding.
func New(encoding string) *Tokenizer {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Tokenizer{encoding: encoding}
}

func (t *Tokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

// Chunk splits text into chunks of at most chunkSize tokens, preferring
// sentence boundaries. Consecutive chunks share roughly overlap tokens of
// trailing sentences so context survives the split.
func (t *Tokenizer) Chunk(text string, chunkSize, overlap int) ([]string, error) {
	if err := t.init(); err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		overlap = 0
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	count := func(s string) int { return len(t.enc.Encode(s, nil, nil)) }
	return chunkSentences(splitSentences(text), chunkSize, overlap, count), nil
}

// chunkSentences packs sentences into chunks of at most chunkSize per the
// given counter, carrying trailing sentences up to the overlap budget into
// the next chunk.
func chunkSentences(sentences []string, chunkSize, overlap int, count func(string) int) []string {
	var (
		chunks  []string
		current []string
		length  int
	)

	for _, sentence := range sentences {
		n := count(sentence)

		if length+n > chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))

			var carried []string
			carriedTokens := 0
			for i := len(current) - 1; i >= 0 && carriedTokens < overlap; i-- {
				carried = append([]string{current[i]}, carried...)
				carriedTokens += count(current[i])
			}
			current = append(carried, sentence)
			length = carriedTokens + n
			continue
		}

		current = append(current, sentence)
		length += n
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}

// splitSentences performs a simple period-based sentence split. Oversized
// "sentences" are handled by Chunk emitting them as their own chunk.
func splitSentences(text string) []string {
	parts := strings.Split(text, ". ")
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if i < len(parts)-1 && !strings.HasSuffix(p, ".") {
			p += "."
		}
		out = append(out, p)
	}
	return out
}
