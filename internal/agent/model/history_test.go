package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestFormatHistory(t *testing.T) {
	msgs := []*schema.Message{
		schema.UserMessage("hello"),
		schema.AssistantMessage("hi there", nil),
		nil,
		schema.UserMessage("  padded  "),
	}

	got := FormatHistory(msgs)
	assert.Equal(t, "USER: hello\nASSISTANT: hi there\nUSER: padded", got)
}

func TestFormatHistoryCollapsesBlankLines(t *testing.T) {
	msgs := []*schema.Message{
		schema.AssistantMessage("first line\n\n\nsecond line", nil),
	}

	got := FormatHistory(msgs)
	assert.Equal(t, "ASSISTANT: first line\nsecond line", got)
}

func TestRecentContextLimitsToTrailingMessages(t *testing.T) {
	conv := NewConversation("t1")
	conv.AppendUser("one")
	conv.Messages = append(conv.Messages, schema.AssistantMessage("two", nil))
	conv.AppendUser("three")
	conv.Messages = append(conv.Messages, schema.AssistantMessage("four", nil))

	got := conv.RecentContext(false)
	assert.Equal(t, "ASSISTANT: two\nUSER: three\nASSISTANT: four", got)
}

func TestRecentContextExcludeLast(t *testing.T) {
	conv := NewConversation("t1")
	conv.AppendUser("question")
	conv.Messages = append(conv.Messages, schema.AssistantMessage("reply", nil))
	conv.AppendUser("follow-up")

	got := conv.RecentContext(true)
	assert.Equal(t, "USER: question\nASSISTANT: reply", got)
}

func TestLastHumanIndex(t *testing.T) {
	conv := NewConversation("t1")
	assert.Equal(t, -1, conv.LastHumanIndex())

	conv.AppendUser("q")
	conv.Messages = append(conv.Messages,
		schema.AssistantMessage("a", nil),
		schema.AssistantMessage("b", nil),
	)
	assert.Equal(t, 0, conv.LastHumanIndex())

	conv.AppendUser("q2")
	assert.Equal(t, 3, conv.LastHumanIndex())
}

func TestClearResponses(t *testing.T) {
	conv := NewConversation("t1")
	conv.Research = &ResearchResponse{Source: "researcher"}
	conv.RAG = &RAGResponse{Source: "answer_query"}
	conv.Summarizer = &SummarizerResponse{NumChunks: 1}
	conv.Diagram = &DiagramResponse{Filename: "d.mmd"}

	conv.ClearResponses()
	assert.Nil(t, conv.Research)
	assert.Nil(t, conv.RAG)
	assert.Nil(t, conv.Summarizer)
	assert.Nil(t, conv.Diagram)
}
