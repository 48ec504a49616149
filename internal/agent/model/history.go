package model

import (
	"regexp"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// RecentContextCount is how many trailing messages feed prompt context.
const RecentContextCount = 3

var blankLines = regexp.MustCompile(`\n+`)

// FormatHistory renders messages as USER/ASSISTANT prefixed lines for prompt
// context. Runs of blank lines inside a message are collapsed.
func FormatHistory(messages []*schema.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		prefix := "ASSISTANT"
		if msg.Role == schema.User {
			prefix = "USER"
		}
		clean := blankLines.ReplaceAllString(strings.TrimSpace(msg.Content), "\n")
		lines = append(lines, prefix+": "+clean)
	}
	return strings.Join(lines, "\n")
}

// RecentContext formats the trailing RecentContextCount messages. With
// excludeLast the newest message is left out so it can be supplied separately
// as the live query.
func (c *Conversation) RecentContext(excludeLast bool) string {
	recent := c.RecentMessages(RecentContextCount)
	if excludeLast && len(recent) > 0 {
		recent = recent[:len(recent)-1]
	}
	return FormatHistory(recent)
}
