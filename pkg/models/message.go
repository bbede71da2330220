package models

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the author side of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TimestampLayout is the canonical message timestamp encoding: UTC ISO-8601
// with fixed-width nanoseconds so encoded values sort lexicographically.
// All ordering and cursor math is done on this field, never on document ids.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTimestamp encodes t in the canonical layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ContentItem is one element of a message body. Only the "text" variant is
// currently produced or consumed; unknown types round-trip untouched.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

const ContentTypeText = "text"

// Message is a single chat message. Messages are append-only; the client
// never mutates or deletes them.
type Message struct {
	ID      string        `json:"id"`
	Role    Role          `json:"role"`
	Content []ContentItem `json:"content"`
	// Timestamp in TimestampLayout. Lexicographic order == chronological order.
	Timestamp string `json:"timestamp"`
	// Seq disambiguates messages that share an identical timestamp. It is
	// assigned by the store on append and participates in cursor keys so a
	// boundary strip can never drop a distinct message.
	Seq uint64 `json:"seq,omitempty"`
}

// NewMessage builds a message with a single text content item stamped now.
func NewMessage(role Role, text string) Message {
	return Message{
		Role:      role,
		Content:   []ContentItem{{Type: ContentTypeText, Text: text}},
		Timestamp: FormatTimestamp(time.Now()),
	}
}

// Text returns the concatenated text of all text content items.
func (m Message) Text() string {
	var b strings.Builder
	for _, c := range m.Content {
		if c.Type == ContentTypeText {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// Key returns the sortable cursor key for the message: fixed-width
// timestamp plus the store-assigned sequence tie-breaker.
func (m Message) Key() string {
	return fmt.Sprintf("%s-%06d", m.Timestamp, m.Seq)
}
