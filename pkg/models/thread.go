package models

// DefaultThreadID is the single per-user conversation. The data model keeps
// a thread id everywhere so more threads can exist later, but every client
// path currently uses this one.
const DefaultThreadID = "default"

// Thread is the per-user conversation document. The client and the remote
// responder both write it with last-write-wins semantics; no field is
// guarded beyond that.
type Thread struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	// MessageCount is maintained client-side on each send. Best-effort,
	// not authoritative.
	MessageCount int `json:"messageCount"`
	// AssistantIsTyping is owned by the responder; the client only reads it.
	AssistantIsTyping bool `json:"assistantIsTyping"`
	// UnreadCount is incremented by the responder on new assistant
	// messages and reset to 0 by the client on read.
	UnreadCount     int    `json:"unreadCount"`
	LastReadAt      string `json:"lastReadAt,omitempty"`
	LastMessageAt   string `json:"lastMessageAt,omitempty"`
	LastMessageRole Role   `json:"lastMessageRole,omitempty"`
}

// NewThread returns an empty thread document stamped with ts.
func NewThread(id, ts string) Thread {
	return Thread{ID: id, CreatedAt: ts, UpdatedAt: ts}
}
