// Package assist is the boundary to AI response generation. The engine
// only ever fires a Generate call and forgets it; outcomes are logged,
// never surfaced to the user. The typing-indicator fallback timer covers
// the case where generation hangs or dies.
package assist

import "context"

// CodeGenerationCancelled marks a generation superseded by a newer user
// message. It is a distinguished non-error outcome and must not be treated
// as a failure.
const CodeGenerationCancelled = "GENERATION_CANCELLED"

// Request identifies one generation run.
type Request struct {
	UserID    string `json:"userId"`
	ThreadID  string `json:"threadId"`
	MessageID string `json:"messageId"`
	SessionID string `json:"sessionId"`
	// ClientTime is the device-local RFC3339 time and Timezone its IANA
	// name; the responder uses them to localize the reply.
	ClientTime string `json:"clientTime"`
	Timezone   string `json:"timezone"`
}

// Result is the outcome of a generation run.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// Generator triggers an AI response for a just-sent user message.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}
