package models

// NotificationState tracks the engagement-notification cadence for a user.
// The orchestrator reads and advances it on every sweep.
type NotificationState struct {
	UserID string `json:"userId"`
	// SentCount indexes into the per-category interval schedule.
	SentCount  int    `json:"sentCount"`
	LastSentAt string `json:"lastSentAt,omitempty"`
	Category   string `json:"category,omitempty"`
}
