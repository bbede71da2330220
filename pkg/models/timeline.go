package models

// TimelineEntry is one event on the user's coaching timeline (meetings,
// conflicts, wins). Entries are keyed and ordered by OccurredAt using the
// same fixed-width layout as message timestamps.
type TimelineEntry struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Title      string `json:"title"`
	Notes      string `json:"notes,omitempty"`
	OccurredAt string `json:"occurredAt"`
	CreatedAt  string `json:"createdAt"`
}
