package notify

import "time"

// Schedule is a progressive reminder cadence: the nth reminder for a user
// waits Intervals[n] after the previous one, and the final interval
// repeats once the list is exhausted.
type Schedule struct {
	Category  string
	Intervals []time.Duration
}

// Schedules are the built-in cadences. Unread chat replies nudge quickly
// then back off; re-engagement ramps to weekly.
var Schedules = map[string]Schedule{
	"unread_reply": {
		Category:  "unread_reply",
		Intervals: []time.Duration{1 * time.Hour, 6 * time.Hour, 24 * time.Hour, 48 * time.Hour},
	},
	"re_engage": {
		Category:  "re_engage",
		Intervals: []time.Duration{24 * time.Hour, 72 * time.Hour, 7 * 24 * time.Hour},
	},
}

// NextInterval returns the wait before reminder number sentCount+1.
func (s Schedule) NextInterval(sentCount int) time.Duration {
	if len(s.Intervals) == 0 {
		return 0
	}
	if sentCount >= len(s.Intervals) {
		return s.Intervals[len(s.Intervals)-1]
	}
	return s.Intervals[sentCount]
}

// Due reports whether a reminder is due at now, given when the last one
// went out and how many went out before it. A zero lastSent means none
// have and the first interval counts from the triggering event instead,
// which callers encode by passing that event time as lastSent.
func (s Schedule) Due(now, lastSent time.Time, sentCount int) bool {
	if len(s.Intervals) == 0 || lastSent.IsZero() {
		return false
	}
	return now.Sub(lastSent) >= s.NextInterval(sentCount)
}
