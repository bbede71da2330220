package auth

import (
	"time"

	"coachsync/pkg/logger"
	"coachsync/pkg/models"
	"coachsync/pkg/utils"
)

// Session is the clock/session context threaded into remote calls: the
// signed-in user, a correlation id for this process lifetime, and the
// device timezone used by the responder for localization.
type Session struct {
	UserID    string
	SessionID string

	tzName string
	loc    *time.Location
	nowFn  func() time.Time
}

// NewSession creates a session for userID. tzName is an IANA timezone name;
// empty or unknown names fall back to UTC.
func NewSession(userID, tzName string) *Session {
	loc := time.UTC
	if tzName != "" {
		if l, err := time.LoadLocation(tzName); err == nil {
			loc = l
		} else {
			logger.Warn("unknown_timezone", "tz", tzName, "error", err)
			tzName = "UTC"
		}
	} else {
		tzName = "UTC"
	}
	return &Session{
		UserID:    userID,
		SessionID: utils.GenSessionID(),
		tzName:    tzName,
		loc:       loc,
		nowFn:     time.Now,
	}
}

// Timezone returns the IANA timezone name of the device.
func (s *Session) Timezone() string { return s.tzName }

// Now returns the current time in the session's timezone.
func (s *Session) Now() time.Time { return s.nowFn().In(s.loc) }

// NowLocal returns the device-local time formatted as RFC3339.
func (s *Session) NowLocal() string { return s.Now().Format(time.RFC3339) }

// NowStamp returns the current time in the canonical document timestamp
// layout (UTC).
func (s *Session) NowStamp() string { return models.FormatTimestamp(s.nowFn()) }
