package domain

import "time"

// Session is one continuous period of user activity. A nil FinishedAt means
// the session is open; a user has at most one open session.
type Session struct {
	ID         string
	UserID     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

func (s Session) Open() bool { return s.FinishedAt == nil }
