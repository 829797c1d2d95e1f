package domain

import "time"

// ReportType selects one of the admin reports.
type ReportType string

const (
	ReportUserActivity      ReportType = "user_activity"
	ReportUserRegistrations ReportType = "user_registrations"
)

// DateRange bounds a report. Nil ends are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

type UserActivity struct {
	Username     string     `json:"username"`
	SessionCount int64      `json:"sessionCount"`
	LastActivity *time.Time `json:"lastActivity"`
}

type Registrations struct {
	Date          string `json:"date"` // YYYY-MM-DD, UTC
	Registrations int64  `json:"registrations"`
}
