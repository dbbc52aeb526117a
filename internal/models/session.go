package models

import "time"

// SessionDay is the weekend day a session runs on.
type SessionDay string

const (
	SessionDaySaturday SessionDay = "SATURDAY"
	SessionDaySunday   SessionDay = "SUNDAY"
)

// Valid returns true when the day is a supported value.
func (d SessionDay) Valid() bool {
	return d == SessionDaySaturday || d == SessionDaySunday
}

// Weekday maps the session day onto calendar numbering.
func (d SessionDay) Weekday() (time.Weekday, bool) {
	switch d {
	case SessionDaySaturday:
		return time.Saturday, true
	case SessionDaySunday:
		return time.Sunday, true
	default:
		return 0, false
	}
}

// Session is a weekly time slot belonging to a class. Times are HH:MM wall
// clock strings; a slot never crosses midnight.
type Session struct {
	ID        string     `db:"id" json:"id"`
	ClassID   string     `db:"class_id" json:"class_id"`
	Day       SessionDay `db:"day" json:"day"`
	StartTime string     `db:"start_time" json:"start_time"`
	EndTime   string     `db:"end_time" json:"end_time"`
	Capacity  int        `db:"capacity" json:"capacity"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// SessionWithLoad extends Session with its current enrollee count.
type SessionWithLoad struct {
	Session
	Enrolled int `db:"enrolled" json:"enrolled"`
}

// SlotValidation reports every problem found with a proposed slot so callers
// can surface all of them at once.
type SlotValidation struct {
	Valid     bool     `json:"valid"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// SessionFilter captures filtering criteria for listing sessions.
type SessionFilter struct {
	ClassID  string
	Day      SessionDay
	Page     int
	PageSize int
}
