package models

import "time"

// AttendanceStatus represents the recorded outcome for a student/session/day.
type AttendanceStatus string

const (
	AttendancePresent      AttendanceStatus = "PRESENT"
	AttendanceAbsent       AttendanceStatus = "ABSENT"
	AttendanceWrongSession AttendanceStatus = "WRONG_SESSION"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceWrongSession:
		return true
	default:
		return false
	}
}

// Attendance is one record per (student, session, calendar day). Re-scans
// update the row rather than duplicating it.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	SessionID string           `db:"session_id" json:"session_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	ScannedAt *time.Time       `db:"scanned_at" json:"scanned_at,omitempty"`
	MarkedBy  *string          `db:"marked_by" json:"marked_by,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends the row with student and session metadata for
// listings and exports.
type AttendanceRecord struct {
	Attendance
	StudentName   string     `db:"student_name" json:"student_name"`
	StudentNumber string     `db:"student_number" json:"student_number"`
	ClassID       string     `db:"class_id" json:"class_id"`
	ClassName     *string    `db:"class_name" json:"class_name,omitempty"`
	SessionDay    SessionDay `db:"session_day" json:"session_day"`
	StartTime     string     `db:"start_time" json:"start_time"`
	EndTime       string     `db:"end_time" json:"end_time"`
}

// AttendanceFilter scopes listing and export queries.
type AttendanceFilter struct {
	ClassID   string
	SessionID string
	StudentID string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// MarkResult is the outcome of a scan.
type MarkResult struct {
	Record  *Attendance      `json:"record"`
	Status  AttendanceStatus `json:"status"`
	Updated bool             `json:"updated"`
	Message string           `json:"message"`
}
