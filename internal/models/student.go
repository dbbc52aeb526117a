package models

import "time"

// RegistrationStatus tracks student registration approval.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "PENDING"
	RegistrationApproved RegistrationStatus = "APPROVED"
	RegistrationRejected RegistrationStatus = "REJECTED"
)

// Valid returns true when the status is a supported value.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationPending, RegistrationApproved, RegistrationRejected:
		return true
	default:
		return false
	}
}

// Student belongs to one class. The id doubles as the stable QR identity; the
// student number is the human-readable identifier printed on cards.
type Student struct {
	ID            string             `db:"id" json:"id"`
	StudentNumber string             `db:"student_number" json:"student_number"`
	FullName      string             `db:"full_name" json:"full_name"`
	Email         string             `db:"email" json:"email"`
	Phone         *string            `db:"phone" json:"phone,omitempty"`
	ClassID       string             `db:"class_id" json:"class_id"`
	Status        RegistrationStatus `db:"status" json:"status"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}

// StudentDetail enriches Student with class and session info.
type StudentDetail struct {
	Student
	ClassName         string  `db:"class_name" json:"class_name"`
	SaturdaySessionID *string `db:"saturday_session_id" json:"saturday_session_id,omitempty"`
	SundaySessionID   *string `db:"sunday_session_id" json:"sunday_session_id,omitempty"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	ClassID  string
	Status   RegistrationStatus
	Search   string
	Page     int
	PageSize int
}

// ScanPayload is the structural shape of a scanned QR identity. It is
// validated at the boundary before any domain logic runs.
type ScanPayload struct {
	UUID      string `json:"uuid" validate:"required,uuid"`
	StudentID string `json:"student_id" validate:"required"`
}

// ImportRowError reports validation failures for one spreadsheet row.
type ImportRowError struct {
	Row    int               `json:"row"`
	Fields map[string]string `json:"fields"`
}

// ImportResult summarises a roster import.
type ImportResult struct {
	Imported int              `json:"imported"`
	Failed   int              `json:"failed"`
	Errors   []ImportRowError `json:"errors,omitempty"`
}
