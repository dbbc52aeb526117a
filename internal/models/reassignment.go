package models

import "time"

// ReassignmentStatus tracks the lifecycle of a reassignment request.
type ReassignmentStatus string

const (
	ReassignmentPending  ReassignmentStatus = "PENDING"
	ReassignmentApproved ReassignmentStatus = "APPROVED"
	ReassignmentDenied   ReassignmentStatus = "DENIED"
)

// Valid returns true when the status is a supported value.
func (s ReassignmentStatus) Valid() bool {
	switch s {
	case ReassignmentPending, ReassignmentApproved, ReassignmentDenied:
		return true
	default:
		return false
	}
}

// ReassignmentRequest is a student-initiated request to move from one
// assigned session to another on the same day and class.
type ReassignmentRequest struct {
	ID            string             `db:"id" json:"id"`
	StudentID     string             `db:"student_id" json:"student_id"`
	FromSessionID string             `db:"from_session_id" json:"from_session_id"`
	ToSessionID   string             `db:"to_session_id" json:"to_session_id"`
	Reason        *string            `db:"reason" json:"reason,omitempty"`
	Status        ReassignmentStatus `db:"status" json:"status"`
	DecidedBy     *string            `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt     *time.Time         `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
}

// ReassignmentDetail enriches the request with student metadata.
type ReassignmentDetail struct {
	ReassignmentRequest
	StudentName   string `db:"student_name" json:"student_name"`
	StudentNumber string `db:"student_number" json:"student_number"`
}

// ReassignmentFilter scopes listing queries.
type ReassignmentFilter struct {
	StudentID string
	Status    ReassignmentStatus
	Page      int
	PageSize  int
}
