package models

import "time"

// CourseStatus represents the lifecycle of a course.
type CourseStatus string

const (
	CourseStatusActive    CourseStatus = "ACTIVE"
	CourseStatusInactive  CourseStatus = "INACTIVE"
	CourseStatusCompleted CourseStatus = "COMPLETED"
)

// Valid returns true when the status is a supported value.
func (s CourseStatus) Valid() bool {
	switch s {
	case CourseStatusActive, CourseStatusInactive, CourseStatusCompleted:
		return true
	default:
		return false
	}
}

// Course groups classes under one head teacher. A course without a head
// teacher is inactive.
type Course struct {
	ID            string       `db:"id" json:"id"`
	Name          string       `db:"name" json:"name"`
	Status        CourseStatus `db:"status" json:"status"`
	HeadTeacherID *string      `db:"head_teacher_id" json:"head_teacher_id,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with teacher and class info.
type CourseDetail struct {
	Course
	HeadTeacherName *string `db:"head_teacher_name" json:"head_teacher_name,omitempty"`
	ClassCount      int     `db:"class_count" json:"class_count"`
	TeacherCount    int     `db:"teacher_count" json:"teacher_count"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	Status    CourseStatus
	TeacherID string
	Search    string
	Page      int
	PageSize  int
}
