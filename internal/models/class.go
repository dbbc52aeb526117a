package models

import "time"

// Class belongs to one course and owns sessions and students.
type Class struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Name      string    `db:"name" json:"name"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail enriches Class with course and roster info.
type ClassDetail struct {
	Class
	CourseName   string `db:"course_name" json:"course_name"`
	StudentCount int    `db:"student_count" json:"student_count"`
	SessionCount int    `db:"session_count" json:"session_count"`
}

// ClassFilter captures filtering criteria for listing classes.
type ClassFilter struct {
	CourseID string
	Search   string
	Page     int
	PageSize int
}
