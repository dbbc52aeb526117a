package models

// AutoAssignment records one student placed by the balancer.
type AutoAssignment struct {
	StudentID         string `json:"student_id"`
	StudentName       string `json:"student_name"`
	SaturdaySessionID string `json:"saturday_session_id"`
	SundaySessionID   string `json:"sunday_session_id"`
}

// UnassignedStudent reports a student the balancer could not place.
type UnassignedStudent struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Reason      string `json:"reason"`
}

// AutoAssignResult summarises a balancing run. Partial success is expected
// and reported, not fatal.
type AutoAssignResult struct {
	Assigned    int                 `json:"assigned"`
	Failed      int                 `json:"failed"`
	Errors      []string            `json:"errors,omitempty"`
	Assignments []AutoAssignment    `json:"assignments,omitempty"`
	Unassigned  []UnassignedStudent `json:"unassigned,omitempty"`
}
