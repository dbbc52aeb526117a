package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/weekend-course-api/internal/models"
)

// ErrRequestNotPending is returned when a decision targets a request that is
// no longer PENDING. Processing is deliberately not idempotent.
var ErrRequestNotPending = errors.New("reassignment request is not pending")

// ErrMembershipMissing is returned when an approval finds the student no
// longer assigned to the source session.
var ErrMembershipMissing = errors.New("student is not assigned to the source session")

// ReassignmentRepository handles persistence of reassignment requests.
type ReassignmentRepository struct {
	db *sqlx.DB
}

// NewReassignmentRepository constructs the repository.
func NewReassignmentRepository(db *sqlx.DB) *ReassignmentRepository {
	return &ReassignmentRepository{db: db}
}

// Create persists a new PENDING request.
func (r *ReassignmentRepository) Create(ctx context.Context, req *models.ReassignmentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.ReassignmentPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO reassignment_requests (id, student_id, from_session_id, to_session_id, reason, status, created_at)
        VALUES (:id, :student_id, :from_session_id, :to_session_id, :reason, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create reassignment request: %w", err)
	}
	return nil
}

// FindByID returns a request by its id.
func (r *ReassignmentRepository) FindByID(ctx context.Context, id string) (*models.ReassignmentRequest, error) {
	const query = `SELECT id, student_id, from_session_id, to_session_id, reason, status, decided_by, decided_at, created_at
        FROM reassignment_requests WHERE id = $1`
	var req models.ReassignmentRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// HasPending reports whether the student has an open request.
func (r *ReassignmentRepository) HasPending(ctx context.Context, studentID string) (bool, error) {
	const query = `SELECT 1 FROM reassignment_requests WHERE student_id = $1 AND status = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, models.ReassignmentPending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return true, nil
}

// CountByStudent returns the lifetime number of requests for a student.
func (r *ReassignmentRepository) CountByStudent(ctx context.Context, studentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM reassignment_requests WHERE student_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID); err != nil {
		return 0, fmt.Errorf("count student requests: %w", err)
	}
	return count, nil
}

// List returns requests with student metadata.
func (r *ReassignmentRepository) List(ctx context.Context, filter models.ReassignmentFilter) ([]models.ReassignmentDetail, int, error) {
	base := `FROM reassignment_requests rr JOIN students s ON s.id = rr.student_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("rr.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("rr.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT rr.id, rr.student_id, rr.from_session_id, rr.to_session_id, rr.reason,
        rr.status, rr.decided_by, rr.decided_at, rr.created_at,
        s.full_name AS student_name, s.student_number
        %s ORDER BY rr.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var requests []models.ReassignmentDetail
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reassignment requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reassignment requests: %w", err)
	}
	return requests, total, nil
}

// Approve marks the request APPROVED and swaps exactly one membership from
// the source to the target session, all in one transaction. The PENDING
// guard runs inside the same statement so two concurrent decisions cannot
// both apply.
func (r *ReassignmentRepository) Approve(ctx context.Context, req *models.ReassignmentRequest, teacherID string) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin approve request: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const decide = `UPDATE reassignment_requests SET status = $2, decided_by = $3, decided_at = $4
        WHERE id = $1 AND status = $5`
	res, err := tx.ExecContext(ctx, decide, req.ID, models.ReassignmentApproved, teacherID, now, models.ReassignmentPending)
	if err != nil {
		return fmt.Errorf("approve request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("approve rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRequestNotPending
	}

	const remove = `DELETE FROM session_students WHERE session_id = $1 AND student_id = $2`
	res, err = tx.ExecContext(ctx, remove, req.FromSessionID, req.StudentID)
	if err != nil {
		return fmt.Errorf("remove source membership: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove rows affected: %w", err)
	}
	if affected == 0 {
		return ErrMembershipMissing
	}

	const add = `INSERT INTO session_students (session_id, student_id) VALUES ($1, $2)`
	if _, err := tx.ExecContext(ctx, add, req.ToSessionID, req.StudentID); err != nil {
		return fmt.Errorf("add target membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approve request: %w", err)
	}
	committed = true

	req.Status = models.ReassignmentApproved
	req.DecidedBy = &teacherID
	req.DecidedAt = &now
	return nil
}

// Deny marks the request DENIED without touching memberships.
func (r *ReassignmentRepository) Deny(ctx context.Context, req *models.ReassignmentRequest, teacherID string) error {
	now := time.Now().UTC()
	const decide = `UPDATE reassignment_requests SET status = $2, decided_by = $3, decided_at = $4
        WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, decide, req.ID, models.ReassignmentDenied, teacherID, now, models.ReassignmentPending)
	if err != nil {
		return fmt.Errorf("deny request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deny rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRequestNotPending
	}

	req.Status = models.ReassignmentDenied
	req.DecidedBy = &teacherID
	req.DecidedAt = &now
	return nil
}
