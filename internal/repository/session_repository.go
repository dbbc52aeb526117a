package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/weekend-course-api/internal/models"
)

// SessionRepository handles persistence of sessions and the student/session
// membership table.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a new session record.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CreatedAt = now
	session.UpdatedAt = now
	const query = `INSERT INTO sessions (id, class_id, day, start_time, end_time, capacity, created_at, updated_at)
        VALUES (:id, :class_id, :day, :start_time, :end_time, :capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Update persists slot and capacity changes.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sessions SET day = :day, start_time = :start_time, end_time = :end_time,
        capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Delete removes a session and its memberships.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin delete session: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_students WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("clear session memberships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}
	committed = true
	return nil
}

// FindByID returns a session by its id.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT id, class_id, day, start_time, end_time, capacity, created_at, updated_at FROM sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns sessions with their current load.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionWithLoad, int, error) {
	base := `FROM sessions se`
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("se.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Day != "" {
		conditions = append(conditions, fmt.Sprintf("se.day = $%d", len(args)+1))
		args = append(args, filter.Day)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT se.id, se.class_id, se.day, se.start_time, se.end_time, se.capacity,
        se.created_at, se.updated_at,
        (SELECT COUNT(*) FROM session_students ss WHERE ss.session_id = se.id) AS enrolled
        %s ORDER BY se.day ASC, se.start_time ASC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var sessions []models.SessionWithLoad
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// ListByClassAndDay returns every session of a class on a day, used by the
// conflict checker.
func (r *SessionRepository) ListByClassAndDay(ctx context.Context, classID string, day models.SessionDay) ([]models.Session, error) {
	const query = `SELECT id, class_id, day, start_time, end_time, capacity, created_at, updated_at
        FROM sessions WHERE class_id = $1 AND day = $2 ORDER BY start_time ASC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, classID, day); err != nil {
		return nil, fmt.Errorf("list class day sessions: %w", err)
	}
	return sessions, nil
}

// ListWithLoadByClass returns all sessions of a class with enrollee counts,
// used by the balancer.
func (r *SessionRepository) ListWithLoadByClass(ctx context.Context, classID string) ([]models.SessionWithLoad, error) {
	const query = `SELECT se.id, se.class_id, se.day, se.start_time, se.end_time, se.capacity,
        se.created_at, se.updated_at,
        (SELECT COUNT(*) FROM session_students ss WHERE ss.session_id = se.id) AS enrolled
        FROM sessions se WHERE se.class_id = $1 ORDER BY se.day ASC, se.start_time ASC`
	var sessions []models.SessionWithLoad
	if err := r.db.SelectContext(ctx, &sessions, query, classID); err != nil {
		return nil, fmt.Errorf("list class sessions with load: %w", err)
	}
	return sessions, nil
}

// CountEnrolled returns the current enrollee count for a session.
func (r *SessionRepository) CountEnrolled(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM session_students WHERE session_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sessionID); err != nil {
		return 0, fmt.Errorf("count session enrollees: %w", err)
	}
	return count, nil
}

// SessionsByStudent returns the sessions a student is currently assigned to.
func (r *SessionRepository) SessionsByStudent(ctx context.Context, studentID string) ([]models.Session, error) {
	const query = `SELECT se.id, se.class_id, se.day, se.start_time, se.end_time, se.capacity, se.created_at, se.updated_at
        FROM sessions se
        JOIN session_students ss ON ss.session_id = se.id
        WHERE ss.student_id = $1`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, studentID); err != nil {
		return nil, fmt.Errorf("list student sessions: %w", err)
	}
	return sessions, nil
}

// StudentsBySession returns the students enrolled in a session.
func (r *SessionRepository) StudentsBySession(ctx context.Context, sessionID string) ([]models.Student, error) {
	const query = `SELECT s.id, s.student_number, s.full_name, s.email, s.phone, s.class_id, s.status, s.created_at, s.updated_at
        FROM students s
        JOIN session_students ss ON ss.student_id = s.id
        WHERE ss.session_id = $1`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session students: %w", err)
	}
	return students, nil
}

// UnassignedStudents returns approved class students with zero memberships.
func (r *SessionRepository) UnassignedStudents(ctx context.Context, classID string) ([]models.Student, error) {
	const query = `SELECT s.id, s.student_number, s.full_name, s.email, s.phone, s.class_id, s.status, s.created_at, s.updated_at
        FROM students s
        WHERE s.class_id = $1 AND s.status = $2
          AND NOT EXISTS (SELECT 1 FROM session_students ss WHERE ss.student_id = s.id)
        ORDER BY s.full_name ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classID, models.RegistrationApproved); err != nil {
		return nil, fmt.Errorf("list unassigned students: %w", err)
	}
	return students, nil
}

// AssignPair inserts both weekend memberships for a student in one
// transaction so a student is never left half-assigned.
func (r *SessionRepository) AssignPair(ctx context.Context, studentID, saturdayID, sundayID string) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin assign pair: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()
	const insert = `INSERT INTO session_students (session_id, student_id) VALUES ($1, $2)`
	if _, err := tx.ExecContext(ctx, insert, saturdayID, studentID); err != nil {
		return fmt.Errorf("assign saturday session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insert, sundayID, studentID); err != nil {
		return fmt.Errorf("assign sunday session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assign pair: %w", err)
	}
	committed = true
	return nil
}
