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

// StudentRepository handles persistence of students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create persists a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.Status == "" {
		student.Status = models.RegistrationPending
	}
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, student_number, full_name, email, phone, class_id, status, created_at, updated_at)
        VALUES (:id, :student_number, :full_name, :email, :phone, :class_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// BulkCreate inserts many students in one transaction. Used by roster
// import; the whole batch commits or rolls back together.
func (r *StudentRepository) BulkCreate(ctx context.Context, students []models.Student) error {
	if len(students) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin bulk create students: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const query = `INSERT INTO students (id, student_number, full_name, email, phone, class_id, status, created_at, updated_at)
        VALUES (:id, :student_number, :full_name, :email, :phone, :class_id, :status, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range students {
		s := &students[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if s.Status == "" {
			s.Status = models.RegistrationPending
		}
		s.CreatedAt = now
		s.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, s); err != nil {
			return fmt.Errorf("bulk create student %s: %w", s.StudentNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create students: %w", err)
	}
	committed = true
	return nil
}

// FindByID returns a student by their stable uuid.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, student_number, full_name, email, phone, class_id, status, created_at, updated_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindDetailByID returns a student with class and session info.
func (r *StudentRepository) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	const query = `SELECT s.id, s.student_number, s.full_name, s.email, s.phone, s.class_id, s.status,
        s.created_at, s.updated_at, cl.name AS class_name,
        (SELECT ss.session_id FROM session_students ss JOIN sessions se ON se.id = ss.session_id
            WHERE ss.student_id = s.id AND se.day = 'SATURDAY') AS saturday_session_id,
        (SELECT ss.session_id FROM session_students ss JOIN sessions se ON se.id = ss.session_id
            WHERE ss.student_id = s.id AND se.day = 'SUNDAY') AS sunday_session_id
        FROM students s
        JOIN classes cl ON cl.id = s.class_id
        WHERE s.id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByNumberOrEmail reports whether a student with the same number or
// email is already registered.
func (r *StudentRepository) ExistsByNumberOrEmail(ctx context.Context, studentNumber, email string) (bool, error) {
	const query = `SELECT 1 FROM students WHERE student_number = $1 OR email = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentNumber, email); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student uniqueness: %w", err)
	}
	return true, nil
}

// List returns students filtered by the provided criteria.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := `FROM students s JOIN classes cl ON cl.id = s.class_id`
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(s.full_name ILIKE $%d OR s.student_number ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.student_number, s.full_name, s.email, s.phone, s.class_id, s.status,
        s.created_at, s.updated_at, cl.name AS class_name,
        (SELECT ss.session_id FROM session_students ss JOIN sessions se ON se.id = ss.session_id
            WHERE ss.student_id = s.id AND se.day = 'SATURDAY') AS saturday_session_id,
        (SELECT ss.session_id FROM session_students ss JOIN sessions se ON se.id = ss.session_id
            WHERE ss.student_id = s.id AND se.day = 'SUNDAY') AS sunday_session_id
        %s ORDER BY s.full_name ASC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// UpdateStatus flips the registration status.
func (r *StudentRepository) UpdateStatus(ctx context.Context, id string, status models.RegistrationStatus) error {
	const query = `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	return nil
}
