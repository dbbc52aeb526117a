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

// CourseRepository handles persistence of courses and their teacher links.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// CreateWithHeadTeacher inserts the course and its head-teacher link in one
// transaction so a half-created course never exists.
func (r *CourseRepository) CreateWithHeadTeacher(ctx context.Context, course *models.Course, headTeacherID string) error {
	now := time.Now().UTC()
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.Status == "" {
		course.Status = models.CourseStatusActive
	}
	course.HeadTeacherID = &headTeacherID
	course.CreatedAt = now
	course.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin create course: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const insertCourse = `INSERT INTO courses (id, name, status, head_teacher_id, created_at, updated_at)
        VALUES (:id, :name, :status, :head_teacher_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertCourse, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}

	const insertLink = `INSERT INTO course_teachers (course_id, user_id) VALUES ($1, $2)`
	if _, err := tx.ExecContext(ctx, insertLink, course.ID, headTeacherID); err != nil {
		return fmt.Errorf("link head teacher: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create course: %w", err)
	}
	committed = true
	return nil
}

// FindByID returns a course by its id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, name, status, head_teacher_id, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindDetailByID returns a course with contextual info.
func (r *CourseRepository) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	const query = `SELECT c.id, c.name, c.status, c.head_teacher_id, c.created_at, c.updated_at,
        u.full_name AS head_teacher_name,
        (SELECT COUNT(*) FROM classes cl WHERE cl.course_id = c.id) AS class_count,
        (SELECT COUNT(*) FROM course_teachers ct WHERE ct.course_id = c.id) AS teacher_count
        FROM courses c
        LEFT JOIN users u ON u.id = c.head_teacher_id
        WHERE c.id = $1`
	var detail models.CourseDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns courses filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := `FROM courses c LEFT JOIN users u ON u.id = c.head_teacher_id`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM course_teachers ct WHERE ct.course_id = c.id AND ct.user_id = $%d)", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("c.name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT c.id, c.name, c.status, c.head_teacher_id, c.created_at, c.updated_at,
        u.full_name AS head_teacher_name,
        (SELECT COUNT(*) FROM classes cl WHERE cl.course_id = c.id) AS class_count,
        (SELECT COUNT(*) FROM course_teachers ct WHERE ct.course_id = c.id) AS teacher_count
        %s ORDER BY c.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// UpdateStatus changes the course lifecycle status.
func (r *CourseRepository) UpdateStatus(ctx context.Context, id string, status models.CourseStatus) error {
	const query = `UPDATE courses SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course status: %w", err)
	}
	return nil
}

// AddTeacher attaches an additional teacher to the course.
func (r *CourseRepository) AddTeacher(ctx context.Context, courseID, userID string) error {
	const query = `INSERT INTO course_teachers (course_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, courseID, userID); err != nil {
		return fmt.Errorf("add course teacher: %w", err)
	}
	return nil
}

// RemoveTeacher detaches a teacher. Removing the head teacher clears the
// reference and deactivates the course in the same transaction.
func (r *CourseRepository) RemoveTeacher(ctx context.Context, courseID, userID string) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin remove teacher: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const unlink = `DELETE FROM course_teachers WHERE course_id = $1 AND user_id = $2`
	if _, err := tx.ExecContext(ctx, unlink, courseID, userID); err != nil {
		return fmt.Errorf("remove course teacher: %w", err)
	}

	const demote = `UPDATE courses SET head_teacher_id = NULL, status = $3, updated_at = $4
        WHERE id = $1 AND head_teacher_id = $2`
	if _, err := tx.ExecContext(ctx, demote, courseID, userID, models.CourseStatusInactive, time.Now().UTC()); err != nil {
		return fmt.Errorf("demote head teacher: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove teacher: %w", err)
	}
	committed = true
	return nil
}
