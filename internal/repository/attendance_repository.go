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

// AttendanceRepository handles persistence of attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// UpsertScan inserts or updates the row keyed by (student, session, date).
// The returned flag reports whether an existing row was updated, so callers
// can annotate re-scans.
func (r *AttendanceRepository) UpsertScan(ctx context.Context, record *models.Attendance) (*models.Attendance, bool, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO attendance (id, student_id, session_id, date, status, scanned_at, marked_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, session_id, date)
DO UPDATE SET status = EXCLUDED.status, scanned_at = EXCLUDED.scanned_at, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
RETURNING id, student_id, session_id, date, status, scanned_at, marked_by, created_at, updated_at, (xmax <> 0) AS updated`
	row := struct {
		models.Attendance
		Updated bool `db:"updated"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, record.ID, record.StudentID, record.SessionID, record.Date,
		record.Status, record.ScannedAt, record.MarkedBy, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, false, fmt.Errorf("upsert attendance: %w", err)
	}
	stored := row.Attendance
	return &stored, row.Updated, nil
}

// InsertAbsentees bulk-inserts ABSENT rows for the given students, skipping
// students that already have a record for the session/date. Returns the
// number of rows actually inserted, so re-runs never touch earlier scans.
func (r *AttendanceRepository) InsertAbsentees(ctx context.Context, sessionID string, date time.Time, studentIDs []string) (int, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("begin absence sweep: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const query = `INSERT INTO attendance (id, student_id, session_id, date, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (student_id, session_id, date) DO NOTHING`
	now := time.Now().UTC()
	inserted := 0
	for _, studentID := range studentIDs {
		res, err := tx.ExecContext(ctx, query, uuid.NewString(), studentID, sessionID, date, models.AttendanceAbsent, now, now)
		if err != nil {
			return 0, fmt.Errorf("insert absentee %s: %w", studentID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("absentee rows affected: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit absence sweep: %w", err)
	}
	committed = true
	return inserted, nil
}

const attendanceListBase = `FROM attendance a
JOIN students s ON s.id = a.student_id
JOIN sessions se ON se.id = a.session_id
LEFT JOIN classes cl ON cl.id = se.class_id`

const attendanceListColumns = `a.id, a.student_id, a.session_id, a.date, a.status, a.scanned_at, a.marked_by,
        a.created_at, a.updated_at,
        s.full_name AS student_name, s.student_number, se.class_id, cl.name AS class_name,
        se.day AS session_day, se.start_time, se.end_time`

func attendanceFilterClause(filter models.AttendanceFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("se.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("a.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	return clause, args
}

// List returns attendance records with student and session metadata.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	clause, args := attendanceFilterClause(filter)

	allowedSorts := map[string]string{
		"date":         "a.date",
		"student_name": "s.full_name",
		"status":       "a.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "a.date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, s.full_name ASC LIMIT %d OFFSET %d",
		attendanceListColumns, attendanceListBase+clause, orderBy, order, size, offset)

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", attendanceListBase+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// ListAll returns every matching attendance record without pagination, for exports.
func (r *AttendanceRepository) ListAll(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	clause, args := attendanceFilterClause(filter)
	query := fmt.Sprintf("SELECT %s %s ORDER BY a.date DESC, s.full_name ASC",
		attendanceListColumns, attendanceListBase+clause)

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("export attendance: %w", err)
	}
	return records, nil
}

// RecordedStudentIDs returns the ids of students that already have a record
// for the session/date.
func (r *AttendanceRepository) RecordedStudentIDs(ctx context.Context, sessionID string, date time.Time) ([]string, error) {
	const query = `SELECT student_id FROM attendance WHERE session_id = $1 AND date = $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, sessionID, date); err != nil {
		return nil, fmt.Errorf("list recorded students: %w", err)
	}
	return ids, nil
}
