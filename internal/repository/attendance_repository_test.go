package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/weekend-course-api/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func attendanceRow(id string, updated bool) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "student_id", "session_id", "date", "status", "scanned_at", "marked_by", "created_at", "updated_at", "updated"}).
		AddRow(id, "student-1", "session-1", now, "PRESENT", now, "teacher-1", now, now, updated)
}

func TestAttendanceRepositoryUpsertScanFirstRecord(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance")).
		WillReturnRows(attendanceRow("att-1", false))

	stored, updated, err := repo.UpsertScan(context.Background(), &models.Attendance{
		StudentID: "student-1",
		SessionID: "session-1",
		Date:      time.Now().UTC(),
		Status:    models.AttendancePresent,
	})
	require.NoError(t, err)
	require.False(t, updated)
	require.Equal(t, "att-1", stored.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsertScanReportsUpdate(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance")).
		WillReturnRows(attendanceRow("att-1", true))

	_, updated, err := repo.UpsertScan(context.Background(), &models.Attendance{
		StudentID: "student-1",
		SessionID: "session-1",
		Date:      time.Now().UTC(),
		Status:    models.AttendancePresent,
	})
	require.NoError(t, err)
	require.True(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryInsertAbsenteesSkipsExisting(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	date := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	inserted, err := repo.InsertAbsentees(context.Background(), "session-1", date, []string{"student-1", "student-2"})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryInsertAbsenteesEmptyRoster(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	inserted, err := repo.InsertAbsentees(context.Background(), "session-1", time.Now(), nil)
	require.NoError(t, err)
	require.Zero(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	now := time.Now().UTC()
	status := models.AttendanceAbsent
	rows := sqlmock.NewRows([]string{"id", "student_id", "session_id", "date", "status", "scanned_at", "marked_by",
		"created_at", "updated_at", "student_name", "student_number", "class_id", "class_name",
		"session_day", "start_time", "end_time"}).
		AddRow("att-1", "student-1", "session-1", now, "ABSENT", nil, nil, now, now,
			"Alice", "S-0001", "class-1", "Saturday Morning", "SATURDAY", "09:00", "11:00")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT a.id, a.student_id")).
		WithArgs("class-1", "ABSENT").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("class-1", "ABSENT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.AttendanceFilter{
		ClassID: "class-1",
		Status:  &status,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, records, 1)
	require.Equal(t, "Alice", records[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryRecordedStudentIDs(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	date := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id FROM attendance")).
		WithArgs("session-1", date).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("student-1").AddRow("student-2"))

	ids, err := repo.RecordedStudentIDs(context.Background(), "session-1", date)
	require.NoError(t, err)
	require.Equal(t, []string{"student-1", "student-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
