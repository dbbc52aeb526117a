package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/weekend-course-api/internal/models"
	"github.com/noah-isme/weekend-course-api/pkg/config"
	appErrors "github.com/noah-isme/weekend-course-api/pkg/errors"
)

const (
	studentAliceID  = "0c9a3a3e-4c7f-4d7a-9a6e-0a1b2c3d4e5f"
	studentBobID    = "1d8b4b4f-5d8e-4e8b-8b7f-1b2c3d4e5f6a"
	studentCaraID   = "2e7c5c5a-6e9f-4f9c-9c8a-2c3d4e5f6a7b"
	sessionSatID    = "3f6d6d6b-7f1a-4a1d-8d9b-3d4e5f6a7b8c"
	sessionAltID    = "4a5e7e7c-8a2b-4b2e-9e1c-4e5f6a7b8c9d"
	sessionOtherID  = "5b4f8f8d-9b3c-4c3f-8f2d-5f6a7b8c9d1e"
	sessionMissing  = "6c3a9a9e-1c4d-4d4a-9a3e-6a7b8c9d1e2f"
	teacherMarkerID = "7d2b1b1f-2d5e-4e5b-8b4f-7b8c9d1e2f3a"
)

type mockAttendanceRepo struct {
	records    map[string]models.Attendance
	sweepCalls int
}

func attendanceMapKey(studentID, sessionID string, date time.Time) string {
	return studentID + "|" + sessionID + "|" + date.Format("2006-01-02")
}

func (m *mockAttendanceRepo) UpsertScan(ctx context.Context, record *models.Attendance) (*models.Attendance, bool, error) {
	if m.records == nil {
		m.records = make(map[string]models.Attendance)
	}
	key := attendanceMapKey(record.StudentID, record.SessionID, record.Date)
	_, updated := m.records[key]
	if record.ID == "" {
		record.ID = "att-" + key
	}
	m.records[key] = *record
	stored := *record
	return &stored, updated, nil
}

func (m *mockAttendanceRepo) InsertAbsentees(ctx context.Context, sessionID string, date time.Time, studentIDs []string) (int, error) {
	if m.records == nil {
		m.records = make(map[string]models.Attendance)
	}
	m.sweepCalls++
	inserted := 0
	for _, id := range studentIDs {
		key := attendanceMapKey(id, sessionID, date)
		if _, ok := m.records[key]; ok {
			continue
		}
		m.records[key] = models.Attendance{
			StudentID: id,
			SessionID: sessionID,
			Date:      date,
			Status:    models.AttendanceAbsent,
		}
		inserted++
	}
	return inserted, nil
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	return nil, 0, nil
}

func (m *mockAttendanceRepo) ListAll(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	return nil, nil
}

func (m *mockAttendanceRepo) RecordedStudentIDs(ctx context.Context, sessionID string, date time.Time) ([]string, error) {
	var ids []string
	for _, record := range m.records {
		if record.SessionID == sessionID && record.Date.Equal(date) {
			ids = append(ids, record.StudentID)
		}
	}
	return ids, nil
}

type mockSessionReader struct {
	sessions    map[string]models.Session
	assignments map[string][]string
	rosters     map[string][]models.Student
}

func (m *mockSessionReader) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if session, ok := m.sessions[id]; ok {
		return &session, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionReader) SessionsByStudent(ctx context.Context, studentID string) ([]models.Session, error) {
	var out []models.Session
	for _, id := range m.assignments[studentID] {
		if session, ok := m.sessions[id]; ok {
			out = append(out, session)
		}
	}
	return out, nil
}

func (m *mockSessionReader) StudentsBySession(ctx context.Context, sessionID string) ([]models.Student, error) {
	return m.rosters[sessionID], nil
}

type mockStudentReader struct {
	students map[string]models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := m.students[id]; ok {
		return &student, nil
	}
	return nil, sql.ErrNoRows
}

func newScanFixture() (*AttendanceService, *mockAttendanceRepo, *mockSessionReader) {
	repo := &mockAttendanceRepo{}
	sessions := &mockSessionReader{
		sessions: map[string]models.Session{
			sessionSatID:   {ID: sessionSatID, ClassID: "class-1", Day: models.SessionDaySaturday, StartTime: "09:00", EndTime: "11:00", Capacity: 20},
			sessionAltID:   {ID: sessionAltID, ClassID: "class-1", Day: models.SessionDaySaturday, StartTime: "13:00", EndTime: "15:00", Capacity: 20},
			sessionOtherID: {ID: sessionOtherID, ClassID: "class-2", Day: models.SessionDaySaturday, StartTime: "09:00", EndTime: "11:00", Capacity: 20},
		},
		assignments: map[string][]string{studentAliceID: {sessionSatID}},
	}
	students := &mockStudentReader{
		students: map[string]models.Student{
			studentAliceID: {ID: studentAliceID, StudentNumber: "WC-1001", FullName: "Alice Tan", ClassID: "class-1", Status: models.RegistrationApproved},
		},
	}
	svc := NewAttendanceService(repo, sessions, students, nil, nil, nil, nil, config.AttendanceConfig{EarlyEntryMinutes: 30, LateEntryMinutes: 15})
	// A Saturday at 09:30.
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 7, 9, 30, 0, 0, time.UTC)
	}
	return svc, repo, sessions
}

func scanRequest(sessionID string) ScanRequest {
	return ScanRequest{
		Payload:   models.ScanPayload{UUID: studentAliceID, StudentID: "WC-1001"},
		SessionID: sessionID,
		TeacherID: teacherMarkerID,
	}
}

func TestMarkFromScanPresent(t *testing.T) {
	svc, repo, _ := newScanFixture()

	result, err := svc.MarkFromScan(context.Background(), scanRequest(sessionSatID))
	require.NoError(t, err)
	assert.Equal(t, models.AttendancePresent, result.Status)
	assert.False(t, result.Updated)
	assert.Contains(t, result.Message, "PRESENT")
	assert.Len(t, repo.records, 1)
	require.NotNil(t, result.Record.MarkedBy)
	assert.Equal(t, teacherMarkerID, *result.Record.MarkedBy)
}

func TestMarkFromScanRescanUpdates(t *testing.T) {
	svc, _, _ := newScanFixture()
	req := scanRequest(sessionSatID)

	first, err := svc.MarkFromScan(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Updated)

	second, err := svc.MarkFromScan(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Updated)
	assert.Contains(t, second.Message, "Updated attendance:")
}

func TestMarkFromScanIdentityMismatch(t *testing.T) {
	svc, _, _ := newScanFixture()
	req := scanRequest(sessionSatID)
	req.Payload.StudentID = "WC-9999"

	_, err := svc.MarkFromScan(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIdentityMismatch.Code, appErrors.FromError(err).Code)
}

func TestMarkFromScanUnknownStudent(t *testing.T) {
	svc, _, _ := newScanFixture()
	req := scanRequest(sessionSatID)
	req.Payload.UUID = studentBobID

	_, err := svc.MarkFromScan(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMarkFromScanWrongDay(t *testing.T) {
	svc, _, _ := newScanFixture()
	// Shift the clock to Sunday; the session runs on Saturday.
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 8, 9, 30, 0, 0, time.UTC)
	}

	_, err := svc.MarkFromScan(context.Background(), scanRequest(sessionSatID))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrWrongDay.Code, appErrors.FromError(err).Code)
}

func TestMarkFromScanWindowBoundaries(t *testing.T) {
	svc, _, _ := newScanFixture()

	// Exactly 30 minutes before start is still accepted.
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 7, 8, 30, 0, 0, time.UTC)
	}
	_, err := svc.MarkFromScan(context.Background(), scanRequest(sessionSatID))
	require.NoError(t, err)

	// One minute earlier is rejected.
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 7, 8, 29, 0, 0, time.UTC)
	}
	_, err = svc.MarkFromScan(context.Background(), scanRequest(sessionSatID))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOutsideWindow.Code, appErrors.FromError(err).Code)

	// Exactly 15 minutes after end is still accepted.
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 7, 11, 15, 0, 0, time.UTC)
	}
	_, err = svc.MarkFromScan(context.Background(), scanRequest(sessionSatID))
	require.NoError(t, err)

	// One more minute is rejected.
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 7, 11, 16, 0, 0, time.UTC)
	}
	_, err = svc.MarkFromScan(context.Background(), scanRequest(sessionSatID))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOutsideWindow.Code, appErrors.FromError(err).Code)
}

func TestMarkFromScanWrongSession(t *testing.T) {
	svc, _, _ := newScanFixture()
	// Scanning into a sibling session of the same class at 13:30.
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 7, 13, 30, 0, 0, time.UTC)
	}

	result, err := svc.MarkFromScan(context.Background(), scanRequest(sessionAltID))
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceWrongSession, result.Status)
	assert.Contains(t, result.Message, "WRONG_SESSION")
}

func TestMarkFromScanNotEnrolled(t *testing.T) {
	svc, _, _ := newScanFixture()

	_, err := svc.MarkFromScan(context.Background(), scanRequest(sessionOtherID))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestSweepAbsencesMarksOnlyMissing(t *testing.T) {
	svc, repo, sessions := newScanFixture()
	sessions.rosters = map[string][]models.Student{
		sessionSatID: {
			{ID: studentAliceID, FullName: "Alice Tan"},
			{ID: studentBobID, FullName: "Bob Lee"},
			{ID: studentCaraID, FullName: "Cara Ng"},
		},
	}

	// Alice scanned in before the sweep.
	_, err := svc.MarkFromScan(context.Background(), scanRequest(sessionSatID))
	require.NoError(t, err)

	result, err := svc.SweepAbsences(context.Background(), SweepRequest{SessionID: sessionSatID, Date: "2026-03-07"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Marked)

	// Re-running the sweep marks nobody and leaves existing records alone.
	again, err := svc.SweepAbsences(context.Background(), SweepRequest{SessionID: sessionSatID, Date: "2026-03-07"})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Marked)

	date := time.Date(2026, time.March, 7, 0, 0, 0, 0, time.UTC)
	present := repo.records[attendanceMapKey(studentAliceID, sessionSatID, date)]
	assert.Equal(t, models.AttendancePresent, present.Status)
}

func TestSweepAbsencesUnknownSession(t *testing.T) {
	svc, _, _ := newScanFixture()

	_, err := svc.SweepAbsences(context.Background(), SweepRequest{SessionID: sessionMissing, Date: "2026-03-07"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
