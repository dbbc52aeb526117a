package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/weekend-course-api/internal/models"
	"github.com/noah-isme/weekend-course-api/pkg/config"
	appErrors "github.com/noah-isme/weekend-course-api/pkg/errors"
	"github.com/noah-isme/weekend-course-api/pkg/export"
)

type attendanceRepository interface {
	UpsertScan(ctx context.Context, record *models.Attendance) (*models.Attendance, bool, error)
	InsertAbsentees(ctx context.Context, sessionID string, date time.Time, studentIDs []string) (int, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	ListAll(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	RecordedStudentIDs(ctx context.Context, sessionID string, date time.Time) ([]string, error)
}

type attendanceSessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	SessionsByStudent(ctx context.Context, studentID string) ([]models.Session, error)
	StudentsBySession(ctx context.Context, sessionID string) ([]models.Student, error)
}

type attendanceStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// AttendanceService owns the scan decision ladder, the absence sweeper and
// attendance projections.
type AttendanceService struct {
	repo      attendanceRepository
	sessions  attendanceSessionReader
	students  attendanceStudentReader
	cache     *CacheService
	metrics   *MetricsService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	window    config.AttendanceConfig

	// now is swappable so the window logic is testable.
	now func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, sessions attendanceSessionReader, students attendanceStudentReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, window config.AttendanceConfig) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if window.EarlyEntryMinutes <= 0 {
		window.EarlyEntryMinutes = 30
	}
	if window.LateEntryMinutes <= 0 {
		window.LateEntryMinutes = 15
	}
	return &AttendanceService{
		repo:      repo,
		sessions:  sessions,
		students:  students,
		cache:     cache,
		metrics:   metrics,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		window:    window,
		now:       time.Now,
	}
}

// ScanRequest carries a decoded QR payload plus the session the teacher is running.
type ScanRequest struct {
	Payload   models.ScanPayload `json:"payload" validate:"required"`
	SessionID string             `json:"session_id" validate:"required,uuid"`
	TeacherID string             `json:"-"`
}

// SweepRequest identifies the session occurrence to close out.
type SweepRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
}

// SweepResult summarises a sweep run.
type SweepResult struct {
	SessionID string    `json:"session_id"`
	Date      time.Time `json:"date"`
	Marked    int       `json:"marked"`
}

// MarkFromScan resolves a QR scan into an attendance record. The checks run
// in a fixed order: identity, day, window, enrollment. Re-scanning the same
// student on the same day updates the existing record.
func (s *AttendanceService) MarkFromScan(ctx context.Context, req ScanRequest) (*models.MarkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}

	student, err := s.students.FindByID(ctx, req.Payload.UUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordScan(appErrors.ErrNotFound.Code)
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if student.StudentNumber != req.Payload.StudentID {
		s.metrics.RecordScan(appErrors.ErrIdentityMismatch.Code)
		return nil, appErrors.Clone(appErrors.ErrIdentityMismatch, "QR payload does not match the stored identity")
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch session")
	}

	now := s.now()
	if !sameDay(now, session.Day) {
		s.metrics.RecordScan(appErrors.ErrWrongDay.Code)
		return nil, appErrors.Clone(appErrors.ErrWrongDay,
			fmt.Sprintf("session runs on %s, today is %s", session.Day, strings.ToUpper(now.Weekday().String())))
	}

	startMin, err := parseClock(session.StartTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "session has an invalid start time")
	}
	endMin, err := parseClock(session.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "session has an invalid end time")
	}
	if !withinWindow(now, startMin, endMin, s.window.EarlyEntryMinutes, s.window.LateEntryMinutes) {
		s.metrics.RecordScan(appErrors.ErrOutsideWindow.Code)
		return nil, appErrors.Clone(appErrors.ErrOutsideWindow,
			fmt.Sprintf("scans are accepted from %s before start until %s after end",
				minutesLabel(s.window.EarlyEntryMinutes), minutesLabel(s.window.LateEntryMinutes)))
	}

	status, err := s.resolveStatus(ctx, student, session)
	if err != nil {
		return nil, err
	}

	scannedAt := now.UTC()
	record := &models.Attendance{
		StudentID: student.ID,
		SessionID: session.ID,
		Date:      occurrenceDate(now),
		Status:    status,
		ScannedAt: &scannedAt,
	}
	if req.TeacherID != "" {
		record.MarkedBy = &req.TeacherID
	}

	stored, updated, err := s.repo.UpsertScan(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	s.metrics.RecordScan(string(status))
	s.invalidateProjections(ctx)

	message := fmt.Sprintf("Attendance recorded: %s for %s", status, student.FullName)
	if status == models.AttendanceWrongSession {
		message += " (scanned into a session they are not assigned to)"
	}
	if updated {
		message = "Updated attendance: " + message
	}

	s.logger.Info("attendance scan accepted",
		zap.String("student_id", student.ID),
		zap.String("session_id", session.ID),
		zap.String("status", string(status)),
		zap.Bool("updated", updated))

	return &models.MarkResult{Record: stored, Status: status, Updated: updated, Message: message}, nil
}

// resolveStatus decides PRESENT vs WRONG_SESSION, rejecting students that do
// not belong to the session's class at all.
func (s *AttendanceService) resolveStatus(ctx context.Context, student *models.Student, session *models.Session) (models.AttendanceStatus, error) {
	assigned, err := s.sessions.SessionsByStudent(ctx, student.ID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student sessions")
	}
	for _, candidate := range assigned {
		if candidate.ID == session.ID {
			return models.AttendancePresent, nil
		}
	}
	if student.ClassID == session.ClassID {
		return models.AttendanceWrongSession, nil
	}
	s.metrics.RecordScan(appErrors.ErrNotEnrolled.Code)
	return "", appErrors.Clone(appErrors.ErrNotEnrolled, "student is not enrolled in this session's class")
}

// SweepAbsences marks ABSENT every assigned student without a record for the
// session occurrence. Existing records are never touched, so re-running a
// sweep is safe.
func (s *AttendanceService) SweepAbsences(ctx context.Context, req SweepRequest) (*SweepResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	if _, err := s.sessions.FindByID(ctx, req.SessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch session")
	}

	roster, err := s.sessions.StudentsBySession(ctx, req.SessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch session roster")
	}
	recorded, err := s.repo.RecordedStudentIDs(ctx, req.SessionID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch recorded students")
	}

	seen := make(map[string]struct{}, len(recorded))
	for _, id := range recorded {
		seen[id] = struct{}{}
	}
	var missing []string
	for _, student := range roster {
		if _, ok := seen[student.ID]; !ok {
			missing = append(missing, student.ID)
		}
	}

	marked := 0
	if len(missing) > 0 {
		marked, err = s.repo.InsertAbsentees(ctx, req.SessionID, date, missing)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark absentees")
		}
	}

	s.metrics.RecordSweep(marked)
	if marked > 0 {
		s.invalidateProjections(ctx)
	}

	s.logger.Info("absence sweep completed",
		zap.String("session_id", req.SessionID),
		zap.String("date", req.Date),
		zap.Int("roster", len(roster)),
		zap.Int("marked", marked))

	return &SweepResult{SessionID: req.SessionID, Date: date, Marked: marked}, nil
}

type attendancePage struct {
	Records    []models.AttendanceRecord `json:"records"`
	Pagination models.Pagination         `json:"pagination"`
}

// List returns attendance records matching the filter, served from cache when possible.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, bool, error) {
	key := attendanceCacheKey("list", filter)
	var cached attendancePage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Records, &cached.Pagination, true, nil
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	pagination := models.Pagination{Page: page, PageSize: size, TotalCount: total}

	if err := s.cache.Set(ctx, key, attendancePage{Records: records, Pagination: pagination}, 0); err != nil {
		s.logger.Debug("attendance list cache write failed", zap.Error(err))
	}
	return records, &pagination, false, nil
}

// ReviewWrongSessions lists WRONG_SESSION records so staff can reconcile them.
func (s *AttendanceService) ReviewWrongSessions(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, bool, error) {
	status := models.AttendanceWrongSession
	filter.Status = &status
	return s.List(ctx, filter)
}

// ExportCSV renders all matching attendance records as CSV.
func (s *AttendanceService) ExportCSV(ctx context.Context, filter models.AttendanceFilter) ([]byte, error) {
	key := attendanceCacheKey("export:csv", filter)
	var cached []byte
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	records, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export attendance")
	}

	payload, err := s.csv.Render(attendanceDataset(records))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render CSV")
	}

	if err := s.cache.Set(ctx, key, payload, 0); err != nil {
		s.logger.Debug("attendance export cache write failed", zap.Error(err))
	}
	return payload, nil
}

// SessionSheetPDF renders a printable attendance sheet for one session occurrence.
func (s *AttendanceService) SessionSheetPDF(ctx context.Context, sessionID, rawDate string) ([]byte, error) {
	date, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch session")
	}

	records, err := s.repo.ListAll(ctx, models.AttendanceFilter{SessionID: sessionID, DateFrom: &date, DateTo: &date})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch attendance")
	}

	subtitle := fmt.Sprintf("%s %s-%s on %s", session.Day, session.StartTime, session.EndTime, rawDate)
	payload, err := s.pdf.Render(attendanceDataset(records), "Attendance Sheet", subtitle)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render PDF")
	}
	return payload, nil
}

func attendanceDataset(records []models.AttendanceRecord) export.Dataset {
	data := export.Dataset{
		Headers: []string{"date", "student_number", "student_name", "class", "session_day", "start", "end", "status", "scanned_at"},
		Rows:    make([]map[string]string, 0, len(records)),
	}
	for _, rec := range records {
		scannedAt := ""
		if rec.ScannedAt != nil {
			scannedAt = rec.ScannedAt.Format(time.RFC3339)
		}
		className := ""
		if rec.ClassName != nil {
			className = *rec.ClassName
		}
		data.Rows = append(data.Rows, map[string]string{
			"date":           rec.Date.Format("2006-01-02"),
			"student_number": rec.StudentNumber,
			"student_name":   rec.StudentName,
			"class":          className,
			"session_day":    string(rec.SessionDay),
			"start":          rec.StartTime,
			"end":            rec.EndTime,
			"status":         string(rec.Status),
			"scanned_at":     scannedAt,
		})
	}
	return data
}

func attendanceCacheKey(kind string, filter models.AttendanceFilter) string {
	parts := []string{"attendance", kind, filter.ClassID, filter.SessionID, filter.StudentID}
	if filter.Status != nil {
		parts = append(parts, string(*filter.Status))
	} else {
		parts = append(parts, "")
	}
	if filter.DateFrom != nil {
		parts = append(parts, filter.DateFrom.Format("2006-01-02"))
	} else {
		parts = append(parts, "")
	}
	if filter.DateTo != nil {
		parts = append(parts, filter.DateTo.Format("2006-01-02"))
	} else {
		parts = append(parts, "")
	}
	parts = append(parts, strconv.Itoa(filter.Page), strconv.Itoa(filter.PageSize), filter.SortBy, filter.SortOrder)
	return strings.Join(parts, ":")
}

func (s *AttendanceService) invalidateProjections(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "attendance:*"); err != nil {
		s.logger.Debug("attendance cache invalidation failed", zap.Error(err))
	}
}

// occurrenceDate truncates the scan instant to its calendar day.
func occurrenceDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func minutesLabel(minutes int) string {
	return fmt.Sprintf("%d minutes", minutes)
}
