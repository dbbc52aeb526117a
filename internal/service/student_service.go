package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/weekend-course-api/internal/models"
	appErrors "github.com/noah-isme/weekend-course-api/pkg/errors"
	"github.com/noah-isme/weekend-course-api/pkg/qr"
)

type studentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	BulkCreate(ctx context.Context, students []models.Student) error
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsByNumberOrEmail(ctx context.Context, studentNumber, email string) (bool, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	UpdateStatus(ctx context.Context, id string, status models.RegistrationStatus) error
}

type studentClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type registrationNotifier interface {
	NotifyRegistrationDecision(student models.Student, approved bool)
}

var (
	phonePattern         = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	studentNumberPattern = regexp.MustCompile(`^[A-Za-z0-9-]{4,20}$`)
)

// StudentService handles registration, approval, QR provisioning and roster imports.
type StudentService struct {
	repo      studentRepository
	classes   studentClassReader
	notifier  registrationNotifier
	validator *validator.Validate
	logger    *zap.Logger
	qrSize    int
}

// NewStudentService constructs the student service and registers the phone
// and student-number validators.
func NewStudentService(repo studentRepository, classes studentClassReader, notifier registrationNotifier, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &StudentService{repo: repo, classes: classes, notifier: notifier, validator: validate, logger: logger, qrSize: 256}
	svc.validator.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	svc.validator.RegisterValidation("student_number", func(fl validator.FieldLevel) bool {
		return studentNumberPattern.MatchString(fl.Field().String())
	})
	return svc
}

// RegisterStudentRequest is the self-registration payload.
type RegisterStudentRequest struct {
	StudentNumber string  `json:"student_number" validate:"required,student_number"`
	FullName      string  `json:"full_name" validate:"required,min=3,max=120"`
	Email         string  `json:"email" validate:"required,email"`
	Phone         *string `json:"phone" validate:"omitempty,phone"`
	ClassID       string  `json:"class_id" validate:"required,uuid"`
}

// Register files a new registration in PENDING state.
func (s *StudentService) Register(ctx context.Context, req RegisterStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch class")
	}

	exists, err := s.repo.ExistsByNumberOrEmail(ctx, req.StudentNumber, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this number or email already exists")
	}

	student := &models.Student{
		StudentNumber: req.StudentNumber,
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		ClassID:       req.ClassID,
		Status:        models.RegistrationPending,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.logger.Info("student registered",
		zap.String("student_id", student.ID),
		zap.String("class_id", student.ClassID))
	return student, nil
}

// Approve moves a pending registration to APPROVED and notifies the student.
func (s *StudentService) Approve(ctx context.Context, id string) (*models.Student, error) {
	return s.decide(ctx, id, models.RegistrationApproved)
}

// Reject moves a pending registration to REJECTED and notifies the student.
func (s *StudentService) Reject(ctx context.Context, id string) (*models.Student, error) {
	return s.decide(ctx, id, models.RegistrationRejected)
}

func (s *StudentService) decide(ctx context.Context, id string, status models.RegistrationStatus) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if student.Status != models.RegistrationPending {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("registration has already been %s", strings.ToLower(string(student.Status))))
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update registration status")
	}
	student.Status = status

	if s.notifier != nil {
		s.notifier.NotifyRegistrationDecision(*student, status == models.RegistrationApproved)
	}

	s.logger.Info("registration decided",
		zap.String("student_id", student.ID),
		zap.String("status", string(status)))
	return student, nil
}

// Get returns one student with class and session detail.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	return student, nil
}

// List returns students matching the filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// QRCode renders the student's identity badge as a PNG. Only approved
// students get a scannable badge.
func (s *StudentService) QRCode(ctx context.Context, id string) ([]byte, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if student.Status != models.RegistrationApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only approved students have a QR badge")
	}

	payload := models.ScanPayload{UUID: student.ID, StudentID: student.StudentNumber}
	png, err := qr.PNG(payload, s.qrSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render QR code")
	}
	return png, nil
}

// importRow is the spreadsheet shape: student_number, full_name, email, phone.
type importRow struct {
	StudentNumber string  `validate:"required,student_number"`
	FullName      string  `validate:"required,min=3,max=120"`
	Email         string  `validate:"required,email"`
	Phone         *string `validate:"omitempty,phone"`
}

// ImportRoster reads an Excel roster and registers every valid row as an
// APPROVED student of the class. Row errors are collected; valid rows are
// written in one transaction.
func (s *StudentService) ImportRoster(ctx context.Context, classID string, file io.Reader) (*models.ImportResult, error) {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch class")
	}

	workbook, err := excelize.OpenReader(file)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is not a readable Excel workbook")
	}
	defer workbook.Close()

	rows, err := workbook.GetRows(workbook.GetSheetName(0))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read workbook rows")
	}
	if len(rows) < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "workbook has no data rows")
	}

	result := &models.ImportResult{}
	seenNumbers := make(map[string]int)
	seenEmails := make(map[string]int)
	var valid []models.Student

	for i, cells := range rows[1:] {
		rowNum := i + 2
		row := importRow{
			StudentNumber: cellAt(cells, 0),
			FullName:      cellAt(cells, 1),
			Email:         strings.ToLower(cellAt(cells, 2)),
		}
		if phone := cellAt(cells, 3); phone != "" {
			row.Phone = &phone
		}

		fields := map[string]string{}
		if err := s.validator.Struct(row); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					fields[strings.ToLower(fe.Field())] = fmt.Sprintf("failed %s validation", fe.Tag())
				}
			} else {
				fields["row"] = "invalid row"
			}
		}
		if prev, dup := seenNumbers[row.StudentNumber]; dup && row.StudentNumber != "" {
			fields["studentnumber"] = fmt.Sprintf("duplicates row %d", prev)
		}
		if prev, dup := seenEmails[row.Email]; dup && row.Email != "" {
			fields["email"] = fmt.Sprintf("duplicates row %d", prev)
		}
		if len(fields) == 0 {
			exists, eerr := s.repo.ExistsByNumberOrEmail(ctx, row.StudentNumber, row.Email)
			if eerr != nil {
				return nil, appErrors.Wrap(eerr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check uniqueness")
			}
			if exists {
				fields["studentnumber"] = "a student with this number or email already exists"
			}
		}

		if len(fields) > 0 {
			result.Failed++
			result.Errors = append(result.Errors, models.ImportRowError{Row: rowNum, Fields: fields})
			continue
		}

		seenNumbers[row.StudentNumber] = rowNum
		seenEmails[row.Email] = rowNum
		valid = append(valid, models.Student{
			StudentNumber: row.StudentNumber,
			FullName:      row.FullName,
			Email:         row.Email,
			Phone:         row.Phone,
			ClassID:       classID,
			Status:        models.RegistrationApproved,
		})
	}

	if len(valid) > 0 {
		if err := s.repo.BulkCreate(ctx, valid); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import students")
		}
		result.Imported = len(valid)
	}

	s.logger.Info("roster imported",
		zap.String("class_id", classID),
		zap.Int("imported", result.Imported),
		zap.Int("failed", result.Failed))
	return result, nil
}

func cellAt(cells []string, idx int) string {
	if idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}
