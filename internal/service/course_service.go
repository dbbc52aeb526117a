package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/weekend-course-api/internal/models"
	appErrors "github.com/noah-isme/weekend-course-api/pkg/errors"
)

type courseRepository interface {
	CreateWithHeadTeacher(ctx context.Context, course *models.Course, headTeacherID string) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	UpdateStatus(ctx context.Context, id string, status models.CourseStatus) error
	AddTeacher(ctx context.Context, courseID, userID string) error
	RemoveTeacher(ctx context.Context, courseID, userID string) error
}

type courseUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CourseService manages courses and their teaching staff.
type CourseService struct {
	repo      courseRepository
	users     courseUserReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(repo courseRepository, users courseUserReader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, users: users, validator: validate, logger: logger}
}

// CreateCourseRequest describes a new course. Every course starts with a head teacher.
type CreateCourseRequest struct {
	Name          string `json:"name" validate:"required,min=3,max=120"`
	HeadTeacherID string `json:"head_teacher_id" validate:"required,uuid"`
}

// Create persists a new course with its head teacher linked.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}

	teacher, err := s.users.FindByID(ctx, req.HeadTeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "head teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch head teacher")
	}
	if teacher.Role != models.RoleTeacher && teacher.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrValidation, "head teacher must hold a teaching role")
	}

	course := &models.Course{
		Name:          req.Name,
		Status:        models.CourseStatusActive,
		HeadTeacherID: &teacher.ID,
	}
	if err := s.repo.CreateWithHeadTeacher(ctx, course, teacher.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.logger.Info("course created",
		zap.String("course_id", course.ID),
		zap.String("head_teacher_id", teacher.ID))
	return course, nil
}

// Get returns one course with teacher and class counts.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	return course, nil
}

// List returns courses matching the filter.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UpdateStatus changes the course lifecycle state.
func (s *CourseService) UpdateStatus(ctx context.Context, id, rawStatus string) (*models.Course, error) {
	status := models.CourseStatus(strings.ToUpper(rawStatus))
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be ACTIVE, INACTIVE or COMPLETED")
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}

	// A course without a head teacher cannot be reactivated.
	if status == models.CourseStatusActive && course.HeadTeacherID == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course has no head teacher")
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course status")
	}
	course.Status = status
	return course, nil
}

// AddTeacher links a teacher to the course. Adding twice is a no-op.
func (s *CourseService) AddTeacher(ctx context.Context, courseID, userID string) error {
	if _, err := s.repo.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	teacher, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch teacher")
	}
	if teacher.Role != models.RoleTeacher && teacher.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrValidation, "user must hold a teaching role")
	}

	if err := s.repo.AddTeacher(ctx, courseID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add teacher")
	}
	return nil
}

// RemoveTeacher unlinks a teacher. Removing the head teacher deactivates the course.
func (s *CourseService) RemoveTeacher(ctx context.Context, courseID, userID string) error {
	if _, err := s.repo.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	if err := s.repo.RemoveTeacher(ctx, courseID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove teacher")
	}
	s.logger.Info("teacher removed from course",
		zap.String("course_id", courseID),
		zap.String("user_id", userID))
	return nil
}
