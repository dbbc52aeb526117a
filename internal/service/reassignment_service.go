package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/weekend-course-api/internal/models"
	"github.com/noah-isme/weekend-course-api/internal/repository"
	"github.com/noah-isme/weekend-course-api/pkg/config"
	appErrors "github.com/noah-isme/weekend-course-api/pkg/errors"
)

type reassignmentRepository interface {
	Create(ctx context.Context, req *models.ReassignmentRequest) error
	FindByID(ctx context.Context, id string) (*models.ReassignmentRequest, error)
	HasPending(ctx context.Context, studentID string) (bool, error)
	CountByStudent(ctx context.Context, studentID string) (int, error)
	List(ctx context.Context, filter models.ReassignmentFilter) ([]models.ReassignmentDetail, int, error)
	Approve(ctx context.Context, req *models.ReassignmentRequest, teacherID string) error
	Deny(ctx context.Context, req *models.ReassignmentRequest, teacherID string) error
}

type reassignmentSessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	SessionsByStudent(ctx context.Context, studentID string) ([]models.Session, error)
	CountEnrolled(ctx context.Context, sessionID string) (int, error)
}

type reassignmentStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// ReassignmentService mediates student session moves: requests are validated
// up front and adjudicated by staff.
type ReassignmentService struct {
	repo      reassignmentRepository
	sessions  reassignmentSessionReader
	students  reassignmentStudentReader
	validator *validator.Validate
	logger    *zap.Logger
	policy    config.ReassignmentConfig
}

// NewReassignmentService constructs the reassignment service.
func NewReassignmentService(repo reassignmentRepository, sessions reassignmentSessionReader, students reassignmentStudentReader, validate *validator.Validate, logger *zap.Logger, policy config.ReassignmentConfig) *ReassignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MaxRequestsPerStudent <= 0 {
		policy.MaxRequestsPerStudent = 3
	}
	return &ReassignmentService{repo: repo, sessions: sessions, students: students, validator: validate, logger: logger, policy: policy}
}

// CreateReassignmentRequest is the payload for a new move request.
type CreateReassignmentRequest struct {
	StudentID     string  `json:"student_id" validate:"required,uuid"`
	FromSessionID string  `json:"from_session_id" validate:"required,uuid"`
	ToSessionID   string  `json:"to_session_id" validate:"required,uuid"`
	Reason        *string `json:"reason" validate:"omitempty,max=500"`
}

// ProcessReassignmentRequest carries the staff decision.
type ProcessReassignmentRequest struct {
	Decision string `json:"decision" validate:"required"`
}

// Request validates and files a new reassignment request. The target session
// must be a different slot on the same day within the same class, with room
// left, and the student must currently hold the source slot.
func (s *ReassignmentService) Request(ctx context.Context, req CreateReassignmentRequest) (*models.ReassignmentRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}
	if req.FromSessionID == req.ToSessionID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target session must differ from the current one")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}

	from, err := s.sessions.FindByID(ctx, req.FromSessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "source session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch source session")
	}
	to, err := s.sessions.FindByID(ctx, req.ToSessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch target session")
	}

	pending, err := s.repo.HasPending(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrPendingRequestExists, "")
	}

	total, err := s.repo.CountByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests")
	}
	if total >= s.policy.MaxRequestsPerStudent {
		return nil, appErrors.Clone(appErrors.ErrMaxRequestsReached,
			fmt.Sprintf("a student may file at most %d reassignment requests", s.policy.MaxRequestsPerStudent))
	}

	if from.Day != to.Day {
		return nil, appErrors.Clone(appErrors.ErrSameDayOnly, "")
	}
	if from.ClassID != to.ClassID || to.ClassID != student.ClassID {
		return nil, appErrors.Clone(appErrors.ErrSameClassOnly, "")
	}

	assigned, err := s.sessions.SessionsByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student sessions")
	}
	holdsSource := false
	for _, candidate := range assigned {
		if candidate.ID == from.ID {
			holdsSource = true
			break
		}
	}
	if !holdsSource {
		return nil, appErrors.Clone(appErrors.ErrNotAssignedToSource, "")
	}

	enrolled, err := s.sessions.CountEnrolled(ctx, to.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count target enrollees")
	}
	if enrolled >= to.Capacity {
		return nil, appErrors.Clone(appErrors.ErrSessionFull, "")
	}

	request := &models.ReassignmentRequest{
		StudentID:     student.ID,
		FromSessionID: from.ID,
		ToSessionID:   to.ID,
		Reason:        req.Reason,
		Status:        models.ReassignmentPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reassignment request")
	}

	s.logger.Info("reassignment requested",
		zap.String("request_id", request.ID),
		zap.String("student_id", student.ID),
		zap.String("from", from.ID),
		zap.String("to", to.ID))
	return request, nil
}

// Process adjudicates a pending request. Approval re-checks capacity and
// swaps the membership atomically; both outcomes stamp the deciding teacher.
func (s *ReassignmentService) Process(ctx context.Context, id, teacherID string, req ProcessReassignmentRequest) (*models.ReassignmentRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}
	decision := models.ReassignmentStatus(strings.ToUpper(req.Decision))
	if decision != models.ReassignmentApproved && decision != models.ReassignmentDenied {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVED or DENIED")
	}

	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reassignment request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch request")
	}
	if request.Status != models.ReassignmentPending {
		return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "")
	}

	if decision == models.ReassignmentApproved {
		to, err := s.sessions.FindByID(ctx, request.ToSessionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch target session")
		}
		enrolled, err := s.sessions.CountEnrolled(ctx, to.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count target enrollees")
		}
		if enrolled >= to.Capacity {
			return nil, appErrors.Clone(appErrors.ErrSessionFull, "target session filled up while the request was pending")
		}

		if err := s.repo.Approve(ctx, request, teacherID); err != nil {
			switch {
			case errors.Is(err, repository.ErrRequestNotPending):
				return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "")
			case errors.Is(err, repository.ErrMembershipMissing):
				return nil, appErrors.Clone(appErrors.ErrNotAssignedToSource, "student no longer holds the source session")
			default:
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve request")
			}
		}
	} else {
		if err := s.repo.Deny(ctx, request, teacherID); err != nil {
			if errors.Is(err, repository.ErrRequestNotPending) {
				return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deny request")
		}
	}

	s.logger.Info("reassignment processed",
		zap.String("request_id", request.ID),
		zap.String("decision", string(decision)),
		zap.String("decided_by", teacherID))
	return request, nil
}

// Get returns one request by id.
func (s *ReassignmentService) Get(ctx context.Context, id string) (*models.ReassignmentRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reassignment request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch request")
	}
	return request, nil
}

// List returns requests matching the filter.
func (s *ReassignmentService) List(ctx context.Context, filter models.ReassignmentFilter) ([]models.ReassignmentDetail, *models.Pagination, error) {
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
