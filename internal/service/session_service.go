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
	"github.com/noah-isme/weekend-course-api/pkg/config"
	appErrors "github.com/noah-isme/weekend-course-api/pkg/errors"
)

type sessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionWithLoad, int, error)
	ListByClassAndDay(ctx context.Context, classID string, day models.SessionDay) ([]models.Session, error)
	CountEnrolled(ctx context.Context, sessionID string) (int, error)
}

type sessionClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// SessionService manages weekend time slots and enforces slot placement rules.
type SessionService struct {
	repo      sessionRepository
	classes   sessionClassReader
	validator *validator.Validate
	logger    *zap.Logger
	policy    config.SessionPolicyConfig
}

// NewSessionService constructs the session service and registers the clock
// and weekend-day validators.
func NewSessionService(repo sessionRepository, classes sessionClassReader, validate *validator.Validate, logger *zap.Logger, policy config.SessionPolicyConfig) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MinDurationMinutes <= 0 {
		policy.MinDurationMinutes = 45
	}
	if policy.MaxDurationMinutes <= 0 {
		policy.MaxDurationMinutes = 240
	}
	if policy.EarliestStart == "" {
		policy.EarliestStart = "07:00"
	}
	if policy.LatestEnd == "" {
		policy.LatestEnd = "21:00"
	}

	svc := &SessionService{repo: repo, classes: classes, validator: validate, logger: logger, policy: policy}
	svc.validator.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := parseClock(fl.Field().String())
		return err == nil
	})
	svc.validator.RegisterValidation("session_day", func(fl validator.FieldLevel) bool {
		return models.SessionDay(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// CreateSessionRequest describes a new weekend slot.
type CreateSessionRequest struct {
	ClassID   string `json:"class_id" validate:"required,uuid"`
	Day       string `json:"day" validate:"required,session_day"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
	Capacity  int    `json:"capacity" validate:"required,min=1"`
}

// UpdateSessionRequest mirrors the create payload for an existing slot.
type UpdateSessionRequest struct {
	Day       string `json:"day" validate:"required,session_day"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
	Capacity  int    `json:"capacity" validate:"required,min=1"`
}

// Create validates and persists a new session slot.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch class")
	}

	day := models.SessionDay(strings.ToUpper(req.Day))
	validation, err := s.ValidateSlot(ctx, req.ClassID, day, req.StartTime, req.EndTime, "")
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, appErrors.Clone(appErrors.ErrValidation, strings.Join(validation.Conflicts, "; "))
	}

	session := &models.Session{
		ClassID:   req.ClassID,
		Day:       day,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Capacity:  req.Capacity,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("class_id", session.ClassID),
		zap.String("day", string(session.Day)))
	return session, nil
}

// Update revalidates and persists changes to an existing slot.
func (s *SessionService) Update(ctx context.Context, id string, req UpdateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}

	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch session")
	}

	day := models.SessionDay(strings.ToUpper(req.Day))
	validation, err := s.ValidateSlot(ctx, session.ClassID, day, req.StartTime, req.EndTime, session.ID)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, appErrors.Clone(appErrors.ErrValidation, strings.Join(validation.Conflicts, "; "))
	}

	// Shrinking capacity below the current enrollment would orphan members.
	if req.Capacity < session.Capacity {
		enrolled, cerr := s.repo.CountEnrolled(ctx, session.ID)
		if cerr != nil {
			return nil, appErrors.Wrap(cerr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollees")
		}
		if req.Capacity < enrolled {
			return nil, appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("capacity %d is below the current enrollment of %d", req.Capacity, enrolled))
		}
	}

	session.Day = day
	session.StartTime = req.StartTime
	session.EndTime = req.EndTime
	session.Capacity = req.Capacity
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return session, nil
}

// Delete removes a session and its memberships.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch session")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	return nil
}

// Get returns one session by id.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch session")
	}
	return session, nil
}

// List returns sessions with their current enrollment load.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionWithLoad, *models.Pagination, error) {
	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return sessions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ValidateSlot checks a proposed slot against duration bounds, the allowed
// daily hours and overlap with sibling sessions. All problems are collected
// rather than failing on the first one. excludeID skips the session being
// edited when checking overlaps.
func (s *SessionService) ValidateSlot(ctx context.Context, classID string, day models.SessionDay, startTime, endTime, excludeID string) (*models.SlotValidation, error) {
	result := &models.SlotValidation{Valid: true}

	if !day.Valid() {
		result.Valid = false
		result.Conflicts = append(result.Conflicts, "day must be SATURDAY or SUNDAY")
		return result, nil
	}

	start, err := parseClock(startTime)
	if err != nil {
		result.Valid = false
		result.Conflicts = append(result.Conflicts, "start time must be a HH:MM clock value")
		return result, nil
	}
	end, err := parseClock(endTime)
	if err != nil {
		result.Valid = false
		result.Conflicts = append(result.Conflicts, "end time must be a HH:MM clock value")
		return result, nil
	}

	duration := end - start
	if duration <= 0 {
		result.Valid = false
		result.Conflicts = append(result.Conflicts, "end time must be after start time")
		return result, nil
	}
	if duration < s.policy.MinDurationMinutes {
		result.Valid = false
		result.Conflicts = append(result.Conflicts,
			fmt.Sprintf("session must run at least %d minutes", s.policy.MinDurationMinutes))
	}
	if duration > s.policy.MaxDurationMinutes {
		result.Valid = false
		result.Conflicts = append(result.Conflicts,
			fmt.Sprintf("session must not exceed %d minutes", s.policy.MaxDurationMinutes))
	}

	earliest, _ := parseClock(s.policy.EarliestStart)
	latest, _ := parseClock(s.policy.LatestEnd)
	if start < earliest {
		result.Valid = false
		result.Conflicts = append(result.Conflicts,
			fmt.Sprintf("session cannot start before %s", s.policy.EarliestStart))
	}
	if end > latest {
		result.Valid = false
		result.Conflicts = append(result.Conflicts,
			fmt.Sprintf("session cannot end after %s", s.policy.LatestEnd))
	}

	siblings, err := s.repo.ListByClassAndDay(ctx, classID, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch sibling sessions")
	}
	for _, sibling := range siblings {
		if sibling.ID == excludeID {
			continue
		}
		sibStart, perr := parseClock(sibling.StartTime)
		if perr != nil {
			continue
		}
		sibEnd, perr := parseClock(sibling.EndTime)
		if perr != nil {
			continue
		}
		if rangesOverlap(start, end, sibStart, sibEnd) {
			result.Valid = false
			result.Conflicts = append(result.Conflicts,
				fmt.Sprintf("overlaps session %s (%s-%s)", sibling.ID, sibling.StartTime, sibling.EndTime))
		}
	}

	return result, nil
}
