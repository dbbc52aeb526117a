package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/weekend-course-api/internal/models"
	appErrors "github.com/noah-isme/weekend-course-api/pkg/errors"
)

type assignmentSessionRepository interface {
	ListWithLoadByClass(ctx context.Context, classID string) ([]models.SessionWithLoad, error)
	UnassignedStudents(ctx context.Context, classID string) ([]models.Student, error)
	AssignPair(ctx context.Context, studentID, saturdayID, sundayID string) error
}

type assignmentClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// AssignmentService places approved students into one Saturday and one Sunday
// session per class, always picking the least-loaded slot with room left.
type AssignmentService struct {
	sessions assignmentSessionRepository
	classes  assignmentClassReader
	logger   *zap.Logger
}

// NewAssignmentService constructs the balancer.
func NewAssignmentService(sessions assignmentSessionRepository, classes assignmentClassReader, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{sessions: sessions, classes: classes, logger: logger}
}

// AutoAssign walks every approved but unassigned student of the class and
// gives each a Saturday and a Sunday slot. Students that cannot be placed are
// reported rather than failing the whole run.
func (s *AssignmentService) AutoAssign(ctx context.Context, classID string) (*models.AutoAssignResult, error) {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch class")
	}

	students, err := s.sessions.UnassignedStudents(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch unassigned students")
	}

	sessions, err := s.sessions.ListWithLoadByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch class sessions")
	}

	var saturdays, sundays []*models.SessionWithLoad
	for i := range sessions {
		switch sessions[i].Day {
		case models.SessionDaySaturday:
			saturdays = append(saturdays, &sessions[i])
		case models.SessionDaySunday:
			sundays = append(sundays, &sessions[i])
		}
	}

	result := &models.AutoAssignResult{}
	if len(saturdays) == 0 || len(sundays) == 0 {
		result.Errors = append(result.Errors, "class needs at least one Saturday and one Sunday session")
		for _, student := range students {
			result.Unassigned = append(result.Unassigned, models.UnassignedStudent{
				StudentID:   student.ID,
				StudentName: student.FullName,
				Reason:      "no sessions available on both days",
			})
		}
		result.Failed = len(students)
		return result, nil
	}

	for _, student := range students {
		saturday := leastLoaded(saturdays)
		sunday := leastLoaded(sundays)
		if saturday == nil || sunday == nil {
			var full []string
			if saturday == nil {
				full = append(full, "Saturday")
			}
			if sunday == nil {
				full = append(full, "Sunday")
			}
			reason := fmt.Sprintf("all %s sessions are full", strings.Join(full, " and "))
			result.Failed++
			result.Unassigned = append(result.Unassigned, models.UnassignedStudent{
				StudentID:   student.ID,
				StudentName: student.FullName,
				Reason:      reason,
			})
			continue
		}

		if err := s.sessions.AssignPair(ctx, student.ID, saturday.ID, sunday.ID); err != nil {
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("failed to assign student %s: %v", student.ID, err))
			result.Unassigned = append(result.Unassigned, models.UnassignedStudent{
				StudentID:   student.ID,
				StudentName: student.FullName,
				Reason:      "assignment could not be persisted",
			})
			continue
		}

		saturday.Enrolled++
		sunday.Enrolled++
		result.Assigned++
		result.Assignments = append(result.Assignments, models.AutoAssignment{
			StudentID:         student.ID,
			StudentName:       student.FullName,
			SaturdaySessionID: saturday.ID,
			SundaySessionID:   sunday.ID,
		})
	}

	s.logger.Info("auto assignment completed",
		zap.String("class_id", classID),
		zap.Int("assigned", result.Assigned),
		zap.Int("failed", result.Failed))
	return result, nil
}

// leastLoaded picks the session with the most free seats, preferring the
// lower current load. Full sessions are skipped; stable ordering keeps runs
// deterministic.
func leastLoaded(sessions []*models.SessionWithLoad) *models.SessionWithLoad {
	candidates := make([]*models.SessionWithLoad, 0, len(sessions))
	for _, session := range sessions {
		if session.Enrolled < session.Capacity {
			candidates = append(candidates, session)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Enrolled < candidates[j].Enrolled
	})
	return candidates[0]
}
