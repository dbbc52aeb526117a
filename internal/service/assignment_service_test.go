package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/weekend-course-api/internal/models"
)

type mockAssignmentRepo struct {
	sessions   []models.SessionWithLoad
	unassigned []models.Student
	pairs      map[string][2]string
	failFor    map[string]error
}

func (m *mockAssignmentRepo) ListWithLoadByClass(ctx context.Context, classID string) ([]models.SessionWithLoad, error) {
	return m.sessions, nil
}

func (m *mockAssignmentRepo) UnassignedStudents(ctx context.Context, classID string) ([]models.Student, error) {
	return m.unassigned, nil
}

func (m *mockAssignmentRepo) AssignPair(ctx context.Context, studentID, saturdayID, sundayID string) error {
	if err := m.failFor[studentID]; err != nil {
		return err
	}
	if m.pairs == nil {
		m.pairs = make(map[string][2]string)
	}
	m.pairs[studentID] = [2]string{saturdayID, sundayID}
	return nil
}

type mockClassReader struct {
	classes map[string]models.Class
}

func (m *mockClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if class, ok := m.classes[id]; ok {
		return &class, nil
	}
	return nil, sql.ErrNoRows
}

func session(id string, day models.SessionDay, capacity, enrolled int) models.SessionWithLoad {
	return models.SessionWithLoad{
		Session:  models.Session{ID: id, ClassID: "class-1", Day: day, StartTime: "09:00", EndTime: "11:00", Capacity: capacity},
		Enrolled: enrolled,
	}
}

func roster(n int) []models.Student {
	students := make([]models.Student, 0, n)
	for i := 0; i < n; i++ {
		students = append(students, models.Student{
			ID:       fmt.Sprintf("stu-%03d", i),
			FullName: fmt.Sprintf("Student %03d", i),
			ClassID:  "class-1",
			Status:   models.RegistrationApproved,
		})
	}
	return students
}

func newAssignmentFixture(repo *mockAssignmentRepo) *AssignmentService {
	classes := &mockClassReader{classes: map[string]models.Class{
		"class-1": {ID: "class-1", CourseID: "course-1", Name: "Weekend A", Capacity: 40},
	}}
	return NewAssignmentService(repo, classes, nil)
}

func TestAutoAssignBalancesLoad(t *testing.T) {
	repo := &mockAssignmentRepo{
		sessions: []models.SessionWithLoad{
			session("sat-a", models.SessionDaySaturday, 15, 0),
			session("sat-b", models.SessionDaySaturday, 15, 5),
			session("sun-a", models.SessionDaySunday, 30, 0),
		},
		unassigned: roster(20),
	}
	svc := newAssignmentFixture(repo)

	result, err := svc.AutoAssign(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, 20, result.Assigned)
	assert.Equal(t, 0, result.Failed)

	// The balancer should even out the Saturday loads: 25 total seats taken
	// across two sessions that started at 0 and 5.
	counts := map[string]int{}
	for _, pair := range repo.pairs {
		counts[pair[0]]++
	}
	assert.Equal(t, len(repo.pairs), 20)
	assert.InDelta(t, counts["sat-a"], counts["sat-b"]+5, 1)
}

func TestAutoAssignRequiresBothDays(t *testing.T) {
	repo := &mockAssignmentRepo{
		sessions: []models.SessionWithLoad{
			session("sat-a", models.SessionDaySaturday, 15, 0),
		},
		unassigned: roster(3),
	}
	svc := newAssignmentFixture(repo)

	result, err := svc.AutoAssign(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Assigned)
	assert.Equal(t, 3, result.Failed)
	assert.Len(t, result.Unassigned, 3)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "at least one Saturday and one Sunday")
}

func TestAutoAssignReportsFullSessions(t *testing.T) {
	repo := &mockAssignmentRepo{
		sessions: []models.SessionWithLoad{
			session("sat-a", models.SessionDaySaturday, 2, 0),
			session("sun-a", models.SessionDaySunday, 10, 0),
		},
		unassigned: roster(5),
	}
	svc := newAssignmentFixture(repo)

	result, err := svc.AutoAssign(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Assigned)
	assert.Equal(t, 3, result.Failed)
	assert.Len(t, result.Unassigned, 3)
	for _, entry := range result.Unassigned {
		assert.Contains(t, entry.Reason, "full")
	}
}

func TestAutoAssignReasonNamesEachFullDay(t *testing.T) {
	tests := []struct {
		name       string
		sessions   []models.SessionWithLoad
		wantReason string
	}{
		{
			name: "saturday full",
			sessions: []models.SessionWithLoad{
				session("sat-a", models.SessionDaySaturday, 2, 2),
				session("sun-a", models.SessionDaySunday, 10, 0),
			},
			wantReason: "all Saturday sessions are full",
		},
		{
			name: "sunday full",
			sessions: []models.SessionWithLoad{
				session("sat-a", models.SessionDaySaturday, 10, 0),
				session("sun-a", models.SessionDaySunday, 2, 2),
			},
			wantReason: "all Sunday sessions are full",
		},
		{
			name: "both days full",
			sessions: []models.SessionWithLoad{
				session("sat-a", models.SessionDaySaturday, 2, 2),
				session("sun-a", models.SessionDaySunday, 2, 2),
			},
			wantReason: "all Saturday and Sunday sessions are full",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockAssignmentRepo{sessions: tt.sessions, unassigned: roster(1)}
			svc := newAssignmentFixture(repo)

			result, err := svc.AutoAssign(context.Background(), "class-1")
			require.NoError(t, err)
			assert.Equal(t, 0, result.Assigned)
			require.Len(t, result.Unassigned, 1)
			assert.Equal(t, tt.wantReason, result.Unassigned[0].Reason)
		})
	}
}

func TestAutoAssignPartialPersistFailure(t *testing.T) {
	repo := &mockAssignmentRepo{
		sessions: []models.SessionWithLoad{
			session("sat-a", models.SessionDaySaturday, 10, 0),
			session("sun-a", models.SessionDaySunday, 10, 0),
		},
		unassigned: roster(3),
		failFor:    map[string]error{"stu-001": fmt.Errorf("constraint violation")},
	}
	svc := newAssignmentFixture(repo)

	result, err := svc.AutoAssign(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Assigned)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "stu-001")
}
