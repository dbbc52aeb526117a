package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/weekend-course-api/internal/models"
	"github.com/noah-isme/weekend-course-api/pkg/config"
	appErrors "github.com/noah-isme/weekend-course-api/pkg/errors"
)

type mockSessionRepo struct {
	sessions map[string]models.Session
	enrolled map[string]int
	counter  int
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	if m.sessions == nil {
		m.sessions = make(map[string]models.Session)
	}
	m.counter++
	if session.ID == "" {
		session.ID = requestID(m.counter)
	}
	m.sessions[session.ID] = *session
	return nil
}

func (m *mockSessionRepo) Update(ctx context.Context, session *models.Session) error {
	m.sessions[session.ID] = *session
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if session, ok := m.sessions[id]; ok {
		return &session, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionWithLoad, int, error) {
	return nil, 0, nil
}

func (m *mockSessionRepo) ListByClassAndDay(ctx context.Context, classID string, day models.SessionDay) ([]models.Session, error) {
	var out []models.Session
	for _, session := range m.sessions {
		if session.ClassID == classID && session.Day == day {
			out = append(out, session)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) CountEnrolled(ctx context.Context, sessionID string) (int, error) {
	return m.enrolled[sessionID], nil
}

const classMainID = "3c2d4d4a-8e6f-4a6d-9d5b-3d4e5f6a7b8d"

func newSessionFixture() (*SessionService, *mockSessionRepo) {
	repo := &mockSessionRepo{}
	classes := &mockClassReader{classes: map[string]models.Class{
		classMainID: {ID: classMainID, CourseID: "course-1", Name: "Weekend A", Capacity: 40},
	}}
	svc := NewSessionService(repo, classes, nil, nil, config.SessionPolicyConfig{
		MinDurationMinutes: 45,
		MaxDurationMinutes: 240,
		EarliestStart:      "07:00",
		LatestEnd:          "21:00",
	})
	return svc, repo
}

func TestSessionCreateValid(t *testing.T) {
	svc, repo := newSessionFixture()

	created, err := svc.Create(context.Background(), CreateSessionRequest{
		ClassID:   classMainID,
		Day:       "saturday",
		StartTime: "09:00",
		EndTime:   "11:00",
		Capacity:  20,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionDaySaturday, created.Day)
	assert.Len(t, repo.sessions, 1)
}

func TestSessionCreateUnknownClass(t *testing.T) {
	svc, _ := newSessionFixture()

	_, err := svc.Create(context.Background(), CreateSessionRequest{
		ClassID:   sessionMissing,
		Day:       "SATURDAY",
		StartTime: "09:00",
		EndTime:   "11:00",
		Capacity:  20,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestValidateSlotCollectsAllProblems(t *testing.T) {
	svc, _ := newSessionFixture()

	// Too short and before the allowed day start.
	result, err := svc.ValidateSlot(context.Background(), classMainID, models.SessionDaySaturday, "06:00", "06:30", "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Len(t, result.Conflicts, 2)
}

func TestValidateSlotDurationBounds(t *testing.T) {
	svc, _ := newSessionFixture()

	tooLong, err := svc.ValidateSlot(context.Background(), classMainID, models.SessionDaySaturday, "08:00", "13:00", "")
	require.NoError(t, err)
	assert.False(t, tooLong.Valid)

	exactMin, err := svc.ValidateSlot(context.Background(), classMainID, models.SessionDaySaturday, "08:00", "08:45", "")
	require.NoError(t, err)
	assert.True(t, exactMin.Valid)

	exactMax, err := svc.ValidateSlot(context.Background(), classMainID, models.SessionDaySaturday, "08:00", "12:00", "")
	require.NoError(t, err)
	assert.True(t, exactMax.Valid)
}

func TestValidateSlotOverlap(t *testing.T) {
	svc, repo := newSessionFixture()
	existing := models.Session{ClassID: classMainID, Day: models.SessionDaySaturday, StartTime: "09:00", EndTime: "11:00", Capacity: 20}
	require.NoError(t, repo.Create(context.Background(), &existing))

	overlapping, err := svc.ValidateSlot(context.Background(), classMainID, models.SessionDaySaturday, "10:00", "12:00", "")
	require.NoError(t, err)
	assert.False(t, overlapping.Valid)
	require.Len(t, overlapping.Conflicts, 1)
	assert.Contains(t, overlapping.Conflicts[0], existing.ID)

	// Back-to-back slots touch but do not overlap.
	adjacent, err := svc.ValidateSlot(context.Background(), classMainID, models.SessionDaySaturday, "11:00", "13:00", "")
	require.NoError(t, err)
	assert.True(t, adjacent.Valid)

	// The session being edited is excluded from the overlap check.
	self, err := svc.ValidateSlot(context.Background(), classMainID, models.SessionDaySaturday, "09:30", "11:00", existing.ID)
	require.NoError(t, err)
	assert.True(t, self.Valid)

	// A Sunday slot at the same hours never conflicts with a Saturday one.
	otherDay, err := svc.ValidateSlot(context.Background(), classMainID, models.SessionDaySunday, "10:00", "12:00", "")
	require.NoError(t, err)
	assert.True(t, otherDay.Valid)
}

func TestSessionUpdateCapacityBelowEnrollment(t *testing.T) {
	svc, repo := newSessionFixture()
	existing := models.Session{ClassID: classMainID, Day: models.SessionDaySaturday, StartTime: "09:00", EndTime: "11:00", Capacity: 20}
	require.NoError(t, repo.Create(context.Background(), &existing))
	repo.enrolled = map[string]int{existing.ID: 12}

	_, err := svc.Update(context.Background(), existing.ID, UpdateSessionRequest{
		Day:       "SATURDAY",
		StartTime: "09:00",
		EndTime:   "11:00",
		Capacity:  10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
