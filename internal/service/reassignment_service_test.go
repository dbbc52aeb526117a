package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/weekend-course-api/internal/models"
	"github.com/noah-isme/weekend-course-api/internal/repository"
	"github.com/noah-isme/weekend-course-api/pkg/config"
	appErrors "github.com/noah-isme/weekend-course-api/pkg/errors"
)

type mockReassignmentRepo struct {
	requests map[string]models.ReassignmentRequest
	counter  int
}

func (m *mockReassignmentRepo) Create(ctx context.Context, req *models.ReassignmentRequest) error {
	if m.requests == nil {
		m.requests = make(map[string]models.ReassignmentRequest)
	}
	m.counter++
	if req.ID == "" {
		req.ID = requestID(m.counter)
	}
	req.CreatedAt = time.Now().UTC()
	m.requests[req.ID] = *req
	return nil
}

func requestID(n int) string {
	ids := []string{
		"8e1c2c2a-3e6f-4f6c-9c5a-8c9d1e2f3a4b",
		"9f2d3d3b-4f7a-4a7d-8d6b-9d1e2f3a4b5c",
		"1a3e4e4c-5a8b-4b8e-9e7c-1e2f3a4b5c6d",
		"2b4f5f5d-6b9c-4c9f-8f8d-2f3a4b5c6d7e",
	}
	return ids[(n-1)%len(ids)]
}

func (m *mockReassignmentRepo) FindByID(ctx context.Context, id string) (*models.ReassignmentRequest, error) {
	if req, ok := m.requests[id]; ok {
		return &req, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReassignmentRepo) HasPending(ctx context.Context, studentID string) (bool, error) {
	for _, req := range m.requests {
		if req.StudentID == studentID && req.Status == models.ReassignmentPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockReassignmentRepo) CountByStudent(ctx context.Context, studentID string) (int, error) {
	count := 0
	for _, req := range m.requests {
		if req.StudentID == studentID {
			count++
		}
	}
	return count, nil
}

func (m *mockReassignmentRepo) List(ctx context.Context, filter models.ReassignmentFilter) ([]models.ReassignmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockReassignmentRepo) Approve(ctx context.Context, req *models.ReassignmentRequest, teacherID string) error {
	stored, ok := m.requests[req.ID]
	if !ok || stored.Status != models.ReassignmentPending {
		return repository.ErrRequestNotPending
	}
	now := time.Now().UTC()
	stored.Status = models.ReassignmentApproved
	stored.DecidedBy = &teacherID
	stored.DecidedAt = &now
	m.requests[req.ID] = stored
	*req = stored
	return nil
}

func (m *mockReassignmentRepo) Deny(ctx context.Context, req *models.ReassignmentRequest, teacherID string) error {
	stored, ok := m.requests[req.ID]
	if !ok || stored.Status != models.ReassignmentPending {
		return repository.ErrRequestNotPending
	}
	now := time.Now().UTC()
	stored.Status = models.ReassignmentDenied
	stored.DecidedBy = &teacherID
	stored.DecidedAt = &now
	m.requests[req.ID] = stored
	*req = stored
	return nil
}

type mockReassignmentSessions struct {
	sessions    map[string]models.Session
	assignments map[string][]string
	enrolled    map[string]int
}

func (m *mockReassignmentSessions) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if session, ok := m.sessions[id]; ok {
		return &session, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReassignmentSessions) SessionsByStudent(ctx context.Context, studentID string) ([]models.Session, error) {
	var out []models.Session
	for _, id := range m.assignments[studentID] {
		if session, ok := m.sessions[id]; ok {
			out = append(out, session)
		}
	}
	return out, nil
}

func (m *mockReassignmentSessions) CountEnrolled(ctx context.Context, sessionID string) (int, error) {
	return m.enrolled[sessionID], nil
}

func newReassignmentFixture() (*ReassignmentService, *mockReassignmentRepo, *mockReassignmentSessions) {
	repo := &mockReassignmentRepo{}
	sessions := &mockReassignmentSessions{
		sessions: map[string]models.Session{
			sessionSatID:   {ID: sessionSatID, ClassID: "class-1", Day: models.SessionDaySaturday, StartTime: "09:00", EndTime: "11:00", Capacity: 2},
			sessionAltID:   {ID: sessionAltID, ClassID: "class-1", Day: models.SessionDaySaturday, StartTime: "13:00", EndTime: "15:00", Capacity: 2},
			sessionOtherID: {ID: sessionOtherID, ClassID: "class-2", Day: models.SessionDaySaturday, StartTime: "09:00", EndTime: "11:00", Capacity: 2},
		},
		assignments: map[string][]string{studentAliceID: {sessionSatID}},
		enrolled:    map[string]int{sessionSatID: 1, sessionAltID: 0},
	}
	students := &mockStudentReader{
		students: map[string]models.Student{
			studentAliceID: {ID: studentAliceID, StudentNumber: "WC-1001", FullName: "Alice Tan", ClassID: "class-1", Status: models.RegistrationApproved},
		},
	}
	svc := NewReassignmentService(repo, sessions, students, nil, nil, config.ReassignmentConfig{MaxRequestsPerStudent: 3})
	return svc, repo, sessions
}

func moveRequest() CreateReassignmentRequest {
	return CreateReassignmentRequest{
		StudentID:     studentAliceID,
		FromSessionID: sessionSatID,
		ToSessionID:   sessionAltID,
	}
}

func TestReassignmentRequestHappyPath(t *testing.T) {
	svc, repo, _ := newReassignmentFixture()

	created, err := svc.Request(context.Background(), moveRequest())
	require.NoError(t, err)
	assert.Equal(t, models.ReassignmentPending, created.Status)
	assert.Len(t, repo.requests, 1)
}

func TestReassignmentRequestPendingBlocksSecond(t *testing.T) {
	svc, _, _ := newReassignmentFixture()

	_, err := svc.Request(context.Background(), moveRequest())
	require.NoError(t, err)

	_, err = svc.Request(context.Background(), moveRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPendingRequestExists.Code, appErrors.FromError(err).Code)
}

func TestReassignmentRequestMaxReached(t *testing.T) {
	svc, repo, _ := newReassignmentFixture()
	// Three already-decided requests exhaust the quota.
	for i := 0; i < 3; i++ {
		req := models.ReassignmentRequest{
			StudentID:     studentAliceID,
			FromSessionID: sessionSatID,
			ToSessionID:   sessionAltID,
			Status:        models.ReassignmentDenied,
		}
		require.NoError(t, repo.Create(context.Background(), &req))
	}

	_, err := svc.Request(context.Background(), moveRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMaxRequestsReached.Code, appErrors.FromError(err).Code)
}

func TestReassignmentRequestCrossDayRejected(t *testing.T) {
	svc, _, sessions := newReassignmentFixture()
	sunday := models.Session{ID: sessionMissing, ClassID: "class-1", Day: models.SessionDaySunday, StartTime: "09:00", EndTime: "11:00", Capacity: 2}
	sessions.sessions[sunday.ID] = sunday

	req := moveRequest()
	req.ToSessionID = sunday.ID
	_, err := svc.Request(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSameDayOnly.Code, appErrors.FromError(err).Code)
}

func TestReassignmentRequestCrossClassRejected(t *testing.T) {
	svc, _, _ := newReassignmentFixture()

	req := moveRequest()
	req.ToSessionID = sessionOtherID
	_, err := svc.Request(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSameClassOnly.Code, appErrors.FromError(err).Code)
}

func TestReassignmentRequestNotHoldingSource(t *testing.T) {
	svc, _, sessions := newReassignmentFixture()
	sessions.assignments[studentAliceID] = nil

	_, err := svc.Request(context.Background(), moveRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotAssignedToSource.Code, appErrors.FromError(err).Code)
}

func TestReassignmentRequestTargetFull(t *testing.T) {
	svc, _, sessions := newReassignmentFixture()
	sessions.enrolled[sessionAltID] = 2

	_, err := svc.Request(context.Background(), moveRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionFull.Code, appErrors.FromError(err).Code)
}

func TestReassignmentProcessApprove(t *testing.T) {
	svc, repo, _ := newReassignmentFixture()
	created, err := svc.Request(context.Background(), moveRequest())
	require.NoError(t, err)

	decided, err := svc.Process(context.Background(), created.ID, teacherMarkerID, ProcessReassignmentRequest{Decision: "APPROVED"})
	require.NoError(t, err)
	assert.Equal(t, models.ReassignmentApproved, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, teacherMarkerID, *decided.DecidedBy)

	stored := repo.requests[created.ID]
	assert.Equal(t, models.ReassignmentApproved, stored.Status)
}

func TestReassignmentProcessTwiceIsConflict(t *testing.T) {
	svc, _, _ := newReassignmentFixture()
	created, err := svc.Request(context.Background(), moveRequest())
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), created.ID, teacherMarkerID, ProcessReassignmentRequest{Decision: "DENIED"})
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), created.ID, teacherMarkerID, ProcessReassignmentRequest{Decision: "APPROVED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyProcessed.Code, appErrors.FromError(err).Code)
}

func TestReassignmentProcessApproveWhenTargetFilledUp(t *testing.T) {
	svc, _, sessions := newReassignmentFixture()
	created, err := svc.Request(context.Background(), moveRequest())
	require.NoError(t, err)

	// Somebody else took the last seat while the request sat in the queue.
	sessions.enrolled[sessionAltID] = 2

	_, err = svc.Process(context.Background(), created.ID, teacherMarkerID, ProcessReassignmentRequest{Decision: "APPROVED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionFull.Code, appErrors.FromError(err).Code)
}

func TestReassignmentProcessInvalidDecision(t *testing.T) {
	svc, _, _ := newReassignmentFixture()
	created, err := svc.Request(context.Background(), moveRequest())
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), created.ID, teacherMarkerID, ProcessReassignmentRequest{Decision: "MAYBE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
