package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/weekend-course-api/internal/middleware"
	"github.com/noah-isme/weekend-course-api/internal/models"
	"github.com/noah-isme/weekend-course-api/internal/service"
	"github.com/noah-isme/weekend-course-api/pkg/config"
)

type fakeReassignmentRepo struct {
	request       *models.ReassignmentRequest
	deniedBy      string
	approvedCalls int
}

func (f *fakeReassignmentRepo) Create(context.Context, *models.ReassignmentRequest) error {
	return nil
}

func (f *fakeReassignmentRepo) FindByID(context.Context, string) (*models.ReassignmentRequest, error) {
	return f.request, nil
}

func (f *fakeReassignmentRepo) HasPending(context.Context, string) (bool, error) { return false, nil }

func (f *fakeReassignmentRepo) CountByStudent(context.Context, string) (int, error) { return 0, nil }

func (f *fakeReassignmentRepo) List(context.Context, models.ReassignmentFilter) ([]models.ReassignmentDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeReassignmentRepo) Approve(_ context.Context, req *models.ReassignmentRequest, teacherID string) error {
	f.approvedCalls++
	req.Status = models.ReassignmentApproved
	req.DecidedBy = &teacherID
	return nil
}

func (f *fakeReassignmentRepo) Deny(_ context.Context, req *models.ReassignmentRequest, teacherID string) error {
	f.deniedBy = teacherID
	req.Status = models.ReassignmentDenied
	req.DecidedBy = &teacherID
	return nil
}

type fakeReassignmentSessions struct{}

func (fakeReassignmentSessions) FindByID(context.Context, string) (*models.Session, error) {
	return nil, nil
}

func (fakeReassignmentSessions) SessionsByStudent(context.Context, string) ([]models.Session, error) {
	return nil, nil
}

func (fakeReassignmentSessions) CountEnrolled(context.Context, string) (int, error) { return 0, nil }

type fakeReassignmentStudents struct{}

func (fakeReassignmentStudents) FindByID(context.Context, string) (*models.Student, error) {
	return nil, nil
}

func newReassignmentHandlerForTest(repo *fakeReassignmentRepo) *ReassignmentHandler {
	svc := service.NewReassignmentService(repo, fakeReassignmentSessions{}, fakeReassignmentStudents{}, nil, nil, config.ReassignmentConfig{})
	return NewReassignmentHandler(svc)
}

func TestReassignmentHandlerProcessStampsDecidingTeacher(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeReassignmentRepo{request: &models.ReassignmentRequest{
		ID:     "req-1",
		Status: models.ReassignmentPending,
	}}
	handler := newReassignmentHandlerForTest(repo)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/reassignments/req-1/process", strings.NewReader(`{"decision":"DENIED"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-9"})

	handler.Process(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "teacher-9", repo.deniedBy)
	assert.Zero(t, repo.approvedCalls)

	var envelope responseEnvelope
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, string(models.ReassignmentDenied), envelope.Data["status"])
}

func TestReassignmentHandlerProcessRejectsUnknownDecision(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeReassignmentRepo{request: &models.ReassignmentRequest{
		ID:     "req-1",
		Status: models.ReassignmentPending,
	}}
	handler := newReassignmentHandlerForTest(repo)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/reassignments/req-1/process", strings.NewReader(`{"decision":"MAYBE"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Process(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, repo.deniedBy)
}

func TestReassignmentHandlerListRejectsBadStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReassignmentHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reassignments?status=MAYBE", nil)

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
