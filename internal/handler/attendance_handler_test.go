package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAttendanceHandlerListRejectsBadStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/attendance?status=LATE", nil)

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttendanceHandlerListRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/attendance?from=31-12-2026", nil)

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttendanceHandlerScanRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/attendance/scan", strings.NewReader("{not-json"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Scan(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttendanceFilterFromQueryParsesEverything(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet,
		"/attendance?classId=class-1&status=present&from=2026-03-07&to=2026-03-08&page=2&limit=10&sort=date&order=asc", nil)

	filter, err := attendanceFilterFromQuery(c)

	assert.NoError(t, err)
	assert.Equal(t, "class-1", filter.ClassID)
	if assert.NotNil(t, filter.Status) {
		assert.Equal(t, "PRESENT", string(*filter.Status))
	}
	if assert.NotNil(t, filter.DateFrom) {
		assert.Equal(t, "2026-03-07", filter.DateFrom.Format("2006-01-02"))
	}
	assert.Equal(t, 2, filter.Page)
	assert.Equal(t, 10, filter.PageSize)
	assert.Equal(t, "date", filter.SortBy)
	assert.Equal(t, "asc", filter.SortOrder)
}
