package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/weekend-course-api/internal/middleware"
	"github.com/noah-isme/weekend-course-api/internal/models"
	"github.com/noah-isme/weekend-course-api/internal/service"
	appErrors "github.com/noah-isme/weekend-course-api/pkg/errors"
	"github.com/noah-isme/weekend-course-api/pkg/response"
)

// AttendanceHandler exposes scan, sweep and projection endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Scan godoc
// @Summary Mark attendance from a QR scan
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.ScanRequest true "Scan payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/scan [post]
func (h *AttendanceHandler) Scan(c *gin.Context) {
	var req service.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil {
		req.TeacherID = claims.UserID
	}

	result, err := h.attendance.MarkFromScan(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Sweep godoc
// @Summary Mark absent everyone without a record for a session occurrence
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SweepRequest true "Sweep payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/sweep [post]
func (h *AttendanceHandler) Sweep(c *gin.Context) {
	var req service.SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.attendance.SweepAbsences(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param classId query string false "Filter by class"
// @Param sessionId query string false "Filter by session"
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param from query string false "Date from (YYYY-MM-DD)"
// @Param to query string false "Date to (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter, err := attendanceFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	records, pagination, cacheHit, err := h.attendance.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, records, pagination, middleware.ExtractMeta(c))
}

// Review godoc
// @Summary List WRONG_SESSION records pending reconciliation
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param classId query string false "Filter by class"
// @Param from query string false "Date from (YYYY-MM-DD)"
// @Param to query string false "Date to (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance/review [get]
func (h *AttendanceHandler) Review(c *gin.Context) {
	filter, err := attendanceFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	records, pagination, cacheHit, err := h.attendance.ReviewWrongSessions(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, records, pagination, middleware.ExtractMeta(c))
}

// ExportCSV godoc
// @Summary Export attendance records as CSV
// @Tags Attendance
// @Produce text/csv
// @Security BearerAuth
// @Param classId query string false "Filter by class"
// @Param sessionId query string false "Filter by session"
// @Param from query string false "Date from (YYYY-MM-DD)"
// @Param to query string false "Date to (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Router /attendance/export [get]
func (h *AttendanceHandler) ExportCSV(c *gin.Context) {
	filter, err := attendanceFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := h.attendance.ExportCSV(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="attendance.csv"`)
	c.Data(http.StatusOK, "text/csv", payload)
}

// Sheet godoc
// @Summary Printable attendance sheet for one session occurrence
// @Tags Attendance
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param date query string true "Occurrence date (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Router /sessions/{id}/attendance-sheet [get]
func (h *AttendanceHandler) Sheet(c *gin.Context) {
	payload, err := h.attendance.SessionSheetPDF(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="attendance-sheet.pdf"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}

func attendanceFilterFromQuery(c *gin.Context) (models.AttendanceFilter, error) {
	var filter models.AttendanceFilter
	filter.ClassID = c.Query("classId")
	filter.SessionID = c.Query("sessionId")
	filter.StudentID = c.Query("studentId")
	if raw := strings.ToUpper(c.Query("status")); raw != "" {
		status := models.AttendanceStatus(raw)
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "status must be PRESENT, ABSENT or WRONG_SESSION")
		}
		filter.Status = &status
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD")
		}
		filter.DateFrom = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD")
		}
		filter.DateTo = &to
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter, nil
}
