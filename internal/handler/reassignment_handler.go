package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/weekend-course-api/internal/models"
	"github.com/noah-isme/weekend-course-api/internal/service"
	appErrors "github.com/noah-isme/weekend-course-api/pkg/errors"
	"github.com/noah-isme/weekend-course-api/pkg/response"
)

// ReassignmentHandler exposes reassignment request and adjudication endpoints.
type ReassignmentHandler struct {
	reassignments *service.ReassignmentService
}

// NewReassignmentHandler constructs ReassignmentHandler.
func NewReassignmentHandler(reassignments *service.ReassignmentService) *ReassignmentHandler {
	return &ReassignmentHandler{reassignments: reassignments}
}

// Create godoc
// @Summary Request moving a student between sessions
// @Tags Reassignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateReassignmentRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /reassignments [post]
func (h *ReassignmentHandler) Create(c *gin.Context) {
	var req service.CreateReassignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	request, err := h.reassignments.Request(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Get godoc
// @Summary Get a reassignment request by ID
// @Tags Reassignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /reassignments/{id} [get]
func (h *ReassignmentHandler) Get(c *gin.Context) {
	request, err := h.reassignments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// List godoc
// @Summary List reassignment requests
// @Tags Reassignments
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reassignments [get]
func (h *ReassignmentHandler) List(c *gin.Context) {
	var filter models.ReassignmentFilter
	filter.StudentID = c.Query("studentId")
	if raw := strings.ToUpper(c.Query("status")); raw != "" {
		status := models.ReassignmentStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status must be PENDING, APPROVED or DENIED"))
			return
		}
		filter.Status = status
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	requests, pagination, err := h.reassignments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Process godoc
// @Summary Approve or deny a pending reassignment request
// @Tags Reassignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body service.ProcessReassignmentRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /reassignments/{id}/process [put]
func (h *ReassignmentHandler) Process(c *gin.Context) {
	var req service.ProcessReassignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	teacherID := ""
	if claims := claimsFromContext(c); claims != nil {
		teacherID = claims.UserID
	}

	request, err := h.reassignments.Process(c.Request.Context(), c.Param("id"), teacherID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
