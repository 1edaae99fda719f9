package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/services"
	"github.com/quizdesk/attempt-service/internal/utils"
)

// AssignmentHandler serves the operator endpoints: invitations, exam specs
// and result export. Authentication for this surface sits in front of the
// service (gateway), not here.
type AssignmentHandler struct {
	BaseHandler
	assignmentService services.AssignmentService
	exportService     services.ExportService
}

func NewAssignmentHandler(
	assignmentService services.AssignmentService,
	exportService services.ExportService,
	logger utils.Logger,
) *AssignmentHandler {
	return &AssignmentHandler{
		BaseHandler:       NewBaseHandler(logger),
		assignmentService: assignmentService,
		exportService:     exportService,
	}
}

type assignmentResponse struct {
	Token            string               `json:"token"`
	ExamKey          string               `json:"exam_key"`
	CandidateID      uint                 `json:"candidate_id"`
	Status           models.AttemptStatus `json:"status"`
	TimeLimitSeconds int                  `json:"time_limit_seconds"`
	MinSubmitSeconds int                  `json:"min_submit_seconds"`
}

// CreateAssignment creates an invitation and returns its token
// @Summary Create assignment
// @Description Invites a candidate to an exam; returns the opaque attempt token to embed in the invite link
// @Tags assignments
// @Accept json
// @Produce json
// @Param assignment body services.CreateAssignmentRequest true "Assignment data"
// @Success 201 {object} assignmentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/assignments [post]
func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	var req services.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Creating assignment", "exam_key", req.ExamKey)

	attempt, err := h.assignmentService.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, assignmentResponse{
		Token:            attempt.Token,
		ExamKey:          attempt.ExamKey,
		CandidateID:      attempt.CandidateID,
		Status:           attempt.Status,
		TimeLimitSeconds: attempt.TimeLimitSeconds,
		MinSubmitSeconds: attempt.MinSubmitSeconds,
	})
}

// GetAttempt returns the full operator view of one attempt, grading included.
func (h *AssignmentHandler) GetAttempt(c *gin.Context) {
	tok := h.ParseTokenParam(c)
	if tok == "" {
		return
	}

	attempt, err := h.assignmentService.GetAttempt(c.Request.Context(), tok)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// ListArchives returns the immutable snapshots written for a token.
func (h *AssignmentHandler) ListArchives(c *gin.Context) {
	tok := h.ParseTokenParam(c)
	if tok == "" {
		return
	}

	records, err := h.assignmentService.ListArchives(c.Request.Context(), tok)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

// PutExam stores or replaces an exam spec
func (h *AssignmentHandler) PutExam(c *gin.Context) {
	var spec models.ExamSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.assignmentService.PutExam(c.Request.Context(), &spec); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam stored"})
}

// DeleteExam tombstones an exam; existing attempts keep their history.
func (h *AssignmentHandler) DeleteExam(c *gin.Context) {
	examKey := c.Param("exam_key")
	if examKey == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid exam_key"})
		return
	}

	if err := h.assignmentService.DeleteExam(c.Request.Context(), examKey); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam deleted"})
}

// ExportResults streams the finished attempts as an xlsx workbook
// @Summary Export results
// @Tags assignments
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Router /admin/results/export [get]
func (h *AssignmentHandler) ExportResults(c *gin.Context) {
	h.LogRequest(c, "Exporting results")

	data, err := h.exportService.ExportResults(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="results.xlsx"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
