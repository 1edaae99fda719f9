package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/services"
	"github.com/quizdesk/attempt-service/internal/utils"
)

// AttemptHandler serves the candidate-facing token endpoints.
type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	verifyService  services.VerifyService
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	verifyService services.VerifyService,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		verifyService:  verifyService,
	}
}

type verifyResponse struct {
	Status         models.AttemptStatus `json:"status"`
	RemainingTries int                  `json:"remaining_tries"`
}

// Verify checks the candidate's identity against the invitation
// @Summary Verify identity
// @Description Matches submitted name and phone against the invited candidate; a bounded number of mismatches locks the attempt permanently
// @Tags attempts
// @Accept json
// @Produce json
// @Param token path string true "Attempt token"
// @Param identity body services.VerifyRequest true "Identity details"
// @Success 200 {object} verifyResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /attempts/{token}/verify [post]
func (h *AttemptHandler) Verify(c *gin.Context) {
	tok := h.ParseTokenParam(c)
	if tok == "" {
		return
	}

	var req services.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	result, err := h.verifyService.Verify(c.Request.Context(), tok, &req)
	if err != nil {
		if errors.Is(err, services.ErrVerifyMismatch) {
			remaining := 0
			if result != nil {
				remaining = result.RemainingTries
			}
			c.JSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Identity details do not match",
				Code:    "verify_mismatch",
				Details: gin.H{"remaining_tries": remaining},
			})
			return
		}
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, verifyResponse{
		Status:         result.Attempt.Status,
		RemainingTries: result.RemainingTries,
	})
}

type enterResponse struct {
	Status           models.AttemptStatus `json:"status"`
	Exam             *models.ExamSpec     `json:"exam"`
	RemainingSeconds int                  `json:"remaining_seconds"`
	MinSubmitSeconds int                  `json:"min_submit_seconds"`
	Answers          models.AnswerMap     `json:"answers"`
}

// Enter opens the exam page and starts the countdown on first call
// @Summary Enter exam
// @Description Returns the candidate-facing exam content; the first successful call starts the countdown, reloads keep the original deadline
// @Tags attempts
// @Produce json
// @Param token path string true "Attempt token"
// @Success 200 {object} enterResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/{token}/enter [post]
func (h *AttemptHandler) Enter(c *gin.Context) {
	tok := h.ParseTokenParam(c)
	if tok == "" {
		return
	}

	h.LogRequest(c, "Entering exam", "token", tok)

	result, err := h.attemptService.Enter(c.Request.Context(), tok)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, enterResponse{
		Status:           result.Attempt.Status,
		Exam:             result.Spec,
		RemainingSeconds: result.RemainingSeconds,
		MinSubmitSeconds: result.Attempt.MinSubmitSeconds,
		Answers:          result.Answers,
	})
}

type saveAnswersRequest struct {
	Answers models.AnswerMap `json:"answers" validate:"required"`
}

// SaveAnswers persists a batch of answers with last-write-wins per question
func (h *AttemptHandler) SaveAnswers(c *gin.Context) {
	tok := h.ParseTokenParam(c)
	if tok == "" {
		return
	}

	var req saveAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.attemptService.SaveAnswers(c.Request.Context(), tok, req.Answers); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Answers saved"})
}

type submitResponse struct {
	Status     models.AttemptStatus `json:"status"`
	Percentage int                  `json:"percentage"`
	Recommend  bool                 `json:"recommend"`
	Overall    string               `json:"overall"`
}

// Submit finalizes the attempt and returns the graded summary
// @Summary Submit exam
// @Description Grades and finalizes the attempt; repeated submissions return the already-graded result
// @Tags attempts
// @Produce json
// @Param token path string true "Attempt token"
// @Success 200 {object} submitResponse
// @Failure 400 {object} ErrorResponse
// @Router /attempts/{token}/submit [post]
func (h *AttemptHandler) Submit(c *gin.Context) {
	tok := h.ParseTokenParam(c)
	if tok == "" {
		return
	}

	h.LogRequest(c, "Submitting exam", "token", tok)

	attempt, err := h.attemptService.Submit(c.Request.Context(), tok)
	if err != nil && !errors.Is(err, services.ErrAlreadyFinalized) {
		h.handleServiceError(c, err)
		return
	}
	if attempt == nil || attempt.GradingData() == nil {
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt already finalized"})
		return
	}

	grading := attempt.GradingData()
	c.JSON(http.StatusOK, submitResponse{
		Status:     attempt.Status,
		Percentage: grading.Percentage,
		Recommend:  grading.Recommend,
		Overall:    grading.OverallReason,
	})
}

// Status reports the countdown without side effects beyond collecting an
// expired attempt.
func (h *AttemptHandler) Status(c *gin.Context) {
	tok := h.ParseTokenParam(c)
	if tok == "" {
		return
	}

	status, err := h.attemptService.Status(c.Request.Context(), tok)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}
