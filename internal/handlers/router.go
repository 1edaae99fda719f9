package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/quizdesk/attempt-service/internal/services"
	"github.com/quizdesk/attempt-service/internal/utils"
)

type HandlerManager struct {
	attemptHandler    *AttemptHandler
	assignmentHandler *AssignmentHandler
}

func NewHandlerManager(
	attemptService services.AttemptService,
	verifyService services.VerifyService,
	assignmentService services.AssignmentService,
	exportService services.ExportService,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler:    NewAttemptHandler(attemptService, verifyService, logger),
		assignmentHandler: NewAssignmentHandler(assignmentService, exportService, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "attempt-service",
		})
	})

	v1 := router.Group("/api/v1")
	{
		// Candidate-facing token endpoints. The token is the only credential.
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/:token/verify", hm.attemptHandler.Verify)
			attempts.POST("/:token/enter", hm.attemptHandler.Enter)
			attempts.POST("/:token/answers", hm.attemptHandler.SaveAnswers)
			attempts.POST("/:token/submit", hm.attemptHandler.Submit)
			attempts.GET("/:token/status", hm.attemptHandler.Status)
		}

		// Operator endpoints; authenticated upstream at the gateway.
		admin := v1.Group("/admin")
		{
			admin.POST("/assignments", hm.assignmentHandler.CreateAssignment)
			admin.GET("/attempts/:token", hm.assignmentHandler.GetAttempt)
			admin.GET("/attempts/:token/archives", hm.assignmentHandler.ListArchives)
			admin.PUT("/exams", hm.assignmentHandler.PutExam)
			admin.DELETE("/exams/:exam_key", hm.assignmentHandler.DeleteExam)
			admin.GET("/results/export", hm.assignmentHandler.ExportResults)
		}
	}
}
