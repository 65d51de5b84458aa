package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/echolingo/listening-service/internal/services"
	"github.com/echolingo/listening-service/internal/utils"
)

type HandlerManager struct {
	sessionHandler  *SessionHandler
	questionHandler *QuestionHandler
}

func NewHandlerManager(
	sessionService services.SessionService,
	bankService services.QuestionBankService,
	exportService services.ExportService,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler:  NewSessionHandler(sessionService, exportService, logger),
		questionHandler: NewQuestionHandler(bankService, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Session lifecycle routes
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.POST("/:id/select", hm.sessionHandler.SelectOption)
			sessions.POST("/:id/answer", hm.sessionHandler.AnswerChoice)
			sessions.POST("/:id/next", hm.sessionHandler.NextQuestion)
			sessions.POST("/:id/finish", hm.sessionHandler.FinishSession)
			sessions.GET("/:id/results", hm.sessionHandler.GetResults)
			sessions.GET("/:id/export", hm.sessionHandler.ExportResults)
			sessions.DELETE("/:id", hm.sessionHandler.AbandonSession)
		}

		// Question bank routes
		questions := v1.Group("/questions")
		{
			questions.POST("", hm.questionHandler.CreateQuestion)
			questions.POST("/batch", hm.questionHandler.ImportQuestions)
			questions.GET("", hm.questionHandler.ListQuestions)
			questions.GET("/:id", hm.questionHandler.GetQuestion)
			questions.PUT("/:id", hm.questionHandler.UpdateQuestion)
			questions.DELETE("/:id", hm.questionHandler.DeleteQuestion)
		}

		// Test set discovery routes
		v1.GET("/test-sets", hm.questionHandler.ListTestSets)
		v1.GET("/categories", hm.questionHandler.ListCategories)
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "listening-service",
		})
	})
}
