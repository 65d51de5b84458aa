package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/echolingo/listening-service/internal/services"
	"github.com/echolingo/listening-service/internal/session"
)

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

func handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Session not found",
		})
	case errors.Is(err, services.ErrSessionNotFinished):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Session has not finished yet",
		})
	case errors.Is(err, services.ErrSessionFinished):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Session already finished",
		})
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question not found",
		})
	case errors.Is(err, services.ErrTestSetNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Test set not found",
		})
	case errors.Is(err, services.ErrNotEnoughQuestions):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Not enough questions for a full test set",
		})
	case errors.Is(err, services.ErrInvalidPayload):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Question payload is malformed",
			Details: err.Error(),
		})
	case errors.Is(err, session.ErrNoQuestions):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Session has no questions",
		})
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Resource not found",
		})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Resource conflict",
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
