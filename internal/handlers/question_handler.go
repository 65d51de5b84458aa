package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/echolingo/listening-service/internal/models"
	"github.com/echolingo/listening-service/internal/repositories"
	"github.com/echolingo/listening-service/internal/services"
	"github.com/echolingo/listening-service/internal/utils"
)

type QuestionHandler struct {
	BaseHandler
	bankService services.QuestionBankService
}

func NewQuestionHandler(bankService services.QuestionBankService, logger utils.Logger) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler: NewBaseHandler(logger),
		bankService: bankService,
	}
}

// CreateQuestion creates a new question bank entry
// @Summary Create question
// @Tags questions
// @Accept json
// @Produce json
// @Param question body services.CreateQuestionRequest true "Question data"
// @Success 201 {object} models.Question
// @Failure 400 {object} ErrorResponse
// @Router /questions [post]
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	h.LogRequest(c, "Creating question")

	var req services.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	question, err := h.bankService.CreateQuestion(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// ImportQuestions creates a batch of question bank entries in one transaction
// @Summary Import questions
// @Tags questions
// @Accept json
// @Produce json
// @Param questions body []services.CreateQuestionRequest true "Question batch"
// @Success 201 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /questions/batch [post]
func (h *QuestionHandler) ImportQuestions(c *gin.Context) {
	h.LogRequest(c, "Importing question batch")

	var reqs []*services.CreateQuestionRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	questions, err := h.bankService.ImportQuestions(c.Request.Context(), reqs)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"imported":  len(questions),
		"questions": questions,
	})
}

// GetQuestion retrieves a question by ID
// @Summary Get question
// @Tags questions
// @Produce json
// @Param id path uint true "Question ID"
// @Success 200 {object} models.Question
// @Failure 404 {object} ErrorResponse
// @Router /questions/{id} [get]
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	question, err := h.bankService.GetQuestion(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// UpdateQuestion replaces a question bank entry
// @Summary Update question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Question ID"
// @Param question body services.CreateQuestionRequest true "Question data"
// @Success 200 {object} models.Question
// @Failure 404 {object} ErrorResponse
// @Router /questions/{id} [put]
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Updating question", "question_id", id)

	var req services.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	question, err := h.bankService.UpdateQuestion(c.Request.Context(), id, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// ListQuestions lists bank entries with optional filters and paging
// @Summary List questions
// @Tags questions
// @Produce json
// @Param level query string false "Difficulty level"
// @Param category query string false "Category"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} SuccessResponse
// @Router /questions [get]
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	filters := repositories.QuestionFilters{}
	if level := c.Query("level"); level != "" {
		l := models.DifficultyLevel(level)
		filters.Level = &l
	}
	if category := c.Query("category"); category != "" {
		filters.Category = &category
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filters.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		filters.Offset = offset
	}
	filters.SortBy = c.DefaultQuery("sort_by", "id")
	filters.SortOrder = c.DefaultQuery("sort_order", "asc")

	questions, total, err := h.bankService.ListQuestions(c.Request.Context(), filters)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"questions": questions,
		"total":     total,
		"limit":     filters.Limit,
		"offset":    filters.Offset,
	})
}

// DeleteQuestion removes a question from the bank
// @Summary Delete question
// @Tags questions
// @Param id path uint true "Question ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /questions/{id} [delete]
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting question", "question_id", id)

	if err := h.bankService.DeleteQuestion(c.Request.Context(), id); err != nil {
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListTestSets lists the fixed-size test sets of a level and category with
// the caller's completion badges
// @Summary List test sets
// @Tags test-sets
// @Produce json
// @Param level query string true "Difficulty level"
// @Param category query string true "Category"
// @Param user_key query string true "Learner key for completion badges"
// @Success 200 {array} services.TestSetInfo
// @Failure 400 {object} ErrorResponse
// @Router /test-sets [get]
func (h *QuestionHandler) ListTestSets(c *gin.Context) {
	level := models.DifficultyLevel(c.Query("level"))
	category := c.Query("category")
	userKey := c.Query("user_key")
	if level == "" || category == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "level and category are required",
		})
		return
	}

	sets, err := h.bankService.ListTestSets(c.Request.Context(), userKey, level, category)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, sets)
}

// ListCategories lists the distinct categories available for a level
// @Summary List categories
// @Tags test-sets
// @Produce json
// @Param level query string false "Difficulty level"
// @Success 200 {array} string
// @Router /categories [get]
func (h *QuestionHandler) ListCategories(c *gin.Context) {
	level := models.DifficultyLevel(c.Query("level"))

	categories, err := h.bankService.Categories(c.Request.Context(), level)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, categories)
}

func (h *QuestionHandler) parseIDParam(c *gin.Context, param string) uint {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID must be a positive integer",
		})
		return 0
	}
	return uint(id)
}
