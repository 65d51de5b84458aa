package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/echolingo/listening-service/internal/models"
)

// QuestionFilters narrows question-bank queries.
type QuestionFilters struct {
	Kind      *models.QuestionKind    `json:"kind"`
	Level     *models.DifficultyLevel `json:"level"`
	Category  *string                 `json:"category"`
	Limit     int                     `json:"limit"`
	Offset    int                     `json:"offset"`
	SortBy    string                  `json:"sort_by"`    // "created_at", "id"
	SortOrder string                  `json:"sort_order"` // "asc", "desc"
}

// QuestionRepository is the question-bank storage boundary. The session
// engine treats its output as read-only input.
type QuestionRepository interface {
	Create(ctx context.Context, question *models.Question) error
	CreateBatch(ctx context.Context, questions []*models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	Update(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, id uint) error

	List(ctx context.Context, filters QuestionFilters) ([]*models.Question, int64, error)
	GetByLevelAndCategory(ctx context.Context, level models.DifficultyLevel, category string) ([]*models.Question, error)
	CountByLevelAndCategory(ctx context.Context, level models.DifficultyLevel, category string) (int64, error)
	Categories(ctx context.Context, level models.DifficultyLevel) ([]string, error)
}

// IsNotFoundError reports whether err is the storage layer's missing-row
// condition.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
