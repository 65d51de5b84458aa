package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/echolingo/listening-service/internal/models"
	"github.com/echolingo/listening-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, question *models.Question) error {
	if err := q.db.WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(questions).Error; err != nil {
			return fmt.Errorf("failed to create questions batch: %w", err)
		}
		return nil
	})
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	if err := q.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, question *models.Question) error {
	if err := q.db.WithContext(ctx).Save(question).Error; err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	return nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, id uint) error {
	result := q.db.WithContext(ctx).Delete(&models.Question{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete question: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (q *QuestionPostgreSQL) List(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	query := q.db.WithContext(ctx).Model(&models.Question{})

	if filters.Kind != nil {
		query = query.Where("kind = ?", *filters.Kind)
	}
	if filters.Level != nil {
		query = query.Where("level = ?", *filters.Level)
	}
	if filters.Category != nil {
		query = query.Where("category = ?", *filters.Category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count questions: %w", err)
	}

	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "id"
	}
	sortOrder := filters.SortOrder
	if sortOrder != "desc" {
		sortOrder = "asc"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var questions []*models.Question
	if err := query.Find(&questions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, total, nil
}

// GetByLevelAndCategory returns the full ordered question list for one
// level/category pair; the question-bank service slices it into test sets.
func (q *QuestionPostgreSQL) GetByLevelAndCategory(ctx context.Context, level models.DifficultyLevel, category string) ([]*models.Question, error) {
	var questions []*models.Question
	err := q.db.WithContext(ctx).
		Where("kind = ? AND level = ? AND category = ?", models.KindListening, level, category).
		Order("id asc").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get questions for %s/%s: %w", level, category, err)
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) CountByLevelAndCategory(ctx context.Context, level models.DifficultyLevel, category string) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).Model(&models.Question{}).
		Where("kind = ? AND level = ? AND category = ?", models.KindListening, level, category).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count questions for %s/%s: %w", level, category, err)
	}
	return count, nil
}

func (q *QuestionPostgreSQL) Categories(ctx context.Context, level models.DifficultyLevel) ([]string, error) {
	var categories []string
	err := q.db.WithContext(ctx).Model(&models.Question{}).
		Where("kind = ? AND level = ?", models.KindListening, level).
		Distinct("category").
		Order("category asc").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list categories for %s: %w", level, err)
	}
	return categories, nil
}
