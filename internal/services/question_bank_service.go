package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/echolingo/listening-service/internal/cache"
	"github.com/echolingo/listening-service/internal/models"
	"github.com/echolingo/listening-service/internal/repositories"
	"github.com/echolingo/listening-service/internal/utils"
)

const questionCacheTTL = 10 * time.Minute

// TestSetInfo describes one fixed-size slice of the question bank as shown
// on listing screens, including the learner's completion badge.
type TestSetInfo struct {
	SetID         string `json:"set_id"`
	SetIndex      int    `json:"set_index"`
	QuestionCount int    `json:"question_count"`
	Completed     bool   `json:"completed"`
}

// CreateQuestionRequest carries a new question-bank entry.
type CreateQuestionRequest struct {
	Kind     models.QuestionKind     `json:"kind" validate:"required,question_kind"`
	Level    models.DifficultyLevel  `json:"level" validate:"required,difficulty_level"`
	Category string                  `json:"category" validate:"required,min=1,max=100"`
	Payload  models.ListeningPayload `json:"payload" validate:"required"`
}

type QuestionBankService interface {
	// GetTestSet resolves one contiguous slice of the bank into typed
	// listening questions, ready for a session.
	GetTestSet(ctx context.Context, level models.DifficultyLevel, category string, setIndex int) ([]*models.ListeningQuestion, error)
	ListTestSets(ctx context.Context, userKey string, level models.DifficultyLevel, category string) ([]TestSetInfo, error)
	Categories(ctx context.Context, level models.DifficultyLevel) ([]string, error)

	CreateQuestion(ctx context.Context, req *CreateQuestionRequest) (*models.Question, error)
	// ImportQuestions creates a whole batch in one transaction, for content
	// drops prepared offline.
	ImportQuestions(ctx context.Context, reqs []*CreateQuestionRequest) ([]*models.Question, error)
	GetQuestion(ctx context.Context, id uint) (*models.Question, error)
	UpdateQuestion(ctx context.Context, id uint, req *CreateQuestionRequest) (*models.Question, error)
	ListQuestions(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error)
	DeleteQuestion(ctx context.Context, id uint) error
}

type questionBankService struct {
	repo        repositories.QuestionRepository
	cache       cache.CacheService
	completions cache.CompletionStore
	logger      utils.Logger
	validator   *utils.Validator

	questionsPerTest int
}

func NewQuestionBankService(
	repo repositories.QuestionRepository,
	cacheService cache.CacheService,
	completions cache.CompletionStore,
	logger utils.Logger,
	validator *utils.Validator,
	questionsPerTest int,
) QuestionBankService {
	if questionsPerTest <= 0 {
		questionsPerTest = 6
	}
	return &questionBankService{
		repo:             repo,
		cache:            cacheService,
		completions:      completions,
		logger:           logger,
		validator:        validator,
		questionsPerTest: questionsPerTest,
	}
}

// SetID builds the durable identifier of one test set, the value the
// completion marker is keyed by.
func SetID(level models.DifficultyLevel, category string, setIndex int) string {
	return fmt.Sprintf("listening:%s:%s:%d", level, category, setIndex)
}

func (s *questionBankService) GetTestSet(ctx context.Context, level models.DifficultyLevel, category string, setIndex int) ([]*models.ListeningQuestion, error) {
	if setIndex < 0 {
		return nil, ErrTestSetNotFound
	}

	rows, err := s.questionsFor(ctx, level, category)
	if err != nil {
		return nil, err
	}

	start := setIndex * s.questionsPerTest
	if start >= len(rows) {
		return nil, ErrTestSetNotFound
	}
	end := start + s.questionsPerTest
	if end > len(rows) {
		end = len(rows)
	}

	set := make([]*models.ListeningQuestion, 0, end-start)
	for _, row := range rows[start:end] {
		q, err := models.ResolveListening(row)
		if err != nil {
			// A malformed row poisons the whole set; surface it rather than
			// serving a short test.
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		set = append(set, q)
	}
	return set, nil
}

func (s *questionBankService) ListTestSets(ctx context.Context, userKey string, level models.DifficultyLevel, category string) ([]TestSetInfo, error) {
	// Listing only needs the bank size, not the payloads.
	total, err := s.repo.CountByLevelAndCategory(ctx, level, category)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}
	if total == 0 {
		return nil, ErrTestSetNotFound
	}

	completed := map[string]bool{}
	if userKey != "" {
		ids, err := s.completions.CompletedSets(ctx, userKey)
		if err != nil {
			s.logger.Warn("failed to read completion markers", "user_key", userKey, "error", err)
		}
		for _, id := range ids {
			completed[id] = true
		}
	}

	size := int(total)
	sets := make([]TestSetInfo, 0, (size+s.questionsPerTest-1)/s.questionsPerTest)
	for start, idx := 0, 0; start < size; start, idx = start+s.questionsPerTest, idx+1 {
		count := s.questionsPerTest
		if start+count > size {
			count = size - start
		}
		id := SetID(level, category, idx)
		sets = append(sets, TestSetInfo{
			SetID:         id,
			SetIndex:      idx,
			QuestionCount: count,
			Completed:     completed[id],
		})
	}
	return sets, nil
}

func (s *questionBankService) Categories(ctx context.Context, level models.DifficultyLevel) ([]string, error) {
	categories, err := s.repo.Categories(ctx, level)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// questionsFor returns the ordered raw rows for a level/category pair,
// served from cache when warm.
func (s *questionBankService) questionsFor(ctx context.Context, level models.DifficultyLevel, category string) ([]*models.Question, error) {
	key := fmt.Sprintf("questions:%s:%s", level, category)

	var cached []*models.Question
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("question cache read failed", "key", key, "error", err)
	}

	rows, err := s.repo.GetByLevelAndCategory(ctx, level, category)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch questions: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrTestSetNotFound
	}

	if err := s.cache.Set(ctx, key, rows, questionCacheTTL); err != nil {
		s.logger.Warn("question cache write failed", "key", key, "error", err)
	}
	return rows, nil
}

// ===== QUESTION CRUD =====

func (s *questionBankService) CreateQuestion(ctx context.Context, req *CreateQuestionRequest) (*models.Question, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, err)
	}

	payload, err := marshalPayload(req.Payload)
	if err != nil {
		return nil, err
	}

	question := &models.Question{
		Kind:     req.Kind,
		Level:    req.Level,
		Category: req.Category,
		Payload:  payload,
	}
	// Resolution doubles as structural validation of the payload.
	if _, err := models.ResolveListening(question); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if err := s.repo.Create(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	s.invalidate(ctx, question.Level, question.Category)

	s.logger.Info("question created",
		"question_id", question.ID,
		"level", question.Level,
		"category", question.Category)
	return question, nil
}

func (s *questionBankService) ImportQuestions(ctx context.Context, reqs []*CreateQuestionRequest) ([]*models.Question, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: import batch is empty", ErrValidationFailed)
	}

	questions := make([]*models.Question, 0, len(reqs))
	levels := map[models.DifficultyLevel]bool{}
	for i, req := range reqs {
		if err := s.validator.Validate(req); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %s", ErrValidationFailed, i, err)
		}
		payload, err := marshalPayload(req.Payload)
		if err != nil {
			return nil, err
		}
		question := &models.Question{
			Kind:     req.Kind,
			Level:    req.Level,
			Category: req.Category,
			Payload:  payload,
		}
		if _, err := models.ResolveListening(question); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidPayload, i, err)
		}
		questions = append(questions, question)
		levels[req.Level] = true
	}

	if err := s.repo.CreateBatch(ctx, questions); err != nil {
		return nil, fmt.Errorf("failed to import questions: %w", err)
	}

	// A batch can span categories, so invalidate per level rather than per
	// level/category pair.
	for level := range levels {
		pattern := fmt.Sprintf("questions:%s:*", level)
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			s.logger.Warn("failed to invalidate question cache", "pattern", pattern, "error", err)
		}
	}

	s.logger.Info("questions imported", "count", len(questions))
	return questions, nil
}

func (s *questionBankService) GetQuestion(ctx context.Context, id uint) (*models.Question, error) {
	question, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return question, nil
}

func (s *questionBankService) UpdateQuestion(ctx context.Context, id uint, req *CreateQuestionRequest) (*models.Question, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, err)
	}

	question, err := s.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	prevLevel, prevCategory := question.Level, question.Category

	payload, err := marshalPayload(req.Payload)
	if err != nil {
		return nil, err
	}
	question.Kind = req.Kind
	question.Level = req.Level
	question.Category = req.Category
	question.Payload = payload
	if _, err := models.ResolveListening(question); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if err := s.repo.Update(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	s.invalidate(ctx, prevLevel, prevCategory)
	if prevLevel != question.Level || prevCategory != question.Category {
		s.invalidate(ctx, question.Level, question.Category)
	}

	s.logger.Info("question updated", "question_id", question.ID)
	return question, nil
}

func (s *questionBankService) ListQuestions(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	questions, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, total, nil
}

func (s *questionBankService) DeleteQuestion(ctx context.Context, id uint) error {
	question, err := s.GetQuestion(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to delete question: %w", err)
	}
	s.invalidate(ctx, question.Level, question.Category)
	return nil
}

func (s *questionBankService) invalidate(ctx context.Context, level models.DifficultyLevel, category string) {
	key := fmt.Sprintf("questions:%s:%s", level, category)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to invalidate question cache", "key", key, "error", err)
	}
}
