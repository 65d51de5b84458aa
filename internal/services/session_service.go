package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/echolingo/listening-service/internal/audio"
	"github.com/echolingo/listening-service/internal/cache"
	"github.com/echolingo/listening-service/internal/events"
	"github.com/echolingo/listening-service/internal/models"
	"github.com/echolingo/listening-service/internal/session"
	"github.com/echolingo/listening-service/internal/utils"
)

// StartSessionRequest begins a new test session over one question set.
type StartSessionRequest struct {
	UserKey  string                 `json:"user_key" validate:"required,min=1,max=100"`
	Level    models.DifficultyLevel `json:"level" validate:"required,difficulty_level"`
	Category string                 `json:"category" validate:"required,min=1,max=100"`
	SetIndex int                    `json:"set_index" validate:"min=0"`
}

type SelectOptionRequest struct {
	Step  int    `json:"step" validate:"required,mcq_step"`
	Value string `json:"value" validate:"required"`
}

type AnswerChoiceRequest struct {
	Label models.ChoiceLabel `json:"label" validate:"required,choice_label"`
}

// ResultsResponse is the full review payload handed to the results display:
// the summary plus both logs for per-question rendering.
type ResultsResponse struct {
	SessionID string             `json:"session_id"`
	Results   models.TestResults `json:"results"`
	Answers   []*models.Answer   `json:"answers"`
	MCQLog    []models.MCQAnswer `json:"mcq_log"`
	Questions int                `json:"questions"`
}

type SessionService interface {
	Start(ctx context.Context, req *StartSessionRequest) (session.Snapshot, error)
	Get(ctx context.Context, id string) (session.Snapshot, error)
	SelectOption(ctx context.Context, id string, req *SelectOptionRequest) (session.Snapshot, error)
	AnswerChoice(ctx context.Context, id string, req *AnswerChoiceRequest) (session.Snapshot, error)
	NextQuestion(ctx context.Context, id string) (session.Snapshot, error)
	Finish(ctx context.Context, id string) (*ResultsResponse, error)
	Results(ctx context.Context, id string) (*ResultsResponse, error)
	// Abandon tears a session down without a completion marker: the learner
	// exited or navigated away.
	Abandon(ctx context.Context, id string) error
	// SessionCopy exposes a finished or running session's state for export.
	SessionCopy(ctx context.Context, id string) (models.TestSession, error)
}

// AudioFactory builds the per-session playback manager. One manager per
// session keeps the single-handle invariant session-scoped.
type AudioFactory func() *audio.Manager

type sessionService struct {
	mu       sync.RWMutex
	active   map[string]*session.Engine
	bank     QuestionBankService
	marks    cache.CompletionStore
	pub      events.EventPublisher
	logger   utils.Logger
	valid    *utils.Validator
	cfg      session.Config
	newAudio AudioFactory
}

func NewSessionService(
	bank QuestionBankService,
	marks cache.CompletionStore,
	publisher events.EventPublisher,
	logger utils.Logger,
	validator *utils.Validator,
	cfg session.Config,
	audioFactory AudioFactory,
) SessionService {
	if audioFactory == nil {
		audioFactory = func() *audio.Manager {
			return audio.NewManager(logger, audio.Options{Fetcher: audio.NewHTTPFetcher()})
		}
	}
	return &sessionService{
		active:   make(map[string]*session.Engine),
		bank:     bank,
		marks:    marks,
		pub:      publisher,
		logger:   logger,
		valid:    validator,
		cfg:      cfg,
		newAudio: audioFactory,
	}
}

func (s *sessionService) Start(ctx context.Context, req *StartSessionRequest) (session.Snapshot, error) {
	if err := s.valid.Validate(req); err != nil {
		return session.Snapshot{}, fmt.Errorf("%w: %s", ErrValidationFailed, err)
	}

	questions, err := s.bank.GetTestSet(ctx, req.Level, req.Category, req.SetIndex)
	if err != nil {
		return session.Snapshot{}, err
	}

	id := uuid.NewString()
	rng := rand.New(rand.NewSource(rand.Int63()))
	for _, q := range questions {
		session.ShuffleQuestionOptions(q, rng)
	}

	sess := models.NewTestSession(id, req.UserKey, req.Level, req.Category, req.SetIndex, questions)
	eng := session.NewEngine(sess, s.newAudio(), s.logger, s.cfg, session.Hooks{
		OnFinished: func(results models.TestResults) {
			s.onFinished(sess, results)
		},
	})

	s.mu.Lock()
	s.active[id] = eng
	s.mu.Unlock()

	if err := eng.Start(ctx); err != nil {
		s.mu.Lock()
		delete(s.active, id)
		s.mu.Unlock()
		return session.Snapshot{}, err
	}

	s.publish(ctx, newSessionEvent(events.EventSessionStarted, events.SessionStartedEvent{
		SessionID:     id,
		UserKey:       req.UserKey,
		Level:         req.Level,
		Category:      req.Category,
		SetIndex:      req.SetIndex,
		QuestionCount: len(questions),
	}))

	return eng.Snapshot(), nil
}

func (s *sessionService) Get(ctx context.Context, id string) (session.Snapshot, error) {
	eng, err := s.engine(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	return eng.Snapshot(), nil
}

func (s *sessionService) SelectOption(ctx context.Context, id string, req *SelectOptionRequest) (session.Snapshot, error) {
	if err := s.valid.Validate(req); err != nil {
		return session.Snapshot{}, fmt.Errorf("%w: %s", ErrValidationFailed, err)
	}
	eng, err := s.engine(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	if err := eng.SelectOption(ctx, req.Step, req.Value); err != nil {
		return session.Snapshot{}, fmt.Errorf("%w: %s", ErrValidationFailed, err)
	}
	return eng.Snapshot(), nil
}

func (s *sessionService) AnswerChoice(ctx context.Context, id string, req *AnswerChoiceRequest) (session.Snapshot, error) {
	if err := s.valid.Validate(req); err != nil {
		return session.Snapshot{}, fmt.Errorf("%w: %s", ErrValidationFailed, err)
	}
	eng, err := s.engine(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	applied, err := eng.AnswerChoice(ctx, req.Label)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("%w: %s", ErrValidationFailed, err)
	}

	snap := eng.Snapshot()
	if applied && snap.Answer != nil {
		s.publish(ctx, newSessionEvent(events.EventQuestionAnswered, events.QuestionAnsweredEvent{
			SessionID:     id,
			QuestionIndex: snap.QuestionIndex,
			Selected:      snap.Answer.Selected,
			IsCorrect:     snap.Answer.IsCorrect,
			Skipped:       snap.Answer.Skipped,
		}))
	}
	return snap, nil
}

func (s *sessionService) NextQuestion(ctx context.Context, id string) (session.Snapshot, error) {
	eng, err := s.engine(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	if err := eng.NextQuestion(ctx); err != nil {
		return session.Snapshot{}, err
	}
	return eng.Snapshot(), nil
}

func (s *sessionService) Finish(ctx context.Context, id string) (*ResultsResponse, error) {
	eng, err := s.engine(id)
	if err != nil {
		return nil, err
	}
	if _, err := eng.Finish(ctx); err != nil {
		return nil, err
	}
	return s.buildResults(eng), nil
}

func (s *sessionService) Results(ctx context.Context, id string) (*ResultsResponse, error) {
	eng, err := s.engine(id)
	if err != nil {
		return nil, err
	}
	if _, ok := eng.Results(); !ok {
		return nil, ErrSessionNotFinished
	}
	return s.buildResults(eng), nil
}

func (s *sessionService) Abandon(ctx context.Context, id string) error {
	s.mu.Lock()
	eng, ok := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()
	if !ok {
		// Abandoning an unknown or already-removed session is not an error.
		return nil
	}

	if !eng.Finished() {
		// Finish tears down timer and audio; the abandoned run still gets
		// no completion marker because the session map entry is gone and
		// onFinished checks it.
		sess := eng.SessionCopy()
		s.logger.Info("session abandoned", "session_id", id, "question_index", sess.CurrentIndex)
		s.publish(ctx, newSessionEvent(events.EventSessionAbandoned, events.SessionCompletedEvent{
			SessionID: id,
			UserKey:   sess.UserKey,
			Level:     sess.Level,
			Category:  sess.Category,
			SetIndex:  sess.SetIndex,
		}))
		_, _ = eng.Finish(ctx)
	}
	return nil
}

func (s *sessionService) SessionCopy(ctx context.Context, id string) (models.TestSession, error) {
	eng, err := s.engine(id)
	if err != nil {
		return models.TestSession{}, err
	}
	return eng.SessionCopy(), nil
}

func (s *sessionService) engine(id string) (*session.Engine, error) {
	s.mu.RLock()
	eng, ok := s.active[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return eng, nil
}

func (s *sessionService) buildResults(eng *session.Engine) *ResultsResponse {
	sess := eng.SessionCopy()
	results := models.TestResults{}
	if sess.Results != nil {
		results = *sess.Results
	}
	return &ResultsResponse{
		SessionID: sess.ID,
		Results:   results,
		Answers:   sess.Answers,
		MCQLog:    sess.MCQLog,
		Questions: len(sess.Questions),
	}
}

// onFinished runs once per session, from the engine's finish path. Sessions
// already removed from the registry (abandoned) leave no marker.
func (s *sessionService) onFinished(sess *models.TestSession, results models.TestResults) {
	ctx := context.Background()

	s.mu.RLock()
	_, live := s.active[sess.ID]
	s.mu.RUnlock()
	if !live {
		return
	}

	setID := SetID(sess.Level, sess.Category, sess.SetIndex)
	if err := s.marks.MarkCompleted(ctx, sess.UserKey, setID); err != nil {
		s.logger.Error("failed to write completion marker",
			"session_id", sess.ID, "set_id", setID, "error", err)
	}

	s.publish(ctx, newSessionEvent(events.EventSessionCompleted, events.SessionCompletedEvent{
		SessionID: sess.ID,
		UserKey:   sess.UserKey,
		Level:     sess.Level,
		Category:  sess.Category,
		SetIndex:  sess.SetIndex,
		Results:   results,
	}))
}

func (s *sessionService) publish(ctx context.Context, event *events.SessionEvent) {
	if err := s.pub.PublishSessionEvent(ctx, event); err != nil {
		s.logger.Error("failed to publish session event",
			"event_type", event.Type, "error", err)
	}
}
