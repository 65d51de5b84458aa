package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echolingo/listening-service/internal/audio"
	"github.com/echolingo/listening-service/internal/events"
	"github.com/echolingo/listening-service/internal/models"
	"github.com/echolingo/listening-service/internal/repositories"
	"github.com/echolingo/listening-service/internal/session"
	"github.com/echolingo/listening-service/internal/utils"
)

// stubBank serves a fixed test set without touching storage.
type stubBank struct {
	size int
	err  error
}

func (b *stubBank) GetTestSet(ctx context.Context, level models.DifficultyLevel, category string, setIndex int) ([]*models.ListeningQuestion, error) {
	if b.err != nil {
		return nil, b.err
	}
	questions := make([]*models.ListeningQuestion, b.size)
	for i := range questions {
		row := &models.Question{
			ID:       uint(i + 1),
			Kind:     models.KindListening,
			Level:    level,
			Category: category,
		}
		payload, err := marshalPayload(listeningFixture())
		if err != nil {
			return nil, err
		}
		row.Payload = payload
		q, err := models.ResolveListening(row)
		if err != nil {
			return nil, err
		}
		questions[i] = q
	}
	return questions, nil
}

func (b *stubBank) ListTestSets(ctx context.Context, userKey string, level models.DifficultyLevel, category string) ([]TestSetInfo, error) {
	return nil, nil
}

func (b *stubBank) Categories(ctx context.Context, level models.DifficultyLevel) ([]string, error) {
	return nil, nil
}

func (b *stubBank) CreateQuestion(ctx context.Context, req *CreateQuestionRequest) (*models.Question, error) {
	return nil, nil
}

func (b *stubBank) ImportQuestions(ctx context.Context, reqs []*CreateQuestionRequest) ([]*models.Question, error) {
	return nil, nil
}

func (b *stubBank) UpdateQuestion(ctx context.Context, id uint, req *CreateQuestionRequest) (*models.Question, error) {
	return nil, nil
}

func (b *stubBank) GetQuestion(ctx context.Context, id uint) (*models.Question, error) {
	return nil, nil
}

func (b *stubBank) ListQuestions(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	return nil, 0, nil
}

func (b *stubBank) DeleteQuestion(ctx context.Context, id uint) error { return nil }

func newTestSessionService(t *testing.T, questions int) (SessionService, *events.MockEventPublisher, *memoryCompletions) {
	t.Helper()
	logger := testLogger()
	publisher := events.NewMockEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)))
	completions := newMemoryCompletions()

	svc := NewSessionService(
		&stubBank{size: questions},
		completions,
		publisher,
		logger,
		utils.NewValidator(),
		session.ImmediateConfig(),
		func() *audio.Manager { return audio.NewManager(logger, audio.Options{}) },
	)
	return svc, publisher, completions
}

func startRequest() *StartSessionRequest {
	return &StartSessionRequest{
		UserKey:  "user-1",
		Level:    models.LevelBeginner,
		Category: "animals",
		SetIndex: 0,
	}
}

// answerQuestion plays one question to its answered phase: three correct MCQ
// steps, then the given audio choice.
func answerQuestion(t *testing.T, svc SessionService, id string, label models.ChoiceLabel) {
	t.Helper()
	ctx := context.Background()
	for step := 1; step <= 3; step++ {
		_, err := svc.SelectOption(ctx, id, &SelectOptionRequest{Step: step, Value: "o1"})
		require.NoError(t, err)
	}
	snap, err := svc.AnswerChoice(ctx, id, &AnswerChoiceRequest{Label: label})
	require.NoError(t, err)
	require.Equal(t, models.PhaseAnswered, snap.Phase)
}

func eventTypes(publisher *events.MockEventPublisher) []events.EventType {
	published := publisher.GetPublishedEvents()
	types := make([]events.EventType, len(published))
	for i, e := range published {
		types[i] = e.Type
	}
	return types
}

func TestSessionService_StartReturnsMCQSnapshot(t *testing.T) {
	svc, publisher, _ := newTestSessionService(t, 2)

	snap, err := svc.Start(context.Background(), startRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, snap.SessionID)
	assert.Equal(t, models.PhaseMCQ, snap.Phase)
	assert.Equal(t, 1, snap.Step)
	assert.Equal(t, 2, snap.QuestionCount)
	require.NotNil(t, snap.CurrentStep)
	assert.Len(t, snap.CurrentStep.Options, 3)

	types := eventTypes(publisher)
	require.Len(t, types, 1)
	assert.Equal(t, events.EventSessionStarted, types[0])
}

func TestSessionService_StartValidatesRequest(t *testing.T) {
	svc, _, _ := newTestSessionService(t, 2)

	_, err := svc.Start(context.Background(), &StartSessionRequest{
		Level:    models.LevelBeginner,
		Category: "animals",
	})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestSessionService_StartPropagatesBankErrors(t *testing.T) {
	logger := testLogger()
	svc := NewSessionService(
		&stubBank{err: ErrTestSetNotFound},
		newMemoryCompletions(),
		events.NewMockEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil))),
		logger,
		utils.NewValidator(),
		session.ImmediateConfig(),
		func() *audio.Manager { return audio.NewManager(logger, audio.Options{}) },
	)

	_, err := svc.Start(context.Background(), startRequest())
	assert.ErrorIs(t, err, ErrTestSetNotFound)
}

func TestSessionService_UnknownSession(t *testing.T) {
	svc, _, _ := newTestSessionService(t, 1)
	ctx := context.Background()

	_, err := svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.NextQuestion(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Finish(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_FullRunMarksCompletionAndPublishes(t *testing.T) {
	svc, publisher, completions := newTestSessionService(t, 2)
	ctx := context.Background()

	snap, err := svc.Start(ctx, startRequest())
	require.NoError(t, err)
	id := snap.SessionID

	answerQuestion(t, svc, id, models.ChoiceA)
	snap, err = svc.NextQuestion(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.QuestionIndex)

	answerQuestion(t, svc, id, models.ChoiceB)
	snap, err = svc.NextQuestion(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFinished, snap.Status)
	require.NotNil(t, snap.Results)
	assert.Equal(t, 50, snap.Results.Score)

	completed, err := completions.IsCompleted(ctx, "user-1", SetID(models.LevelBeginner, "animals", 0))
	require.NoError(t, err)
	assert.True(t, completed)

	types := eventTypes(publisher)
	assert.Equal(t, []events.EventType{
		events.EventSessionStarted,
		events.EventQuestionAnswered,
		events.EventQuestionAnswered,
		events.EventSessionCompleted,
	}, types)
}

func TestSessionService_RepeatedAnswerPublishesOnce(t *testing.T) {
	svc, publisher, _ := newTestSessionService(t, 1)
	ctx := context.Background()

	snap, err := svc.Start(ctx, startRequest())
	require.NoError(t, err)
	id := snap.SessionID
	answerQuestion(t, svc, id, models.ChoiceA)

	// The question is already answered; the engine reports the retry as not
	// applied, so no second event goes out even though the snapshot still
	// carries the answer.
	again, err := svc.AnswerChoice(ctx, id, &AnswerChoiceRequest{Label: models.ChoiceB})
	require.NoError(t, err)
	assert.Equal(t, models.PhaseAnswered, again.Phase)
	assert.Equal(t, models.ChoiceA, again.Answer.Selected)

	types := eventTypes(publisher)
	assert.Equal(t, []events.EventType{
		events.EventSessionStarted,
		events.EventQuestionAnswered,
	}, types)
}

func TestSessionService_ResultsRequireFinish(t *testing.T) {
	svc, _, _ := newTestSessionService(t, 1)
	ctx := context.Background()

	snap, err := svc.Start(ctx, startRequest())
	require.NoError(t, err)

	_, err = svc.Results(ctx, snap.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFinished)

	results, err := svc.Finish(ctx, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, snap.SessionID, results.SessionID)
	assert.Equal(t, 1, results.Results.Total)

	again, err := svc.Results(ctx, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, results.Results, again.Results)
}

func TestSessionService_FinishEarlyCountsUnansweredAsTotal(t *testing.T) {
	svc, _, _ := newTestSessionService(t, 3)
	ctx := context.Background()

	snap, err := svc.Start(ctx, startRequest())
	require.NoError(t, err)
	answerQuestion(t, svc, snap.SessionID, models.ChoiceA)

	results, err := svc.Finish(ctx, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 3, results.Results.Total)
	assert.Equal(t, 1, results.Results.Correct)
	assert.Equal(t, 33, results.Results.Score)
}

func TestSessionService_AbandonLeavesNoMarker(t *testing.T) {
	svc, publisher, completions := newTestSessionService(t, 2)
	ctx := context.Background()

	snap, err := svc.Start(ctx, startRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Abandon(ctx, snap.SessionID))

	_, err = svc.Get(ctx, snap.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	completed, err := completions.IsCompleted(ctx, "user-1", SetID(models.LevelBeginner, "animals", 0))
	require.NoError(t, err)
	assert.False(t, completed)

	types := eventTypes(publisher)
	require.Len(t, types, 2)
	assert.Equal(t, events.EventSessionAbandoned, types[1])
}

func TestSessionService_AbandonUnknownSessionIsNoop(t *testing.T) {
	svc, _, _ := newTestSessionService(t, 1)
	assert.NoError(t, svc.Abandon(context.Background(), "gone"))
}

func TestSessionService_ShufflesOptionsPerSession(t *testing.T) {
	svc, _, _ := newTestSessionService(t, 1)
	ctx := context.Background()

	// Option order varies across sessions but the set of values does not.
	orders := map[string]bool{}
	for i := 0; i < 12; i++ {
		snap, err := svc.Start(ctx, startRequest())
		require.NoError(t, err)
		require.NotNil(t, snap.CurrentStep)

		order := ""
		seen := map[string]bool{}
		for _, opt := range snap.CurrentStep.Options {
			order += opt.Value + ","
			seen[opt.Value] = true
		}
		orders[order] = true
		assert.Len(t, seen, 3)

		require.NoError(t, svc.Abandon(ctx, snap.SessionID))
	}
	assert.Greater(t, len(orders), 1, "12 sessions never produced a different option order")
}
