package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echolingo/listening-service/internal/models"
	"github.com/echolingo/listening-service/internal/utils"
)

func testLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakePlayer records the engine's playback requests.
type fakePlayer struct {
	mu    sync.Mutex
	plays []string
	stops int
	cues  int
}

func (p *fakePlayer) Play(ctx context.Context, resource, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays = append(p.plays, resource)
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
}

func (p *fakePlayer) Cue(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cues++
}

func (p *fakePlayer) playCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.plays)
}

// testQuestion builds a resolved three-step question whose step options are
// o1/o2/o3 (o1 correct) and whose audio choices are A..D with the given
// correct label.
func testQuestion(id uint, correct models.ChoiceLabel) *models.ListeningQuestion {
	steps := make([]models.MCQStep, 3)
	for i := range steps {
		steps[i] = models.MCQStep{
			Step:   i + 1,
			Prompt: fmt.Sprintf("prompt %d", i+1),
			Options: []models.MCQOption{
				{Value: "o1", DisplayText: "first", IsCorrect: true},
				{Value: "o2", DisplayText: "second"},
				{Value: "o3", DisplayText: "third"},
			},
		}
	}

	labels := []models.ChoiceLabel{models.ChoiceA, models.ChoiceB, models.ChoiceC, models.ChoiceD}
	choices := make([]models.AudioChoice, len(labels))
	for i, l := range labels {
		choices[i] = models.AudioChoice{Label: l, Text: "text " + string(l), Translation: "tr " + string(l)}
	}

	return &models.ListeningQuestion{
		ID:       id,
		Level:    models.LevelBeginner,
		Category: "animals",
		Steps:    steps,
		Audio: models.AudioQuestion{
			AudioURL:     fmt.Sprintf("https://cdn.example.com/clips/%d.mp3", id),
			Transcript:   "transcript",
			Choices:      choices,
			CorrectLabel: correct,
			Traps:        "watch the plural",
		},
	}
}

func testSession(n int, correct models.ChoiceLabel) *models.TestSession {
	questions := make([]*models.ListeningQuestion, n)
	for i := range questions {
		questions[i] = testQuestion(uint(i+1), correct)
	}
	return models.NewTestSession("sess-1", "user-1", models.LevelBeginner, "animals", 0, questions)
}

func newTestEngine(t *testing.T, n int) (*Engine, *fakePlayer) {
	t.Helper()
	player := &fakePlayer{}
	eng := NewEngine(testSession(n, models.ChoiceA), player, testLogger(), ImmediateConfig(), Hooks{})
	t.Cleanup(func() { _, _ = eng.Finish(context.Background()) })
	return eng, player
}

// completeMCQ answers all three steps correctly, leaving the engine in the
// audio phase.
func completeMCQ(t *testing.T, eng *Engine) {
	t.Helper()
	ctx := context.Background()
	for step := 1; step <= 3; step++ {
		require.NoError(t, eng.SelectOption(ctx, step, "o1"))
	}
	require.Equal(t, models.PhaseAudio, eng.Snapshot().Phase)
}

// answer submits an audio-phase choice and reports whether it was applied.
func answer(t *testing.T, eng *Engine, label models.ChoiceLabel) bool {
	t.Helper()
	applied, err := eng.AnswerChoice(context.Background(), label)
	require.NoError(t, err)
	return applied
}

func TestEngine_StartEntersMCQPhase(t *testing.T) {
	eng, _ := newTestEngine(t, 2)
	require.NoError(t, eng.Start(context.Background()))

	snap := eng.Snapshot()
	assert.Equal(t, models.PhaseMCQ, snap.Phase)
	assert.Equal(t, 1, snap.Step)
	assert.Equal(t, 0, snap.QuestionIndex)
	assert.True(t, snap.TimerActive)
	assert.Equal(t, 10, snap.TimerRemaining)
	require.NotNil(t, snap.CurrentStep)
	assert.Nil(t, snap.Audio)
}

func TestEngine_StartIsIdempotent(t *testing.T) {
	eng, _ := newTestEngine(t, 1)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	require.NoError(t, eng.SelectOption(ctx, 1, "o1"))
	require.NoError(t, eng.Start(ctx))

	assert.Equal(t, 2, eng.Snapshot().Step, "second Start must not reset the step")
}

func TestEngine_StartWithNoQuestions(t *testing.T) {
	player := &fakePlayer{}
	sess := models.NewTestSession("empty", "user-1", models.LevelBeginner, "animals", 0, nil)
	eng := NewEngine(sess, player, testLogger(), ImmediateConfig(), Hooks{})

	assert.ErrorIs(t, eng.Start(context.Background()), ErrNoQuestions)
}

func TestEngine_CorrectStepsAdvanceThenPlayAudio(t *testing.T) {
	eng, player := newTestEngine(t, 1)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	require.NoError(t, eng.SelectOption(ctx, 1, "o1"))
	assert.Equal(t, 2, eng.Snapshot().Step)
	require.NoError(t, eng.SelectOption(ctx, 2, "o1"))
	assert.Equal(t, 3, eng.Snapshot().Step)
	require.NoError(t, eng.SelectOption(ctx, 3, "o1"))

	snap := eng.Snapshot()
	assert.Equal(t, models.PhaseAudio, snap.Phase)
	assert.False(t, snap.TimerActive)
	assert.Equal(t, 1, player.playCount())
	assert.Equal(t, []string{"https://cdn.example.com/clips/1.mp3"}, player.plays)
}

func TestEngine_WrongStepEndsMCQPhase(t *testing.T) {
	eng, player := newTestEngine(t, 1)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	require.NoError(t, eng.SelectOption(ctx, 1, "o2"))

	snap := eng.Snapshot()
	assert.Equal(t, models.PhaseAudio, snap.Phase)
	assert.Equal(t, 1, player.playCount())

	// The remaining steps were never offered.
	require.NoError(t, eng.SelectOption(ctx, 2, "o1"))
	sess := eng.SessionCopy()
	assert.Equal(t, 1, sess.StepsAttempted(0))
}

func TestEngine_StepAttemptedOnce(t *testing.T) {
	eng, _ := newTestEngine(t, 1)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	require.NoError(t, eng.SelectOption(ctx, 1, "o1"))
	// Re-selecting step 1 after it resolved is a stale event, not an error.
	require.NoError(t, eng.SelectOption(ctx, 1, "o2"))

	sess := eng.SessionCopy()
	require.Len(t, sess.MCQLog, 1)
	assert.Equal(t, "o1", sess.MCQLog[0].Selected)
	assert.True(t, sess.MCQLog[0].IsCorrect)
}

func TestEngine_SelectOptionUnknownValue(t *testing.T) {
	eng, _ := newTestEngine(t, 1)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	assert.ErrorIs(t, eng.SelectOption(ctx, 1, "nope"), ErrUnknownOption)
	assert.Empty(t, eng.SessionCopy().MCQLog)
}

func TestEngine_SelectOptionOutsideMCQPhaseIsNoop(t *testing.T) {
	eng, _ := newTestEngine(t, 1)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	completeMCQ(t, eng)

	require.NoError(t, eng.SelectOption(ctx, 1, "o1"))
	assert.Len(t, eng.SessionCopy().MCQLog, 3)
}

func TestEngine_AnswerChoiceRecordsAndReveals(t *testing.T) {
	eng, _ := newTestEngine(t, 1)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	completeMCQ(t, eng)

	// Choices are hidden until answered.
	snap := eng.Snapshot()
	require.NotNil(t, snap.Audio)
	assert.Empty(t, snap.Audio.Choices[0].Text)
	assert.Empty(t, snap.Audio.CorrectLabel)

	assert.True(t, answer(t, eng, models.ChoiceA))

	snap = eng.Snapshot()
	assert.Equal(t, models.PhaseAnswered, snap.Phase)
	require.NotNil(t, snap.Answer)
	assert.True(t, snap.Answer.IsCorrect)
	assert.Equal(t, models.ChoiceA, snap.Audio.CorrectLabel)
	assert.NotEmpty(t, snap.Audio.Choices[0].Text)
	assert.Equal(t, "watch the plural", snap.Audio.Traps)
}

func TestEngine_AnswerChoiceOnlyOnce(t *testing.T) {
	eng, _ := newTestEngine(t, 1)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	completeMCQ(t, eng)

	assert.True(t, answer(t, eng, models.ChoiceB))
	assert.False(t, answer(t, eng, models.ChoiceA))

	sess := eng.SessionCopy()
	require.NotNil(t, sess.Answers[0])
	assert.Equal(t, models.ChoiceB, sess.Answers[0].Selected)
	assert.False(t, sess.Answers[0].IsCorrect)
}

func TestEngine_AnswerChoiceUnknownLabel(t *testing.T) {
	eng, _ := newTestEngine(t, 1)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	completeMCQ(t, eng)

	_, err := eng.AnswerChoice(ctx, models.ChoiceLabel("Z"))
	assert.ErrorIs(t, err, ErrUnknownChoice)
}

func TestEngine_AnswerChoiceDuringMCQIsNoop(t *testing.T) {
	eng, _ := newTestEngine(t, 1)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	assert.False(t, answer(t, eng, models.ChoiceA))
	assert.Equal(t, models.PhaseMCQ, eng.Snapshot().Phase)
	assert.Nil(t, eng.SessionCopy().Answers[0])
}

func TestEngine_ConcurrentAnswersApplyOnce(t *testing.T) {
	eng, _ := newTestEngine(t, 1)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	completeMCQ(t, eng)

	var wg sync.WaitGroup
	var mu sync.Mutex
	applies := 0
	for _, label := range []models.ChoiceLabel{models.ChoiceA, models.ChoiceB, models.ChoiceC, models.ChoiceD} {
		wg.Add(1)
		go func(label models.ChoiceLabel) {
			defer wg.Done()
			applied, err := eng.AnswerChoice(ctx, label)
			assert.NoError(t, err)
			if applied {
				mu.Lock()
				applies++
				mu.Unlock()
			}
		}(label)
	}
	wg.Wait()

	// Exactly one caller wins the audio phase; the rest are no-ops.
	assert.Equal(t, 1, applies)
	require.NotNil(t, eng.SessionCopy().Answers[0])
	assert.Equal(t, models.PhaseAnswered, eng.Snapshot().Phase)
}

func TestEngine_NextQuestionResetsPerQuestionState(t *testing.T) {
	eng, player := newTestEngine(t, 2)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	completeMCQ(t, eng)
	require.True(t, answer(t, eng, models.ChoiceA))

	require.NoError(t, eng.NextQuestion(ctx))

	snap := eng.Snapshot()
	assert.Equal(t, 1, snap.QuestionIndex)
	assert.Equal(t, models.PhaseMCQ, snap.Phase)
	assert.Equal(t, 1, snap.Step)
	assert.True(t, snap.TimerActive)
	assert.Equal(t, 10, snap.TimerRemaining)
	assert.GreaterOrEqual(t, player.stops, 1)
}

func TestEngine_NextQuestionRecordsSkip(t *testing.T) {
	eng, _ := newTestEngine(t, 2)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	require.NoError(t, eng.NextQuestion(ctx))

	sess := eng.SessionCopy()
	require.NotNil(t, sess.Answers[0])
	assert.True(t, sess.Answers[0].Skipped)
	assert.False(t, sess.Answers[0].IsCorrect)
	assert.Equal(t, models.ChoiceA, sess.Answers[0].Correct)
}

func TestEngine_NextQuestionPastLastFinishes(t *testing.T) {
	var finished models.TestResults
	done := false
	player := &fakePlayer{}
	eng := NewEngine(testSession(1, models.ChoiceA), player, testLogger(), ImmediateConfig(), Hooks{
		OnFinished: func(r models.TestResults) { finished, done = r, true },
	})
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	completeMCQ(t, eng)
	require.True(t, answer(t, eng, models.ChoiceA))

	require.NoError(t, eng.NextQuestion(ctx))

	assert.True(t, eng.Finished())
	assert.True(t, done)
	assert.Equal(t, 100, finished.Score)
	assert.Equal(t, 100, finished.MCQScore)

	snap := eng.Snapshot()
	assert.Equal(t, models.SessionFinished, snap.Status)
	require.NotNil(t, snap.Results)
	assert.Nil(t, snap.CurrentStep)
	assert.Nil(t, snap.Audio)
}

func TestEngine_PartialScoreAcrossQuestions(t *testing.T) {
	eng, _ := newTestEngine(t, 6)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	// Four right, two wrong.
	for i := 0; i < 6; i++ {
		completeMCQ(t, eng)
		label := models.ChoiceA
		if i >= 4 {
			label = models.ChoiceB
		}
		require.True(t, answer(t, eng, label))
		require.NoError(t, eng.NextQuestion(ctx))
	}

	results, ok := eng.Results()
	require.True(t, ok)
	assert.Equal(t, 67, results.Score)
	assert.Equal(t, 4, results.Correct)
	assert.Equal(t, 6, results.Total)
	assert.Equal(t, 100, results.MCQScore)
	assert.Equal(t, 18, results.MCQTotal)
}

func TestEngine_FinishIsIdempotent(t *testing.T) {
	eng, _ := newTestEngine(t, 2)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	first, err := eng.Finish(ctx)
	require.NoError(t, err)
	second, err := eng.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, first.Total)
	assert.Equal(t, 0, first.Correct)
}

func TestEngine_OperationsAfterFinishAreInert(t *testing.T) {
	eng, player := newTestEngine(t, 1)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	_, err := eng.Finish(ctx)
	require.NoError(t, err)

	playsAtFinish := player.playCount()
	require.NoError(t, eng.SelectOption(ctx, 1, "o1"))
	assert.False(t, answer(t, eng, models.ChoiceA))
	require.NoError(t, eng.NextQuestion(ctx))

	assert.Empty(t, eng.SessionCopy().MCQLog)
	assert.Equal(t, playsAtFinish, player.playCount())
}

func TestEngine_TimeoutMovesToAudioPhase(t *testing.T) {
	player := &fakePlayer{}
	cfg := ImmediateConfig()
	cfg.TimerSeconds = 1
	cfg.TickInterval = 5 * time.Millisecond
	eng := NewEngine(testSession(1, models.ChoiceA), player, testLogger(), cfg, Hooks{})
	t.Cleanup(func() { _, _ = eng.Finish(context.Background()) })

	require.NoError(t, eng.Start(context.Background()))
	waitFor(t, time.Second, func() bool {
		return eng.Snapshot().Phase == models.PhaseAudio
	})

	// Timed out with zero interactions: the learner can still answer.
	assert.Empty(t, eng.SessionCopy().MCQLog)
	assert.Equal(t, 1, player.playCount())
	assert.True(t, answer(t, eng, models.ChoiceA))
	assert.Equal(t, models.PhaseAnswered, eng.Snapshot().Phase)
}

func TestEngine_TickEmitsCueAndHook(t *testing.T) {
	var mu sync.Mutex
	var ticks []int
	player := &fakePlayer{}
	cfg := ImmediateConfig()
	cfg.TimerSeconds = 3
	cfg.TickInterval = 5 * time.Millisecond
	eng := NewEngine(testSession(1, models.ChoiceA), player, testLogger(), cfg, Hooks{
		OnTick: func(remaining int) {
			mu.Lock()
			ticks = append(ticks, remaining)
			mu.Unlock()
		},
	})
	t.Cleanup(func() { _, _ = eng.Finish(context.Background()) })

	require.NoError(t, eng.Start(context.Background()))
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks) >= 2
	})

	mu.Lock()
	got := append([]int(nil), ticks...)
	mu.Unlock()
	assert.Equal(t, []int{2, 1}, got[:2])

	player.mu.Lock()
	cues := player.cues
	player.mu.Unlock()
	assert.GreaterOrEqual(t, cues, 2)
}

func TestEngine_PhaseChangeHookSequence(t *testing.T) {
	var mu sync.Mutex
	var phases []models.Phase
	player := &fakePlayer{}
	eng := NewEngine(testSession(1, models.ChoiceA), player, testLogger(), ImmediateConfig(), Hooks{
		OnPhaseChange: func(idx int, phase models.Phase) {
			mu.Lock()
			phases = append(phases, phase)
			mu.Unlock()
		},
	})
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	completeMCQ(t, eng)
	require.True(t, answer(t, eng, models.ChoiceA))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []models.Phase{models.PhaseMCQ, models.PhaseAudio, models.PhaseAnswered}, phases)
}
