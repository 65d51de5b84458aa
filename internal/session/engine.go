package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/echolingo/listening-service/internal/models"
	"github.com/echolingo/listening-service/internal/utils"
)

var (
	ErrNoQuestions   = errors.New("session has no questions")
	ErrUnknownOption = errors.New("selected option does not exist for this step")
	ErrUnknownChoice = errors.New("selected choice label does not exist")
)

// AudioPlayer is the slice of the playback manager the engine drives. Play
// and Cue never report failure: audio loss is non-fatal and the engine must
// proceed regardless.
type AudioPlayer interface {
	Play(ctx context.Context, resource, text string)
	Stop()
	Cue(ctx context.Context)
}

// Config tunes the engine's timing. Zero values fall back to the reference
// behavior.
type Config struct {
	TimerSeconds int           // MCQ countdown length, default 10
	TickInterval time.Duration // countdown tick period, default 1s
	SettleDelay  time.Duration // pause before audio playback on phase entry, default 300ms
	AdvanceDelay time.Duration // pacing after a correct MCQ selection, default 600ms
	WrongDelay   time.Duration // pacing after a wrong MCQ selection, default 150ms
}

func (c Config) withDefaults() Config {
	if c.TimerSeconds <= 0 {
		c.TimerSeconds = 10
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	} else if c.SettleDelay == 0 {
		c.SettleDelay = 300 * time.Millisecond
	}
	if c.AdvanceDelay == 0 {
		c.AdvanceDelay = 600 * time.Millisecond
	}
	if c.WrongDelay == 0 {
		c.WrongDelay = 150 * time.Millisecond
	}
	return c
}

// ImmediateConfig returns a config with all pacing delays collapsed to zero,
// for synchronous use in tests.
func ImmediateConfig() Config {
	return Config{
		TimerSeconds: 10,
		TickInterval: time.Second,
		SettleDelay:  -1,
		AdvanceDelay: -1,
		WrongDelay:   -1,
	}
}

// Hooks are optional engine observers. All fields may be nil. Hooks are
// invoked without the engine lock held.
type Hooks struct {
	OnPhaseChange func(questionIndex int, phase models.Phase)
	OnTick        func(remaining int)
	OnStepAdvance func(questionIndex, step int)
	OnFinished    func(results models.TestResults)
}

// Engine drives one test session through the per-question phase flow
// mcq -> audio -> answered. It owns the session value, the countdown timer
// and the playback handle lifecycle for its whole lifetime.
//
// Deferred effects (pacing delays, the settle-delay playback, countdown
// ticks) carry the generation current when they were scheduled and are
// discarded if the engine has moved on, so the timeout signal and the MCQ
// controller's decisions are mutually exclusive triggers for the same
// transition: whichever fires first wins and the loser is inert.
type Engine struct {
	mu    sync.Mutex
	cfg   Config
	log   utils.Logger
	audio AudioPlayer
	hooks Hooks

	sess  *models.TestSession
	phase models.Phase
	step  int
	gen   uint64
	timer *Countdown

	started     bool
	finished    bool
	stepPending bool
}

func NewEngine(sess *models.TestSession, audio AudioPlayer, logger utils.Logger, cfg Config, hooks Hooks) *Engine {
	e := &Engine{
		cfg:   cfg.withDefaults(),
		log:   logger,
		audio: audio,
		hooks: hooks,
		sess:  sess,
		phase: models.PhaseMCQ,
		step:  1,
	}
	e.timer = NewCountdown(e.cfg.TickInterval, e.handleTick, e.handleTimeout)
	return e
}

// Start begins the session: question 0 enters the mcq phase and the countdown
// starts. Calling Start twice is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started || e.finished {
		e.mu.Unlock()
		return nil
	}
	if len(e.sess.Questions) == 0 {
		e.mu.Unlock()
		return ErrNoQuestions
	}
	e.started = true
	e.phase = models.PhaseMCQ
	e.step = 1
	e.mu.Unlock()

	e.log.Info("session started",
		"session_id", e.sess.ID,
		"questions", len(e.sess.Questions))

	e.emitPhaseChange(0, models.PhaseMCQ)
	e.timer.Start(e.cfg.TimerSeconds)
	return nil
}

// SelectOption routes a learner's MCQ selection for the given step. Stale
// events (wrong phase, wrong step, step already attempted) are rejected as
// no-ops; only an unknown option value is an error.
func (e *Engine) SelectOption(ctx context.Context, step int, value string) error {
	e.mu.Lock()
	if !e.started || e.finished || e.phase != models.PhaseMCQ {
		e.mu.Unlock()
		e.log.Debug("ignoring option selection outside mcq phase", "session_id", e.sess.ID, "step", step)
		return nil
	}
	if step != e.step || e.stepPending {
		e.mu.Unlock()
		e.log.Debug("ignoring out-of-order option selection",
			"session_id", e.sess.ID, "selected_step", step, "current_step", e.step)
		return nil
	}

	q := e.sess.Current()
	opt, ok := q.Steps[e.step-1].Option(value)
	if !ok {
		e.mu.Unlock()
		return ErrUnknownOption
	}

	e.sess.MCQLog = append(e.sess.MCQLog, models.MCQAnswer{
		QuestionIndex: e.sess.CurrentIndex,
		Step:          e.step,
		Selected:      value,
		IsCorrect:     opt.IsCorrect,
	})

	outcome := decideStep(e.step, opt.IsCorrect)
	e.stepPending = true
	gen := e.gen
	delay := e.cfg.AdvanceDelay
	if outcome == stepWrong {
		delay = e.cfg.WrongDelay
	}
	e.mu.Unlock()

	e.after(ctx, delay, func() { e.resolveStep(ctx, gen, outcome) })
	return nil
}

// resolveStep applies a step decision once its pacing delay has elapsed. The
// generation and phase checks make it inert when the countdown timed out (or
// the question advanced) in the meantime.
func (e *Engine) resolveStep(ctx context.Context, gen uint64, outcome stepOutcome) {
	e.mu.Lock()
	if gen != e.gen || e.finished || e.phase != models.PhaseMCQ {
		e.mu.Unlock()
		return
	}
	e.stepPending = false

	if outcome == stepAdvance {
		e.step++
		idx, step := e.sess.CurrentIndex, e.step
		e.mu.Unlock()
		if e.hooks.OnStepAdvance != nil {
			e.hooks.OnStepAdvance(idx, step)
		}
		return
	}

	// stepComplete or stepWrong both end the mcq phase.
	e.transitionToAudio(ctx)
}

// AnswerChoice resolves the audio phase with one of the four labeled choices.
// Once answered, further selections are ignored. The returned bool reports
// whether this call recorded the answer, decided under the engine lock so
// concurrent callers cannot both observe an apply.
func (e *Engine) AnswerChoice(ctx context.Context, label models.ChoiceLabel) (bool, error) {
	e.mu.Lock()
	if !e.started || e.finished || e.phase != models.PhaseAudio {
		e.mu.Unlock()
		e.log.Debug("ignoring choice selection outside audio phase", "session_id", e.sess.ID, "label", label)
		return false, nil
	}

	q := e.sess.Current()
	if _, ok := q.Audio.Choice(label); !ok {
		e.mu.Unlock()
		return false, ErrUnknownChoice
	}

	idx := e.sess.CurrentIndex
	e.sess.Answers[idx] = &models.Answer{
		Selected:  label,
		Correct:   q.Audio.CorrectLabel,
		IsCorrect: label == q.Audio.CorrectLabel,
	}
	e.phase = models.PhaseAnswered
	e.mu.Unlock()

	e.log.Info("question answered",
		"session_id", e.sess.ID,
		"question_index", idx,
		"correct", label == q.Audio.CorrectLabel)

	e.emitPhaseChange(idx, models.PhaseAnswered)
	return true, nil
}

// NextQuestion advances the cursor, tearing down the live playback handle,
// the timer state and the per-question transients. A question left without an
// answer is recorded as skipped. Advancing past the last question finishes
// the session.
func (e *Engine) NextQuestion(ctx context.Context) error {
	e.mu.Lock()
	if !e.started || e.finished {
		e.mu.Unlock()
		return nil
	}

	e.gen++
	e.timer.Stop()

	idx := e.sess.CurrentIndex
	if e.sess.Answers[idx] == nil {
		q := e.sess.Current()
		e.sess.Answers[idx] = &models.Answer{Correct: q.Audio.CorrectLabel, Skipped: true}
	}

	e.sess.CurrentIndex++
	if e.sess.CurrentIndex >= len(e.sess.Questions) {
		e.finishLocked()
		return nil
	}

	next := e.sess.CurrentIndex
	e.phase = models.PhaseMCQ
	e.step = 1
	e.stepPending = false
	e.mu.Unlock()

	e.audio.Stop()
	e.emitPhaseChange(next, models.PhaseMCQ)
	e.timer.Start(e.cfg.TimerSeconds)
	return nil
}

// Finish ends the session explicitly: stops timer and audio, computes the
// results and leaves the engine inert. Idempotent.
func (e *Engine) Finish(ctx context.Context) (models.TestResults, error) {
	e.mu.Lock()
	if e.finished {
		results := *e.sess.Results
		e.mu.Unlock()
		return results, nil
	}
	e.gen++
	e.timer.Stop()
	results := e.finishLocked()
	return results, nil
}

// finishLocked computes results and marks the engine inert. Called with the
// lock held; releases it.
func (e *Engine) finishLocked() models.TestResults {
	e.finished = true
	results := ComputeResults(e.sess.Answers, e.sess.MCQLog)
	e.sess.Results = &results
	e.sess.Status = models.SessionFinished
	now := time.Now()
	e.sess.FinishedAt = &now
	e.mu.Unlock()

	e.audio.Stop()

	e.log.Info("session finished",
		"session_id", e.sess.ID,
		"score", results.Score,
		"mcq_score", results.MCQScore)

	if e.hooks.OnFinished != nil {
		e.hooks.OnFinished(results)
	}
	return results
}

// transitionToAudio performs the single mcq -> audio transition for the
// current question: stop the countdown deterministically, bump the generation
// so stale mcq-phase effects are discarded, then request playback after the
// settle delay. Called with the lock held; releases it.
func (e *Engine) transitionToAudio(ctx context.Context) {
	e.phase = models.PhaseAudio
	e.stepPending = false
	e.gen++
	gen := e.gen
	e.timer.Stop()

	idx := e.sess.CurrentIndex
	resource := e.sess.Current().Audio.AudioURL
	e.mu.Unlock()

	e.emitPhaseChange(idx, models.PhaseAudio)

	e.after(ctx, e.cfg.SettleDelay, func() {
		e.mu.Lock()
		stale := gen != e.gen || e.finished || e.phase != models.PhaseAudio
		e.mu.Unlock()
		if stale {
			return
		}
		// Failures are absorbed by the playback manager; the learner can
		// still answer from the visible text.
		e.audio.Play(ctx, resource, "")
	})
}

func (e *Engine) handleTimeout() {
	e.mu.Lock()
	if !e.started || e.finished || e.phase != models.PhaseMCQ {
		e.mu.Unlock()
		return
	}
	e.log.Debug("mcq countdown expired", "session_id", e.sess.ID, "question_index", e.sess.CurrentIndex)
	e.transitionToAudio(context.Background())
}

func (e *Engine) handleTick(remaining int) {
	e.audio.Cue(context.Background())
	if e.hooks.OnTick != nil {
		e.hooks.OnTick(remaining)
	}
}

func (e *Engine) emitPhaseChange(idx int, phase models.Phase) {
	if e.hooks.OnPhaseChange != nil {
		e.hooks.OnPhaseChange(idx, phase)
	}
}

// after schedules fn once the delay elapses. Negative delays run fn inline,
// which keeps test configs synchronous.
func (e *Engine) after(ctx context.Context, d time.Duration, fn func()) {
	if d <= 0 {
		fn()
		return
	}
	time.AfterFunc(d, fn)
}

// Finished reports whether the session has ended.
func (e *Engine) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finished
}

// Results returns the computed summary once the session has finished.
func (e *Engine) Results() (models.TestResults, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.Results == nil {
		return models.TestResults{}, false
	}
	return *e.sess.Results, true
}

// SessionCopy returns a shallow copy of the session with copied answer and
// log slices, for review rendering and export. Question values are shared
// but immutable once loaded.
func (e *Engine) SessionCopy() models.TestSession {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp := *e.sess
	cp.Answers = make([]*models.Answer, len(e.sess.Answers))
	copy(cp.Answers, e.sess.Answers)
	cp.MCQLog = make([]models.MCQAnswer, len(e.sess.MCQLog))
	copy(cp.MCQLog, e.sess.MCQLog)
	if e.sess.Results != nil {
		r := *e.sess.Results
		cp.Results = &r
	}
	return cp
}
