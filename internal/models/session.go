package models

import "time"

// Phase is the per-question lifecycle stage. Transitions are monotonic:
// mcq -> audio -> answered, never reversed within a question.
type Phase string

const (
	PhaseMCQ      Phase = "mcq"
	PhaseAudio    Phase = "audio"
	PhaseAnswered Phase = "answered"
)

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionFinished   SessionStatus = "finished"
	SessionAbandoned  SessionStatus = "abandoned"
)

// MCQAnswer is one append-only log entry: a step attempted exactly once.
type MCQAnswer struct {
	QuestionIndex int    `json:"question_index"`
	Step          int    `json:"step"`
	Selected      string `json:"selected"`
	IsCorrect     bool   `json:"is_correct"`
}

// Answer is the per-question outcome of the audio phase. Nil in the session's
// Answers slice until the question is answered.
type Answer struct {
	Selected  ChoiceLabel `json:"selected"`
	Correct   ChoiceLabel `json:"correct"`
	IsCorrect bool        `json:"is_correct"`
	Skipped   bool        `json:"skipped"`
}

// TestResults is the derived session summary, computed once at session end
// and recomputable idempotently from the Answer and MCQAnswer logs.
type TestResults struct {
	Score      int `json:"score"`
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	MCQScore   int `json:"mcq_score"`
	MCQCorrect int `json:"mcq_correct"`
	MCQTotal   int `json:"mcq_total"`
}

// TestSession is one fixed-size batch of questions presented end-to-end.
// It is owned exclusively by the session engine for its lifetime.
type TestSession struct {
	ID        string               `json:"id"`
	UserKey   string               `json:"user_key"`
	Level     DifficultyLevel      `json:"level"`
	Category  string               `json:"category"`
	SetIndex  int                  `json:"set_index"`
	Questions []*ListeningQuestion `json:"questions"`

	CurrentIndex int           `json:"current_index"`
	Answers      []*Answer     `json:"answers"`
	MCQLog       []MCQAnswer   `json:"mcq_log"`
	Status       SessionStatus `json:"status"`
	Results      *TestResults  `json:"results,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewTestSession builds a session over an ordered, already-resolved question
// slice with an empty answer array and MCQ log.
func NewTestSession(id, userKey string, level DifficultyLevel, category string, setIndex int, questions []*ListeningQuestion) *TestSession {
	return &TestSession{
		ID:           id,
		UserKey:      userKey,
		Level:        level,
		Category:     category,
		SetIndex:     setIndex,
		Questions:    questions,
		Answers:      make([]*Answer, len(questions)),
		MCQLog:       make([]MCQAnswer, 0, len(questions)*3),
		Status:       SessionInProgress,
		StartedAt:    time.Now(),
		CurrentIndex: 0,
	}
}

// Current returns the question at the session cursor, nil when exhausted.
func (s *TestSession) Current() *ListeningQuestion {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return nil
	}
	return s.Questions[s.CurrentIndex]
}

// StepsAttempted counts MCQ log entries for a given question index.
func (s *TestSession) StepsAttempted(questionIndex int) int {
	n := 0
	for _, e := range s.MCQLog {
		if e.QuestionIndex == questionIndex {
			n++
		}
	}
	return n
}
