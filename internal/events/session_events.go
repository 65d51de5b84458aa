package events

import (
	"time"

	"github.com/echolingo/listening-service/internal/models"
)

// EventType represents different types of session lifecycle events
type EventType string

const (
	EventSessionStarted   EventType = "session.started"
	EventQuestionAnswered EventType = "session.question_answered"
	EventSessionCompleted EventType = "session.completed"
	EventSessionAbandoned EventType = "session.abandoned"
)

// SessionEvent is the base event structure published to the session topic
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type SessionStartedEvent struct {
	SessionID     string                 `json:"session_id"`
	UserKey       string                 `json:"user_key"`
	Level         models.DifficultyLevel `json:"level"`
	Category      string                 `json:"category"`
	SetIndex      int                    `json:"set_index"`
	QuestionCount int                    `json:"question_count"`
}

type QuestionAnsweredEvent struct {
	SessionID     string             `json:"session_id"`
	QuestionIndex int                `json:"question_index"`
	Selected      models.ChoiceLabel `json:"selected"`
	IsCorrect     bool               `json:"is_correct"`
	Skipped       bool               `json:"skipped"`
}

type SessionCompletedEvent struct {
	SessionID string                 `json:"session_id"`
	UserKey   string                 `json:"user_key"`
	Level     models.DifficultyLevel `json:"level"`
	Category  string                 `json:"category"`
	SetIndex  int                    `json:"set_index"`
	Results   models.TestResults     `json:"results"`
}
