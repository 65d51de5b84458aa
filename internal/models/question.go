package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionKind string

const (
	KindListening QuestionKind = "listening"
)

type DifficultyLevel string

const (
	LevelBeginner     DifficultyLevel = "beginner"
	LevelIntermediate DifficultyLevel = "intermediate"
	LevelAdvanced     DifficultyLevel = "advanced"
)

// ChoiceLabel identifies one of the four audio-question choices.
type ChoiceLabel string

const (
	ChoiceA ChoiceLabel = "A"
	ChoiceB ChoiceLabel = "B"
	ChoiceC ChoiceLabel = "C"
	ChoiceD ChoiceLabel = "D"
)

// Question is the stored question-bank row. The kind-specific body lives in
// Payload and is resolved into a typed struct once at session load, not
// re-parsed ad hoc per request.
type Question struct {
	ID       uint            `json:"id" gorm:"primaryKey"`
	Kind     QuestionKind    `json:"kind" gorm:"not null;size:32;index" validate:"required,question_kind"`
	Level    DifficultyLevel `json:"level" gorm:"not null;size:32;index" validate:"required,difficulty_level"`
	Category string          `json:"category" gorm:"not null;size:100;index" validate:"required,min=1,max=100"`
	Payload  datatypes.JSON  `json:"payload" gorm:"not null" validate:"required"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Question) TableName() string {
	return "questions"
}

// MCQOption is one selectable option inside an MCQ step. The correctness flag
// travels with the option through shuffling.
type MCQOption struct {
	Value         string `json:"value" validate:"required"`
	DisplayText   string `json:"display_text" validate:"required"`
	Pronunciation string `json:"pronunciation,omitempty"`
	Meaning       string `json:"meaning,omitempty"`
	IsCorrect     bool   `json:"is_correct"`
}

// MCQStep is one of the three sequential vocabulary elicitations that precede
// the audio question. Exactly one option carries IsCorrect.
type MCQStep struct {
	Step    int         `json:"step" validate:"required,min=1,max=3"`
	Prompt  string      `json:"prompt"`
	Options []MCQOption `json:"options" validate:"required,min=2,dive"`
}

// AudioChoice is one labeled audio-question choice with its translation.
type AudioChoice struct {
	Label       ChoiceLabel `json:"label" validate:"required,choice_label"`
	Text        string      `json:"text" validate:"required"`
	Translation string      `json:"translation"`
}

// AudioQuestion is the full listening phase of a question: an audio resource,
// four choices A..D, the correct label and the explanatory traps text.
type AudioQuestion struct {
	AudioURL     string        `json:"audio_url"`
	Transcript   string        `json:"transcript,omitempty"`
	Choices      []AudioChoice `json:"choices" validate:"required,len=4,dive"`
	CorrectLabel ChoiceLabel   `json:"correct_label" validate:"required,choice_label"`
	Traps        string        `json:"traps,omitempty"`
}

// ListeningPayload is the resolved body of a KindListening question.
type ListeningPayload struct {
	Steps []MCQStep     `json:"steps" validate:"required,len=3,dive"`
	Audio AudioQuestion `json:"audio" validate:"required"`
}

// ListeningQuestion is a question resolved for one session instance. Steps are
// the session's shuffled copies; the stored row stays untouched.
type ListeningQuestion struct {
	ID       uint            `json:"id"`
	Level    DifficultyLevel `json:"level"`
	Category string          `json:"category"`
	Steps    []MCQStep       `json:"steps"`
	Audio    AudioQuestion   `json:"audio"`
}

// ResolveListening decodes a stored question into its typed listening form.
func ResolveListening(q *Question) (*ListeningQuestion, error) {
	if q.Kind != KindListening {
		return nil, fmt.Errorf("question %d has kind %q, expected %q", q.ID, q.Kind, KindListening)
	}

	var payload ListeningPayload
	if err := json.Unmarshal(q.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode listening payload for question %d: %w", q.ID, err)
	}
	if len(payload.Steps) != 3 {
		return nil, fmt.Errorf("question %d has %d MCQ steps, expected 3", q.ID, len(payload.Steps))
	}
	for i, step := range payload.Steps {
		if step.Step != i+1 {
			return nil, fmt.Errorf("question %d step %d is numbered %d", q.ID, i+1, step.Step)
		}
		correct := 0
		for _, opt := range step.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return nil, fmt.Errorf("question %d step %d has %d correct options, expected 1", q.ID, step.Step, correct)
		}
	}
	if len(payload.Audio.Choices) != 4 {
		return nil, fmt.Errorf("question %d has %d audio choices, expected 4", q.ID, len(payload.Audio.Choices))
	}

	return &ListeningQuestion{
		ID:       q.ID,
		Level:    q.Level,
		Category: q.Category,
		Steps:    payload.Steps,
		Audio:    payload.Audio,
	}, nil
}

// CorrectOption returns the value of the step's correct option.
func (s *MCQStep) CorrectOption() string {
	for _, opt := range s.Options {
		if opt.IsCorrect {
			return opt.Value
		}
	}
	return ""
}

// Option looks up an option by value.
func (s *MCQStep) Option(value string) (MCQOption, bool) {
	for _, opt := range s.Options {
		if opt.Value == value {
			return opt, true
		}
	}
	return MCQOption{}, false
}

// Choice looks up an audio choice by label.
func (a *AudioQuestion) Choice(label ChoiceLabel) (AudioChoice, bool) {
	for _, c := range a.Choices {
		if c.Label == label {
			return c, true
		}
	}
	return AudioChoice{}, false
}
