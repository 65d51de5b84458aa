package session

import (
	"github.com/echolingo/listening-service/internal/models"
)

// OptionView is an MCQ option as presented to the learner: the correctness
// flag never leaves the engine.
type OptionView struct {
	Value         string `json:"value"`
	DisplayText   string `json:"display_text"`
	Pronunciation string `json:"pronunciation,omitempty"`
	Meaning       string `json:"meaning,omitempty"`
}

type StepView struct {
	Step    int          `json:"step"`
	Prompt  string       `json:"prompt,omitempty"`
	Options []OptionView `json:"options"`
}

// ChoiceView is an audio-question choice. Text and translation are withheld
// until the question is answered so the learner cannot read ahead.
type ChoiceView struct {
	Label       models.ChoiceLabel `json:"label"`
	Text        string             `json:"text,omitempty"`
	Translation string             `json:"translation,omitempty"`
}

type AudioView struct {
	AudioURL     string             `json:"audio_url"`
	Choices      []ChoiceView       `json:"choices"`
	CorrectLabel models.ChoiceLabel `json:"correct_label,omitempty"`
	Traps        string             `json:"traps,omitempty"`
}

// Snapshot is the engine's externally visible state at one instant.
type Snapshot struct {
	SessionID      string               `json:"session_id"`
	Status         models.SessionStatus `json:"status"`
	QuestionIndex  int                  `json:"question_index"`
	QuestionCount  int                  `json:"question_count"`
	Phase          models.Phase         `json:"phase"`
	Step           int                  `json:"step"`
	TimerRemaining int                  `json:"timer_remaining"`
	TimerActive    bool                 `json:"timer_active"`
	CurrentStep    *StepView            `json:"current_step,omitempty"`
	Audio          *AudioView           `json:"audio,omitempty"`
	Answer         *models.Answer       `json:"answer,omitempty"`
	Results        *models.TestResults  `json:"results,omitempty"`
}

// Snapshot renders the current engine state for the UI.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		SessionID:      e.sess.ID,
		Status:         e.sess.Status,
		QuestionIndex:  e.sess.CurrentIndex,
		QuestionCount:  len(e.sess.Questions),
		Phase:          e.phase,
		Step:           e.step,
		TimerRemaining: e.timer.Remaining(),
		TimerActive:    e.timer.Active(),
	}
	if e.sess.Results != nil {
		r := *e.sess.Results
		snap.Results = &r
	}

	q := e.sess.Current()
	if q == nil || e.finished {
		return snap
	}

	switch e.phase {
	case models.PhaseMCQ:
		snap.CurrentStep = stepView(q.Steps[e.step-1])
	case models.PhaseAudio:
		snap.Audio = audioView(q, false)
	case models.PhaseAnswered:
		snap.Audio = audioView(q, true)
		if a := e.sess.Answers[e.sess.CurrentIndex]; a != nil {
			cp := *a
			snap.Answer = &cp
		}
	}
	return snap
}

func stepView(s models.MCQStep) *StepView {
	v := &StepView{Step: s.Step, Prompt: s.Prompt, Options: make([]OptionView, len(s.Options))}
	for i, o := range s.Options {
		v.Options[i] = OptionView{
			Value:         o.Value,
			DisplayText:   o.DisplayText,
			Pronunciation: o.Pronunciation,
			Meaning:       o.Meaning,
		}
	}
	return v
}

func audioView(q *models.ListeningQuestion, revealed bool) *AudioView {
	v := &AudioView{
		AudioURL: q.Audio.AudioURL,
		Choices:  make([]ChoiceView, len(q.Audio.Choices)),
	}
	for i, c := range q.Audio.Choices {
		cv := ChoiceView{Label: c.Label}
		if revealed {
			cv.Text = c.Text
			cv.Translation = c.Translation
		}
		v.Choices[i] = cv
	}
	if revealed {
		v.CorrectLabel = q.Audio.CorrectLabel
		v.Traps = q.Audio.Traps
	}
	return v
}
