package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPayload() ListeningPayload {
	steps := make([]MCQStep, 3)
	for i := range steps {
		steps[i] = MCQStep{
			Step:   i + 1,
			Prompt: "pick one",
			Options: []MCQOption{
				{Value: "cat", DisplayText: "cat", IsCorrect: true},
				{Value: "dog", DisplayText: "dog"},
				{Value: "bird", DisplayText: "bird"},
			},
		}
	}
	return ListeningPayload{
		Steps: steps,
		Audio: AudioQuestion{
			AudioURL: "https://cdn.example.com/clip.mp3",
			Choices: []AudioChoice{
				{Label: ChoiceA, Text: "a"},
				{Label: ChoiceB, Text: "b"},
				{Label: ChoiceC, Text: "c"},
				{Label: ChoiceD, Text: "d"},
			},
			CorrectLabel: ChoiceB,
		},
	}
}

func rowWith(t *testing.T, mutate func(*ListeningPayload)) *Question {
	t.Helper()
	p := validPayload()
	if mutate != nil {
		mutate(&p)
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return &Question{
		ID:       1,
		Kind:     KindListening,
		Level:    LevelBeginner,
		Category: "animals",
		Payload:  data,
	}
}

func TestResolveListening(t *testing.T) {
	q, err := ResolveListening(rowWith(t, nil))
	require.NoError(t, err)

	assert.Equal(t, uint(1), q.ID)
	assert.Len(t, q.Steps, 3)
	assert.Equal(t, ChoiceB, q.Audio.CorrectLabel)
	assert.Equal(t, "cat", q.Steps[0].CorrectOption())
}

func TestResolveListening_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ListeningPayload)
	}{
		{
			name:   "two steps",
			mutate: func(p *ListeningPayload) { p.Steps = p.Steps[:2] },
		},
		{
			name:   "misnumbered step",
			mutate: func(p *ListeningPayload) { p.Steps[1].Step = 3 },
		},
		{
			name:   "no correct option",
			mutate: func(p *ListeningPayload) { p.Steps[0].Options[0].IsCorrect = false },
		},
		{
			name: "two correct options",
			mutate: func(p *ListeningPayload) {
				p.Steps[2].Options[1].IsCorrect = true
			},
		},
		{
			name:   "three audio choices",
			mutate: func(p *ListeningPayload) { p.Audio.Choices = p.Audio.Choices[:3] },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveListening(rowWith(t, tt.mutate))
			assert.Error(t, err)
		})
	}
}

func TestResolveListening_WrongKind(t *testing.T) {
	row := rowWith(t, nil)
	row.Kind = QuestionKind("speaking")
	_, err := ResolveListening(row)
	assert.Error(t, err)
}

func TestResolveListening_MalformedJSON(t *testing.T) {
	row := rowWith(t, nil)
	row.Payload = []byte(`{"steps": `)
	_, err := ResolveListening(row)
	assert.Error(t, err)
}

func TestMCQStepOptionLookup(t *testing.T) {
	p := validPayload()
	step := p.Steps[0]

	opt, ok := step.Option("dog")
	require.True(t, ok)
	assert.Equal(t, "dog", opt.Value)
	assert.False(t, opt.IsCorrect)

	_, ok = step.Option("fish")
	assert.False(t, ok)
}

func TestAudioChoiceLookup(t *testing.T) {
	p := validPayload()

	c, ok := p.Audio.Choice(ChoiceD)
	require.True(t, ok)
	assert.Equal(t, "d", c.Text)

	_, ok = p.Audio.Choice(ChoiceLabel("Z"))
	assert.False(t, ok)
}
