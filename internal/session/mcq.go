package session

import (
	"math/rand"

	"github.com/echolingo/listening-service/internal/models"
)

const mcqStepCount = 3

// stepOutcome is the MCQ step controller's decision for one selection.
type stepOutcome int

const (
	// stepAdvance: correct answer on a non-final step, move to the next step.
	stepAdvance stepOutcome = iota
	// stepComplete: correct answer on the final step, MCQ phase is done.
	stepComplete
	// stepWrong: wrong answer on any step, no further steps this question.
	stepWrong
)

func decideStep(step int, correct bool) stepOutcome {
	switch {
	case !correct:
		return stepWrong
	case step < mcqStepCount:
		return stepAdvance
	default:
		return stepComplete
	}
}

// ShuffleQuestionOptions shuffles each step's option order in place for one
// session instance. The correctness flag travels with its option record, so
// the value->correct binding is unchanged.
func ShuffleQuestionOptions(q *models.ListeningQuestion, rng *rand.Rand) {
	for i := range q.Steps {
		opts := q.Steps[i].Options
		rng.Shuffle(len(opts), func(a, b int) {
			opts[a], opts[b] = opts[b], opts[a]
		})
	}
}
