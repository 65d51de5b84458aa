package session

import (
	"math"

	"github.com/echolingo/listening-service/internal/models"
)

// ComputeResults derives the session summary from the answer array and MCQ
// log. It is a pure function: recomputing over the same inputs yields the
// same output. Unanswered (nil) entries count toward the total but not the
// correct count; the MCQ denominator counts attempted steps only.
func ComputeResults(answers []*models.Answer, mcqLog []models.MCQAnswer) models.TestResults {
	correct := 0
	for _, a := range answers {
		if a != nil && a.IsCorrect {
			correct++
		}
	}

	mcqCorrect := 0
	for _, e := range mcqLog {
		if e.IsCorrect {
			mcqCorrect++
		}
	}

	return models.TestResults{
		Score:      roundPercent(correct, len(answers)),
		Correct:    correct,
		Total:      len(answers),
		MCQScore:   roundPercent(mcqCorrect, len(mcqLog)),
		MCQCorrect: mcqCorrect,
		MCQTotal:   len(mcqLog),
	}
}

// roundPercent returns round-half-up(100*n/d), 0 when d is 0.
func roundPercent(n, d int) int {
	if d == 0 {
		return 0
	}
	return int(math.Round(100 * float64(n) / float64(d)))
}
