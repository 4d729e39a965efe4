package quiz

import (
	"fmt"

	"github.com/pavelanni/companion/internal/model"
)

// CheckAutoCompletion reports whether the student's recent quiz performance in
// a subject warrants auto-completing an active goal. Pending scores are
// results not yet persisted (the submission currently being graded); they
// occupy the newest slots of the rolling window. The check is query-only: the
// caller applies the actual goal mutation so it stays transactional with quiz
// persistence.
func (s *Service) CheckAutoCompletion(studentID int64, subject string, pendingScores ...float64) (bool, *model.Goal, error) {
	limit := s.th.RecentWindow - len(pendingScores)
	var records []model.QuizRecord
	if limit > 0 {
		var err error
		records, err = s.store.RecentQuizzes(studentID, subject, limit)
		if err != nil {
			return false, nil, fmt.Errorf("load recent quizzes: %w", err)
		}
	}

	scores := append([]float64{}, pendingScores...)
	for _, rec := range records {
		scores = append(scores, rec.ScorePercent)
	}

	// Below the minimum evidence the goal never completes, regardless of score.
	if len(scores) < s.th.MasteryMinQuizzes {
		return false, nil, nil
	}
	if averageOf(scores) < s.th.MasteryScore {
		return false, nil, nil
	}

	goal, err := s.store.ActiveGoalForSubject(studentID, subject)
	if err != nil {
		return false, nil, fmt.Errorf("load active goal: %w", err)
	}
	if goal == nil {
		return false, nil, nil
	}
	return true, goal, nil
}
