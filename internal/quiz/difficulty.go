package quiz

import (
	"fmt"

	"github.com/pavelanni/companion/internal/model"
)

// SelectDifficulty computes the adaptive difficulty tier from the student's
// recent quiz performance. A student with no graded quizzes gets the medium
// tier with zero stats (cold start, not an error).
func (s *Service) SelectDifficulty(studentID int64) (model.Difficulty, PerformanceStats, error) {
	records, err := s.store.RecentQuizzes(studentID, "", s.th.RecentWindow)
	if err != nil {
		return "", PerformanceStats{}, fmt.Errorf("load recent quizzes: %w", err)
	}
	stats := recentStats(records)
	if stats.QuizCount == 0 {
		return model.DifficultyMedium, stats, nil
	}
	return s.tierFor(stats.AvgScore), stats, nil
}

// tierFor maps a rolling average score to a difficulty tier. The band
// boundaries are inclusive on their lower bound: exactly 60 is medium,
// exactly 80 is hard.
func (s *Service) tierFor(avgScore float64) model.Difficulty {
	switch {
	case avgScore < s.th.EasyBelow:
		return model.DifficultyEasy
	case avgScore < s.th.HardFrom:
		return model.DifficultyMedium
	default:
		return model.DifficultyHard
	}
}
