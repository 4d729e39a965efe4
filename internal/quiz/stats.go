package quiz

import "github.com/pavelanni/companion/internal/model"

// PerformanceStats summarizes a rolling window of quiz results. The same
// window feeds both difficulty selection and mastery detection so the two
// cannot drift in rounding or tie-break behavior.
type PerformanceStats struct {
	AvgScore     float64   `json:"avg_score"`
	QuizCount    int       `json:"quiz_count"`
	RecentScores []float64 `json:"recent_scores,omitempty"`
}

// recentStats computes rolling statistics over quiz records ordered newest
// first. Zero records yield zero stats, not an error.
func recentStats(records []model.QuizRecord) PerformanceStats {
	stats := PerformanceStats{QuizCount: len(records)}
	if len(records) == 0 {
		return stats
	}
	stats.RecentScores = make([]float64, len(records))
	for i, rec := range records {
		stats.RecentScores[i] = rec.ScorePercent
	}
	stats.AvgScore = averageOf(stats.RecentScores)
	return stats
}

func averageOf(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
