package quiz

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/pavelanni/companion/internal/model"
)

// ScoreResult holds the outcome of grading a submitted quiz.
type ScoreResult struct {
	ScorePercent   float64 `json:"score_percent"`
	CorrectCount   int     `json:"correct_count"`
	TotalQuestions int     `json:"total_questions"`
	Feedback       string  `json:"feedback"`
}

// scoreAnswers grades submitted answers against the stored questions.
// Comparison is positional and case-insensitive; extra submitted answers are
// ignored and missing trailing answers count as incorrect. A quiz with no
// questions scores zero rather than faulting.
func scoreAnswers(questions []model.Question, submitted []string) ScoreResult {
	total := len(questions)
	correct := 0
	for i, answer := range submitted {
		if i >= total {
			break
		}
		if strings.EqualFold(answer, questions[i].CorrectAnswer) {
			correct++
		}
	}

	var percent float64
	if total > 0 {
		percent = round1(float64(correct) / float64(total) * 100)
	}

	return ScoreResult{
		ScorePercent:   percent,
		CorrectCount:   correct,
		TotalQuestions: total,
		Feedback:       feedbackFor(percent),
	}
}

// feedbackFor selects the qualitative feedback band for a score. The bands
// are distinct from the difficulty tier boundaries.
func feedbackFor(scorePercent float64) string {
	switch {
	case scorePercent >= 85:
		return fmt.Sprintf("Excellent work! You scored %.0f%% and truly mastered this material. Ready for a challenge?", scorePercent)
	case scorePercent >= 70:
		return fmt.Sprintf("Great job! You scored %.0f%% and have a solid understanding. Keep practicing!", scorePercent)
	case scorePercent >= 60:
		return fmt.Sprintf("Good effort! You scored %.0f%% and got the basics down. Review the topics you missed and try again.", scorePercent)
	default:
		return fmt.Sprintf("You scored %.0f%%. Let's focus on the fundamentals. Review the learning materials and practice more.", scorePercent)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Score grades a quiz without persisting anything. Scoring is a pure function
// of the stored questions and the submitted answers, so repeat calls with the
// same input produce the same result.
func (s *Service) Score(quizID string, answers []string) (ScoreResult, error) {
	rec, err := s.store.GetQuiz(quizID)
	if errors.Is(err, sql.ErrNoRows) {
		return ScoreResult{}, fmt.Errorf("%w: %s", ErrQuizNotFound, quizID)
	}
	if err != nil {
		return ScoreResult{}, fmt.Errorf("load quiz: %w", err)
	}
	return scoreAnswers(rec.Questions, answers), nil
}

// Submit grades a quiz, persists the result, and applies any mastery-driven
// goal completion in the same transaction, so a goal is never marked complete
// without its triggering quiz result being durably recorded.
func (s *Service) Submit(quizID string, answers []string) (model.QuizSubmissionResponse, error) {
	rec, err := s.store.GetQuiz(quizID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.QuizSubmissionResponse{}, fmt.Errorf("%w: %s", ErrQuizNotFound, quizID)
	}
	if err != nil {
		return model.QuizSubmissionResponse{}, fmt.Errorf("load quiz: %w", err)
	}

	result := scoreAnswers(rec.Questions, answers)

	// The mastery window must include the score being submitted, which is not
	// yet persisted, so it is passed through as a pending score.
	shouldComplete, goal, err := s.CheckAutoCompletion(rec.StudentID, rec.Subject, result.ScorePercent)
	if err != nil {
		return model.QuizSubmissionResponse{}, err
	}

	var completeGoalID *int64
	if shouldComplete {
		completeGoalID = &goal.ID
	}

	if err := s.store.SubmitQuizResult(rec.ID, answers, result.ScorePercent, result.CorrectCount, completeGoalID); err != nil {
		return model.QuizSubmissionResponse{}, fmt.Errorf("persist quiz result: %w", err)
	}

	resp := model.QuizSubmissionResponse{
		QuizID:         quizID,
		ScorePercent:   result.ScorePercent,
		CorrectCount:   result.CorrectCount,
		TotalQuestions: result.TotalQuestions,
		Feedback:       result.Feedback,
	}
	if shouldComplete {
		resp.GoalCompleted = true
		resp.GoalID = completeGoalID
		resp.CelebrationMessage = fmt.Sprintf("🎉 You've mastered %s! Ready for the next challenge? Check out our personalized recommendations!", rec.Subject)
		slog.Info("goal auto-completed", "goal_id", goal.ID, "student_id", rec.StudentID, "subject", rec.Subject)
	}
	return resp, nil
}
