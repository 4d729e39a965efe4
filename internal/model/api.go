package model

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	StudentID string        `json:"student_id"`
	Message   string        `json:"message"`
	History   []HistoryTurn `json:"history,omitempty"`
}

// ChatResponse is the result of a conversational turn.
type ChatResponse struct {
	Response        string  `json:"response"`
	ConfidenceScore float64 `json:"confidence_score"`
	ShouldHandoff   bool    `json:"should_handoff"`
	HandoffMessage  string  `json:"handoff_message,omitempty"`
}

// QuizGenerationRequest is the body of POST /practice.
type QuizGenerationRequest struct {
	StudentID    string `json:"student_id"`
	Subject      string `json:"subject"`
	NumQuestions int    `json:"num_questions"`
}

// QuizResponse describes a freshly generated quiz.
type QuizResponse struct {
	QuizID               string     `json:"quiz_id"`
	Subject              string     `json:"subject"`
	Questions            []Question `json:"questions"`
	NumQuestions         int        `json:"num_questions"`
	Difficulty           Difficulty `json:"difficulty"`
	EstimatedTimeMinutes int        `json:"estimated_time_minutes"`
}

// QuizSubmissionRequest is the body of POST /practice/{quizID}/submit.
// Answers are option labels ("A", "B", ...) in question order.
type QuizSubmissionRequest struct {
	Answers []string `json:"answers"`
}

// QuizSubmissionResponse carries the score plus any goal auto-completion.
type QuizSubmissionResponse struct {
	QuizID             string  `json:"quiz_id"`
	ScorePercent       float64 `json:"score_percent"`
	CorrectCount       int     `json:"correct_count"`
	TotalQuestions     int     `json:"total_questions"`
	Feedback           string  `json:"feedback"`
	GoalCompleted      bool    `json:"goal_completed"`
	GoalID             *int64  `json:"goal_id,omitempty"`
	CelebrationMessage string  `json:"celebration_message,omitempty"`
}

// StudentStats is the dashboard summary for one student.
type StudentStats struct {
	StudentID            string  `json:"student_id"`
	TotalSessions        int     `json:"total_sessions"`
	SessionStreak        int     `json:"session_streak"`
	GoalsProgressPercent float64 `json:"goals_progress_percent"`
	ActiveGoals          int     `json:"active_goals"`
	CompletedGoals       int     `json:"completed_goals"`
	AvgQuizScore         float64 `json:"avg_quiz_score"`
	TotalQuizzes         int     `json:"total_quizzes"`
}

// StudentGoals groups a student's goals by status for the dashboard.
type StudentGoals struct {
	StudentID      string `json:"student_id"`
	ActiveGoals    []Goal `json:"active_goals"`
	CompletedGoals []Goal `json:"completed_goals"`
}
