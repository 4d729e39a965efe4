package model

// StudentImport is used for loading seed students from JSON.
type StudentImport struct {
	StudentID       string       `json:"student_id"`
	Name            string       `json:"name"`
	Grade           int          `json:"grade"`
	EngagementLevel string       `json:"engagement_level"`
	LearningPace    string       `json:"learning_pace"`
	AvgQuizScore    float64      `json:"avg_quiz_score"`
	Goals           []GoalImport `json:"goals,omitempty"`
}

// GoalImport is used for loading seed goals from JSON.
type GoalImport struct {
	Subject         string  `json:"subject"`
	Description     string  `json:"description"`
	ProgressPercent float64 `json:"progress_percent"`
}
