package model

import "time"

// StudentExport is the top-level JSON structure for a full export of one
// student's learning record.
type StudentExport struct {
	StudentID    string            `json:"student_id"`
	Name         string            `json:"name"`
	Grade        int               `json:"grade"`
	ExportedAt   time.Time         `json:"exported_at"`
	Goals        []Goal            `json:"goals"`
	Quizzes      []QuizResult      `json:"quizzes"`
	Conversation []ConversationMsg `json:"conversation"`
}

// QuizResult holds one quiz attempt for export. Ungraded quizzes carry a nil
// score.
type QuizResult struct {
	QuizID         string     `json:"quiz_id"`
	Subject        string     `json:"subject"`
	Difficulty     Difficulty `json:"difficulty"`
	TotalQuestions int        `json:"total_questions"`
	CorrectCount   int        `json:"correct_count"`
	ScorePercent   *float64   `json:"score_percent,omitempty"`
	TakenAt        time.Time  `json:"taken_at"`
}

// ConversationMsg is a single message in an exported conversation.
type ConversationMsg struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}
