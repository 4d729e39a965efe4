package model

import (
	"time"
)

// GoalStatus represents the lifecycle state of a learning goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
)

// Difficulty represents the adaptive quiz difficulty tier.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Role represents a conversation turn author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Student represents a student profile. The companion core reads it; profile
// fields are mutated externally as new quizzes complete.
type Student struct {
	ID              int64     `json:"id"`
	StudentID       string    `json:"student_id"`
	Name            string    `json:"name"`
	Grade           int       `json:"grade"`
	EngagementLevel string    `json:"engagement_level"`
	LearningPace    string    `json:"learning_pace"`
	AvgQuizScore    float64   `json:"avg_quiz_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// Goal represents a learning goal owned by a student.
type Goal struct {
	ID              int64      `json:"id"`
	StudentID       int64      `json:"student_id"`
	Subject         string     `json:"subject"`
	Description     string     `json:"description"`
	ProgressPercent float64    `json:"progress_percent"`
	Status          GoalStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	TargetDate      *time.Time `json:"target_date,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Question is a single multiple-choice quiz question. Immutable once generated.
type Question struct {
	QuestionID    int        `json:"question_id"`
	QuestionText  string     `json:"question_text"`
	Options       []string   `json:"options"`
	CorrectAnswer string     `json:"correct_answer"`
	Topic         string     `json:"topic"`
	Difficulty    Difficulty `json:"difficulty"`
}

// QuizRecord holds a generated quiz and, after submission, its result.
type QuizRecord struct {
	ID               int64      `json:"id"`
	QuizID           string     `json:"quiz_id"`
	StudentID        int64      `json:"student_id"`
	Subject          string     `json:"subject"`
	Difficulty       Difficulty `json:"difficulty"`
	Questions        []Question `json:"questions"`
	SubmittedAnswers []string   `json:"submitted_answers,omitempty"`
	ScorePercent     float64    `json:"score_percent"`
	CorrectCount     int        `json:"correct_count"`
	TotalQuestions   int        `json:"total_questions"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ConversationTurn is one appended entry in a student's conversation log.
// Confidence and Handoff are only meaningful on assistant turns.
type ConversationTurn struct {
	ID         int64     `json:"id"`
	StudentID  int64     `json:"student_id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence,omitempty"`
	Handoff    bool      `json:"handoff,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ContextFragment is a retrieved excerpt of a prior tutoring session.
// Produced per query, never persisted. Distance is the similarity distance
// reported by the vector index (lower means more similar).
type ContextFragment struct {
	TranscriptID string            `json:"transcript_id"`
	Document     string            `json:"document"`
	Metadata     map[string]string `json:"metadata"`
	Distance     float64           `json:"distance"`
}

// HistoryTurn is a conversation history entry as supplied by a chat request.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
