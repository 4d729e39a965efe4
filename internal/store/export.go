package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pavelanni/companion/internal/model"
)

// ExportStudent builds a full export of one student's learning record: goals,
// quiz attempts (graded or not), and the complete conversation log.
func (s *Store) ExportStudent(publicID string) (model.StudentExport, error) {
	student, err := s.GetStudent(publicID)
	if err != nil {
		return model.StudentExport{}, err
	}

	goals, err := s.GoalsForStudent(student.ID)
	if err != nil {
		return model.StudentExport{}, fmt.Errorf("load goals: %w", err)
	}

	quizzes, err := s.exportQuizzes(student.ID)
	if err != nil {
		return model.StudentExport{}, fmt.Errorf("load quizzes: %w", err)
	}

	conversation, err := s.exportConversation(student.ID)
	if err != nil {
		return model.StudentExport{}, fmt.Errorf("load conversation: %w", err)
	}

	return model.StudentExport{
		StudentID:    student.StudentID,
		Name:         student.Name,
		Grade:        student.Grade,
		ExportedAt:   time.Now().UTC(),
		Goals:        goals,
		Quizzes:      quizzes,
		Conversation: conversation,
	}, nil
}

func (s *Store) exportQuizzes(studentID int64) ([]model.QuizResult, error) {
	rows, err := s.db.Query(
		`SELECT quiz_id, subject, difficulty, total_questions, correct_count, score_percent, created_at
		 FROM quiz_records WHERE student_id = ? ORDER BY created_at ASC, id ASC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []model.QuizResult
	for rows.Next() {
		var q model.QuizResult
		var score sql.NullFloat64
		if err := rows.Scan(&q.QuizID, &q.Subject, &q.Difficulty, &q.TotalQuestions, &q.CorrectCount, &score, &q.TakenAt); err != nil {
			return nil, err
		}
		if score.Valid {
			q.ScorePercent = &score.Float64
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

func (s *Store) exportConversation(studentID int64) ([]model.ConversationMsg, error) {
	rows, err := s.db.Query(
		`SELECT role, content, created_at FROM conversation_turns
		 WHERE student_id = ? ORDER BY id ASC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.ConversationMsg
	for rows.Next() {
		var m model.ConversationMsg
		if err := rows.Scan(&m.Role, &m.Content, &m.At); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
