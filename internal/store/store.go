package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/companion/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		grade INTEGER NOT NULL DEFAULT 0,
		engagement_level TEXT NOT NULL DEFAULT 'moderate',
		learning_pace TEXT NOT NULL DEFAULT 'moderate',
		avg_quiz_score REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS goals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id INTEGER NOT NULL,
		subject TEXT NOT NULL,
		description TEXT NOT NULL,
		progress_percent REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL,
		target_date DATETIME,
		completed_at DATETIME,
		FOREIGN KEY (student_id) REFERENCES students(id)
	);

	CREATE TABLE IF NOT EXISTS quiz_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		quiz_id TEXT NOT NULL UNIQUE,
		student_id INTEGER NOT NULL,
		subject TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		questions TEXT NOT NULL,
		submitted_answers TEXT,
		score_percent REAL,
		correct_count INTEGER NOT NULL DEFAULT 0,
		total_questions INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (student_id) REFERENCES students(id)
	);

	CREATE TABLE IF NOT EXISTS companion_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversation_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		handoff INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (student_id) REFERENCES students(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertStudent stores a student profile.
func (s *Store) InsertStudent(st model.Student) (int64, error) {
	createdAt := st.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO students (student_id, name, grade, engagement_level, learning_pace, avg_quiz_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.StudentID, st.Name, st.Grade, st.EngagementLevel, st.LearningPace, st.AvgQuizScore, createdAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetStudent returns a student by public student ID (e.g. "S001").
func (s *Store) GetStudent(studentID string) (model.Student, error) {
	var st model.Student
	err := s.db.QueryRow(
		`SELECT id, student_id, name, grade, engagement_level, learning_pace, avg_quiz_score, created_at
		 FROM students WHERE student_id = ?`, studentID,
	).Scan(&st.ID, &st.StudentID, &st.Name, &st.Grade, &st.EngagementLevel, &st.LearningPace, &st.AvgQuizScore, &st.CreatedAt)
	return st, err
}

// StudentCount returns the number of students in the database.
func (s *Store) StudentCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM students`).Scan(&count)
	return count, err
}

// InsertGoal stores a learning goal.
func (s *Store) InsertGoal(g model.Goal) (int64, error) {
	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	status := g.Status
	if status == "" {
		status = model.GoalActive
	}
	res, err := s.db.Exec(
		`INSERT INTO goals (student_id, subject, description, progress_percent, status, created_at, target_date, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.StudentID, g.Subject, g.Description, g.ProgressPercent, status, createdAt, g.TargetDate, g.CompletedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanGoals(rows *sql.Rows) ([]model.Goal, error) {
	defer rows.Close()
	var goals []model.Goal
	for rows.Next() {
		var g model.Goal
		if err := rows.Scan(&g.ID, &g.StudentID, &g.Subject, &g.Description, &g.ProgressPercent, &g.Status, &g.CreatedAt, &g.TargetDate, &g.CompletedAt); err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// ActiveGoals returns a student's active goals.
func (s *Store) ActiveGoals(studentID int64) ([]model.Goal, error) {
	rows, err := s.db.Query(
		`SELECT id, student_id, subject, description, progress_percent, status, created_at, target_date, completed_at
		 FROM goals WHERE student_id = ? AND status = 'active' ORDER BY id`, studentID,
	)
	if err != nil {
		return nil, err
	}
	return scanGoals(rows)
}

// GoalsForStudent returns all of a student's goals.
func (s *Store) GoalsForStudent(studentID int64) ([]model.Goal, error) {
	rows, err := s.db.Query(
		`SELECT id, student_id, subject, description, progress_percent, status, created_at, target_date, completed_at
		 FROM goals WHERE student_id = ? ORDER BY id`, studentID,
	)
	if err != nil {
		return nil, err
	}
	return scanGoals(rows)
}

// ActiveGoalForSubject returns the student's active goal in a subject, or nil
// if there is none.
func (s *Store) ActiveGoalForSubject(studentID int64, subject string) (*model.Goal, error) {
	var g model.Goal
	err := s.db.QueryRow(
		`SELECT id, student_id, subject, description, progress_percent, status, created_at, target_date, completed_at
		 FROM goals WHERE student_id = ? AND subject = ? AND status = 'active' ORDER BY id LIMIT 1`,
		studentID, subject,
	).Scan(&g.ID, &g.StudentID, &g.Subject, &g.Description, &g.ProgressPercent, &g.Status, &g.CreatedAt, &g.TargetDate, &g.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateQuizRecord persists a freshly generated quiz without submitted answers.
func (s *Store) CreateQuizRecord(rec model.QuizRecord) (int64, error) {
	questionsJSON, err := json.Marshal(rec.Questions)
	if err != nil {
		return 0, fmt.Errorf("marshal questions: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO quiz_records (quiz_id, student_id, subject, difficulty, questions, total_questions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.QuizID, rec.StudentID, rec.Subject, rec.Difficulty, string(questionsJSON), len(rec.Questions), createdAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanQuiz(scan func(dest ...any) error) (model.QuizRecord, error) {
	var rec model.QuizRecord
	var questionsJSON string
	var answersJSON sql.NullString
	var score sql.NullFloat64
	err := scan(&rec.ID, &rec.QuizID, &rec.StudentID, &rec.Subject, &rec.Difficulty, &questionsJSON, &answersJSON, &score, &rec.CorrectCount, &rec.TotalQuestions, &rec.CreatedAt)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(questionsJSON), &rec.Questions); err != nil {
		return rec, fmt.Errorf("unmarshal questions: %w", err)
	}
	if answersJSON.Valid {
		if err := json.Unmarshal([]byte(answersJSON.String), &rec.SubmittedAnswers); err != nil {
			return rec, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	if score.Valid {
		rec.ScorePercent = score.Float64
	}
	return rec, nil
}

// GetQuiz returns a quiz record by its public quiz ID.
func (s *Store) GetQuiz(quizID string) (model.QuizRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, quiz_id, student_id, subject, difficulty, questions, submitted_answers, score_percent, correct_count, total_questions, created_at
		 FROM quiz_records WHERE quiz_id = ?`, quizID,
	)
	return scanQuiz(row.Scan)
}

// RecentQuizzes returns the most recent graded quiz records for a student,
// newest first. An empty subject matches all subjects. Ungraded records are
// excluded so rolling averages are computed over real results only.
func (s *Store) RecentQuizzes(studentID int64, subject string, limit int) ([]model.QuizRecord, error) {
	query := `SELECT id, quiz_id, student_id, subject, difficulty, questions, submitted_answers, score_percent, correct_count, total_questions, created_at
		 FROM quiz_records WHERE student_id = ? AND score_percent IS NOT NULL`
	args := []any{studentID}
	if subject != "" {
		query += ` AND subject = ?`
		args = append(args, subject)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.QuizRecord
	for rows.Next() {
		rec, err := scanQuiz(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GradedQuizStats returns the average score and count over all graded quizzes
// of a student.
func (s *Store) GradedQuizStats(studentID int64) (avg float64, count int, err error) {
	err = s.db.QueryRow(
		`SELECT COALESCE(AVG(score_percent), 0), COUNT(*) FROM quiz_records
		 WHERE student_id = ? AND score_percent IS NOT NULL`, studentID,
	).Scan(&avg, &count)
	return avg, count, err
}

// SubmitQuizResult records the submitted answers and score for a quiz and, when
// completeGoalID is non-nil, marks that goal completed in the same transaction.
// The goal update and the score update commit together or not at all.
func (s *Store) SubmitQuizResult(id int64, answers []string, scorePercent float64, correctCount int, completeGoalID *int64) error {
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE quiz_records SET submitted_answers = ?, score_percent = ?, correct_count = ? WHERE id = ?`,
		string(answersJSON), scorePercent, correctCount, id,
	)
	if err != nil {
		return err
	}

	if completeGoalID != nil {
		_, err = tx.Exec(
			`UPDATE goals SET status = 'completed', progress_percent = 100, completed_at = ? WHERE id = ? AND status = 'active'`,
			time.Now(), *completeGoalID,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AppendConversationTurn appends a turn to a student's conversation log.
func (s *Store) AppendConversationTurn(turn model.ConversationTurn) (int64, error) {
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO conversation_turns (student_id, role, content, confidence, handoff, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.StudentID, turn.Role, turn.Content, turn.Confidence, turn.Handoff, createdAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentConversationTurns returns the last limit turns for a student in
// chronological order.
func (s *Store) RecentConversationTurns(studentID int64, limit int) ([]model.ConversationTurn, error) {
	rows, err := s.db.Query(
		`SELECT id, student_id, role, content, confidence, handoff, created_at FROM (
			SELECT id, student_id, role, content, confidence, handoff, created_at
			FROM conversation_turns WHERE student_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id`, studentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var turns []model.ConversationTurn
	for rows.Next() {
		var t model.ConversationTurn
		if err := rows.Scan(&t.ID, &t.StudentID, &t.Role, &t.Content, &t.Confidence, &t.Handoff, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// CountUserTurns returns how many user turns a student has logged, optionally
// restricted to turns at or after since.
func (s *Store) CountUserTurns(studentID int64, since *time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM conversation_turns WHERE student_id = ? AND role = 'user'`
	args := []any{studentID}
	if since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *since)
	}
	var count int
	err := s.db.QueryRow(query, args...).Scan(&count)
	return count, err
}
