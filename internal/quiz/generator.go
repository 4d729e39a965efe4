package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pavelanni/companion/internal/model"
)

// generatedQuiz is the structure the generator is asked to return.
type generatedQuiz struct {
	Questions []generatedQuestion `json:"questions"`
}

type generatedQuestion struct {
	ID            int      `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Topic         string   `json:"topic"`
	Explanation   string   `json:"explanation"`
}

// Generate assembles an adaptive quiz: difficulty from recent performance,
// grounding context from the student's prior sessions, question content from
// the generator. The quiz record is persisted without submitted answers.
func (s *Service) Generate(ctx context.Context, studentID, subject string, numQuestions int) (model.QuizResponse, error) {
	student, err := s.store.GetStudent(studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.QuizResponse{}, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	if err != nil {
		return model.QuizResponse{}, fmt.Errorf("look up student: %w", err)
	}

	difficulty, stats, err := s.SelectDifficulty(student.ID)
	if err != nil {
		return model.QuizResponse{}, err
	}
	slog.Debug("selected difficulty", "student_id", studentID, "difficulty", difficulty,
		"avg_score", stats.AvgScore, "quiz_count", stats.QuizCount)

	fragments, err := s.retriever.Retrieve(ctx, "Key concepts in "+subject, studentID, s.th.TopFragments)
	if err != nil {
		return model.QuizResponse{}, fmt.Errorf("retrieve context: %w", err)
	}
	var docs []string
	for _, f := range fragments {
		docs = append(docs, f.Document)
	}
	contextText := strings.Join(docs, "\n")

	systemPrompt := buildQuizSystemPrompt(subject, difficulty, numQuestions, contextText)
	userPrompt := fmt.Sprintf("Generate %d %s difficulty multiple-choice questions for %s.", numQuestions, difficulty, subject)

	raw, err := s.gen.Complete(ctx, systemPrompt, userPrompt, 0.7, 2000)
	if err != nil {
		return model.QuizResponse{}, fmt.Errorf("generate quiz: %w", err)
	}

	questions, err := parseQuestions(raw, subject, difficulty, numQuestions)
	if err != nil {
		return model.QuizResponse{}, err
	}

	quizID := "quiz_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	rec := model.QuizRecord{
		QuizID:     quizID,
		StudentID:  student.ID,
		Subject:    subject,
		Difficulty: difficulty,
		Questions:  questions,
	}
	if _, err := s.store.CreateQuizRecord(rec); err != nil {
		return model.QuizResponse{}, fmt.Errorf("persist quiz: %w", err)
	}

	return model.QuizResponse{
		QuizID:       quizID,
		Subject:      subject,
		Questions:    questions,
		NumQuestions: len(questions),
		Difficulty:   difficulty,
		// One minute per question on average.
		EstimatedTimeMinutes: numQuestions,
	}, nil
}

// parseQuestions turns the generator's reply into normalized questions:
// fenced code-block wrappers are stripped, question IDs are renumbered
// sequentially from 1, and entries beyond numQuestions are dropped. Every
// entry must carry exactly four options and a correct-option label.
func parseQuestions(raw, subject string, difficulty model.Difficulty, numQuestions int) ([]model.Question, error) {
	cleaned := stripCodeFences(raw)

	var parsed generatedQuiz
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationParse, err)
	}
	if len(parsed.Questions) == 0 {
		return nil, fmt.Errorf("%w: reply contains no questions", ErrGenerationParse)
	}

	entries := parsed.Questions
	if len(entries) > numQuestions {
		entries = entries[:numQuestions]
	}

	questions := make([]model.Question, 0, len(entries))
	for i, q := range entries {
		if len(q.Options) != 4 {
			return nil, fmt.Errorf("%w: question %d has %d options, want 4", ErrGenerationParse, i+1, len(q.Options))
		}
		if q.CorrectAnswer == "" {
			return nil, fmt.Errorf("%w: question %d has no correct answer", ErrGenerationParse, i+1)
		}
		topic := q.Topic
		if topic == "" {
			topic = subject
		}
		questions = append(questions, model.Question{
			QuestionID:    i + 1,
			QuestionText:  q.Question,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Topic:         topic,
			Difficulty:    difficulty,
		})
	}
	return questions, nil
}

// stripCodeFences removes a surrounding markdown code block from a generator
// reply. Generators add them despite instructions not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func buildQuizSystemPrompt(subject string, difficulty model.Difficulty, numQuestions int, contextText string) string {
	if contextText == "" {
		contextText = "No previous context available"
	}
	var sb strings.Builder
	sb.WriteString("You are an expert tutor creating adaptive quiz questions.\n")
	fmt.Fprintf(&sb, "Generate %d multiple-choice questions for %s at %s difficulty level.\n\n", numQuestions, subject, difficulty)
	sb.WriteString("Context from student's previous learning:\n")
	sb.WriteString(contextText + "\n\n")
	sb.WriteString("Return ONLY valid JSON (no markdown, no code blocks) with this exact structure:\n")
	sb.WriteString(`{
    "questions": [
        {
            "id": 1,
            "question": "Question text here?",
            "options": [
                "A. First option",
                "B. Second option",
                "C. Third option",
                "D. Fourth option"
            ],
            "correct_answer": "A",
            "topic": "Specific topic within ` + subject + `",
            "explanation": "Brief explanation of correct answer"
        }
    ]
}`)
	sb.WriteString("\n\nRules:\n")
	sb.WriteString("- For EASY difficulty: Focus on fundamental concepts, definitions, basic applications\n")
	sb.WriteString("- For MEDIUM difficulty: Mix of concepts and basic application problems\n")
	sb.WriteString("- For HARD difficulty: Complex scenarios, multi-step problems, deep understanding required\n")
	sb.WriteString("- Each option must be realistic and plausible\n")
	sb.WriteString("- Avoid trick questions, focus on learning\n")
	sb.WriteString("- Ensure options are roughly same length\n")
	sb.WriteString("- Correct answer should be randomly distributed (not always same position)\n")
	return sb.String()
}
