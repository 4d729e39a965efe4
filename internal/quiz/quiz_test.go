package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pavelanni/companion/internal/model"
	"github.com/pavelanni/companion/internal/store"
)

type fakeGenerator struct {
	reply string
	err   error

	lastSystem string
	lastPrompt string
}

func (f *fakeGenerator) Complete(_ context.Context, systemPrompt, userPrompt string, _ float32, _ int) (string, error) {
	f.lastSystem = systemPrompt
	f.lastPrompt = userPrompt
	return f.reply, f.err
}

type fakeRetriever struct {
	fragments []model.ContextFragment
}

func (f *fakeRetriever) Retrieve(_ context.Context, _, _ string, _ int) ([]model.ContextFragment, error) {
	return f.fragments, nil
}

func newTestService(t *testing.T, gen Generator) (*Service, *store.Store, int64) {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	studentID, err := s.InsertStudent(model.Student{
		StudentID: "S001",
		Name:      "Ava",
		Grade:     8,
	})
	if err != nil {
		t.Fatalf("InsertStudent: %v", err)
	}
	return New(s, &fakeRetriever{}, gen, model.DefaultThresholds()), s, studentID
}

// insertGradedQuiz stores a quiz record and immediately grades it at the
// given score.
func insertGradedQuiz(t *testing.T, s *store.Store, studentID int64, subject string, score float64) {
	t.Helper()
	id, err := s.CreateQuizRecord(model.QuizRecord{
		QuizID:     fmt.Sprintf("quiz_%s_%d_%.0f", subject, studentID, score),
		StudentID:  studentID,
		Subject:    subject,
		Difficulty: model.DifficultyMedium,
		Questions:  sampleQuestions(),
	})
	if err != nil {
		t.Fatalf("CreateQuizRecord: %v", err)
	}
	if err := s.SubmitQuizResult(id, []string{"A"}, score, 1, nil); err != nil {
		t.Fatalf("SubmitQuizResult: %v", err)
	}
}

func sampleQuestions() []model.Question {
	return []model.Question{
		{
			QuestionID:    1,
			QuestionText:  "What charge does an electron carry?",
			Options:       []string{"A. Negative", "B. Positive", "C. Neutral", "D. Variable"},
			CorrectAnswer: "A",
			Topic:         "Atomic Structure",
			Difficulty:    model.DifficultyMedium,
		},
	}
}

func TestTierFor(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeGenerator{})

	tests := []struct {
		avg  float64
		want model.Difficulty
	}{
		{0, model.DifficultyEasy},
		{59.9, model.DifficultyEasy},
		{60.0, model.DifficultyMedium},
		{79.9, model.DifficultyMedium},
		{80.0, model.DifficultyHard},
		{100, model.DifficultyHard},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.1f", tt.avg), func(t *testing.T) {
			if got := svc.tierFor(tt.avg); got != tt.want {
				t.Errorf("tierFor(%v) = %v, want %v", tt.avg, got, tt.want)
			}
		})
	}
}

func TestSelectDifficulty(t *testing.T) {
	t.Run("cold start defaults to medium", func(t *testing.T) {
		svc, _, studentID := newTestService(t, &fakeGenerator{})
		diff, stats, err := svc.SelectDifficulty(studentID)
		if err != nil {
			t.Fatalf("SelectDifficulty: %v", err)
		}
		if diff != model.DifficultyMedium {
			t.Errorf("difficulty = %v, want medium", diff)
		}
		if stats.QuizCount != 0 || stats.AvgScore != 0 {
			t.Errorf("expected zero stats, got %+v", stats)
		}
	})

	t.Run("rolling window averages the most recent quizzes", func(t *testing.T) {
		svc, s, studentID := newTestService(t, &fakeGenerator{})
		// An old low score that the five-quiz window must exclude.
		insertGradedQuiz(t, s, studentID, "Old", 10)
		for i := 0; i < 5; i++ {
			insertGradedQuiz(t, s, studentID, fmt.Sprintf("Sub%d", i), 90)
		}

		diff, stats, err := svc.SelectDifficulty(studentID)
		if err != nil {
			t.Fatalf("SelectDifficulty: %v", err)
		}
		if diff != model.DifficultyHard {
			t.Errorf("difficulty = %v, want hard", diff)
		}
		if stats.QuizCount != 5 || stats.AvgScore != 90 {
			t.Errorf("stats = %+v, want 5 quizzes averaging 90", stats)
		}
	})
}

func TestScoreAnswers(t *testing.T) {
	questions := func(correct ...string) []model.Question {
		qs := make([]model.Question, len(correct))
		for i, c := range correct {
			qs[i] = model.Question{QuestionID: i + 1, CorrectAnswer: c}
		}
		return qs
	}

	tests := []struct {
		name        string
		questions   []model.Question
		submitted   []string
		wantCorrect int
		wantPercent float64
	}{
		{
			name:        "all correct",
			questions:   questions("A", "B", "C"),
			submitted:   []string{"A", "B", "C"},
			wantCorrect: 3,
			wantPercent: 100,
		},
		{
			name:        "three of five",
			questions:   questions("A", "A", "C", "D", "B"),
			submitted:   []string{"A", "B", "C", "D", "A"},
			wantCorrect: 3,
			wantPercent: 60,
		},
		{
			name:        "case insensitive",
			questions:   questions("A", "B"),
			submitted:   []string{"a", "b"},
			wantCorrect: 2,
			wantPercent: 100,
		},
		{
			name:        "missing trailing answers count as wrong",
			questions:   questions("A", "B", "C"),
			submitted:   []string{"A"},
			wantCorrect: 1,
			wantPercent: 33.3,
		},
		{
			name:        "extra answers ignored",
			questions:   questions("A"),
			submitted:   []string{"A", "B", "C"},
			wantCorrect: 1,
			wantPercent: 100,
		},
		{
			name:        "no questions scores zero",
			questions:   nil,
			submitted:   []string{"A"},
			wantCorrect: 0,
			wantPercent: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreAnswers(tt.questions, tt.submitted)
			if got.CorrectCount != tt.wantCorrect {
				t.Errorf("correct = %d, want %d", got.CorrectCount, tt.wantCorrect)
			}
			if got.ScorePercent != tt.wantPercent {
				t.Errorf("percent = %v, want %v", got.ScorePercent, tt.wantPercent)
			}
			if got.TotalQuestions != len(tt.questions) {
				t.Errorf("total = %d, want %d", got.TotalQuestions, len(tt.questions))
			}
		})
	}
}

func TestFeedbackBands(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "Excellent work"},
		{85, "Excellent work"},
		{84.9, "Great job"},
		{70, "Great job"},
		{69.9, "Good effort"},
		{60, "Good effort"},
		{59.9, "fundamentals"},
		{0, "fundamentals"},
	}
	for _, tt := range tests {
		if got := feedbackFor(tt.score); !strings.Contains(got, tt.want) {
			t.Errorf("feedbackFor(%v) = %q, want substring %q", tt.score, got, tt.want)
		}
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json\n{\"a\":1}\n```\n  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.in); got != tt.want {
				t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseQuestions(t *testing.T) {
	valid := `{"questions":[
		{"id":7,"question":"Q1?","options":["A. a","B. b","C. c","D. d"],"correct_answer":"A","topic":"Bonds"},
		{"id":9,"question":"Q2?","options":["A. a","B. b","C. c","D. d"],"correct_answer":"C","topic":""}
	]}`

	t.Run("normalizes ids and topics", func(t *testing.T) {
		qs, err := parseQuestions(valid, "Chemistry", model.DifficultyMedium, 5)
		if err != nil {
			t.Fatalf("parseQuestions: %v", err)
		}
		if len(qs) != 2 {
			t.Fatalf("got %d questions, want 2", len(qs))
		}
		if qs[0].QuestionID != 1 || qs[1].QuestionID != 2 {
			t.Errorf("ids not renumbered: %d, %d", qs[0].QuestionID, qs[1].QuestionID)
		}
		if qs[0].Topic != "Bonds" {
			t.Errorf("topic = %q, want Bonds", qs[0].Topic)
		}
		if qs[1].Topic != "Chemistry" {
			t.Errorf("empty topic should default to subject, got %q", qs[1].Topic)
		}
		if qs[0].Difficulty != model.DifficultyMedium {
			t.Errorf("difficulty = %v", qs[0].Difficulty)
		}
	})

	t.Run("fenced reply parses", func(t *testing.T) {
		if _, err := parseQuestions("```json\n"+valid+"\n```", "Chemistry", model.DifficultyMedium, 5); err != nil {
			t.Fatalf("parseQuestions: %v", err)
		}
	})

	t.Run("extra questions are truncated", func(t *testing.T) {
		qs, err := parseQuestions(valid, "Chemistry", model.DifficultyMedium, 1)
		if err != nil {
			t.Fatalf("parseQuestions: %v", err)
		}
		if len(qs) != 1 {
			t.Errorf("got %d questions, want 1", len(qs))
		}
	})

	t.Run("invalid replies", func(t *testing.T) {
		invalid := []struct {
			name string
			in   string
		}{
			{"not json", "Here are your questions!"},
			{"empty list", `{"questions":[]}`},
			{"wrong option count", `{"questions":[{"id":1,"question":"Q?","options":["A. a","B. b"],"correct_answer":"A"}]}`},
			{"missing correct answer", `{"questions":[{"id":1,"question":"Q?","options":["A. a","B. b","C. c","D. d"],"correct_answer":""}]}`},
		}
		for _, tt := range invalid {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := parseQuestions(tt.in, "Chemistry", model.DifficultyMedium, 5); !errors.Is(err, ErrGenerationParse) {
					t.Errorf("expected ErrGenerationParse, got %v", err)
				}
			})
		}
	})
}

func TestGenerate(t *testing.T) {
	reply := `{"questions":[
		{"id":1,"question":"Q1?","options":["A. a","B. b","C. c","D. d"],"correct_answer":"A","topic":"Bonds"},
		{"id":2,"question":"Q2?","options":["A. a","B. b","C. c","D. d"],"correct_answer":"B","topic":"Bonds"}
	]}`
	gen := &fakeGenerator{reply: reply}
	svc, s, _ := newTestService(t, gen)

	resp, err := svc.Generate(context.Background(), "S001", "Chemistry", 2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !strings.HasPrefix(resp.QuizID, "quiz_") || len(resp.QuizID) != len("quiz_")+8 {
		t.Errorf("quiz id = %q, want quiz_ prefix with 8 hex chars", resp.QuizID)
	}
	if resp.NumQuestions != 2 || len(resp.Questions) != 2 {
		t.Errorf("question count = %d/%d, want 2", resp.NumQuestions, len(resp.Questions))
	}
	if resp.Difficulty != model.DifficultyMedium {
		t.Errorf("difficulty = %v, want medium cold start", resp.Difficulty)
	}
	if resp.EstimatedTimeMinutes != 2 {
		t.Errorf("estimated time = %d, want 2", resp.EstimatedTimeMinutes)
	}

	// The quiz is persisted and retrievable for submission.
	rec, err := s.GetQuiz(resp.QuizID)
	if err != nil {
		t.Fatalf("GetQuiz: %v", err)
	}
	if len(rec.Questions) != 2 || rec.Subject != "Chemistry" {
		t.Errorf("stored record = %+v", rec)
	}
}

func TestGenerateUnknownStudent(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeGenerator{reply: "{}"})
	if _, err := svc.Generate(context.Background(), "S999", "Chemistry", 5); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("expected ErrStudentNotFound, got %v", err)
	}
}

func TestGenerateParseFailure(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeGenerator{reply: "Sorry, I can't do that."})
	if _, err := svc.Generate(context.Background(), "S001", "Chemistry", 5); !errors.Is(err, ErrGenerationParse) {
		t.Errorf("expected ErrGenerationParse, got %v", err)
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	svc, s, studentID := newTestService(t, &fakeGenerator{})
	if _, err := s.CreateQuizRecord(model.QuizRecord{
		QuizID:    "quiz_abcd1234",
		StudentID: studentID,
		Subject:   "Chemistry",
		Questions: sampleQuestions(),
	}); err != nil {
		t.Fatalf("CreateQuizRecord: %v", err)
	}

	first, err := svc.Score("quiz_abcd1234", []string{"A"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	second, err := svc.Score("quiz_abcd1234", []string{"A"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if first != second {
		t.Errorf("repeat scoring diverged: %+v vs %+v", first, second)
	}
	if first.ScorePercent != 100 {
		t.Errorf("score = %v, want 100", first.ScorePercent)
	}
}

func TestSubmitUnknownQuiz(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeGenerator{})
	if _, err := svc.Submit("quiz_missing0", []string{"A"}); !errors.Is(err, ErrQuizNotFound) {
		t.Errorf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestCheckAutoCompletion(t *testing.T) {
	t.Run("single record never completes", func(t *testing.T) {
		svc, s, studentID := newTestService(t, &fakeGenerator{})
		if _, err := s.InsertGoal(model.Goal{StudentID: studentID, Subject: "Chemistry", Description: "Master bonds"}); err != nil {
			t.Fatalf("InsertGoal: %v", err)
		}

		complete, goal, err := svc.CheckAutoCompletion(studentID, "Chemistry", 100)
		if err != nil {
			t.Fatalf("CheckAutoCompletion: %v", err)
		}
		if complete || goal != nil {
			t.Error("goal completed with a single perfect score")
		}
	})

	t.Run("two perfect scores complete the goal", func(t *testing.T) {
		svc, s, studentID := newTestService(t, &fakeGenerator{})
		goalID, err := s.InsertGoal(model.Goal{StudentID: studentID, Subject: "Chemistry", Description: "Master bonds"})
		if err != nil {
			t.Fatalf("InsertGoal: %v", err)
		}
		insertGradedQuiz(t, s, studentID, "Chemistry", 100)

		complete, goal, err := svc.CheckAutoCompletion(studentID, "Chemistry", 100)
		if err != nil {
			t.Fatalf("CheckAutoCompletion: %v", err)
		}
		if !complete || goal == nil {
			t.Fatal("expected goal completion")
		}
		if goal.ID != goalID {
			t.Errorf("goal id = %d, want %d", goal.ID, goalID)
		}
	})

	t.Run("average below mastery does not complete", func(t *testing.T) {
		svc, s, studentID := newTestService(t, &fakeGenerator{})
		if _, err := s.InsertGoal(model.Goal{StudentID: studentID, Subject: "Chemistry", Description: "Master bonds"}); err != nil {
			t.Fatalf("InsertGoal: %v", err)
		}
		insertGradedQuiz(t, s, studentID, "Chemistry", 90)
		insertGradedQuiz(t, s, studentID, "Chemistry", 70)

		complete, _, err := svc.CheckAutoCompletion(studentID, "Chemistry", 90)
		if err != nil {
			t.Fatalf("CheckAutoCompletion: %v", err)
		}
		if complete {
			t.Error("goal completed below the mastery average")
		}
	})

	t.Run("no active goal means no completion", func(t *testing.T) {
		svc, s, studentID := newTestService(t, &fakeGenerator{})
		insertGradedQuiz(t, s, studentID, "Chemistry", 100)

		complete, _, err := svc.CheckAutoCompletion(studentID, "Chemistry", 100)
		if err != nil {
			t.Fatalf("CheckAutoCompletion: %v", err)
		}
		if complete {
			t.Error("completion reported without an active goal")
		}
	})

	t.Run("other subjects do not count", func(t *testing.T) {
		svc, s, studentID := newTestService(t, &fakeGenerator{})
		if _, err := s.InsertGoal(model.Goal{StudentID: studentID, Subject: "Chemistry", Description: "Master bonds"}); err != nil {
			t.Fatalf("InsertGoal: %v", err)
		}
		insertGradedQuiz(t, s, studentID, "Algebra", 100)

		complete, _, err := svc.CheckAutoCompletion(studentID, "Chemistry", 100)
		if err != nil {
			t.Fatalf("CheckAutoCompletion: %v", err)
		}
		if complete {
			t.Error("quiz from another subject counted toward mastery")
		}
	})
}

func TestSubmitCompletesGoal(t *testing.T) {
	svc, s, studentID := newTestService(t, &fakeGenerator{})
	goalID, err := s.InsertGoal(model.Goal{StudentID: studentID, Subject: "Chemistry", Description: "Master bonds", ProgressPercent: 60})
	if err != nil {
		t.Fatalf("InsertGoal: %v", err)
	}
	insertGradedQuiz(t, s, studentID, "Chemistry", 100)

	if _, err := s.CreateQuizRecord(model.QuizRecord{
		QuizID:    "quiz_deadbeef",
		StudentID: studentID,
		Subject:   "Chemistry",
		Questions: sampleQuestions(),
	}); err != nil {
		t.Fatalf("CreateQuizRecord: %v", err)
	}

	resp, err := svc.Submit("quiz_deadbeef", []string{"A"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if resp.ScorePercent != 100 || resp.CorrectCount != 1 {
		t.Errorf("score = %v/%d, want 100/1", resp.ScorePercent, resp.CorrectCount)
	}
	if !resp.GoalCompleted {
		t.Fatal("expected goal completion")
	}
	if resp.GoalID == nil || *resp.GoalID != goalID {
		t.Errorf("goal id = %v, want %d", resp.GoalID, goalID)
	}
	if !strings.Contains(resp.CelebrationMessage, "Chemistry") {
		t.Errorf("celebration message = %q", resp.CelebrationMessage)
	}

	goal, err := s.ActiveGoalForSubject(studentID, "Chemistry")
	if err != nil {
		t.Fatalf("ActiveGoalForSubject: %v", err)
	}
	if goal != nil {
		t.Error("goal still active after completion")
	}
}
