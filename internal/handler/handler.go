package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/companion/internal/agent"
	"github.com/pavelanni/companion/internal/model"
	"github.com/pavelanni/companion/internal/quiz"
	"github.com/pavelanni/companion/internal/store"
)

const defaultNumQuestions = 5

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store *store.Store
	agent *agent.Agent
	quiz  *quiz.Service
}

// New creates a new Handler.
func New(s *store.Store, a *agent.Agent, q *quiz.Service) *Handler {
	return &Handler{store: s, agent: a, quiz: q}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Post("/chat", h.handleChat)
	r.Post("/practice", h.handleGenerateQuiz)
	r.Post("/practice/{quizID}/submit", h.handleSubmitQuiz)
	r.Get("/dashboard/student/{studentID}/stats", h.handleStudentStats)
	r.Get("/dashboard/student/{studentID}/goals", h.handleStudentGoals)
	r.Get("/dashboard/student/{studentID}/export", h.handleStudentExport)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "AI Study Companion API is running",
	})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StudentID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "student_id and message are required")
		return
	}

	resp, err := h.agent.Chat(r.Context(), req)
	if errors.Is(err, agent.ErrStudentNotFound) {
		writeError(w, http.StatusNotFound, "Student "+req.StudentID+" not found")
		return
	}
	if err != nil {
		slog.Error("chat turn failed", "student_id", req.StudentID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error generating response")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	var req model.QuizGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StudentID == "" || req.Subject == "" {
		writeError(w, http.StatusBadRequest, "student_id and subject are required")
		return
	}
	if req.NumQuestions <= 0 {
		req.NumQuestions = defaultNumQuestions
	}

	resp, err := h.quiz.Generate(r.Context(), req.StudentID, req.Subject, req.NumQuestions)
	switch {
	case errors.Is(err, quiz.ErrStudentNotFound):
		writeError(w, http.StatusNotFound, "Student "+req.StudentID+" not found")
		return
	case errors.Is(err, quiz.ErrGenerationParse):
		slog.Error("quiz parse failed", "student_id", req.StudentID, "error", err)
		writeError(w, http.StatusBadGateway, "Error generating quiz: invalid generator output")
		return
	case err != nil:
		slog.Error("quiz generation failed", "student_id", req.StudentID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error generating quiz")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")

	var req model.QuizSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.quiz.Submit(quizID, req.Answers)
	if errors.Is(err, quiz.ErrQuizNotFound) {
		writeError(w, http.StatusNotFound, "Quiz "+quizID+" not found")
		return
	}
	if err != nil {
		slog.Error("quiz submission failed", "quiz_id", quizID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error submitting quiz")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStudentStats(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")

	student, err := h.store.GetStudent(studentID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Student not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	totalSessions, err := h.store.CountUserTurns(student.ID, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	weekAgo := time.Now().AddDate(0, 0, -7)
	streak, err := h.store.CountUserTurns(student.ID, &weekAgo)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	goals, err := h.store.GoalsForStudent(student.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var active, completed int
	var activeProgress float64
	for _, g := range goals {
		switch g.Status {
		case model.GoalActive:
			active++
			activeProgress += g.ProgressPercent
		case model.GoalCompleted:
			completed++
		}
	}
	var avgProgress float64
	if active > 0 {
		avgProgress = activeProgress / float64(active)
	}

	avgScore, quizCount, err := h.store.GradedQuizStats(student.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.StudentStats{
		StudentID:            studentID,
		TotalSessions:        totalSessions,
		SessionStreak:        streak,
		GoalsProgressPercent: round1(avgProgress),
		ActiveGoals:          active,
		CompletedGoals:       completed,
		AvgQuizScore:         round1(avgScore),
		TotalQuizzes:         quizCount,
	})
}

func (h *Handler) handleStudentGoals(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")

	student, err := h.store.GetStudent(studentID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Student not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	goals, err := h.store.GoalsForStudent(student.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := model.StudentGoals{
		StudentID:      studentID,
		ActiveGoals:    []model.Goal{},
		CompletedGoals: []model.Goal{},
	}
	for _, g := range goals {
		switch g.Status {
		case model.GoalActive:
			resp.ActiveGoals = append(resp.ActiveGoals, g)
		case model.GoalCompleted:
			resp.CompletedGoals = append(resp.CompletedGoals, g)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStudentExport(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")

	export, err := h.store.ExportStudent(studentID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Student not found")
		return
	}
	if err != nil {
		slog.Error("student export failed", "student_id", studentID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error exporting student record")
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
