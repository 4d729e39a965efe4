// Package agent implements the conversational turn of the study companion:
// context retrieval, prompt assembly, answer generation, confidence scoring,
// and the human-handoff decision.
package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/companion/internal/model"
	"github.com/pavelanni/companion/internal/store"
)

// ErrStudentNotFound is returned when the requested student does not exist.
var ErrStudentNotFound = errors.New("student not found")

const apologyText = "I apologize, but I'm having trouble processing your request right now. Please try again in a moment."

// Generator produces natural-language text from a prompt pair. Implemented by
// llm.Client; test fakes implement it directly.
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int) (string, error)
}

// Retriever returns student-scoped context fragments for a query. Implemented
// by rag.Index.
type Retriever interface {
	Retrieve(ctx context.Context, query, studentID string, topK int) ([]model.ContextFragment, error)
}

// Agent orchestrates a single conversational turn.
type Agent struct {
	store     *store.Store
	retriever Retriever
	gen       Generator
	eval      *Evaluator
	th        model.Thresholds
}

// New creates an Agent with explicit collaborator handles.
func New(st *store.Store, r Retriever, g Generator, th model.Thresholds) *Agent {
	return &Agent{
		store:     st,
		retriever: r,
		gen:       g,
		eval:      NewEvaluator(th),
		th:        th,
	}
}

// Chat runs one conversational turn: profile lookup, retrieval, prompt
// assembly, generation, evaluation. Generation failures degrade to a fixed
// apology with forced handoff; only an unknown student or an infrastructure
// failure before generation is reported as an error.
func (a *Agent) Chat(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	student, err := a.store.GetStudent(req.StudentID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ChatResponse{}, fmt.Errorf("%w: %s", ErrStudentNotFound, req.StudentID)
	}
	if err != nil {
		return model.ChatResponse{}, fmt.Errorf("look up student: %w", err)
	}

	goals, err := a.store.ActiveGoals(student.ID)
	if err != nil {
		return model.ChatResponse{}, fmt.Errorf("load goals: %w", err)
	}

	history := req.History
	if len(history) == 0 {
		history = a.loadHistory(student.ID)
	}

	fragments, err := a.retriever.Retrieve(ctx, req.Message, req.StudentID, a.th.TopFragments)
	if err != nil {
		return model.ChatResponse{}, fmt.Errorf("retrieve context: %w", err)
	}

	prompt := BuildPrompt(student, goals, fragments, history, req.Message, a.th)

	raw, err := a.gen.Complete(ctx, companionSystemPrompt, prompt, 0.7, 300)
	if err != nil {
		slog.Error("generation failed", "student_id", req.StudentID, "error", err)
		resp := model.ChatResponse{
			Response:        apologyText,
			ConfidenceScore: 0,
			ShouldHandoff:   true,
			HandoffMessage:  fmt.Sprintf("Error: %v", err),
		}
		a.logTurn(student.ID, req.Message, resp)
		return resp, nil
	}
	answer := strings.TrimSpace(raw)

	confidence := a.eval.Confidence(answer, fragments)
	shouldHandoff, reason := a.eval.Handoff(req.Message, history, confidence)

	// The handoff reason is appended, never substituted for the answer.
	final := answer
	if shouldHandoff {
		final = answer + "\n\n" + reason
	}

	resp := model.ChatResponse{
		Response:        final,
		ConfidenceScore: confidence,
		ShouldHandoff:   shouldHandoff,
	}
	if shouldHandoff {
		resp.HandoffMessage = reason
	}

	a.logTurn(student.ID, req.Message, resp)
	return resp, nil
}

// loadHistory falls back to the stored conversation log when a request carries
// no explicit history. Failures leave history empty.
func (a *Agent) loadHistory(studentID int64) []model.HistoryTurn {
	turns, err := a.store.RecentConversationTurns(studentID, a.th.HistoryWindow)
	if err != nil {
		slog.Warn("failed to load conversation history", "student_id", studentID, "error", err)
		return nil
	}
	history := make([]model.HistoryTurn, 0, len(turns))
	for _, t := range turns {
		history = append(history, model.HistoryTurn{Role: string(t.Role), Content: t.Content})
	}
	return history
}

// logTurn appends the user message and the produced assistant message to the
// conversation log. Best effort: failures are logged and swallowed so they
// never fail the user-visible turn.
func (a *Agent) logTurn(studentID int64, message string, resp model.ChatResponse) {
	if _, err := a.store.AppendConversationTurn(model.ConversationTurn{
		StudentID: studentID,
		Role:      model.RoleUser,
		Content:   message,
	}); err != nil {
		slog.Warn("failed to save user turn", "student_id", studentID, "error", err)
		return
	}
	if _, err := a.store.AppendConversationTurn(model.ConversationTurn{
		StudentID:  studentID,
		Role:       model.RoleAssistant,
		Content:    resp.Response,
		Confidence: resp.ConfidenceScore,
		Handoff:    resp.ShouldHandoff,
	}); err != nil {
		slog.Warn("failed to save assistant turn", "student_id", studentID, "error", err)
	}
}
