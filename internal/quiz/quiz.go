// Package quiz implements adaptive quiz generation, scoring, and mastery
// detection for the study companion.
package quiz

import (
	"context"
	"errors"

	"github.com/pavelanni/companion/internal/model"
	"github.com/pavelanni/companion/internal/store"
)

var (
	// ErrStudentNotFound is returned when the requested student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrQuizNotFound is returned when the requested quiz does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrGenerationParse is returned when the generator's reply is not valid
	// structured quiz content. It is propagated, never silently recovered: a
	// malformed quiz cannot be safely auto-filled.
	ErrGenerationParse = errors.New("failed to parse generated quiz")
)

// Generator produces natural-language text from a prompt pair.
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int) (string, error)
}

// Retriever returns student-scoped context fragments for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query, studentID string, topK int) ([]model.ContextFragment, error)
}

// Service drives the quiz lifecycle: adaptive generation, submission scoring,
// and goal auto-completion.
type Service struct {
	store     *store.Store
	retriever Retriever
	gen       Generator
	th        model.Thresholds
}

// New creates a quiz Service with explicit collaborator handles.
func New(st *store.Store, r Retriever, g Generator, th model.Thresholds) *Service {
	return &Service{store: st, retriever: r, gen: g, th: th}
}
