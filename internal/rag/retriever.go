// Package rag provides student-scoped semantic retrieval over prior tutoring
// session transcripts, backed by an embedded chromem-go vector index.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	chromem "github.com/philippgille/chromem-go"

	"github.com/pavelanni/companion/internal/model"
)

const collectionName = "session_transcripts"

// Index is the vector index over session transcripts.
type Index struct {
	db  *chromem.DB
	col *chromem.Collection
}

// NewIndex opens (or creates) a persistent index at path. The embedding
// function turns text into vectors; the same function must be used for
// ingestion and queries.
func NewIndex(path string, embed chromem.EmbeddingFunc) (*Index, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	col, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", collectionName, err)
	}
	return &Index{db: db, col: col}, nil
}

// NewMemoryIndex creates a non-persistent index. Used by tests and ephemeral
// setups.
func NewMemoryIndex(embed chromem.EmbeddingFunc) (*Index, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", collectionName, err)
	}
	return &Index{db: db, col: col}, nil
}

// Count returns the number of indexed transcripts.
func (ix *Index) Count() int {
	return ix.col.Count()
}

// Add indexes the given transcripts. Transcript IDs are used as document IDs,
// so re-adding a transcript replaces it.
func (ix *Index) Add(ctx context.Context, transcripts []Transcript) error {
	if len(transcripts) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(transcripts))
	for _, tr := range transcripts {
		docs = append(docs, chromem.Document{
			ID:      tr.DocumentID(),
			Content: tr.SearchableText(),
			Metadata: map[string]string{
				"student_id":    tr.StudentID,
				"subject":       tr.Subject,
				"topic":         tr.Topic,
				"session_date":  tr.SessionDate,
				"transcript_id": tr.DocumentID(),
				"tutor_name":    tr.TutorName,
				"difficulty":    tr.Difficulty,
			},
		})
	}
	if err := ix.col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// Retrieve returns up to topK fragments most similar to query, hard-filtered
// to the given student. Students with no indexed transcripts get an empty
// result, not an error. Fragments are ordered by ascending distance.
func (ix *Index) Retrieve(ctx context.Context, query, studentID string, topK int) ([]model.ContextFragment, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	docCount := ix.col.Count()
	if docCount == 0 {
		return nil, nil
	}
	// chromem rejects nResults above the collection size; fewer matching
	// documents after the student filter are handled by chromem itself.
	if topK > docCount {
		topK = docCount
	}

	results, err := ix.col.Query(ctx, query, topK, map[string]string{"student_id": studentID}, nil)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	fragments := make([]model.ContextFragment, 0, len(results))
	for _, r := range results {
		fragments = append(fragments, model.ContextFragment{
			TranscriptID: r.ID,
			Document:     r.Content,
			Metadata:     r.Metadata,
			// chromem reports cosine similarity, higher = closer.
			Distance: 1 - float64(r.Similarity),
		})
	}
	slog.Debug("retrieved context", "student_id", studentID, "results", len(fragments))
	return fragments, nil
}
