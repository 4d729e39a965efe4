package rag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DialogueLine is one exchange in a recorded tutoring session.
type DialogueLine struct {
	Speaker string `json:"speaker"`
	Message string `json:"message"`
}

// Transcript is a recorded tutoring session as loaded from a transcript JSON
// file.
type Transcript struct {
	TranscriptID string         `json:"transcript_id"`
	StudentID    string         `json:"student_id"`
	Subject      string         `json:"subject"`
	Topic        string         `json:"topic"`
	TutorName    string         `json:"tutor_name"`
	TutorNotes   string         `json:"tutor_notes"`
	KeyConcepts  []string       `json:"key_concepts"`
	SessionDate  string         `json:"session_date"`
	Difficulty   string         `json:"difficulty"`
	Dialogue     []DialogueLine `json:"dialogue"`
}

// DocumentID returns the normalized index document ID for the transcript.
func (t Transcript) DocumentID() string {
	return strings.ToLower(strings.ReplaceAll(t.TranscriptID, " ", "_"))
}

// SearchableText combines the transcript fields that matter for retrieval into
// one embeddable document.
func (t Transcript) SearchableText() string {
	parts := []string{
		"Subject: " + t.Subject,
		"Topic: " + t.Topic,
	}
	if t.TutorNotes != "" {
		parts = append(parts, "Tutor Notes: "+t.TutorNotes)
	}
	if len(t.KeyConcepts) > 0 {
		parts = append(parts, "Key Concepts: "+strings.Join(t.KeyConcepts, ", "))
	}
	if len(t.Dialogue) > 0 {
		var lines []string
		for _, d := range t.Dialogue {
			lines = append(lines, titleCase(d.Speaker)+": "+d.Message)
		}
		parts = append(parts, "Discussion: "+strings.Join(lines, " "))
	}
	return strings.Join(parts, "\n")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// LoadTranscripts reads all transcript JSON files from a directory.
func LoadTranscripts(dir string) ([]Transcript, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	var transcripts []Transcript
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var tr Transcript
		if err := json.Unmarshal(data, &tr); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if tr.TranscriptID == "" {
			tr.TranscriptID = fmt.Sprintf("transcript_%d", i)
		}
		transcripts = append(transcripts, tr)
	}
	return transcripts, nil
}
