package llm

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestNewDefaults(t *testing.T) {
	c := New("", "test-key", "gpt-4o", "")
	if c.chatModel != "gpt-4o" {
		t.Errorf("chatModel = %q", c.chatModel)
	}
	if c.embedModel != string(openai.SmallEmbedding3) {
		t.Errorf("embedModel = %q, want default %q", c.embedModel, openai.SmallEmbedding3)
	}
}

func TestNewExplicitEmbedModel(t *testing.T) {
	c := New("http://localhost:11434/v1", "x", "llama3", "nomic-embed-text")
	if c.embedModel != "nomic-embed-text" {
		t.Errorf("embedModel = %q", c.embedModel)
	}
}
