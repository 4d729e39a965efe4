package agent

import (
	"fmt"
	"strings"

	"github.com/pavelanni/companion/internal/model"
)

const companionSystemPrompt = `You are an AI Study Companion, a supportive tutoring assistant that helps students learn through Socratic dialogue and guided questions.

Your role:
- Remember what the student has learned from previous sessions (using the context provided)
- Ask leading questions to guide understanding rather than giving direct answers
- Provide hints and encouragement when students are struggling
- Reference previous learning when relevant
- Keep responses concise and engaging (2-3 sentences typically)
- If the student seems frustrated or explicitly requests human help, acknowledge this and suggest booking a session

Tone: Friendly, encouraging, and patient. Use emojis sparingly (1-2 per response max).`

// BuildPrompt assembles the full tutoring prompt from the student profile,
// active goals, retrieved context fragments, bounded conversation history, and
// the current question. Pure string assembly, no I/O.
func BuildPrompt(student model.Student, goals []model.Goal, fragments []model.ContextFragment, history []model.HistoryTurn, query string, th model.Thresholds) string {
	var sb strings.Builder
	sb.WriteString(companionSystemPrompt)
	sb.WriteString("\n\n")

	sb.WriteString("Student Information:\n")
	sb.WriteString("- Name: " + student.Name + "\n")
	sb.WriteString(fmt.Sprintf("- Grade: %d\n", student.Grade))
	sb.WriteString("- Engagement Level: " + student.EngagementLevel + "\n")
	sb.WriteString(fmt.Sprintf("- Average Quiz Score: %.1f%%\n", student.AvgQuizScore))

	if len(goals) > 0 {
		sb.WriteString("\nCurrent Learning Goals:\n")
		for _, g := range goals {
			sb.WriteString(fmt.Sprintf("- %s: %s (%.0f%% complete)\n", g.Subject, g.Description, g.ProgressPercent))
		}
	} else {
		sb.WriteString("\nCurrent Learning Goals: None set\n")
	}

	// An explicit "None found" keeps the generator from inventing prior
	// sessions when retrieval came back empty.
	if len(fragments) > 0 {
		sb.WriteString("\nRelevant Previous Session Context:\n")
		top := fragments
		if len(top) > th.TopFragments {
			top = top[:th.TopFragments]
		}
		for i, frag := range top {
			sb.WriteString(fmt.Sprintf("\n%d. Subject: %s, Topic: %s\n", i+1, frag.Metadata["subject"], frag.Metadata["topic"]))
			sb.WriteString("   Summary: " + excerpt(frag.Document, th.FragmentExcerptLen) + "...\n")
		}
	} else {
		sb.WriteString("\nRelevant Previous Session Context: None found\n")
	}

	if len(history) > 0 {
		sb.WriteString("\nRecent Conversation History:\n")
		recent := history
		if len(recent) > th.HistoryWindow {
			recent = recent[len(recent)-th.HistoryWindow:]
		}
		for _, turn := range recent {
			sb.WriteString(titleCase(turn.Role) + ": " + turn.Content + "\n")
		}
	} else {
		sb.WriteString("\nRecent Conversation History: This is the start of the conversation.\n")
	}

	sb.WriteString("\nCurrent Student Question: " + query + "\n\n")
	sb.WriteString("Please provide a helpful, contextual response that:\n")
	sb.WriteString("1. References relevant previous learning if applicable\n")
	sb.WriteString("2. Guides the student with questions rather than giving direct answers\n")
	sb.WriteString("3. Relates to their current goals if relevant\n")
	sb.WriteString("4. Keeps the response concise and encouraging\n\n")
	sb.WriteString("Response:")

	return sb.String()
}

func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
