package agent

import (
	"strings"

	"github.com/pavelanni/companion/internal/model"
)

var uncertaintyPhrases = []string{
	"i'm not sure",
	"i don't know",
	"i'm uncertain",
	"i can't help",
}

var bookingKeywords = []string{
	"book a session", "book session", "schedule a tutor", "schedule tutor",
	"need a tutor", "want a tutor", "human tutor", "book me", "schedule me",
}

var frustrationPhrases = []string{
	"confused", "don't understand", "don't get it", "not getting it", "stuck",
}

const (
	lowConfidenceReason = "I'm not completely confident in my answer. Let me connect you with a human tutor who can provide more detailed help."
	bookingReason       = "I'd be happy to help you book a session with a tutor! Let me connect you."
	frustrationReason   = "I notice you've been feeling confused. Let me connect you with a human tutor who can provide more personalized guidance."
)

// Evaluator scores generated answers and decides on human handoff.
type Evaluator struct {
	th model.Thresholds
}

// NewEvaluator creates an Evaluator with the given thresholds.
func NewEvaluator(th model.Thresholds) *Evaluator {
	return &Evaluator{th: th}
}

// Confidence computes the confidence score for a generated answer, clamped to
// [0, 1]. The bonuses and penalty are fixed heuristics, not a learned model.
func (e *Evaluator) Confidence(answer string, fragments []model.ContextFragment) float64 {
	confidence := e.th.ConfidenceBase

	if len(fragments) > 0 {
		confidence += e.th.ContextBonus
	}
	if len(answer) > e.th.MinAnswerLength {
		confidence += e.th.LengthBonus
	}

	lower := strings.ToLower(answer)
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			confidence -= e.th.UncertaintyPenalty
			break
		}
	}

	return clamp01(confidence)
}

type handoffRule struct {
	triggered func() bool
	reason    string
}

// Handoff decides whether the turn should be escalated to a human tutor. Rules
// are evaluated in order and the first match wins, so a low-confidence answer
// never surfaces a booking message.
func (e *Evaluator) Handoff(message string, history []model.HistoryTurn, confidence float64) (bool, string) {
	rules := []handoffRule{
		{
			triggered: func() bool { return confidence < e.th.HandoffConfidence },
			reason:    lowConfidenceReason,
		},
		{
			triggered: func() bool { return containsAny(strings.ToLower(message), bookingKeywords) },
			reason:    bookingReason,
		},
		{
			triggered: func() bool { return e.frustrated(history) },
			reason:    frustrationReason,
		},
	}

	for _, rule := range rules {
		if rule.triggered() {
			return true, rule.reason
		}
	}
	return false, ""
}

// frustrated reports whether enough of the recent user turns contain a
// frustration phrase.
func (e *Evaluator) frustrated(history []model.HistoryTurn) bool {
	if len(history) < e.th.FrustrationCount {
		return false
	}
	recent := history
	if len(recent) > e.th.FrustrationWindow {
		recent = recent[len(recent)-e.th.FrustrationWindow:]
	}
	count := 0
	for _, turn := range recent {
		if turn.Role != string(model.RoleUser) {
			continue
		}
		if containsAny(strings.ToLower(turn.Content), frustrationPhrases) {
			count++
		}
	}
	return count >= e.th.FrustrationCount
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
