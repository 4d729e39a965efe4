package model

// Thresholds groups the tunable decision constants used by the answer
// evaluator, difficulty selector, and mastery detector. They are fixed
// heuristics without calibration data, so they live in one struct instead of
// being scattered as literals.
type Thresholds struct {
	// ConfidenceBase is the starting confidence for every generated answer.
	ConfidenceBase float64
	// ContextBonus is added when retrieval returned at least one fragment.
	ContextBonus float64
	// LengthBonus is added when the answer exceeds MinAnswerLength characters.
	LengthBonus     float64
	MinAnswerLength int
	// UncertaintyPenalty is subtracted when the answer contains an
	// uncertainty phrase.
	UncertaintyPenalty float64

	// HandoffConfidence is the confidence floor below which an answer is
	// always escalated to a human tutor.
	HandoffConfidence float64
	// FrustrationWindow and FrustrationCount control frustration detection:
	// at least FrustrationCount user turns among the last FrustrationWindow
	// history turns must contain a frustration phrase.
	FrustrationWindow int
	FrustrationCount  int

	// RecentWindow is how many recent quiz records feed the rolling averages.
	RecentWindow int
	// EasyBelow and HardFrom are the difficulty band boundaries: average
	// below EasyBelow selects easy, at or above HardFrom selects hard.
	EasyBelow float64
	HardFrom  float64

	// MasteryScore is the rolling average required to auto-complete a goal,
	// and MasteryMinQuizzes the minimum evidence before completion is
	// considered at all.
	MasteryScore     float64
	MasteryMinQuizzes int

	// HistoryWindow is the number of trailing conversation turns included in
	// the prompt. FragmentExcerptLen caps each fragment excerpt, TopFragments
	// how many fragments the prompt includes.
	HistoryWindow      int
	FragmentExcerptLen int
	TopFragments       int
}

// DefaultThresholds returns the thresholds the original companion shipped with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ConfidenceBase:     0.70,
		ContextBonus:       0.15,
		LengthBonus:        0.10,
		MinAnswerLength:    50,
		UncertaintyPenalty: 0.30,

		HandoffConfidence: 0.60,
		FrustrationWindow: 5,
		FrustrationCount:  3,

		RecentWindow: 5,
		EasyBelow:    60,
		HardFrom:     80,

		MasteryScore:      85,
		MasteryMinQuizzes: 2,

		HistoryWindow:      10,
		FragmentExcerptLen: 300,
		TopFragments:       3,
	}
}
