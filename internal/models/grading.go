package models

import "time"

// QuestionScore is one graded item inside a GradingResult.
type QuestionScore struct {
	QID    string `json:"qid"`
	Score  int    `json:"score"`
	Max    int    `json:"max"`
	Reason string `json:"reason,omitempty"`
}

// GradingResult is written exactly once at finalization and never mutated
// afterwards.
type GradingResult struct {
	Objective  []QuestionScore `json:"objective"`
	Subjective []QuestionScore `json:"subjective"`

	RawTotal   int `json:"raw_total"`
	RawScored  int `json:"raw_scored"`
	Percentage int `json:"percentage"` // 0..100

	PassThreshold int    `json:"pass_threshold"`
	Recommend     bool   `json:"recommend"`
	OverallReason string `json:"overall_reason"`

	// Analysis is an optional holistic narrative for operator review; empty
	// when the narrative call failed or was skipped.
	Analysis string `json:"analysis,omitempty"`

	GradedAt time.Time `json:"graded_at"`
}

// ScoreByQID indexes objective and subjective items for archive building.
func (g *GradingResult) ScoreByQID() map[string]QuestionScore {
	out := make(map[string]QuestionScore, len(g.Objective)+len(g.Subjective))
	for _, d := range g.Objective {
		out[d.QID] = d
	}
	for _, d := range g.Subjective {
		out[d.QID] = d
	}
	return out
}
