package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/quizdesk/attempt-service/internal/llm"
	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/utils"
)

const failedGradeReason = "grading failed"

// GradingService scores a finished attempt against its exam spec. Objective
// questions are scored locally; short answers go through the completion API
// with guard-rails so a misbehaving model can only lower a score, never
// invent one above the question maximum.
type GradingService interface {
	Grade(ctx context.Context, spec *models.ExamSpec, answers models.AnswerMap, passThreshold int) *models.GradingResult
}

type gradingService struct {
	llm    llm.Client
	logger utils.Logger
	now    func() time.Time
}

func NewGradingService(client llm.Client, logger utils.Logger) GradingService {
	return &gradingService{llm: client, logger: logger, now: time.Now}
}

// llmVerdict is the JSON object the grader prompt asks for.
type llmVerdict struct {
	Score         float64 `json:"score"`
	Reason        string  `json:"reason"`
	Relevance     float64 `json:"relevance"`
	Contradiction bool    `json:"contradiction"`
}

func (s *gradingService) Grade(ctx context.Context, spec *models.ExamSpec, answers models.AnswerMap, passThreshold int) *models.GradingResult {
	result := &models.GradingResult{
		PassThreshold: passThreshold,
		GradedAt:      s.now().UTC(),
	}

	var transcript []string
	for _, q := range spec.Questions {
		answer := answers[q.QID]
		var score models.QuestionScore
		switch q.Type {
		case models.QuestionShort:
			score = s.gradeShortAnswer(ctx, spec, q, answer)
			result.Subjective = append(result.Subjective, score)
		default:
			score = gradeObjective(q, answer)
			result.Objective = append(result.Objective, score)
		}
		result.RawTotal += q.MaxPoints
		result.RawScored += score.Score
		transcript = append(transcript, fmt.Sprintf(
			"Q (%s): %s\nAnswer: %s\nScore: %d/%d",
			q.Type, q.Stem, answer.Display(), score.Score, score.Max))
	}

	if result.RawTotal > 0 {
		pct := math.Round(float64(result.RawScored) / float64(result.RawTotal) * 100)
		result.Percentage = clampInt(int(pct), 0, 100)
	}
	result.Recommend = result.Percentage >= passThreshold
	result.OverallReason = fmt.Sprintf("raw=%d/%d => score=%d/100",
		result.RawScored, result.RawTotal, result.Percentage)
	result.Analysis = s.holisticAnalysis(ctx, transcript)

	return result
}

// ===== OBJECTIVE SCORING =====

func gradeObjective(q models.Question, answer models.AnswerValue) models.QuestionScore {
	score := models.QuestionScore{QID: q.QID, Max: q.MaxPoints}
	selected := answer.Keys()
	if len(selected) == 0 {
		return score
	}
	correct := q.CorrectKeys()

	if q.Type == models.QuestionSingle {
		if len(selected) == 1 && len(correct) == 1 && selected[0] == correct[0] {
			score.Score = q.MaxPoints
		}
		return score
	}

	correctSet := make(map[string]bool, len(correct))
	for _, k := range correct {
		correctSet[k] = true
	}
	hits, misses := 0, 0
	seen := make(map[string]bool, len(selected))
	for _, k := range selected {
		if seen[k] {
			continue
		}
		seen[k] = true
		if correctSet[k] {
			hits++
		} else {
			misses++
		}
	}

	if !q.Partial {
		if hits == len(correct) && misses == 0 {
			score.Score = q.MaxPoints
		}
		return score
	}
	if len(correct) == 0 {
		return score
	}
	raw := math.Round(float64(q.MaxPoints) * float64(hits-misses) / float64(len(correct)))
	score.Score = clampInt(int(raw), 0, q.MaxPoints)
	return score
}

// ===== SHORT ANSWER SCORING =====

func (s *gradingService) gradeShortAnswer(ctx context.Context, spec *models.ExamSpec, q models.Question, answer models.AnswerValue) models.QuestionScore {
	score := models.QuestionScore{QID: q.QID, Max: q.MaxPoints}

	text := strings.TrimSpace(answer.Display())
	if meaninglessAnswer(text) {
		score.Reason = "no meaningful answer provided"
		return score
	}

	template := q.PromptTemplate
	if template == "" {
		template = spec.LLM.PromptTemplate
	}
	prompt := buildGradePrompt(q.Stem, text, q.Rubric, template, q.MaxPoints)

	raw, err := s.llm.CompleteJSON(ctx, graderSystemPrompt, prompt)
	if err != nil {
		s.logger.Error("short answer grading call failed", "qid", q.QID, "error", err)
		score.Reason = failedGradeReason
		return score
	}

	var verdict llmVerdict
	if err := llm.ExtractJSON(raw, &verdict); err != nil {
		n, ok := llm.ExtractNumber(raw)
		if !ok {
			s.logger.Error("short answer verdict unparseable", "qid", q.QID, "raw", raw)
			score.Reason = failedGradeReason
			return score
		}
		verdict = llmVerdict{Score: n, Relevance: 10}
	}

	// Guard-rails: a verdict that contradicts itself or rates the answer
	// fully off-topic scores zero regardless of the number it reported.
	switch {
	case verdict.Contradiction:
		score.Score = 0
		score.Reason = joinReason(verdict.Reason, "answer contradicts the expected solution")
	case verdict.Relevance <= 0:
		score.Score = 0
		score.Reason = joinReason(verdict.Reason, "answer is not relevant to the question")
	default:
		score.Score = clampInt(int(math.Round(verdict.Score)), 0, q.MaxPoints)
		score.Reason = verdict.Reason
	}

	if score.Reason == "" && q.Rubric != "" {
		score.Reason = s.secondaryReason(ctx, q, text, score.Score)
	}
	return score
}

// secondaryReason asks for a justification when the scoring call returned
// none. Failure here is cosmetic, the score stands.
func (s *gradingService) secondaryReason(ctx context.Context, q models.Question, answer string, score int) string {
	prompt := buildReasonPrompt(q.Stem, answer, q.Rubric, score, q.MaxPoints)
	reason, err := s.llm.CompleteText(ctx, reasonSystemPrompt, prompt)
	if err != nil {
		s.logger.Warn("reason call failed", "qid", q.QID, "error", err)
		return ""
	}
	return strings.TrimSpace(reason)
}

func (s *gradingService) holisticAnalysis(ctx context.Context, transcript []string) string {
	if len(transcript) == 0 {
		return ""
	}
	analysis, err := s.llm.CompleteText(ctx, analysisSystemPrompt, buildAnalysisPrompt(transcript))
	if err != nil {
		s.logger.Warn("holistic analysis call failed", "error", err)
		return ""
	}
	return strings.TrimSpace(analysis)
}

// meaninglessAnswer filters out answers not worth an API call: blank text, or
// very short strings with no letters in any script.
func meaninglessAnswer(text string) bool {
	if text == "" {
		return true
	}
	hasLetter := false
	for _, r := range text {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	return !hasLetter && len([]rune(text)) < 8
}

func joinReason(primary, fallback string) string {
	if primary != "" {
		return primary
	}
	return fallback
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
