package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/utils"
)

// mockLLM scripts completion responses and records every call.
type mockLLM struct {
	jsonResponses []string
	jsonErr       error
	textResponse  string
	textErr       error

	jsonCalls int
	textCalls int
}

func (m *mockLLM) CompleteJSON(_ context.Context, _, _ string) (string, error) {
	idx := m.jsonCalls
	m.jsonCalls++
	if m.jsonErr != nil {
		return "", m.jsonErr
	}
	if idx < len(m.jsonResponses) {
		return m.jsonResponses[idx], nil
	}
	return "{}", nil
}

func (m *mockLLM) CompleteText(_ context.Context, _, _ string) (string, error) {
	m.textCalls++
	if m.textErr != nil {
		return "", m.textErr
	}
	return m.textResponse, nil
}

func testLogger() utils.Logger {
	return utils.NewDevelopmentLogger()
}

func singleChoiceQuestion(qid string, points int) models.Question {
	return models.Question{
		QID:       qid,
		Type:      models.QuestionSingle,
		MaxPoints: points,
		Stem:      "pick one",
		Options: []models.Option{
			{Key: "A", Text: "right", Correct: true},
			{Key: "B", Text: "wrong"},
		},
	}
}

func TestGradeObjective_SingleChoice(t *testing.T) {
	q := singleChoiceQuestion("q1", 5)

	assert.Equal(t, 5, gradeObjective(q, models.TextAnswer("A")).Score)
	assert.Equal(t, 0, gradeObjective(q, models.TextAnswer("B")).Score)
	assert.Equal(t, 0, gradeObjective(q, models.AnswerValue{}).Score)
}

func TestGradeObjective_MultiSelect(t *testing.T) {
	q := models.Question{
		QID:       "q2",
		Type:      models.QuestionMultiple,
		MaxPoints: 7,
		Options: []models.Option{
			{Key: "A", Correct: true},
			{Key: "B", Correct: true},
			{Key: "C", Correct: true},
			{Key: "D"},
		},
	}

	t.Run("all or nothing", func(t *testing.T) {
		assert.Equal(t, 7, gradeObjective(q, models.MultiAnswer([]string{"A", "B", "C"})).Score)
		assert.Equal(t, 0, gradeObjective(q, models.MultiAnswer([]string{"A", "B"})).Score)
		assert.Equal(t, 0, gradeObjective(q, models.MultiAnswer([]string{"A", "B", "C", "D"})).Score)
	})

	t.Run("partial credit", func(t *testing.T) {
		pq := q
		pq.Partial = true

		// 2 hits, 1 miss over 3 correct: round(7 * 1/3) = 2
		assert.Equal(t, 2, gradeObjective(pq, models.MultiAnswer([]string{"A", "B", "D"})).Score)
		assert.Equal(t, 7, gradeObjective(pq, models.MultiAnswer([]string{"A", "B", "C"})).Score)
		// more wrong than right clamps at zero
		assert.Equal(t, 0, gradeObjective(pq, models.MultiAnswer([]string{"D"})).Score)
		// duplicate selections count once
		assert.Equal(t, 2, gradeObjective(pq, models.MultiAnswer([]string{"A", "A", "B", "D"})).Score)
	})
}

func shortQuestion(qid string, points int, rubric string) models.Question {
	return models.Question{
		QID:       qid,
		Type:      models.QuestionShort,
		MaxPoints: points,
		Stem:      "explain the concept",
		Rubric:    rubric,
	}
}

func specWith(questions ...models.Question) *models.ExamSpec {
	return &models.ExamSpec{ExamKey: "exam-1", Title: "Test Exam", Questions: questions}
}

func TestGrade_MeaninglessAnswerSkipsModel(t *testing.T) {
	mock := &mockLLM{}
	svc := NewGradingService(mock, testLogger())

	answers := models.AnswerMap{"q1": models.TextAnswer("   ...  ")}
	result := svc.Grade(context.Background(), specWith(shortQuestion("q1", 10, "")), answers, 70)

	require.Len(t, result.Subjective, 1)
	assert.Equal(t, 0, result.Subjective[0].Score)
	assert.Equal(t, "no meaningful answer provided", result.Subjective[0].Reason)
	assert.Equal(t, 0, mock.jsonCalls, "scoring call must be skipped for meaningless answers")
}

func TestGrade_ShortAnswerGuardRails(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantScore int
	}{
		{"normal verdict", `{"score": 8, "reason": "good", "relevance": 9}`, 8},
		{"contradiction zeroes", `{"score": 9, "reason": "but wrong", "relevance": 8, "contradiction": true}`, 0},
		{"zero relevance zeroes", `{"score": 6, "reason": "off topic", "relevance": 0}`, 0},
		{"clamped above max", `{"score": 999, "reason": "generous", "relevance": 9}`, 10},
		{"clamped below zero", `{"score": -4, "reason": "harsh", "relevance": 9}`, 0},
		{"bare number fallback", `I would award 7 points here`, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockLLM{jsonResponses: []string{tt.response}}
			svc := NewGradingService(mock, testLogger())

			answers := models.AnswerMap{"q1": models.TextAnswer("a substantial answer")}
			result := svc.Grade(context.Background(), specWith(shortQuestion("q1", 10, "")), answers, 70)

			require.Len(t, result.Subjective, 1)
			assert.Equal(t, tt.wantScore, result.Subjective[0].Score)
			assert.Equal(t, 1, mock.jsonCalls)
		})
	}
}

func TestGrade_ModelFailureDegrades(t *testing.T) {
	mock := &mockLLM{jsonErr: errors.New("upstream down"), textErr: errors.New("upstream down")}
	svc := NewGradingService(mock, testLogger())

	answers := models.AnswerMap{"q1": models.TextAnswer("a substantial answer")}
	result := svc.Grade(context.Background(), specWith(shortQuestion("q1", 10, "")), answers, 70)

	require.Len(t, result.Subjective, 1)
	assert.Equal(t, 0, result.Subjective[0].Score)
	assert.Equal(t, failedGradeReason, result.Subjective[0].Reason)
	assert.Empty(t, result.Analysis)
}

func TestGrade_SecondaryReasonCall(t *testing.T) {
	mock := &mockLLM{
		jsonResponses: []string{`{"score": 5, "relevance": 8}`},
		textResponse:  "matched half the rubric points",
	}
	svc := NewGradingService(mock, testLogger())

	answers := models.AnswerMap{"q1": models.TextAnswer("a substantial answer")}
	result := svc.Grade(context.Background(), specWith(shortQuestion("q1", 10, "must mention X and Y")), answers, 70)

	require.Len(t, result.Subjective, 1)
	assert.Equal(t, 5, result.Subjective[0].Score)
	assert.Equal(t, "matched half the rubric points", result.Subjective[0].Reason)
	// one reason call plus one holistic analysis call
	assert.Equal(t, 2, mock.textCalls)
}

func TestGrade_Aggregation(t *testing.T) {
	mock := &mockLLM{
		jsonResponses: []string{`{"score": 6, "reason": "mostly right", "relevance": 9}`},
		textResponse:  "strong on fundamentals",
	}
	svc := NewGradingService(mock, testLogger())

	spec := specWith(
		singleChoiceQuestion("q1", 5),
		shortQuestion("q2", 10, ""),
	)
	answers := models.AnswerMap{
		"q1": models.TextAnswer("A"),
		"q2": models.TextAnswer("a substantial answer"),
	}

	result := svc.Grade(context.Background(), spec, answers, 70)

	assert.Equal(t, 15, result.RawTotal)
	assert.Equal(t, 11, result.RawScored)
	assert.Equal(t, 73, result.Percentage) // round(11/15*100)
	assert.True(t, result.Recommend)
	assert.Equal(t, "raw=11/15 => score=73/100", result.OverallReason)
	assert.Equal(t, "strong on fundamentals", result.Analysis)
	assert.False(t, result.GradedAt.IsZero())
}

func TestGrade_RecommendThreshold(t *testing.T) {
	mock := &mockLLM{}
	svc := NewGradingService(mock, testLogger())

	spec := specWith(singleChoiceQuestion("q1", 10))
	result := svc.Grade(context.Background(), spec, models.AnswerMap{"q1": models.TextAnswer("A")}, 100)

	assert.Equal(t, 100, result.Percentage)
	assert.True(t, result.Recommend)

	result = svc.Grade(context.Background(), spec, models.AnswerMap{"q1": models.TextAnswer("B")}, 70)
	assert.Equal(t, 0, result.Percentage)
	assert.False(t, result.Recommend)
}

func TestMeaninglessAnswer(t *testing.T) {
	assert.True(t, meaninglessAnswer(""))
	assert.True(t, meaninglessAnswer("..."))
	assert.True(t, meaninglessAnswer("123"))
	assert.False(t, meaninglessAnswer("ok"))
	assert.False(t, meaninglessAnswer("因为它是幂等的"))
	assert.False(t, meaninglessAnswer("12345678"))
}
