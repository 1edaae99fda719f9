package services

import (
	"fmt"
	"strings"
)

const graderSystemPrompt = `You are a strict but fair exam grader. ` +
	`Score the candidate's answer against the question and rubric. ` +
	`Respond with a single JSON object: ` +
	`{"score": <number>, "reason": "<short justification>", ` +
	`"relevance": <0-10, how on-topic the answer is>, ` +
	`"contradiction": <true if the answer contradicts the rubric or established facts>}`

const reasonSystemPrompt = `You are an exam grader explaining a score you already assigned. ` +
	`In two sentences or fewer, explain why the answer earned the given score against the rubric. ` +
	`Respond with plain text only.`

const analysisSystemPrompt = `You are a hiring assistant reviewing a completed exam. ` +
	`Given the questions, the candidate's answers and the per-question scores, ` +
	`write a short overall assessment (3-5 sentences) of the candidate's strengths and weaknesses. ` +
	`Respond with plain text only.`

// buildGradePrompt renders the user message for a single short-answer
// question. A per-question template, when present, overrides the default
// layout; it may reference {stem}, {answer}, {rubric} and {max_points}.
func buildGradePrompt(stem, answer, rubric, template string, maxPoints int) string {
	if template != "" {
		r := strings.NewReplacer(
			"{stem}", stem,
			"{answer}", answer,
			"{rubric}", rubric,
			"{max_points}", fmt.Sprintf("%d", maxPoints),
		)
		return r.Replace(template)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", stem)
	if rubric != "" {
		fmt.Fprintf(&b, "Grading rubric: %s\n\n", rubric)
	}
	fmt.Fprintf(&b, "Candidate answer: %s\n\n", answer)
	fmt.Fprintf(&b, "Maximum points: %d\n", maxPoints)
	return b.String()
}

func buildReasonPrompt(stem, answer, rubric string, score, maxPoints int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", stem)
	if rubric != "" {
		fmt.Fprintf(&b, "Rubric: %s\n", rubric)
	}
	fmt.Fprintf(&b, "Answer: %s\n", answer)
	fmt.Fprintf(&b, "Assigned score: %d of %d\n", score, maxPoints)
	return b.String()
}

func buildAnalysisPrompt(lines []string) string {
	var b strings.Builder
	b.WriteString("Exam transcript with per-question scores:\n\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
