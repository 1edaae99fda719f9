package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
	QuestionShort    QuestionType = "short"
)

type Option struct {
	Key     string `json:"key"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

type Question struct {
	QID       string       `json:"qid"`
	Label     string       `json:"label,omitempty"`
	Type      QuestionType `json:"type"`
	MaxPoints int          `json:"max_points"`
	Stem      string       `json:"stem_md"`
	Options   []Option     `json:"options,omitempty"`

	// Partial enables proportional credit on multi-select questions.
	Partial bool `json:"partial,omitempty"`

	// Rubric and PromptTemplate drive short-answer grading; both optional.
	Rubric         string `json:"rubric,omitempty"`
	PromptTemplate string `json:"prompt_template,omitempty"`
}

// CorrectKeys returns the keys of the correct options in option order.
func (q *Question) CorrectKeys() []string {
	var keys []string
	for _, o := range q.Options {
		if o.Correct {
			keys = append(keys, o.Key)
		}
	}
	return keys
}

// LLMSettings are exam-level defaults for short-answer grading prompts.
type LLMSettings struct {
	PromptTemplate string `json:"prompt_template,omitempty"`
}

// ExamSpec is the already-validated structured exam consumed by the grading
// engine and the session controller. Authoring and parsing happen upstream.
type ExamSpec struct {
	ExamKey     string      `json:"exam_key"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Questions   []Question  `json:"questions"`
	LLM         LLMSettings `json:"llm,omitempty"`
}

// Redacted returns a candidate-facing copy with correctness flags, rubrics and
// prompt templates stripped.
func (s *ExamSpec) Redacted() *ExamSpec {
	out := &ExamSpec{
		ExamKey:     s.ExamKey,
		Title:       s.Title,
		Description: s.Description,
		Questions:   make([]Question, len(s.Questions)),
	}
	for i, q := range s.Questions {
		q2 := q
		q2.Rubric = ""
		q2.PromptTemplate = ""
		if len(q.Options) > 0 {
			opts := make([]Option, len(q.Options))
			for j, o := range q.Options {
				opts[j] = Option{Key: o.Key, Text: o.Text}
			}
			q2.Options = opts
		}
		out.Questions[i] = q2
	}
	return out
}

// QuestionByQID indexes the question list.
func (s *ExamSpec) QuestionByQID() map[string]Question {
	out := make(map[string]Question, len(s.Questions))
	for _, q := range s.Questions {
		out[q.QID] = q
	}
	return out
}

// Exam is the stored row for a spec; the blob is the full ExamSpec including
// correct answers, so it is never served to candidates as-is.
type Exam struct {
	Key        string         `json:"key" gorm:"primaryKey;size:64"`
	Title      string         `json:"title" gorm:"size:200"`
	Spec       datatypes.JSON `json:"spec" gorm:"type:jsonb"`
	Tombstoned bool           `json:"tombstoned" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Exam) TableName() string {
	return "exams"
}
