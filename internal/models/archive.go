package models

import (
	"time"

	"gorm.io/datatypes"
)

// ArchiveQuestion is one question inside an archive snapshot: the content the
// candidate saw, their answer, and how it was scored. Options carry the
// correct flags only when the archive was built from the unredacted spec.
type ArchiveQuestion struct {
	QID       string       `json:"qid"`
	Label     string       `json:"label,omitempty"`
	Type      QuestionType `json:"type"`
	MaxPoints int          `json:"max_points"`
	Stem      string       `json:"stem_md"`
	Options   []Option     `json:"options,omitempty"`
	Rubric    string       `json:"rubric,omitempty"`

	Answer *AnswerValue `json:"answer,omitempty"`
	Score  *int         `json:"score,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

// ArchiveRecord is the immutable audit snapshot written once per finished
// attempt, independent of the mutable attempt row.
type ArchiveRecord struct {
	SavedAt time.Time `json:"saved_at"`

	CandidateID    uint   `json:"candidate_id"`
	CandidateName  string `json:"candidate_name"`
	CandidatePhone string `json:"candidate_phone"`

	ExamKey   string `json:"exam_key"`
	ExamTitle string `json:"exam_title"`

	StartedAt        *time.Time `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
	MinSubmitSeconds int        `json:"min_submit_seconds"`

	Grading   *GradingResult    `json:"grading"`
	Answers   AnswerMap         `json:"answers"`
	Questions []ArchiveQuestion `json:"questions"`
}

// Archive is the stored append-only row wrapping an ArchiveRecord.
type Archive struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Token       string         `json:"token" gorm:"not null;size:16;index"`
	ExamKey     string         `json:"exam_key" gorm:"not null;size:64;index"`
	CandidateID uint           `json:"candidate_id" gorm:"not null;index"`
	Payload     datatypes.JSON `json:"payload" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
}

func (Archive) TableName() string {
	return "archives"
}
