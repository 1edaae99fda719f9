package models

import "time"

type CandidateStatus string

const (
	CandidateStatusCreated  CandidateStatus = "created"
	CandidateStatusVerified CandidateStatus = "verified"
	CandidateStatusFinished CandidateStatus = "finished"
)

// Candidate is the identity record attempts verify against, plus a
// denormalized view of the latest exam result for operator listings.
type Candidate struct {
	ID     uint            `json:"id" gorm:"primaryKey"`
	Name   string          `json:"name" gorm:"not null;size:64"`
	Phone  string          `json:"phone" gorm:"not null;size:20;index"`
	Status CandidateStatus `json:"status" gorm:"not null;default:'created'"`

	LatestScore     *int       `json:"latest_score"`
	ExamStartedAt   *time.Time `json:"exam_started_at"`
	ExamSubmittedAt *time.Time `json:"exam_submitted_at"`
	DurationSeconds *int       `json:"duration_seconds"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// CandidateResult is the denormalized result update applied when an attempt
// finalizes. Best-effort: a failed update never loses the grading itself.
type CandidateResult struct {
	Status          CandidateStatus
	Score           int
	ExamStartedAt   *time.Time
	ExamSubmittedAt *time.Time
	DurationSeconds *int
}
