package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptStatusInvited  AttemptStatus = "invited"
	AttemptStatusVerified AttemptStatus = "verified"
	AttemptStatusInExam   AttemptStatus = "in_exam"
	AttemptStatusGrading  AttemptStatus = "grading"
	AttemptStatusFinished AttemptStatus = "finished"
)

// statusRank orders the lifecycle so transitions can be checked for regression.
var statusRank = map[AttemptStatus]int{
	AttemptStatusInvited:  0,
	AttemptStatusVerified: 1,
	AttemptStatusInExam:   2,
	AttemptStatusGrading:  3,
	AttemptStatusFinished: 4,
}

// Attempt is the mutable record tracking one candidate's single exam session.
// It is keyed by the opaque token and only ever mutated inside the per-token
// lock, so whole-record saves are race-free.
type Attempt struct {
	Token       string        `json:"token" gorm:"primaryKey;size:16"`
	ExamKey     string        `json:"exam_key" gorm:"not null;size:64;index"`
	CandidateID uint          `json:"candidate_id" gorm:"not null;index"`
	Status      AttemptStatus `json:"status" gorm:"not null;default:'invited';index"`

	// Invite validity window, independent of the in-exam countdown.
	InviteStart *time.Time `json:"invite_start"`
	InviteEnd   *time.Time `json:"invite_end"`

	// Policy snapshot taken at assignment creation.
	TimeLimitSeconds  int `json:"time_limit_seconds" gorm:"not null;default:0"`
	MinSubmitSeconds  int `json:"min_submit_seconds" gorm:"not null;default:0"`
	VerifyMaxAttempts int `json:"verify_max_attempts" gorm:"not null;default:3"`
	PassThreshold     int `json:"pass_threshold" gorm:"not null;default:70"`

	VerifyAttempts int  `json:"verify_attempts" gorm:"not null;default:0"`
	VerifyLocked   bool `json:"verify_locked" gorm:"not null;default:false"`

	// StartedAt is set exactly once on first exam-page entry; EndedAt exactly
	// once at finalization.
	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`

	Answers datatypes.JSONType[AnswerMap]      `json:"answers" gorm:"type:jsonb"`
	Grading datatypes.JSONType[*GradingResult] `json:"grading" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// AnswerValues returns the saved answers, never nil.
func (a *Attempt) AnswerValues() AnswerMap {
	m := a.Answers.Data()
	if m == nil {
		m = AnswerMap{}
	}
	return m
}

func (a *Attempt) SetAnswers(m AnswerMap) {
	a.Answers = datatypes.NewJSONType(m)
}

// GradingData returns the immutable grading result, nil until finalized.
func (a *Attempt) GradingData() *GradingResult {
	return a.Grading.Data()
}

func (a *Attempt) SetGrading(g *GradingResult) {
	a.Grading = datatypes.NewJSONType(g)
}

// Finalized reports whether the attempt has reached its terminal state.
// Grading is non-nil iff status is finished, so this is the idempotency check
// every finalize call site uses under the token lock.
func (a *Attempt) Finalized() bool {
	return a.Grading.Data() != nil
}

// AdvanceStatus moves the attempt forward; a later status is never regressed.
func (a *Attempt) AdvanceStatus(next AttemptStatus) {
	if statusRank[next] > statusRank[a.Status] {
		a.Status = next
	}
}

// InviteOpen reports whether now falls inside the optional invite window.
func (a *Attempt) InviteOpen(now time.Time) bool {
	if a.InviteStart != nil && now.Before(*a.InviteStart) {
		return false
	}
	if a.InviteEnd != nil && now.After(*a.InviteEnd) {
		return false
	}
	return true
}

// RemainingSeconds returns the countdown remainder, 0 when the countdown has
// not started or the attempt has no time limit.
func (a *Attempt) RemainingSeconds(now time.Time) int {
	if a.TimeLimitSeconds <= 0 || a.StartedAt == nil {
		return 0
	}
	used := int(now.Sub(*a.StartedAt).Seconds())
	if used < 0 {
		used = 0
	}
	remaining := a.TimeLimitSeconds - used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TimeUp reports whether the wall-clock deadline has passed. Unlimited
// attempts (limit 0) never expire.
func (a *Attempt) TimeUp(now time.Time) bool {
	if a.TimeLimitSeconds <= 0 || a.StartedAt == nil {
		return false
	}
	return now.Sub(*a.StartedAt) >= time.Duration(a.TimeLimitSeconds)*time.Second
}

// ElapsedSeconds returns seconds since the countdown started, 0 before entry.
func (a *Attempt) ElapsedSeconds(now time.Time) int {
	if a.StartedAt == nil {
		return 0
	}
	elapsed := int(now.Sub(*a.StartedAt).Seconds())
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// DurationSeconds returns the start-to-end span once both timestamps exist.
func (a *Attempt) DurationSeconds() *int {
	if a.StartedAt == nil || a.EndedAt == nil {
		return nil
	}
	d := int(a.EndedAt.Sub(*a.StartedAt).Seconds())
	if d < 0 {
		d = 0
	}
	return &d
}
