package services

import (
	"errors"
	"fmt"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")
	ErrConflict         = errors.New("resource conflict")

	// Attempt specific errors
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrAttemptNotVerified  = errors.New("attempt is not verified")
	ErrAttemptNotStarted   = errors.New("attempt has not entered the exam")
	ErrAlreadyFinalized    = errors.New("attempt already finalized")
	ErrInviteExpired       = errors.New("invite window has passed")
	ErrAttemptTimeExpired  = errors.New("attempt time has expired")
	ErrTokenCollision      = errors.New("could not allocate a unique attempt token")
	ErrDuplicateAssignment = errors.New("attempt token already assigned")

	// Verification errors
	ErrVerifyLocked   = errors.New("verification attempts exhausted")
	ErrVerifyMismatch = errors.New("verification details do not match")

	// Exam errors
	ErrExamNotFound = errors.New("exam not found")
)

// ===== CUSTOM ERROR TYPES =====

// TooEarlyError is returned when a submission arrives before the minimum
// in-exam time has elapsed. WaitSeconds tells the caller how long remains.
type TooEarlyError struct {
	WaitSeconds int64 `json:"wait_seconds"`
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("submission allowed in %d seconds", e.WaitSeconds)
}

func NewTooEarlyError(waitSeconds int64) *TooEarlyError {
	return &TooEarlyError{WaitSeconds: waitSeconds}
}

// ===== ERROR HELPERS =====

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrExamNotFound)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadyFinalized) ||
		errors.Is(err, ErrDuplicateAssignment)
}

// IsTooEarly checks if error carries a minimum-time wait hint
func IsTooEarly(err error) (*TooEarlyError, bool) {
	var te *TooEarlyError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
