package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/quizdesk/attempt-service/internal/lock"
	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/repositories"
	"github.com/quizdesk/attempt-service/internal/utils"
	"github.com/quizdesk/attempt-service/internal/validator"
)

type VerifyRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=64"`
	Phone string `json:"phone" validate:"required,min=5,max=20"`
}

type VerifyResult struct {
	Attempt        *models.Attempt
	RemainingTries int
}

// VerifyService is the identity gate in front of the exam. It is the only
// writer of the verification counters, and a locked attempt stays locked for
// good.
type VerifyService interface {
	Verify(ctx context.Context, tok string, req *VerifyRequest) (*VerifyResult, error)
}

type verifyService struct {
	repo      repositories.Repository
	locks     *lock.Manager
	logger    utils.Logger
	validator *validator.Validator
}

func NewVerifyService(repo repositories.Repository, locks *lock.Manager, logger utils.Logger, v *validator.Validator) VerifyService {
	return &verifyService{repo: repo, locks: locks, logger: logger, validator: v}
}

func (s *verifyService) Verify(ctx context.Context, tok string, req *VerifyRequest) (*VerifyResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, err)
	}

	var result *VerifyResult
	err := s.locks.WithLock(tok, func() error {
		attempt, err := s.repo.Attempt().Get(ctx, tok)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to load attempt: %w", err)
		}

		if attempt.Finalized() {
			return ErrAlreadyFinalized
		}
		if attempt.VerifyLocked {
			return ErrVerifyLocked
		}

		// Re-verification of an already verified attempt is allowed (page
		// reload), but the invite window only gates the first entry.
		if attempt.Status == models.AttemptStatusInvited && !attempt.InviteOpen(nowUTC()) {
			return ErrInviteExpired
		}

		candidate, err := s.repo.Candidate().Get(ctx, attempt.CandidateID)
		if err != nil {
			return fmt.Errorf("failed to load candidate: %w", err)
		}

		if !identityMatches(candidate, req) {
			attempt.VerifyAttempts++
			remaining := attempt.VerifyMaxAttempts - attempt.VerifyAttempts
			if remaining <= 0 {
				remaining = 0
				attempt.VerifyLocked = true
			}
			if err := s.repo.Attempt().Save(ctx, attempt); err != nil {
				return fmt.Errorf("failed to save attempt: %w", err)
			}
			s.logger.Warn("verification mismatch",
				"token", tok,
				"attempts", attempt.VerifyAttempts,
				"locked", attempt.VerifyLocked)
			if attempt.VerifyLocked {
				return ErrVerifyLocked
			}
			result = &VerifyResult{Attempt: attempt, RemainingTries: remaining}
			return ErrVerifyMismatch
		}

		attempt.AdvanceStatus(models.AttemptStatusVerified)
		if err := s.repo.Attempt().Save(ctx, attempt); err != nil {
			return fmt.Errorf("failed to save attempt: %w", err)
		}
		if err := s.repo.Candidate().SetStatus(ctx, candidate.ID, models.CandidateStatusVerified); err != nil {
			s.logger.Warn("candidate status update failed", "candidate_id", candidate.ID, "error", err)
		}

		s.logger.Info("attempt verified", "token", tok, "candidate_id", candidate.ID)
		result = &VerifyResult{Attempt: attempt, RemainingTries: attempt.VerifyMaxAttempts - attempt.VerifyAttempts}
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

// identityMatches compares submitted details against the candidate record.
// Names compare case-insensitively with surrounding space ignored; phones
// compare on digits only.
func identityMatches(candidate *models.Candidate, req *VerifyRequest) bool {
	nameOK := strings.EqualFold(strings.TrimSpace(req.Name), strings.TrimSpace(candidate.Name))
	return nameOK && normalizePhone(req.Phone) == normalizePhone(candidate.Phone)
}

func normalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
