package services

import (
	"context"
	"fmt"
	"time"

	"github.com/quizdesk/attempt-service/internal/lock"
	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/repositories"
	"github.com/quizdesk/attempt-service/internal/utils"
)

// EnterResult is what the exam page needs to render: the redacted spec, the
// countdown remainder and any answers saved before a reload.
type EnterResult struct {
	Attempt          *models.Attempt
	Spec             *models.ExamSpec
	RemainingSeconds int
	Answers          models.AnswerMap
}

// StatusResult is the lightweight polling snapshot.
type StatusResult struct {
	Status            models.AttemptStatus `json:"status"`
	RemainingSeconds  int                  `json:"remaining_seconds"`
	SubmitWaitSeconds int                  `json:"submit_wait_seconds"`
	Finalized         bool                 `json:"finalized"`
}

// AttemptService is the candidate-facing session controller: exam entry,
// answer saving and submission, all serialized per token.
type AttemptService interface {
	Enter(ctx context.Context, tok string) (*EnterResult, error)
	SaveAnswers(ctx context.Context, tok string, answers models.AnswerMap) error
	Submit(ctx context.Context, tok string) (*models.Attempt, error)
	Status(ctx context.Context, tok string) (*StatusResult, error)
}

type attemptService struct {
	repo      repositories.Repository
	exams     repositories.ExamRepository
	locks     *lock.Manager
	finalizer Finalizer
	logger    utils.Logger
	now       func() time.Time
}

func NewAttemptService(repo repositories.Repository, exams repositories.ExamRepository, locks *lock.Manager, finalizer Finalizer, logger utils.Logger) AttemptService {
	return &attemptService{
		repo:      repo,
		exams:     exams,
		locks:     locks,
		finalizer: finalizer,
		logger:    logger,
		now:       time.Now,
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// Enter opens the exam page. The first successful call starts the countdown;
// reloads keep the original deadline. Entering an already-expired attempt
// force-finalizes it.
func (s *attemptService) Enter(ctx context.Context, tok string) (*EnterResult, error) {
	var result *EnterResult
	err := s.locks.WithLock(tok, func() error {
		attempt, err := s.loadAttempt(ctx, tok)
		if err != nil {
			return err
		}
		if attempt.Finalized() {
			return ErrAlreadyFinalized
		}
		if attempt.VerifyLocked {
			return ErrVerifyLocked
		}
		if attempt.Status == models.AttemptStatusInvited {
			return ErrAttemptNotVerified
		}

		if collected, err := s.finalizer.FinalizeIfExpired(ctx, attempt); err != nil {
			return err
		} else if collected {
			return ErrAttemptTimeExpired
		}

		if attempt.StartedAt == nil {
			started := s.now().UTC()
			attempt.StartedAt = &started
			attempt.AdvanceStatus(models.AttemptStatusInExam)
			if err := s.repo.Attempt().Save(ctx, attempt); err != nil {
				return fmt.Errorf("failed to save attempt: %w", err)
			}
			s.logger.Info("countdown started",
				"token", tok,
				"time_limit_seconds", attempt.TimeLimitSeconds)
		}

		spec, err := s.exams.GetPublicSpec(ctx, attempt.ExamKey)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrExamNotFound
			}
			return fmt.Errorf("failed to load exam spec: %w", err)
		}

		result = &EnterResult{
			Attempt:          attempt,
			Spec:             spec,
			RemainingSeconds: attempt.RemainingSeconds(s.now()),
			Answers:          attempt.AnswerValues(),
		}
		return nil
	})
	return result, err
}

// SaveAnswers merges a batch of answers with last-write-wins per question.
// Saving against an expired attempt force-finalizes it and reports expiry.
func (s *attemptService) SaveAnswers(ctx context.Context, tok string, answers models.AnswerMap) error {
	return s.locks.WithLock(tok, func() error {
		attempt, err := s.loadAttempt(ctx, tok)
		if err != nil {
			return err
		}
		if attempt.Finalized() {
			return ErrAlreadyFinalized
		}
		if attempt.StartedAt == nil {
			return ErrAttemptNotStarted
		}

		if collected, err := s.finalizer.FinalizeIfExpired(ctx, attempt); err != nil {
			return err
		} else if collected {
			return ErrAttemptTimeExpired
		}

		merged := attempt.AnswerValues()
		for qid, value := range answers {
			merged.Put(qid, value)
		}
		attempt.SetAnswers(merged)
		if err := s.repo.Attempt().Save(ctx, attempt); err != nil {
			return fmt.Errorf("failed to save attempt: %w", err)
		}
		return nil
	})
}

// Submit finalizes voluntarily. Submissions before the minimum in-exam time
// are rejected with the remaining wait so the client can show a countdown.
func (s *attemptService) Submit(ctx context.Context, tok string) (*models.Attempt, error) {
	var finalized *models.Attempt
	err := s.locks.WithLock(tok, func() error {
		attempt, err := s.loadAttempt(ctx, tok)
		if err != nil {
			return err
		}
		if attempt.Finalized() {
			finalized = attempt
			return ErrAlreadyFinalized
		}
		if attempt.StartedAt == nil {
			return ErrAttemptNotStarted
		}

		if collected, err := s.finalizer.FinalizeIfExpired(ctx, attempt); err != nil {
			return err
		} else if collected {
			finalized = attempt
			return nil
		}

		if attempt.MinSubmitSeconds > 0 {
			elapsed := attempt.ElapsedSeconds(s.now())
			if elapsed < attempt.MinSubmitSeconds {
				return NewTooEarlyError(int64(attempt.MinSubmitSeconds - elapsed))
			}
		}

		if err := s.finalizer.Finalize(ctx, attempt, false); err != nil {
			return err
		}
		finalized = attempt
		return nil
	})
	return finalized, err
}

// Status reports the countdown without mutating anything, except that an
// expired attempt is collected on sight.
func (s *attemptService) Status(ctx context.Context, tok string) (*StatusResult, error) {
	var result *StatusResult
	err := s.locks.WithLock(tok, func() error {
		attempt, err := s.loadAttempt(ctx, tok)
		if err != nil {
			return err
		}

		if !attempt.Finalized() {
			if _, err := s.finalizer.FinalizeIfExpired(ctx, attempt); err != nil {
				return err
			}
		}

		wait := 0
		if attempt.MinSubmitSeconds > 0 && attempt.StartedAt != nil {
			if elapsed := attempt.ElapsedSeconds(s.now()); elapsed < attempt.MinSubmitSeconds {
				wait = attempt.MinSubmitSeconds - elapsed
			}
		}
		result = &StatusResult{
			Status:            attempt.Status,
			RemainingSeconds:  attempt.RemainingSeconds(s.now()),
			SubmitWaitSeconds: wait,
			Finalized:         attempt.Finalized(),
		}
		return nil
	})
	return result, err
}

func (s *attemptService) loadAttempt(ctx context.Context, tok string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().Get(ctx, tok)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	return attempt, nil
}
