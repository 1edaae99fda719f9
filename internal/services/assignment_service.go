package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/repositories"
	"github.com/quizdesk/attempt-service/internal/token"
	"github.com/quizdesk/attempt-service/internal/utils"
	"github.com/quizdesk/attempt-service/internal/validator"
)

// maxTokenRetries bounds the collision retry loop on assignment creation.
// Collisions on an 11-character token are vanishingly rare; hitting the bound
// means something is wrong with the store, not the token space.
const maxTokenRetries = 5

// AssignmentPolicy carries the operator defaults snapshotted into each new
// attempt. Per-assignment overrides win over these.
type AssignmentPolicy struct {
	TimeLimitSeconds  int
	MinSubmitSeconds  int
	MinSubmitFloor    int
	VerifyMaxAttempts int
	PassThreshold     int
}

type CreateAssignmentRequest struct {
	ExamKey string `json:"exam_key" validate:"required"`

	// Either an existing candidate id, or name+phone to create one.
	CandidateID    uint   `json:"candidate_id"`
	CandidateName  string `json:"candidate_name" validate:"omitempty,min=1,max=64"`
	CandidatePhone string `json:"candidate_phone" validate:"omitempty,min=5,max=20"`

	InviteStart *time.Time `json:"invite_start"`
	InviteEnd   *time.Time `json:"invite_end"`

	TimeLimitSeconds *int `json:"time_limit_seconds" validate:"omitempty,min=0"`
	MinSubmitSeconds *int `json:"min_submit_seconds" validate:"omitempty,min=0"`
	PassThreshold    *int `json:"pass_threshold" validate:"omitempty,min=0,max=100"`
}

// AssignmentService creates invitations and manages exam specs for operators.
type AssignmentService interface {
	Create(ctx context.Context, req *CreateAssignmentRequest) (*models.Attempt, error)
	PutExam(ctx context.Context, spec *models.ExamSpec) error
	DeleteExam(ctx context.Context, examKey string) error
	GetAttempt(ctx context.Context, tok string) (*models.Attempt, error)
	ListArchives(ctx context.Context, tok string) ([]*models.ArchiveRecord, error)
}

type assignmentService struct {
	repo      repositories.Repository
	exams     repositories.ExamRepository
	tokens    *token.Generator
	policy    AssignmentPolicy
	logger    utils.Logger
	validator *validator.Validator
}

func NewAssignmentService(repo repositories.Repository, exams repositories.ExamRepository, tokens *token.Generator, policy AssignmentPolicy, logger utils.Logger, v *validator.Validator) AssignmentService {
	return &assignmentService{
		repo:      repo,
		exams:     exams,
		tokens:    tokens,
		policy:    policy,
		logger:    logger,
		validator: v,
	}
}

func (s *assignmentService) Create(ctx context.Context, req *CreateAssignmentRequest) (*models.Attempt, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, err)
	}

	if _, err := s.exams.GetSpec(ctx, req.ExamKey); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to load exam spec: %w", err)
	}

	candidate, err := s.resolveCandidate(ctx, req)
	if err != nil {
		return nil, err
	}

	timeLimit := s.policy.TimeLimitSeconds
	if req.TimeLimitSeconds != nil {
		timeLimit = *req.TimeLimitSeconds
	}
	minSubmit := s.policy.MinSubmitSeconds
	if req.MinSubmitSeconds != nil {
		minSubmit = *req.MinSubmitSeconds
	}
	passThreshold := s.policy.PassThreshold
	if req.PassThreshold != nil {
		passThreshold = *req.PassThreshold
	}

	attempt := &models.Attempt{
		ExamKey:           req.ExamKey,
		CandidateID:       candidate.ID,
		Status:            models.AttemptStatusInvited,
		InviteStart:       req.InviteStart,
		InviteEnd:         req.InviteEnd,
		TimeLimitSeconds:  timeLimit,
		MinSubmitSeconds:  computeMinSubmit(timeLimit, minSubmit, s.policy.MinSubmitFloor),
		VerifyMaxAttempts: s.policy.VerifyMaxAttempts,
		PassThreshold:     passThreshold,
	}
	attempt.SetAnswers(models.AnswerMap{})

	for i := 0; i < maxTokenRetries; i++ {
		attempt.Token = s.tokens.New(req.ExamKey, candidate.ID, candidate.Phone)
		err = s.repo.Attempt().Create(ctx, attempt)
		if err == nil {
			s.logger.Info("assignment created",
				"token", attempt.Token,
				"exam_key", attempt.ExamKey,
				"candidate_id", candidate.ID)
			return attempt, nil
		}
		if !errors.Is(err, repositories.ErrAlreadyExists) {
			return nil, fmt.Errorf("failed to create attempt: %w", err)
		}
		s.logger.Warn("token collision, retrying", "exam_key", req.ExamKey, "retry", i+1)
	}
	return nil, ErrTokenCollision
}

func (s *assignmentService) resolveCandidate(ctx context.Context, req *CreateAssignmentRequest) (*models.Candidate, error) {
	if req.CandidateID != 0 {
		candidate, err := s.repo.Candidate().Get(ctx, req.CandidateID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to load candidate: %w", err)
		}
		return candidate, nil
	}

	if req.CandidateName == "" || req.CandidatePhone == "" {
		return nil, fmt.Errorf("%w: candidate_id or candidate_name and candidate_phone required", ErrValidationFailed)
	}
	candidate := &models.Candidate{
		Name:   req.CandidateName,
		Phone:  req.CandidatePhone,
		Status: models.CandidateStatusCreated,
	}
	if err := s.repo.Candidate().Create(ctx, candidate); err != nil {
		return nil, fmt.Errorf("failed to create candidate: %w", err)
	}
	return candidate, nil
}

func (s *assignmentService) PutExam(ctx context.Context, spec *models.ExamSpec) error {
	if errs := s.validator.ValidateSpec(spec); len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrValidationFailed, errs)
	}
	if err := s.exams.Put(ctx, spec); err != nil {
		return fmt.Errorf("failed to store exam spec: %w", err)
	}
	s.logger.Info("exam spec stored", "exam_key", spec.ExamKey, "questions", len(spec.Questions))
	return nil
}

func (s *assignmentService) DeleteExam(ctx context.Context, examKey string) error {
	if err := s.exams.MarkDeleted(ctx, examKey); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to tombstone exam: %w", err)
	}
	s.logger.Info("exam tombstoned", "exam_key", examKey)
	return nil
}

func (s *assignmentService) GetAttempt(ctx context.Context, tok string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().Get(ctx, tok)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	return attempt, nil
}

func (s *assignmentService) ListArchives(ctx context.Context, tok string) ([]*models.ArchiveRecord, error) {
	return s.repo.Archive().ListByToken(ctx, tok)
}

// computeMinSubmit derives the effective minimum in-exam time: attempts with
// no countdown have no floor at all, timed attempts never go below the
// configured floor.
func computeMinSubmit(timeLimit, configured, floor int) int {
	if timeLimit <= 0 {
		return 0
	}
	if configured < floor {
		return floor
	}
	return configured
}
