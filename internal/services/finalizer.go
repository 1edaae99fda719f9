package services

import (
	"context"
	"fmt"
	"time"

	"github.com/quizdesk/attempt-service/internal/events"
	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/repositories"
	"github.com/quizdesk/attempt-service/internal/utils"
)

// Finalizer drives an attempt to its terminal state exactly once: freeze the
// end time, grade, persist, then propagate to the archive, the candidate
// record and the events topic. Persisting the graded attempt is the only hard
// step; everything after it is best-effort and logged.
//
// Callers must hold the per-token lock.
type Finalizer interface {
	Finalize(ctx context.Context, attempt *models.Attempt, forceCollected bool) error
	FinalizeIfExpired(ctx context.Context, attempt *models.Attempt) (bool, error)
}

type finalizer struct {
	repo      repositories.Repository
	exams     repositories.ExamRepository
	grading   GradingService
	publisher events.EventPublisher
	logger    utils.Logger
	now       func() time.Time
}

func NewFinalizer(repo repositories.Repository, exams repositories.ExamRepository, grading GradingService, publisher events.EventPublisher, logger utils.Logger) Finalizer {
	return &finalizer{
		repo:      repo,
		exams:     exams,
		grading:   grading,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (f *finalizer) Finalize(ctx context.Context, attempt *models.Attempt, forceCollected bool) error {
	if attempt.Finalized() {
		return ErrAlreadyFinalized
	}

	spec, err := f.exams.GetSpec(ctx, attempt.ExamKey)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to load exam spec: %w", err)
	}

	now := f.now().UTC()
	attempt.EndedAt = &now
	attempt.AdvanceStatus(models.AttemptStatusGrading)

	result := f.grading.Grade(ctx, spec, attempt.AnswerValues(), attempt.PassThreshold)
	attempt.SetGrading(result)
	attempt.AdvanceStatus(models.AttemptStatusFinished)

	if err := f.repo.Attempt().Save(ctx, attempt); err != nil {
		return fmt.Errorf("failed to persist finalized attempt: %w", err)
	}

	f.logger.Info("attempt finalized",
		"token", attempt.Token,
		"exam_key", attempt.ExamKey,
		"candidate_id", attempt.CandidateID,
		"percentage", result.Percentage,
		"force_collected", forceCollected)

	f.writeArchive(ctx, attempt, spec, result)
	f.updateCandidate(ctx, attempt, result)
	f.publishFinished(ctx, attempt, result, forceCollected)

	return nil
}

// FinalizeIfExpired force-collects an attempt whose countdown has run out.
// Returns true when finalization happened on this call.
func (f *finalizer) FinalizeIfExpired(ctx context.Context, attempt *models.Attempt) (bool, error) {
	if attempt.Finalized() || attempt.StartedAt == nil {
		return false, nil
	}
	if !attempt.TimeUp(f.now()) {
		return false, nil
	}
	if err := f.Finalize(ctx, attempt, true); err != nil {
		return false, err
	}
	return true, nil
}

func (f *finalizer) writeArchive(ctx context.Context, attempt *models.Attempt, spec *models.ExamSpec, result *models.GradingResult) {
	record := buildArchiveRecord(ctx, f.repo.Candidate(), attempt, spec, result, f.now().UTC())
	if err := f.repo.Archive().Write(ctx, attempt.Token, record); err != nil {
		f.logger.Error("archive write failed", "token", attempt.Token, "error", err)
	}
}

func (f *finalizer) updateCandidate(ctx context.Context, attempt *models.Attempt, result *models.GradingResult) {
	update := models.CandidateResult{
		Status:          models.CandidateStatusFinished,
		Score:           result.Percentage,
		ExamStartedAt:   attempt.StartedAt,
		ExamSubmittedAt: attempt.EndedAt,
		DurationSeconds: attempt.DurationSeconds(),
	}
	if err := f.repo.Candidate().UpdateResult(ctx, attempt.CandidateID, update); err != nil {
		f.logger.Error("candidate result update failed",
			"token", attempt.Token,
			"candidate_id", attempt.CandidateID,
			"error", err)
	}
}

func (f *finalizer) publishFinished(ctx context.Context, attempt *models.Attempt, result *models.GradingResult, forceCollected bool) {
	event := events.NewAttemptFinishedEvent(events.AttemptFinishedEvent{
		Token:           attempt.Token,
		ExamKey:         attempt.ExamKey,
		CandidateID:     attempt.CandidateID,
		Percentage:      result.Percentage,
		Recommend:       result.Recommend,
		ForceCollected:  forceCollected,
		StartedAt:       attempt.StartedAt,
		EndedAt:         attempt.EndedAt,
		DurationSeconds: attempt.DurationSeconds(),
	})
	if err := f.publisher.PublishAttemptEvent(ctx, event); err != nil {
		f.logger.Error("attempt finished event publish failed", "token", attempt.Token, "error", err)
	}
}

// buildArchiveRecord assembles the immutable snapshot from the full spec, the
// saved answers and the grading detail. Candidate lookup failure degrades to
// an id-only record.
func buildArchiveRecord(ctx context.Context, candidates repositories.CandidateRepository, attempt *models.Attempt, spec *models.ExamSpec, result *models.GradingResult, savedAt time.Time) *models.ArchiveRecord {
	record := &models.ArchiveRecord{
		SavedAt:          savedAt,
		CandidateID:      attempt.CandidateID,
		ExamKey:          attempt.ExamKey,
		ExamTitle:        spec.Title,
		StartedAt:        attempt.StartedAt,
		EndedAt:          attempt.EndedAt,
		TimeLimitSeconds: attempt.TimeLimitSeconds,
		MinSubmitSeconds: attempt.MinSubmitSeconds,
		Grading:          result,
		Answers:          attempt.AnswerValues(),
	}

	if candidate, err := candidates.Get(ctx, attempt.CandidateID); err == nil {
		record.CandidateName = candidate.Name
		record.CandidatePhone = candidate.Phone
	}

	answers := attempt.AnswerValues()
	scores := result.ScoreByQID()
	for _, q := range spec.Questions {
		aq := models.ArchiveQuestion{
			QID:       q.QID,
			Label:     q.Label,
			Type:      q.Type,
			MaxPoints: q.MaxPoints,
			Stem:      q.Stem,
			Options:   q.Options,
			Rubric:    q.Rubric,
		}
		if answer, ok := answers[q.QID]; ok {
			a := answer
			aq.Answer = &a
		}
		if score, ok := scores[q.QID]; ok {
			sc := score.Score
			aq.Score = &sc
			aq.Reason = score.Reason
		}
		record.Questions = append(record.Questions, aq)
	}
	return record
}
