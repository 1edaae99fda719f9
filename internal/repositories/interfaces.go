package repositories

import (
	"context"
	"errors"

	"github.com/quizdesk/attempt-service/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned on a duplicate-key create; the assignment
	// service treats it as a token collision and retries with a fresh token.
	ErrAlreadyExists = errors.New("record already exists")
)

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// AttemptRepository is the keyed attempt store. There are deliberately no
// field-level updates: callers always read, modify and Save the whole record
// inside the per-token lock, so whole-record overwrite is race-free.
type AttemptRepository interface {
	Get(ctx context.Context, token string) (*models.Attempt, error)
	Create(ctx context.Context, attempt *models.Attempt) error
	Save(ctx context.Context, attempt *models.Attempt) error

	// ListUnfinished feeds the auto-collect sweep.
	ListUnfinished(ctx context.Context) ([]*models.Attempt, error)
	// ListFinished feeds the results export.
	ListFinished(ctx context.Context) ([]*models.Attempt, error)
}

// CandidateRepository is the identity lookup the verification gate compares
// against, plus the denormalized latest-result sink updated at finalization.
type CandidateRepository interface {
	Get(ctx context.Context, id uint) (*models.Candidate, error)
	Create(ctx context.Context, candidate *models.Candidate) error
	SetStatus(ctx context.Context, id uint, status models.CandidateStatus) error
	UpdateResult(ctx context.Context, id uint, result models.CandidateResult) error
}

// ExamRepository provides exam specs. GetSpec returns the full spec including
// correct answers and rubrics; GetPublicSpec the redacted candidate view.
type ExamRepository interface {
	GetSpec(ctx context.Context, examKey string) (*models.ExamSpec, error)
	GetPublicSpec(ctx context.Context, examKey string) (*models.ExamSpec, error)
	Put(ctx context.Context, spec *models.ExamSpec) error

	// MarkDeleted tombstones the exam while preserving attempt history.
	MarkDeleted(ctx context.Context, examKey string) error
}

// ArchiveRepository is the append-only audit sink for finished attempts.
type ArchiveRepository interface {
	Write(ctx context.Context, token string, record *models.ArchiveRecord) error
	ListByToken(ctx context.Context, token string) ([]*models.ArchiveRecord, error)
}

// Repository bundles the stores a service needs, in the manner of a unit of
// access rather than a unit of work: attempt mutations are serialized by the
// lock manager, not by transactions.
type Repository interface {
	Attempt() AttemptRepository
	Candidate() CandidateRepository
	Exam() ExamRepository
	Archive() ArchiveRepository
}
