package postgres

import (
	"github.com/quizdesk/attempt-service/internal/repositories"
	"gorm.io/gorm"
)

type Repository struct {
	attempt   repositories.AttemptRepository
	candidate repositories.CandidateRepository
	exam      repositories.ExamRepository
	archive   repositories.ArchiveRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &Repository{
		attempt:   NewAttemptPostgreSQL(db),
		candidate: NewCandidatePostgreSQL(db),
		exam:      NewExamPostgreSQL(db),
		archive:   NewArchivePostgreSQL(db),
	}
}

func (r *Repository) Attempt() repositories.AttemptRepository     { return r.attempt }
func (r *Repository) Candidate() repositories.CandidateRepository { return r.candidate }
func (r *Repository) Exam() repositories.ExamRepository           { return r.exam }
func (r *Repository) Archive() repositories.ArchiveRepository     { return r.archive }
