package postgres

import (
	"context"
	"errors"

	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/repositories"
	"gorm.io/gorm"
)

type CandidatePostgreSQL struct {
	db *gorm.DB
}

func NewCandidatePostgreSQL(db *gorm.DB) repositories.CandidateRepository {
	return &CandidatePostgreSQL{db: db}
}

func (c *CandidatePostgreSQL) Get(ctx context.Context, id uint) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := c.db.WithContext(ctx).First(&candidate, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &candidate, nil
}

func (c *CandidatePostgreSQL) Create(ctx context.Context, candidate *models.Candidate) error {
	return c.db.WithContext(ctx).Create(candidate).Error
}

func (c *CandidatePostgreSQL) SetStatus(ctx context.Context, id uint, status models.CandidateStatus) error {
	return c.db.WithContext(ctx).
		Model(&models.Candidate{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (c *CandidatePostgreSQL) UpdateResult(ctx context.Context, id uint, result models.CandidateResult) error {
	updates := map[string]any{
		"status":       result.Status,
		"latest_score": result.Score,
	}
	if result.ExamStartedAt != nil {
		updates["exam_started_at"] = result.ExamStartedAt
	}
	if result.ExamSubmittedAt != nil {
		updates["exam_submitted_at"] = result.ExamSubmittedAt
	}
	if result.DurationSeconds != nil {
		updates["duration_seconds"] = result.DurationSeconds
	}
	return c.db.WithContext(ctx).
		Model(&models.Candidate{}).
		Where("id = ?", id).
		Updates(updates).Error
}
