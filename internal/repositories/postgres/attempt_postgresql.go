package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/repositories"
	"gorm.io/gorm"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) Get(ctx context.Context, token string) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).First(&attempt, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.Attempt) error {
	err := a.db.WithContext(ctx).Create(attempt).Error
	if err != nil && isDuplicateKey(err) {
		return repositories.ErrAlreadyExists
	}
	return err
}

func (a *AttemptPostgreSQL) Save(ctx context.Context, attempt *models.Attempt) error {
	return a.db.WithContext(ctx).Save(attempt).Error
}

func (a *AttemptPostgreSQL) ListUnfinished(ctx context.Context) ([]*models.Attempt, error) {
	var attempts []*models.Attempt
	err := a.db.WithContext(ctx).
		Where("status <> ?", models.AttemptStatusFinished).
		Find(&attempts).Error
	return attempts, err
}

func (a *AttemptPostgreSQL) ListFinished(ctx context.Context) ([]*models.Attempt, error) {
	var attempts []*models.Attempt
	err := a.db.WithContext(ctx).
		Where("status = ?", models.AttemptStatusFinished).
		Order("ended_at").
		Find(&attempts).Error
	return attempts, err
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// pgx surfaces SQLSTATE 23505 for unique violations.
	return strings.Contains(err.Error(), "23505")
}
