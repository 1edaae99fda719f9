package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/repositories"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ExamPostgreSQL struct {
	db *gorm.DB
}

func NewExamPostgreSQL(db *gorm.DB) repositories.ExamRepository {
	return &ExamPostgreSQL{db: db}
}

func (e *ExamPostgreSQL) GetSpec(ctx context.Context, examKey string) (*models.ExamSpec, error) {
	var exam models.Exam
	if err := e.db.WithContext(ctx).First(&exam, "key = ?", examKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	if exam.Tombstoned {
		return nil, repositories.ErrNotFound
	}
	var spec models.ExamSpec
	if err := json.Unmarshal(exam.Spec, &spec); err != nil {
		return nil, fmt.Errorf("decode exam spec %s: %w", examKey, err)
	}
	spec.ExamKey = exam.Key
	return &spec, nil
}

func (e *ExamPostgreSQL) GetPublicSpec(ctx context.Context, examKey string) (*models.ExamSpec, error) {
	spec, err := e.GetSpec(ctx, examKey)
	if err != nil {
		return nil, err
	}
	return spec.Redacted(), nil
}

func (e *ExamPostgreSQL) Put(ctx context.Context, spec *models.ExamSpec) error {
	raw, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encode exam spec %s: %w", spec.ExamKey, err)
	}
	exam := models.Exam{
		Key:   spec.ExamKey,
		Title: spec.Title,
		Spec:  datatypes.JSON(raw),
	}
	return e.db.WithContext(ctx).Save(&exam).Error
}

func (e *ExamPostgreSQL) MarkDeleted(ctx context.Context, examKey string) error {
	res := e.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("key = ?", examKey).
		Update("tombstoned", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
