package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/repositories"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ArchivePostgreSQL struct {
	db *gorm.DB
}

func NewArchivePostgreSQL(db *gorm.DB) repositories.ArchiveRepository {
	return &ArchivePostgreSQL{db: db}
}

func (a *ArchivePostgreSQL) Write(ctx context.Context, token string, record *models.ArchiveRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode archive for %s: %w", token, err)
	}
	row := models.Archive{
		Token:       token,
		ExamKey:     record.ExamKey,
		CandidateID: record.CandidateID,
		Payload:     datatypes.JSON(raw),
	}
	return a.db.WithContext(ctx).Create(&row).Error
}

func (a *ArchivePostgreSQL) ListByToken(ctx context.Context, token string) ([]*models.ArchiveRecord, error) {
	var rows []models.Archive
	if err := a.db.WithContext(ctx).Where("token = ?", token).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*models.ArchiveRecord, 0, len(rows))
	for _, row := range rows {
		var rec models.ArchiveRecord
		if err := json.Unmarshal(row.Payload, &rec); err != nil {
			return nil, fmt.Errorf("decode archive %d: %w", row.ID, err)
		}
		out = append(out, &rec)
	}
	return out, nil
}
