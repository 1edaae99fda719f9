package services

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/repositories"
	"github.com/quizdesk/attempt-service/internal/utils"
)

// ExportService renders finished attempts as a spreadsheet for operators.
type ExportService interface {
	ExportResults(ctx context.Context) ([]byte, error)
}

type exportService struct {
	repo   repositories.Repository
	logger utils.Logger
}

func NewExportService(repo repositories.Repository, logger utils.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

func (s *exportService) ExportResults(ctx context.Context) ([]byte, error) {
	attempts, err := s.repo.Attempt().ListFinished(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list finished attempts: %w", err)
	}

	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Token", "Exam", "Candidate", "Phone", "Score", "Recommend",
		"Started At", "Submitted At", "Duration (s)", "Overall",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, attempt := range attempts {
		row := s.attemptRow(ctx, attempt)
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("results exported", "attempts", len(attempts))
	return buf.Bytes(), nil
}

func (s *exportService) attemptRow(ctx context.Context, attempt *models.Attempt) []interface{} {
	name, phone := "", ""
	if candidate, err := s.repo.Candidate().Get(ctx, attempt.CandidateID); err == nil {
		name, phone = candidate.Name, candidate.Phone
	}

	grading := attempt.GradingData()
	score, recommend, overall := 0, false, ""
	if grading != nil {
		score = grading.Percentage
		recommend = grading.Recommend
		overall = grading.OverallReason
	}

	started, submitted := "", ""
	if attempt.StartedAt != nil {
		started = attempt.StartedAt.Format("2006-01-02 15:04:05")
	}
	if attempt.EndedAt != nil {
		submitted = attempt.EndedAt.Format("2006-01-02 15:04:05")
	}
	duration := 0
	if d := attempt.DurationSeconds(); d != nil {
		duration = *d
	}

	return []interface{}{
		attempt.Token, attempt.ExamKey, name, phone, score, recommend,
		started, submitted, duration, overall,
	}
}
