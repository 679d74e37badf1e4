// clean.go — удаление тестовых записей из обеих таблиц.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avolkhin/bitsync/internal/domain/model"
	"github.com/avolkhin/bitsync/internal/repository"
)

// CleanService — сервис удаления тестовых записей.
type CleanService struct {
	stagingRepo    repository.StagingRepository
	processingRepo repository.ProcessingRepository
	testPrefix     string
	logger         *slog.Logger
}

// NewCleanService создаёт сервис очистки тестовых данных.
func NewCleanService(
	stagingRepo repository.StagingRepository,
	processingRepo repository.ProcessingRepository,
	testPrefix string,
	logger *slog.Logger,
) *CleanService {
	return &CleanService{
		stagingRepo:    stagingRepo,
		processingRepo: processingRepo,
		testPrefix:     testPrefix,
		logger:         logger.With(slog.String("component", "clean_service")),
	}
}

// Clean удаляет записи с тестовым префиксом названия из обеих таблиц.
func (s *CleanService) Clean(ctx context.Context) (*model.CleanResult, error) {
	stagingDeleted, err := s.stagingRepo.DeleteTestData(ctx, s.testPrefix)
	if err != nil {
		return nil, fmt.Errorf("очистка staging: %w", err)
	}

	processingDeleted, err := s.processingRepo.DeleteTestData(ctx, s.testPrefix)
	if err != nil {
		return nil, fmt.Errorf("очистка processing: %w", err)
	}

	result := &model.CleanResult{
		StagingDeleted:    int(stagingDeleted),
		ProcessingDeleted: int(processingDeleted),
	}

	s.logger.Info("Тестовые записи удалены",
		slog.String("prefix", s.testPrefix),
		slog.Int("staging", result.StagingDeleted),
		slog.Int("processing", result.ProcessingDeleted),
	)

	return result, nil
}
