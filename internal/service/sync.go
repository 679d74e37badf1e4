// sync.go — сервис сверки staging -> processing.
//
// SyncService переносит новые записи из staging_records в processing_records
// и обновляет уже присутствующие:
//  1. Пустой staging заполняется тестовыми записями (для отладки
//     одиночного запуска sync без предварительного fetch)
//  2. Новые записи (нет пары (category, title) в processing) вставляются
//     с done = 0, не более NewRecordsLimit за запуск, самые свежие первыми
//  3. Существующие записи перезаписываются payload'ом из staging,
//     done сбрасывается в 0 безусловно — запись уходит на повторное
//     скачивание даже при неизменном payload
//
// Prometheus-метрики:
//   - bitsync_sync_duration_seconds — длительность сверки
//   - bitsync_sync_records_total — количество записей (по операциям)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/avolkhin/bitsync/internal/config"
	"github.com/avolkhin/bitsync/internal/domain/model"
	"github.com/avolkhin/bitsync/internal/repository"
)

// Prometheus-метрики сверки.
var (
	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bitsync_sync_duration_seconds",
		Help:    "Длительность сверки staging -> processing",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	syncRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitsync_sync_records_total",
		Help: "Количество записей при сверке",
	}, []string{"operation"}) // operation: inserted, updated, conflict
)

// SyncService — сервис сверки staging -> processing.
type SyncService struct {
	stagingRepo    repository.StagingRepository
	processingRepo repository.ProcessingRepository
	syncStateRepo  repository.SyncStateRepository
	cfg            *config.Config
	logger         *slog.Logger
}

// NewSyncService создаёт сервис сверки.
func NewSyncService(
	stagingRepo repository.StagingRepository,
	processingRepo repository.ProcessingRepository,
	syncStateRepo repository.SyncStateRepository,
	cfg *config.Config,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		stagingRepo:    stagingRepo,
		processingRepo: processingRepo,
		syncStateRepo:  syncStateRepo,
		cfg:            cfg,
		logger:         logger.With(slog.String("component", "sync_service")),
	}
}

// Sync выполняет одну сверку staging -> processing.
func (s *SyncService) Sync(ctx context.Context) (*model.SyncResult, error) {
	startedAt := time.Now().UTC()

	// Пустой staging заполняется тестовыми записями
	stagingBefore, err := s.stagingRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("подсчёт staging: %w", err)
	}

	seeded := 0
	if stagingBefore == 0 {
		s.logger.Info("Staging пуст, добавляются тестовые записи")
		seeded, err = s.seedTestData(ctx)
		if err != nil {
			return nil, fmt.Errorf("добавление тестовых записей: %w", err)
		}
		stagingBefore = seeded
	}

	processingBefore, err := s.processingRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("подсчёт processing: %w", err)
	}

	// Новые записи: не более лимита, самые свежие первыми
	newRecords, err := s.stagingRepo.SelectNew(ctx, s.cfg.NewRecordsLimit)
	if err != nil {
		return nil, fmt.Errorf("выборка новых записей: %w", err)
	}

	inserted := 0
	for i := range newRecords {
		rec := &newRecords[i]
		if err := s.processingRepo.Insert(ctx, rec); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				// Запись появилась между выборкой и вставкой — не дубль, идём дальше
				s.logger.Warn("Конфликт вставки, запись уже существует",
					slog.String("category", rec.Category),
					slog.String("title", rec.Title),
				)
				syncRecordsTotal.WithLabelValues("conflict").Inc()
				continue
			}
			return nil, fmt.Errorf("вставка записи %q/%q: %w", rec.Category, rec.Title, err)
		}
		inserted++
		s.logger.Info("Новая запись перенесена в processing",
			slog.String("category", rec.Category),
			slog.String("title", rec.Title),
			slog.String("submitted_at", rec.SubmittedAt),
		)
	}

	// Существующие записи: payload перезаписывается, done сбрасывается
	existingRecords, err := s.stagingRepo.SelectExisting(ctx)
	if err != nil {
		return nil, fmt.Errorf("выборка существующих записей: %w", err)
	}

	updated := 0
	for i := range existingRecords {
		rec := &existingRecords[i]
		if err := s.processingRepo.Refresh(ctx, rec); err != nil {
			return nil, fmt.Errorf("обновление записи %q/%q: %w", rec.Category, rec.Title, err)
		}
		updated++
	}

	processingAfter, err := s.processingRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("подсчёт processing после сверки: %w", err)
	}

	now := time.Now().UTC()
	if err := s.syncStateRepo.UpdateSyncAt(ctx, now); err != nil {
		s.logger.Warn("Ошибка обновления last_sync_at", slog.String("error", err.Error()))
	}

	duration := time.Since(startedAt).Seconds()
	syncDuration.Observe(duration)
	syncRecordsTotal.WithLabelValues("inserted").Add(float64(inserted))
	syncRecordsTotal.WithLabelValues("updated").Add(float64(updated))

	result := &model.SyncResult{
		StagingBefore:    stagingBefore,
		ProcessingBefore: processingBefore,
		Inserted:         inserted,
		Updated:          updated,
		ProcessingAfter:  processingAfter,
		Seeded:           seeded,
		SyncedAt:         now,
	}

	s.logger.Info("Сверка завершена",
		slog.Int("processing_before", processingBefore),
		slog.Int("processing_after", processingAfter),
		slog.Int("inserted", inserted),
		slog.Int("updated", updated),
		slog.String("duration", fmt.Sprintf("%.2fs", duration)),
	)

	return result, nil
}

// seedTestData добавляет тестовые записи в пустой staging.
// Названия начинаются с тестового префикса, поэтому записи переживают
// полное обновление staging и удаляются командой clean.
func (s *SyncService) seedTestData(ctx context.Context) (int, error) {
	prefix := s.cfg.TestTitlePrefix
	fixtures := []model.StagingRecord{
		{
			Category:     "тест",
			Title:        prefix + "проект1",
			Subtitles:    `[{"file_token":"file_token_test1","name":"субтитры1.txt"}]`,
			Descriptions: `[{"file_token":"file_token_desc1","name":"описание1.txt"}]`,
			SubmittedAt:  "2025-01-01 10:00:00",
		},
		{
			Category:     "тест",
			Title:        prefix + "проект2",
			Subtitles:    `[{"file_token":"file_token_test2","name":"субтитры2.txt"}]`,
			Descriptions: `[{"file_token":"file_token_desc2","name":"описание2.txt"}]`,
			SubmittedAt:  "2025-01-01 11:00:00",
		},
	}

	for i := range fixtures {
		if err := s.stagingRepo.Upsert(ctx, &fixtures[i]); err != nil {
			return i, err
		}
	}

	return len(fixtures), nil
}
