// fetch.go — сервис выгрузки удалённой таблицы в staging.
//
// FetchService выполняет полный цикл обновления staging_records:
//  1. Разбор URL таблицы (app token + table id)
//  2. Постраничная выгрузка записей (частичный результат при ошибке страницы;
//     пустая успешная выгрузка оставляет staging нетронутым)
//  3. Удаление всех нетестовых записей staging
//  4. Извлечение полей по настроенному маппингу и upsert
//
// Prometheus-метрики:
//   - bitsync_fetch_duration_seconds — длительность выгрузки
//   - bitsync_fetch_records_total — количество записей (по операциям)
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/avolkhin/bitsync/internal/bitable"
	"github.com/avolkhin/bitsync/internal/config"
	"github.com/avolkhin/bitsync/internal/domain/model"
	"github.com/avolkhin/bitsync/internal/repository"
)

// Prometheus-метрики выгрузки.
var (
	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bitsync_fetch_duration_seconds",
		Help:    "Длительность выгрузки удалённой таблицы в staging",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s … ~204s
	})

	fetchRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitsync_fetch_records_total",
		Help: "Количество записей при выгрузке",
	}, []string{"operation"}) // operation: fetched, upserted, skipped
)

// recordLister — часть клиента API таблиц, нужная FetchService.
type recordLister interface {
	ListRecords(ctx context.Context, appToken, tableID string, pageSize int) ([]bitable.Record, error)
}

// FetchService — сервис выгрузки удалённой таблицы в staging.
type FetchService struct {
	client        recordLister
	stagingRepo   repository.StagingRepository
	syncStateRepo repository.SyncStateRepository
	cfg           *config.Config
	logger        *slog.Logger
}

// NewFetchService создаёт сервис выгрузки.
func NewFetchService(
	client recordLister,
	stagingRepo repository.StagingRepository,
	syncStateRepo repository.SyncStateRepository,
	cfg *config.Config,
	logger *slog.Logger,
) *FetchService {
	return &FetchService{
		client:        client,
		stagingRepo:   stagingRepo,
		syncStateRepo: syncStateRepo,
		cfg:           cfg,
		logger:        logger.With(slog.String("component", "fetch_service")),
	}
}

// Fetch выполняет полный цикл обновления staging.
// Ошибка очередной страницы не прерывает выгрузку: уже полученные
// записи обрабатываются, ошибка логируется.
func (s *FetchService) Fetch(ctx context.Context) (*model.FetchResult, error) {
	startedAt := time.Now().UTC()

	appToken, tableID, err := bitable.ParseBitableURL(s.cfg.BitableURL)
	if err != nil {
		return nil, fmt.Errorf("разбор URL таблицы: %w", err)
	}

	records, err := s.client.ListRecords(ctx, appToken, tableID, s.cfg.PageSize)
	if err != nil {
		if len(records) == 0 {
			return nil, fmt.Errorf("выгрузка записей: %w", err)
		}
		// Частичный результат: продолжаем с тем, что успели получить
		s.logger.Warn("Выгрузка прервана, обрабатывается частичный результат",
			slog.Int("records", len(records)),
			slog.String("error", err.Error()),
		)
	}

	// Пустая таблица без ошибки — не повод терять прошлый снимок staging
	if len(records) == 0 {
		s.logger.Warn("Не получено ни одной записи, staging не изменяется")
		completedAt := time.Now().UTC()
		fetchDuration.Observe(completedAt.Sub(startedAt).Seconds())
		return &model.FetchResult{
			StartedAt:   startedAt,
			CompletedAt: completedAt,
		}, nil
	}

	s.logger.Info("Записи получены из удалённой таблицы",
		slog.String("app_token", appToken),
		slog.String("table_id", tableID),
		slog.Int("count", len(records)),
	)

	// Полное обновление: удаляем все записи, кроме тестовых
	deleted, err := s.stagingRepo.DeleteNonTest(ctx, s.cfg.TestTitlePrefix)
	if err != nil {
		return nil, fmt.Errorf("очистка staging: %w", err)
	}

	upserted, skipped := 0, 0
	for _, rec := range records {
		sr, ok := s.extractRecord(rec)
		if !ok {
			skipped++
			continue
		}
		if err := s.stagingRepo.Upsert(ctx, sr); err != nil {
			return nil, fmt.Errorf("upsert записи %q/%q: %w", sr.Category, sr.Title, err)
		}
		upserted++
	}

	now := time.Now().UTC()
	if err := s.syncStateRepo.UpdateFetchAt(ctx, now); err != nil {
		s.logger.Warn("Ошибка обновления last_fetch_at", slog.String("error", err.Error()))
	}

	completedAt := time.Now().UTC()
	duration := completedAt.Sub(startedAt).Seconds()
	fetchDuration.Observe(duration)
	fetchRecordsTotal.WithLabelValues("fetched").Add(float64(len(records)))
	fetchRecordsTotal.WithLabelValues("upserted").Add(float64(upserted))
	fetchRecordsTotal.WithLabelValues("skipped").Add(float64(skipped))

	result := &model.FetchResult{
		Fetched:     len(records),
		Upserted:    upserted,
		Skipped:     skipped,
		Deleted:     int(deleted),
		StartedAt:   startedAt,
		CompletedAt: completedAt,
	}

	s.logger.Info("Выгрузка завершена",
		slog.Int("fetched", result.Fetched),
		slog.Int("upserted", result.Upserted),
		slog.Int("skipped", result.Skipped),
		slog.Int("deleted", result.Deleted),
		slog.String("duration", fmt.Sprintf("%.2fs", duration)),
	)

	return result, nil
}

// extractRecord извлекает staging-запись из полей записи удалённой таблицы
// по настроенному маппингу. Записи без названия, субтитров или описаний
// пропускаются. Незаполненное время отправки заменяется текущим;
// заполненное, но неразбираемое значение даёт пустую строку.
func (s *FetchService) extractRecord(rec bitable.Record) (*model.StagingRecord, bool) {
	fields := s.cfg.Fields

	title := strings.TrimSpace(bitable.StringifyField(rec.Fields[fields.Title]))
	if title == "" {
		s.logger.Debug("Запись без названия пропущена", slog.String("record_id", rec.RecordID))
		return nil, false
	}

	subtitles := bitable.StringifyField(rec.Fields[fields.Subtitles])
	if subtitles == "" {
		s.logger.Debug("Запись без субтитров пропущена",
			slog.String("record_id", rec.RecordID),
			slog.String("title", title),
		)
		return nil, false
	}

	descriptions := bitable.StringifyField(rec.Fields[fields.Descriptions])
	if descriptions == "" {
		s.logger.Debug("Запись без описаний пропущена",
			slog.String("record_id", rec.RecordID),
			slog.String("title", title),
		)
		return nil, false
	}

	var submittedAt string
	if raw := rec.Fields[fields.SubmittedAt]; bitable.StringifyField(raw) == "" {
		// Поле не заполнено: подставляем текущее время
		submittedAt = time.Now().Format("2006-01-02 15:04:05")
	} else {
		submittedAt = bitable.FormatSubmitTime(raw)
	}

	return &model.StagingRecord{
		Category:     strings.TrimSpace(bitable.StringifyField(rec.Fields[fields.Category])),
		Title:        title,
		Subtitles:    subtitles,
		Descriptions: descriptions,
		SubmittedAt:  submittedAt,
	}, true
}
