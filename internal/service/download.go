// download.go — сервис скачивания файлов необработанных записей.
//
// DownloadService обходит записи processing_records с done = 0:
//  1. Для записи создаётся каталог <title>_<время с заменой спецсимволов>
//  2. Оба JSON-списка файлов (субтитры и описания) разбираются щадяще:
//     некорректные элементы пропускаются с предупреждением
//  3. Каждый файл скачивается через LRU-кэш по file_token и пишется
//     на диск; неудача одного файла не прерывает остальные
//  4. Если все файлы записи скачались — done = 1 по паре
//     (title, submitted_at); иначе запись остаётся на следующий запуск,
//     уже скачанные файлы не удаляются
//
// Prometheus-метрики:
//   - bitsync_download_duration_seconds — длительность прохода
//   - bitsync_download_records_total — записи по исходам
//   - bitsync_download_files_total — файлы по исходам
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/avolkhin/bitsync/internal/domain/model"
	"github.com/avolkhin/bitsync/internal/repository"
)

// Prometheus-метрики скачивания.
var (
	downloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bitsync_download_duration_seconds",
		Help:    "Длительность прохода скачивания файлов",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	downloadRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitsync_download_records_total",
		Help: "Количество записей при скачивании (по исходу)",
	}, []string{"status"}) // status: success, failed

	downloadFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitsync_download_files_total",
		Help: "Количество файлов при скачивании (по исходу)",
	}, []string{"status"}) // status: downloaded, failed, skipped
)

// nameSanitizer заменяет недопустимые для имён каталогов символы.
var nameSanitizer = strings.NewReplacer(
	":", "_", "/", "_", "\\", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_", " ", "_",
)

// sanitizeName приводит строку к безопасному имени каталога.
func sanitizeName(s string) string {
	return nameSanitizer.Replace(s)
}

// fileDownloader — часть клиента API таблиц, нужная DownloadService.
type fileDownloader interface {
	DownloadFile(ctx context.Context, fileToken string) ([]byte, error)
}

// DownloadService — сервис скачивания файлов необработанных записей.
type DownloadService struct {
	client         fileDownloader
	processingRepo repository.ProcessingRepository
	syncStateRepo  repository.SyncStateRepository
	cache          *BlobCache
	saveRoot       string
	// downloadTimeout ограничивает скачивание одного файла;
	// 0 — без отдельного ограничения
	downloadTimeout time.Duration
	logger          *slog.Logger
}

// NewDownloadService создаёт сервис скачивания.
func NewDownloadService(
	client fileDownloader,
	processingRepo repository.ProcessingRepository,
	syncStateRepo repository.SyncStateRepository,
	cache *BlobCache,
	saveRoot string,
	downloadTimeout time.Duration,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		client:          client,
		processingRepo:  processingRepo,
		syncStateRepo:   syncStateRepo,
		cache:           cache,
		saveRoot:        saveRoot,
		downloadTimeout: downloadTimeout,
		logger:          logger.With(slog.String("component", "download_service")),
	}
}

// ProcessPending скачивает файлы всех записей с done = 0.
// Записи обрабатываются последовательно, неудача одной не прерывает
// остальные.
func (s *DownloadService) ProcessPending(ctx context.Context) (*model.DownloadResult, error) {
	startedAt := time.Now().UTC()

	if err := os.MkdirAll(s.saveRoot, 0o755); err != nil {
		return nil, fmt.Errorf("создание корневого каталога %s: %w", s.saveRoot, err)
	}

	pending, err := s.processingRepo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("выборка необработанных записей: %w", err)
	}

	s.logger.Info("Записи для скачивания найдены", slog.Int("count", len(pending)))

	result := &model.DownloadResult{
		Total:     len(pending),
		StartedAt: startedAt,
	}

	for i := range pending {
		rec := &pending[i]

		s.logger.Info("Обработка записи",
			slog.Int("n", i+1),
			slog.Int("total", len(pending)),
			slog.String("title", rec.Title),
		)

		files, ok := s.downloadRecord(ctx, rec)
		result.FilesDownloaded += files
		if !ok {
			result.Failed++
			downloadRecordsTotal.WithLabelValues("failed").Inc()
			s.logger.Error("Запись обработана с ошибками, останется на следующий запуск",
				slog.String("title", rec.Title),
			)
			continue
		}

		// Ключ не включает категорию: записи с одинаковыми title и
		// submitted_at в разных категориях помечаются вместе
		if _, err := s.processingRepo.MarkDone(ctx, rec.Title, rec.SubmittedAt); err != nil {
			result.Failed++
			downloadRecordsTotal.WithLabelValues("failed").Inc()
			s.logger.Error("Файлы скачаны, но флаг done не обновлён",
				slog.String("title", rec.Title),
				slog.String("error", err.Error()),
			)
			continue
		}

		result.Succeeded++
		downloadRecordsTotal.WithLabelValues("success").Inc()
		s.logger.Info("Запись обработана", slog.String("title", rec.Title))
	}

	now := time.Now().UTC()
	if err := s.syncStateRepo.UpdateDownloadAt(ctx, now); err != nil {
		s.logger.Warn("Ошибка обновления last_download_at", slog.String("error", err.Error()))
	}

	result.CompletedAt = time.Now().UTC()
	duration := result.CompletedAt.Sub(startedAt).Seconds()
	downloadDuration.Observe(duration)

	s.logger.Info("Проход скачивания завершён",
		slog.Int("total", result.Total),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Int("files", result.FilesDownloaded),
		slog.String("duration", fmt.Sprintf("%.2fs", duration)),
	)

	return result, nil
}

// downloadRecord скачивает все файлы одной записи в её каталог.
// Возвращает количество записанных файлов и общий успех: false,
// если хотя бы один файл не скачался или не разобрался.
func (s *DownloadService) downloadRecord(ctx context.Context, rec *model.ProcessingRecord) (int, bool) {
	dir := filepath.Join(s.saveRoot, rec.Title+"_"+sanitizeName(rec.SubmittedAt))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Error("Не удалось создать каталог записи",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
		return 0, false
	}

	downloaded := 0
	ok := true

	for _, group := range []struct {
		label string
		raw   string
	}{
		{"subtitles", rec.Subtitles},
		{"descriptions", rec.Descriptions},
	} {
		refs, skipped := model.ParseFileReferences(group.raw)
		if skipped > 0 {
			downloadFilesTotal.WithLabelValues("skipped").Add(float64(skipped))
			s.logger.Warn("Некорректные элементы списка файлов пропущены",
				slog.String("title", rec.Title),
				slog.String("group", group.label),
				slog.Int("skipped", skipped),
			)
		}

		for _, ref := range refs {
			if err := s.downloadFile(ctx, dir, ref); err != nil {
				ok = false
				downloadFilesTotal.WithLabelValues("failed").Inc()
				s.logger.Warn("Файл не скачан",
					slog.String("title", rec.Title),
					slog.String("name", ref.Name),
					slog.String("file_token", ref.FileToken),
					slog.String("error", err.Error()),
				)
				continue
			}
			downloaded++
			downloadFilesTotal.WithLabelValues("downloaded").Inc()
		}
	}

	return downloaded, ok
}

// downloadFile получает содержимое файла (из кэша или API) и пишет на диск.
// Запрос к API ограничен downloadTimeout, чтобы один зависший файл
// не съел весь запуск.
func (s *DownloadService) downloadFile(ctx context.Context, dir string, ref model.FileReference) error {
	data, hit := s.cache.Get(ref.FileToken)
	if !hit {
		dlCtx := ctx
		if s.downloadTimeout > 0 {
			var cancel context.CancelFunc
			dlCtx, cancel = context.WithTimeout(ctx, s.downloadTimeout)
			defer cancel()
		}

		var err error
		data, err = s.client.DownloadFile(dlCtx, ref.FileToken)
		if err != nil {
			return err
		}
		s.cache.Set(ref.FileToken, data)
	}

	path := filepath.Join(dir, ref.Name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("запись файла %s: %w", path, err)
	}

	s.logger.Debug("Файл сохранён",
		slog.String("path", path),
		slog.Int("bytes", len(data)),
		slog.Bool("cache_hit", hit),
	)

	return nil
}
