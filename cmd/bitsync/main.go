// Точка входа bitsync — batch-утилиты синхронизации записей
// многомерной таблицы (Feishu Bitable) с PostgreSQL и скачивания
// прикреплённых файлов. Запускается cron'ом, каждая команда выполняет
// одну операцию и печатает JSON-сводку в stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"

	"github.com/avolkhin/bitsync/internal/bitable"
	"github.com/avolkhin/bitsync/internal/config"
	"github.com/avolkhin/bitsync/internal/database"
	"github.com/avolkhin/bitsync/internal/repository"
	"github.com/avolkhin/bitsync/internal/service"
)

var rootCmd = &cobra.Command{
	Use:     "bitsync",
	Short:   "Синхронизация многомерной таблицы с PostgreSQL и скачивание файлов",
	Version: config.Version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app — собранные зависимости одного запуска.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	pool     *pgxpool.Pool
	runID    string
	fetch    *service.FetchService
	sync     *service.SyncService
	download *service.DownloadService
	daily    *service.DailyService
	clean    *service.CleanService
}

// newApp загружает конфигурацию, применяет миграции, подключается к БД
// и собирает сервисный слой. Вызывающий обязан вызвать close().
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("загрузка конфигурации: %w", err)
	}

	runID := uuid.New().String()
	logger := config.SetupLogger(cfg).With(slog.String("run_id", runID))

	logger.Info("bitsync запускается", slog.String("version", config.Version))

	if err := database.Migrate(cfg, logger); err != nil {
		return nil, fmt.Errorf("миграции БД: %w", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("подключение к PostgreSQL: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	client := bitable.New(cfg.BitableBaseURL, cfg.AppID, cfg.AppSecret, httpClient, logger)

	stagingRepo := repository.NewStagingRepository(pool)
	processingRepo := repository.NewProcessingRepository(pool)
	syncStateRepo := repository.NewSyncStateRepository(pool)

	cache, err := service.NewBlobCache(cfg.BlobCacheSize)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("создание кэша файлов: %w", err)
	}

	fetchSvc := service.NewFetchService(client, stagingRepo, syncStateRepo, cfg, logger)
	syncSvc := service.NewSyncService(stagingRepo, processingRepo, syncStateRepo, cfg, logger)
	downloadSvc := service.NewDownloadService(client, processingRepo, syncStateRepo, cache, cfg.SaveRoot, cfg.DownloadTimeout, logger)
	dailySvc := service.NewDailyService(fetchSvc, syncSvc, downloadSvc, logger)
	cleanSvc := service.NewCleanService(stagingRepo, processingRepo, cfg.TestTitlePrefix, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		runID:    runID,
		fetch:    fetchSvc,
		sync:     syncSvc,
		download: downloadSvc,
		daily:    dailySvc,
		clean:    cleanSvc,
	}, nil
}

// close освобождает ресурсы и отправляет метрики, если настроен Pushgateway.
func (a *app) close(job string) {
	a.pushMetrics(job)
	a.pool.Close()
}

// pushMetrics отправляет накопленные за запуск метрики в Pushgateway.
func (a *app) pushMetrics(job string) {
	if a.cfg.PushgatewayURL == "" {
		return
	}

	err := push.New(a.cfg.PushgatewayURL, job).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("run_id", a.runID).
		Push()
	if err != nil {
		a.logger.Warn("Ошибка отправки метрик в Pushgateway",
			slog.String("url", a.cfg.PushgatewayURL),
			slog.String("error", err.Error()),
		)
		return
	}

	a.logger.Debug("Метрики отправлены в Pushgateway", slog.String("job", job))
}

// printJSON печатает сводку операции в stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
