// daily.go — ежедневный конвейер fetch -> sync -> download.
//
// Этапы выполняются строго последовательно, но ошибка этапа не
// останавливает конвейер: sync работает с тем, что есть в staging,
// download — с тем, что есть в processing. Итог считается неуспешным,
// если провалился хотя бы один этап.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avolkhin/bitsync/internal/domain/model"
)

// ErrStageFailed — хотя бы один этап ежедневного запуска завершился ошибкой.
var ErrStageFailed = errors.New("часть этапов ежедневного запуска завершилась ошибкой")

// DailyService — конвейер полного ежедневного запуска.
type DailyService struct {
	fetch    *FetchService
	sync     *SyncService
	download *DownloadService
	logger   *slog.Logger
}

// NewDailyService создаёт конвейер ежедневного запуска.
func NewDailyService(fetch *FetchService, sync *SyncService, download *DownloadService, logger *slog.Logger) *DailyService {
	return &DailyService{
		fetch:    fetch,
		sync:     sync,
		download: download,
		logger:   logger.With(slog.String("component", "daily_service")),
	}
}

// Run выполняет все три этапа и собирает сводку.
// Возвращает ErrStageFailed, если хотя бы один этап провалился;
// сводка заполняется в любом случае.
func (s *DailyService) Run(ctx context.Context, runID string) (*model.DailyResult, error) {
	startedAt := time.Now()

	result := &model.DailyResult{
		RunID:   runID,
		Details: make(map[string]any),
	}

	s.logger.Info("Ежедневный запуск начат", slog.String("run_id", runID))

	if fetchRes, err := s.fetch.Fetch(ctx); err != nil {
		result.Fetch = model.StageStatus{Status: "fail", Error: err.Error()}
		s.logger.Error("Этап выгрузки провален", slog.String("error", err.Error()))
	} else {
		result.Fetch = model.StageStatus{Status: "ok"}
		result.Details["fetch"] = fetchRes
	}

	if syncRes, err := s.sync.Sync(ctx); err != nil {
		result.Sync = model.StageStatus{Status: "fail", Error: err.Error()}
		s.logger.Error("Этап сверки провален", slog.String("error", err.Error()))
	} else {
		result.Sync = model.StageStatus{Status: "ok"}
		result.Details["sync"] = syncRes
	}

	if dlRes, err := s.download.ProcessPending(ctx); err != nil {
		result.Download = model.StageStatus{Status: "fail", Error: err.Error()}
		s.logger.Error("Этап скачивания провален", slog.String("error", err.Error()))
	} else {
		result.Download = model.StageStatus{Status: "ok"}
		result.Details["download"] = dlRes
	}

	duration := time.Since(startedAt)
	result.DurationMS = duration.Milliseconds()

	failed := 0
	for _, st := range []model.StageStatus{result.Fetch, result.Sync, result.Download} {
		if st.Status != "ok" {
			failed++
		}
	}

	s.logger.Info("Ежедневный запуск завершён",
		slog.String("run_id", runID),
		slog.String("fetch", result.Fetch.Status),
		slog.String("sync", result.Sync.Status),
		slog.String("download", result.Download.Status),
		slog.Duration("duration", duration),
	)

	if failed > 0 {
		return result, fmt.Errorf("%w: %d из 3", ErrStageFailed, failed)
	}
	return result, nil
}
