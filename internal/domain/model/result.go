package model

import "time"

// Результаты операций. Сериализуются в JSON и печатаются в stdout
// по завершении каждой команды.

// FetchResult — результат выгрузки удалённой таблицы в staging.
type FetchResult struct {
	// Fetched — записей получено из удалённой таблицы
	Fetched int `json:"fetched"`
	// Upserted — записей вставлено или обновлено в staging
	Upserted int `json:"upserted"`
	// Skipped — записей пропущено (пустые обязательные поля)
	Skipped int `json:"skipped"`
	// Deleted — записей удалено при полном обновлении staging
	Deleted int `json:"deleted"`
	// StartedAt — время начала операции
	StartedAt time.Time `json:"started_at"`
	// CompletedAt — время завершения операции
	CompletedAt time.Time `json:"completed_at"`
}

// SyncResult — результат сверки staging -> processing.
type SyncResult struct {
	// StagingBefore — записей в staging до сверки
	StagingBefore int `json:"staging_before"`
	// ProcessingBefore — записей в processing до сверки
	ProcessingBefore int `json:"processing_before"`
	// Inserted — новых записей перенесено в processing
	Inserted int `json:"inserted"`
	// Updated — существующих записей обновлено (done сброшен в 0)
	Updated int `json:"updated"`
	// ProcessingAfter — записей в processing после сверки
	ProcessingAfter int `json:"processing_after"`
	// Seeded — тестовых записей добавлено в пустой staging
	Seeded int `json:"seeded"`
	// SyncedAt — время сверки
	SyncedAt time.Time `json:"synced_at"`
}

// DownloadResult — результат прохода скачивания файлов.
type DownloadResult struct {
	// Total — записей со сброшенным флагом done
	Total int `json:"total"`
	// Succeeded — записей, все файлы которых скачаны (done -> 1)
	Succeeded int `json:"succeeded"`
	// Failed — записей с хотя бы одной неудачей (остаются done = 0)
	Failed int `json:"failed"`
	// FilesDownloaded — файлов записано на диск
	FilesDownloaded int `json:"files_downloaded"`
	// StartedAt — время начала прохода
	StartedAt time.Time `json:"started_at"`
	// CompletedAt — время завершения прохода
	CompletedAt time.Time `json:"completed_at"`
}

// StageStatus — статус одного этапа ежедневного запуска.
type StageStatus struct {
	// Status — "ok" или "fail"
	Status string `json:"status"`
	// Error — текст ошибки при неудаче
	Error string `json:"error,omitempty"`
}

// DailyResult — сводный результат ежедневного запуска fetch -> sync -> download.
type DailyResult struct {
	RunID    string      `json:"run_id"`
	Fetch    StageStatus `json:"fetch"`
	Sync     StageStatus `json:"sync"`
	Download StageStatus `json:"download"`
	// Details — результаты успешно завершившихся этапов
	Details map[string]any `json:"details,omitempty"`
	// DurationMS — длительность запуска в миллисекундах
	DurationMS int64 `json:"duration_ms"`
}

// CleanResult — результат удаления тестовых записей.
type CleanResult struct {
	// StagingDeleted — тестовых записей удалено из staging
	StagingDeleted int `json:"staging_deleted"`
	// ProcessingDeleted — тестовых записей удалено из processing
	ProcessingDeleted int `json:"processing_deleted"`
}
