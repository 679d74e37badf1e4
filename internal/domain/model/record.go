// Пакет model — доменные модели bitsync.
package model

import "time"

// StagingRecord — запись таблицы приёмки (staging_records).
// Полный снимок строки удалённой таблицы после извлечения полей.
type StagingRecord struct {
	// Category — категория проекта
	Category string
	// Title — название проекта
	Title string
	// Subtitles — JSON-список ссылок на файлы субтитров
	Subtitles string
	// Descriptions — JSON-список ссылок на файлы описаний
	Descriptions string
	// SubmittedAt — время отправки формы, строка 'YYYY-MM-DD HH:MM:SS'
	SubmittedAt string
}

// ProcessingRecord — запись таблицы обработки (processing_records).
type ProcessingRecord struct {
	Category     string
	Title        string
	Subtitles    string
	Descriptions string
	SubmittedAt  string
	// Done — флаг завершения: 0 — файлы не скачаны, 1 — скачаны
	Done int
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// SyncState — состояние синхронизации (одна строка в БД, id = 1).
type SyncState struct {
	// ID — всегда 1
	ID int
	// LastFetchAt — время последней успешной выгрузки из удалённой таблицы
	LastFetchAt *time.Time
	// LastSyncAt — время последней сверки staging -> processing
	LastSyncAt *time.Time
	// LastDownloadAt — время последнего прохода скачивания файлов
	LastDownloadAt *time.Time
}
