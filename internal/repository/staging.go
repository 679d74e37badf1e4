package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avolkhin/bitsync/internal/domain/model"
)

// StagingRepository — интерфейс для таблицы staging_records.
type StagingRepository interface {
	// Upsert вставляет запись или обновляет существующую по (category, title).
	Upsert(ctx context.Context, rec *model.StagingRecord) error
	// DeleteNonTest удаляет все записи, кроме тестовых (title с префиксом).
	// Возвращает количество удалённых строк.
	DeleteNonTest(ctx context.Context, testPrefix string) (int64, error)
	// DeleteTestData удаляет тестовые записи (title с префиксом).
	DeleteTestData(ctx context.Context, testPrefix string) (int64, error)
	// Count возвращает количество записей в staging.
	Count(ctx context.Context) (int, error)
	// SelectNew возвращает записи staging, отсутствующие в processing
	// по паре (category, title). Записи с пустыми (после TRIM) subtitles
	// или descriptions отфильтровываются: скачивать по ним нечего.
	// Сортировка по submitted_at по убыванию, не более limit записей.
	SelectNew(ctx context.Context, limit int) ([]model.StagingRecord, error)
	// SelectExisting возвращает записи staging, уже присутствующие
	// в processing по паре (category, title), с тем же фильтром пустых
	// payload-полей. Сортировка по submitted_at по убыванию,
	// без ограничения количества.
	SelectExisting(ctx context.Context) ([]model.StagingRecord, error)
}

// stagingRepo — реализация StagingRepository.
type stagingRepo struct {
	db DBTX
}

// NewStagingRepository создаёт репозиторий таблицы приёмки.
func NewStagingRepository(db DBTX) StagingRepository {
	return &stagingRepo{db: db}
}

func (r *stagingRepo) Upsert(ctx context.Context, rec *model.StagingRecord) error {
	query := `
		INSERT INTO staging_records (category, title, subtitles, descriptions, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (category, title) DO UPDATE SET
			subtitles    = EXCLUDED.subtitles,
			descriptions = EXCLUDED.descriptions,
			submitted_at = EXCLUDED.submitted_at,
			updated_at   = NOW()`

	_, err := r.db.Exec(ctx, query,
		rec.Category, rec.Title, rec.Subtitles, rec.Descriptions, rec.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка upsert staging-записи: %w", err)
	}
	return nil
}

func (r *stagingRepo) DeleteNonTest(ctx context.Context, testPrefix string) (int64, error) {
	query := `DELETE FROM staging_records WHERE title NOT LIKE $1 || '%'`

	tag, err := r.db.Exec(ctx, query, testPrefix)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки staging: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *stagingRepo) DeleteTestData(ctx context.Context, testPrefix string) (int64, error) {
	query := `DELETE FROM staging_records WHERE title LIKE $1 || '%'`

	tag, err := r.db.Exec(ctx, query, testPrefix)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления тестовых записей staging: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *stagingRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM staging_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта staging-записей: %w", err)
	}
	return count, nil
}

func (r *stagingRepo) SelectNew(ctx context.Context, limit int) ([]model.StagingRecord, error) {
	query := `
		SELECT s.category, s.title, s.subtitles, s.descriptions, s.submitted_at
		FROM staging_records s
		LEFT JOIN processing_records p
			ON p.category = s.category AND p.title = s.title
		WHERE p.id IS NULL
			AND TRIM(s.subtitles) <> ''
			AND TRIM(s.descriptions) <> ''
		ORDER BY s.submitted_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки новых записей: %w", err)
	}
	defer rows.Close()

	return scanStagingRecords(rows)
}

func (r *stagingRepo) SelectExisting(ctx context.Context) ([]model.StagingRecord, error) {
	query := `
		SELECT s.category, s.title, s.subtitles, s.descriptions, s.submitted_at
		FROM staging_records s
		INNER JOIN processing_records p
			ON p.category = s.category AND p.title = s.title
		WHERE TRIM(s.subtitles) <> ''
			AND TRIM(s.descriptions) <> ''
		ORDER BY s.submitted_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки существующих записей: %w", err)
	}
	defer rows.Close()

	return scanStagingRecords(rows)
}

// scanStagingRecords читает строки выборки в слайс моделей.
func scanStagingRecords(rows pgx.Rows) ([]model.StagingRecord, error) {
	var records []model.StagingRecord
	for rows.Next() {
		var rec model.StagingRecord
		if err := rows.Scan(&rec.Category, &rec.Title, &rec.Subtitles, &rec.Descriptions, &rec.SubmittedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения staging-записи: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода staging-записей: %w", err)
	}
	return records, nil
}
