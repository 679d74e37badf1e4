package repository

import (
	"context"
	"fmt"

	"github.com/avolkhin/bitsync/internal/domain/model"
)

// ProcessingRepository — интерфейс для таблицы processing_records.
type ProcessingRepository interface {
	// Insert добавляет новую запись с done = 0.
	// При нарушении уникальности (category, title) возвращает ErrConflict.
	Insert(ctx context.Context, rec *model.StagingRecord) error
	// Refresh обновляет payload-поля и submitted_at записи по (category, title)
	// и безусловно сбрасывает done в 0.
	Refresh(ctx context.Context, rec *model.StagingRecord) error
	// ListPending возвращает записи с done = 0.
	ListPending(ctx context.Context) ([]model.ProcessingRecord, error)
	// MarkDone выставляет done = 1 по паре (title, submitted_at).
	// Ключ уже, чем натуральный ключ таблицы: одинаковые title и submitted_at
	// в разных категориях помечаются одним вызовом. Возвращает количество
	// затронутых строк.
	MarkDone(ctx context.Context, title, submittedAt string) (int64, error)
	// Count возвращает количество записей в processing.
	Count(ctx context.Context) (int, error)
	// DeleteTestData удаляет тестовые записи (title с префиксом).
	DeleteTestData(ctx context.Context, testPrefix string) (int64, error)
}

// processingRepo — реализация ProcessingRepository.
type processingRepo struct {
	db DBTX
}

// NewProcessingRepository создаёт репозиторий таблицы обработки.
func NewProcessingRepository(db DBTX) ProcessingRepository {
	return &processingRepo{db: db}
}

func (r *processingRepo) Insert(ctx context.Context, rec *model.StagingRecord) error {
	query := `
		INSERT INTO processing_records (category, title, subtitles, descriptions, submitted_at, done)
		VALUES ($1, $2, $3, $4, $5, 0)`

	_, err := r.db.Exec(ctx, query,
		rec.Category, rec.Title, rec.Subtitles, rec.Descriptions, rec.SubmittedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: категория %q, название %q", ErrConflict, rec.Category, rec.Title)
		}
		return fmt.Errorf("ошибка вставки processing-записи: %w", err)
	}
	return nil
}

func (r *processingRepo) Refresh(ctx context.Context, rec *model.StagingRecord) error {
	query := `
		UPDATE processing_records SET
			subtitles    = $3,
			descriptions = $4,
			submitted_at = $5,
			done         = 0,
			updated_at   = NOW()
		WHERE category = $1 AND title = $2`

	_, err := r.db.Exec(ctx, query,
		rec.Category, rec.Title, rec.Subtitles, rec.Descriptions, rec.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления processing-записи: %w", err)
	}
	return nil
}

func (r *processingRepo) ListPending(ctx context.Context) ([]model.ProcessingRecord, error) {
	query := `
		SELECT category, title, subtitles, descriptions, submitted_at, done, created_at, updated_at
		FROM processing_records
		WHERE done = 0
		ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки необработанных записей: %w", err)
	}
	defer rows.Close()

	var records []model.ProcessingRecord
	for rows.Next() {
		var rec model.ProcessingRecord
		if err := rows.Scan(
			&rec.Category, &rec.Title, &rec.Subtitles, &rec.Descriptions,
			&rec.SubmittedAt, &rec.Done, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка чтения processing-записи: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода processing-записей: %w", err)
	}
	return records, nil
}

func (r *processingRepo) MarkDone(ctx context.Context, title, submittedAt string) (int64, error) {
	query := `
		UPDATE processing_records SET done = 1, updated_at = NOW()
		WHERE title = $1 AND submitted_at = $2`

	tag, err := r.db.Exec(ctx, query, title, submittedAt)
	if err != nil {
		return 0, fmt.Errorf("ошибка установки флага done: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *processingRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM processing_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта processing-записей: %w", err)
	}
	return count, nil
}

func (r *processingRepo) DeleteTestData(ctx context.Context, testPrefix string) (int64, error) {
	query := `DELETE FROM processing_records WHERE title LIKE $1 || '%'`

	tag, err := r.db.Exec(ctx, query, testPrefix)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления тестовых записей processing: %w", err)
	}
	return tag.RowsAffected(), nil
}
