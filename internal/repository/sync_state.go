package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avolkhin/bitsync/internal/domain/model"
)

// SyncStateRepository — интерфейс для таблицы sync_state (одна строка).
type SyncStateRepository interface {
	// Get возвращает текущее состояние синхронизации.
	Get(ctx context.Context) (*model.SyncState, error)
	// UpdateFetchAt обновляет время последней выгрузки из удалённой таблицы.
	UpdateFetchAt(ctx context.Context, t time.Time) error
	// UpdateSyncAt обновляет время последней сверки.
	UpdateSyncAt(ctx context.Context, t time.Time) error
	// UpdateDownloadAt обновляет время последнего прохода скачивания.
	UpdateDownloadAt(ctx context.Context, t time.Time) error
}

// syncStateRepo — реализация SyncStateRepository.
type syncStateRepo struct {
	db DBTX
}

// NewSyncStateRepository создаёт репозиторий состояния синхронизации.
func NewSyncStateRepository(db DBTX) SyncStateRepository {
	return &syncStateRepo{db: db}
}

func (r *syncStateRepo) Get(ctx context.Context) (*model.SyncState, error) {
	query := `
		SELECT id, last_fetch_at, last_sync_at, last_download_at
		FROM sync_state
		WHERE id = 1`

	s := &model.SyncState{}
	err := r.db.QueryRow(ctx, query).Scan(
		&s.ID, &s.LastFetchAt, &s.LastSyncAt, &s.LastDownloadAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения sync_state: %w", err)
	}
	return s, nil
}

func (r *syncStateRepo) UpdateFetchAt(ctx context.Context, t time.Time) error {
	query := `UPDATE sync_state SET last_fetch_at = $1 WHERE id = 1`
	if _, err := r.db.Exec(ctx, query, t); err != nil {
		return fmt.Errorf("ошибка обновления last_fetch_at: %w", err)
	}
	return nil
}

func (r *syncStateRepo) UpdateSyncAt(ctx context.Context, t time.Time) error {
	query := `UPDATE sync_state SET last_sync_at = $1 WHERE id = 1`
	if _, err := r.db.Exec(ctx, query, t); err != nil {
		return fmt.Errorf("ошибка обновления last_sync_at: %w", err)
	}
	return nil
}

func (r *syncStateRepo) UpdateDownloadAt(ctx context.Context, t time.Time) error {
	query := `UPDATE sync_state SET last_download_at = $1 WHERE id = 1`
	if _, err := r.db.Exec(ctx, query, t); err != nil {
		return fmt.Errorf("ошибка обновления last_download_at: %w", err)
	}
	return nil
}
