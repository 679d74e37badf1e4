package service

import (
	"context"
	"time"

	"github.com/avolkhin/bitsync/internal/bitable"
	"github.com/avolkhin/bitsync/internal/domain/model"
	"github.com/avolkhin/bitsync/internal/repository"
)

// --- Моки репозиториев для unit-тестов ---

// mockStagingRepo — мок StagingRepository.
type mockStagingRepo struct {
	upsertFn         func(ctx context.Context, rec *model.StagingRecord) error
	deleteNonTestFn  func(ctx context.Context, testPrefix string) (int64, error)
	deleteTestDataFn func(ctx context.Context, testPrefix string) (int64, error)
	countFn          func(ctx context.Context) (int, error)
	selectNewFn      func(ctx context.Context, limit int) ([]model.StagingRecord, error)
	selectExistingFn func(ctx context.Context) ([]model.StagingRecord, error)
}

func (m *mockStagingRepo) Upsert(ctx context.Context, rec *model.StagingRecord) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, rec)
	}
	return nil
}

func (m *mockStagingRepo) DeleteNonTest(ctx context.Context, testPrefix string) (int64, error) {
	if m.deleteNonTestFn != nil {
		return m.deleteNonTestFn(ctx, testPrefix)
	}
	return 0, nil
}

func (m *mockStagingRepo) DeleteTestData(ctx context.Context, testPrefix string) (int64, error) {
	if m.deleteTestDataFn != nil {
		return m.deleteTestDataFn(ctx, testPrefix)
	}
	return 0, nil
}

func (m *mockStagingRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

func (m *mockStagingRepo) SelectNew(ctx context.Context, limit int) ([]model.StagingRecord, error) {
	if m.selectNewFn != nil {
		return m.selectNewFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockStagingRepo) SelectExisting(ctx context.Context) ([]model.StagingRecord, error) {
	if m.selectExistingFn != nil {
		return m.selectExistingFn(ctx)
	}
	return nil, nil
}

// mockProcessingRepo — мок ProcessingRepository.
type mockProcessingRepo struct {
	insertFn         func(ctx context.Context, rec *model.StagingRecord) error
	refreshFn        func(ctx context.Context, rec *model.StagingRecord) error
	listPendingFn    func(ctx context.Context) ([]model.ProcessingRecord, error)
	markDoneFn       func(ctx context.Context, title, submittedAt string) (int64, error)
	countFn          func(ctx context.Context) (int, error)
	deleteTestDataFn func(ctx context.Context, testPrefix string) (int64, error)
}

func (m *mockProcessingRepo) Insert(ctx context.Context, rec *model.StagingRecord) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, rec)
	}
	return nil
}

func (m *mockProcessingRepo) Refresh(ctx context.Context, rec *model.StagingRecord) error {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, rec)
	}
	return nil
}

func (m *mockProcessingRepo) ListPending(ctx context.Context) ([]model.ProcessingRecord, error) {
	if m.listPendingFn != nil {
		return m.listPendingFn(ctx)
	}
	return nil, nil
}

func (m *mockProcessingRepo) MarkDone(ctx context.Context, title, submittedAt string) (int64, error) {
	if m.markDoneFn != nil {
		return m.markDoneFn(ctx, title, submittedAt)
	}
	return 1, nil
}

func (m *mockProcessingRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

func (m *mockProcessingRepo) DeleteTestData(ctx context.Context, testPrefix string) (int64, error) {
	if m.deleteTestDataFn != nil {
		return m.deleteTestDataFn(ctx, testPrefix)
	}
	return 0, nil
}

// mockSyncStateRepo — мок SyncStateRepository.
type mockSyncStateRepo struct {
	getFn              func(ctx context.Context) (*model.SyncState, error)
	updateFetchAtFn    func(ctx context.Context, t time.Time) error
	updateSyncAtFn     func(ctx context.Context, t time.Time) error
	updateDownloadAtFn func(ctx context.Context, t time.Time) error
}

func (m *mockSyncStateRepo) Get(ctx context.Context) (*model.SyncState, error) {
	if m.getFn != nil {
		return m.getFn(ctx)
	}
	return nil, repository.ErrNotFound
}

func (m *mockSyncStateRepo) UpdateFetchAt(ctx context.Context, t time.Time) error {
	if m.updateFetchAtFn != nil {
		return m.updateFetchAtFn(ctx, t)
	}
	return nil
}

func (m *mockSyncStateRepo) UpdateSyncAt(ctx context.Context, t time.Time) error {
	if m.updateSyncAtFn != nil {
		return m.updateSyncAtFn(ctx, t)
	}
	return nil
}

func (m *mockSyncStateRepo) UpdateDownloadAt(ctx context.Context, t time.Time) error {
	if m.updateDownloadAtFn != nil {
		return m.updateDownloadAtFn(ctx, t)
	}
	return nil
}

// mockBitableClient — мок клиента API таблиц.
type mockBitableClient struct {
	listRecordsFn  func(ctx context.Context, appToken, tableID string, pageSize int) ([]bitable.Record, error)
	downloadFileFn func(ctx context.Context, fileToken string) ([]byte, error)
}

func (m *mockBitableClient) ListRecords(ctx context.Context, appToken, tableID string, pageSize int) ([]bitable.Record, error) {
	if m.listRecordsFn != nil {
		return m.listRecordsFn(ctx, appToken, tableID, pageSize)
	}
	return nil, nil
}

func (m *mockBitableClient) DownloadFile(ctx context.Context, fileToken string) ([]byte, error) {
	if m.downloadFileFn != nil {
		return m.downloadFileFn(ctx, fileToken)
	}
	return nil, nil
}
