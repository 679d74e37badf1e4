package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avolkhin/bitsync/internal/domain/model"
)

// pendingRecord — необработанная запись для тестов скачивания.
func pendingRecord(title, submittedAt string) model.ProcessingRecord {
	return model.ProcessingRecord{
		Category:     "фильмы",
		Title:        title,
		Subtitles:    `[{"file_token":"tok_sub","name":"субтитры.srt"}]`,
		Descriptions: `[{"file_token":"tok_desc","name":"описание.txt"}]`,
		SubmittedAt:  submittedAt,
	}
}

// newTestDownloadService собирает DownloadService с временным каталогом.
func newTestDownloadService(t *testing.T, client fileDownloader, processing *mockProcessingRepo) (*DownloadService, string) {
	t.Helper()

	root := t.TempDir()
	cache, err := NewBlobCache(16)
	if err != nil {
		t.Fatalf("Ошибка создания кэша: %v", err)
	}

	svc := NewDownloadService(client, processing, &mockSyncStateRepo{}, cache, root, 30*time.Second, slog.Default())
	return svc, root
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025/01/01 10:00:00", "2025_01_01_10_00_00"},
		{"2025-01-01 10:00:00", "2025-01-01_10_00_00"},
		{`a\b*c?d"e<f>g|h`, "a_b_c_d_e_f_g_h"},
		{"без_спецсимволов", "без_спецсимволов"},
	}

	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, хотели %q", tt.in, got, tt.want)
		}
	}
}

func TestDownloadService_Success(t *testing.T) {
	var marked []string

	processing := &mockProcessingRepo{
		listPendingFn: func(_ context.Context) ([]model.ProcessingRecord, error) {
			return []model.ProcessingRecord{pendingRecord("проект-1", "2025-01-01 10:00:00")}, nil
		},
		markDoneFn: func(_ context.Context, title, submittedAt string) (int64, error) {
			marked = append(marked, title+"|"+submittedAt)
			return 1, nil
		},
	}
	client := &mockBitableClient{
		downloadFileFn: func(_ context.Context, fileToken string) ([]byte, error) {
			return []byte("содержимое " + fileToken), nil
		},
	}

	svc, root := newTestDownloadService(t, client, processing)

	result, err := svc.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending вернул ошибку: %v", err)
	}

	if result.Total != 1 || result.Succeeded != 1 || result.Failed != 0 {
		t.Errorf("неожиданный результат: %+v", result)
	}
	if result.FilesDownloaded != 2 {
		t.Errorf("FilesDownloaded = %d, хотели 2", result.FilesDownloaded)
	}
	if len(marked) != 1 || marked[0] != "проект-1|2025-01-01 10:00:00" {
		t.Errorf("MarkDone: %v", marked)
	}

	// Каталог: название + время с заменёнными двоеточиями и пробелом
	dir := filepath.Join(root, "проект-1_2025-01-01_10_00_00")
	for _, name := range []string{"субтитры.srt", "описание.txt"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("файл %s не записан: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("файл %s пуст", name)
		}
	}
}

func TestDownloadService_PartialFailureKeepsPending(t *testing.T) {
	markDoneCalled := false

	processing := &mockProcessingRepo{
		listPendingFn: func(_ context.Context) ([]model.ProcessingRecord, error) {
			return []model.ProcessingRecord{pendingRecord("проект-1", "2025-01-01 10:00:00")}, nil
		},
		markDoneFn: func(_ context.Context, _, _ string) (int64, error) {
			markDoneCalled = true
			return 1, nil
		},
	}
	client := &mockBitableClient{
		downloadFileFn: func(_ context.Context, fileToken string) ([]byte, error) {
			if fileToken == "tok_desc" {
				return nil, fmt.Errorf("статус 403")
			}
			return []byte("данные"), nil
		},
	}

	svc, root := newTestDownloadService(t, client, processing)

	result, err := svc.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending вернул ошибку: %v", err)
	}

	if result.Failed != 1 || result.Succeeded != 0 {
		t.Errorf("неожиданный результат: %+v", result)
	}
	if markDoneCalled {
		t.Error("MarkDone вызван несмотря на неудачу файла")
	}

	// Успевший скачаться файл остаётся на диске
	dir := filepath.Join(root, "проект-1_2025-01-01_10_00_00")
	if _, err := os.Stat(filepath.Join(dir, "субтитры.srt")); err != nil {
		t.Errorf("частично скачанный файл удалён: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "описание.txt")); err == nil {
		t.Error("неудавшийся файл не должен существовать")
	}
}

func TestDownloadService_MalformedListSkipped(t *testing.T) {
	rec := pendingRecord("проект-1", "2025-01-01 10:00:00")
	// Список с одним битым элементом и одним корректным
	rec.Subtitles = `[{"name":"без токена"},{"file_token":"tok_ok","name":"годный.srt"}]`
	rec.Descriptions = `не json вовсе`

	var marked int
	processing := &mockProcessingRepo{
		listPendingFn: func(_ context.Context) ([]model.ProcessingRecord, error) {
			return []model.ProcessingRecord{rec}, nil
		},
		markDoneFn: func(_ context.Context, _, _ string) (int64, error) {
			marked++
			return 1, nil
		},
	}
	client := &mockBitableClient{
		downloadFileFn: func(_ context.Context, _ string) ([]byte, error) {
			return []byte("данные"), nil
		},
	}

	svc, _ := newTestDownloadService(t, client, processing)

	result, err := svc.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending вернул ошибку: %v", err)
	}

	// Битые элементы пропускаются, запись считается успешной
	if result.Succeeded != 1 {
		t.Errorf("Succeeded = %d, хотели 1", result.Succeeded)
	}
	if result.FilesDownloaded != 1 {
		t.Errorf("FilesDownloaded = %d, хотели 1", result.FilesDownloaded)
	}
	if marked != 1 {
		t.Errorf("MarkDone вызван %d раз, хотели 1", marked)
	}
}

func TestDownloadService_CacheSharedAcrossRecords(t *testing.T) {
	// Два проекта ссылаются на один и тот же file_token
	rec1 := pendingRecord("проект-1", "2025-01-01 10:00:00")
	rec2 := pendingRecord("проект-2", "2025-01-02 10:00:00")

	downloads := map[string]int{}
	processing := &mockProcessingRepo{
		listPendingFn: func(_ context.Context) ([]model.ProcessingRecord, error) {
			return []model.ProcessingRecord{rec1, rec2}, nil
		},
	}
	client := &mockBitableClient{
		downloadFileFn: func(_ context.Context, fileToken string) ([]byte, error) {
			downloads[fileToken]++
			return []byte("данные"), nil
		},
	}

	svc, _ := newTestDownloadService(t, client, processing)

	result, err := svc.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending вернул ошибку: %v", err)
	}
	if result.Succeeded != 2 {
		t.Fatalf("Succeeded = %d, хотели 2", result.Succeeded)
	}

	// Каждый токен скачан ровно один раз, вторая запись взяла из кэша
	for token, n := range downloads {
		if n != 1 {
			t.Errorf("токен %s скачан %d раз, хотели 1", token, n)
		}
	}
	if result.FilesDownloaded != 4 {
		t.Errorf("FilesDownloaded = %d, хотели 4 (файлы пишутся в оба каталога)", result.FilesDownloaded)
	}
}

func TestDownloadService_PerFileDeadline(t *testing.T) {
	processing := &mockProcessingRepo{
		listPendingFn: func(_ context.Context) ([]model.ProcessingRecord, error) {
			return []model.ProcessingRecord{pendingRecord("проект-1", "2025-01-01 10:00:00")}, nil
		},
	}
	// Каждый запрос скачивания должен приходить с собственным дедлайном
	client := &mockBitableClient{
		downloadFileFn: func(ctx context.Context, fileToken string) ([]byte, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Errorf("скачивание %s без дедлайна контекста", fileToken)
			}
			return []byte("данные"), nil
		},
	}

	svc, _ := newTestDownloadService(t, client, processing)

	if _, err := svc.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending вернул ошибку: %v", err)
	}
}

func TestDownloadService_MarkDoneErrorCountsFailed(t *testing.T) {
	processing := &mockProcessingRepo{
		listPendingFn: func(_ context.Context) ([]model.ProcessingRecord, error) {
			return []model.ProcessingRecord{pendingRecord("проект-1", "2025-01-01 10:00:00")}, nil
		},
		markDoneFn: func(_ context.Context, _, _ string) (int64, error) {
			return 0, fmt.Errorf("соединение потеряно")
		},
	}
	client := &mockBitableClient{
		downloadFileFn: func(_ context.Context, _ string) ([]byte, error) {
			return []byte("данные"), nil
		},
	}

	svc, _ := newTestDownloadService(t, client, processing)

	result, err := svc.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending вернул ошибку: %v", err)
	}
	if result.Failed != 1 || result.Succeeded != 0 {
		t.Errorf("неожиданный результат: %+v", result)
	}
}
