package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// minimalEnvs задаёт минимальный набор обязательных переменных окружения.
func minimalEnvs(t *testing.T) {
	t.Helper()
	t.Setenv("BS_DB_HOST", "localhost")
	t.Setenv("BS_DB_NAME", "bitsync")
	t.Setenv("BS_DB_USER", "bitsync")
	t.Setenv("BS_DB_PASSWORD", "secret")
	t.Setenv("BS_APP_ID", "cli_test_app")
	t.Setenv("BS_APP_SECRET", "app_secret")
	t.Setenv("BS_BITABLE_URL", "https://example.feishu.cn/base/appToken123?table=tblXYZ")
}

func TestLoadDefaults(t *testing.T) {
	minimalEnvs(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки конфигурации: %v", err)
	}

	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: хотели info, получили %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: хотели json, получили %q", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort: хотели 5432, получили %d", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode: хотели disable, получили %q", cfg.DBSSLMode)
	}
	if cfg.BitableBaseURL != "https://open.feishu.cn" {
		t.Errorf("BitableBaseURL: хотели https://open.feishu.cn, получили %q", cfg.BitableBaseURL)
	}
	if cfg.PageSize != 500 {
		t.Errorf("PageSize: хотели 500, получили %d", cfg.PageSize)
	}
	if cfg.NewRecordsLimit != 2 {
		t.Errorf("NewRecordsLimit: хотели 2, получили %d", cfg.NewRecordsLimit)
	}
	if cfg.TestTitlePrefix != "test_" {
		t.Errorf("TestTitlePrefix: хотели test_, получили %q", cfg.TestTitlePrefix)
	}
	if cfg.SaveRoot != "/var/lib/bitsync/files" {
		t.Errorf("SaveRoot: хотели /var/lib/bitsync/files, получили %q", cfg.SaveRoot)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout: хотели 30s, получили %v", cfg.HTTPTimeout)
	}
	if cfg.BlobCacheSize != 128 {
		t.Errorf("BlobCacheSize: хотели 128, получили %d", cfg.BlobCacheSize)
	}
	if cfg.Fields.Title != "title" || cfg.Fields.SubmittedAt != "submitted_at" {
		t.Errorf("Fields: неожиданный маппинг по умолчанию: %+v", cfg.Fields)
	}
	if cfg.PushgatewayURL != "" {
		t.Errorf("PushgatewayURL: хотели пустую строку, получили %q", cfg.PushgatewayURL)
	}
}

func TestLoadRequiredMissing(t *testing.T) {
	tests := []struct {
		name string
		skip string
	}{
		{"нет BS_DB_HOST", "BS_DB_HOST"},
		{"нет BS_DB_NAME", "BS_DB_NAME"},
		{"нет BS_DB_USER", "BS_DB_USER"},
		{"нет BS_DB_PASSWORD", "BS_DB_PASSWORD"},
		{"нет BS_APP_ID", "BS_APP_ID"},
		{"нет BS_APP_SECRET", "BS_APP_SECRET"},
		{"нет BS_BITABLE_URL", "BS_BITABLE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minimalEnvs(t)
			t.Setenv(tt.skip, "")

			_, err := Load()
			if err == nil {
				t.Fatalf("хотели ошибку при отсутствии %s, получили nil", tt.skip)
			}
			if !strings.Contains(err.Error(), tt.skip) {
				t.Errorf("ошибка не упоминает переменную %s: %v", tt.skip, err)
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	minimalEnvs(t)
	t.Setenv("BS_LOG_LEVEL", "debug")
	t.Setenv("BS_LOG_FORMAT", "text")
	t.Setenv("BS_DB_PORT", "15432")
	t.Setenv("BS_PAGE_SIZE", "100")
	t.Setenv("BS_NEW_RECORDS_LIMIT", "5")
	t.Setenv("BS_HTTP_TIMEOUT", "5s")
	t.Setenv("BS_FIELD_TITLE", "项目名称")
	t.Setenv("BS_BITABLE_BASE_URL", "https://open.larksuite.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки конфигурации: %v", err)
	}

	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel: хотели debug, получили %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat: хотели text, получили %q", cfg.LogFormat)
	}
	if cfg.DBPort != 15432 {
		t.Errorf("DBPort: хотели 15432, получили %d", cfg.DBPort)
	}
	if cfg.PageSize != 100 {
		t.Errorf("PageSize: хотели 100, получили %d", cfg.PageSize)
	}
	if cfg.NewRecordsLimit != 5 {
		t.Errorf("NewRecordsLimit: хотели 5, получили %d", cfg.NewRecordsLimit)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("HTTPTimeout: хотели 5s, получили %v", cfg.HTTPTimeout)
	}
	if cfg.Fields.Title != "项目名称" {
		t.Errorf("Fields.Title: хотели 项目名称, получили %q", cfg.Fields.Title)
	}
	// Завершающий слэш базового URL обрезается
	if cfg.BitableBaseURL != "https://open.larksuite.com" {
		t.Errorf("BitableBaseURL: хотели без завершающего слэша, получили %q", cfg.BitableBaseURL)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"неверный уровень логирования", "BS_LOG_LEVEL", "verbose"},
		{"неверный формат логов", "BS_LOG_FORMAT", "xml"},
		{"порт не число", "BS_DB_PORT", "abc"},
		{"неверный режим SSL", "BS_DB_SSL_MODE", "maybe"},
		{"размер страницы вне диапазона", "BS_PAGE_SIZE", "1000"},
		{"нулевой размер страницы", "BS_PAGE_SIZE", "0"},
		{"нулевой лимит новых записей", "BS_NEW_RECORDS_LIMIT", "0"},
		{"неверный таймаут", "BS_HTTP_TIMEOUT", "тридцать секунд"},
		{"нулевой размер кэша", "BS_BLOB_CACHE_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minimalEnvs(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("хотели ошибку для %s=%q, получили nil", tt.key, tt.value)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	minimalEnvs(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки конфигурации: %v", err)
	}

	dsn := cfg.DatabaseDSN()
	want := "host=localhost port=5432 dbname=bitsync user=bitsync password=secret sslmode=disable"
	if dsn != want {
		t.Errorf("DSN: хотели %q, получили %q", want, dsn)
	}
}
