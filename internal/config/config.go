// Пакет config — загрузка и валидация конфигурации bitsync
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// FieldMapping — имена полей удалённой таблицы, из которых извлекаются
// данные записи. Настраиваются, потому что таблица ведётся вручную
// и имена колонок могут отличаться от установки к установке.
type FieldMapping struct {
	// Имя поля с названием проекта
	Title string
	// Имя поля с категорией
	Category string
	// Имя поля со списком файлов субтитров (JSON-список ссылок)
	Subtitles string
	// Имя поля со списком файлов описаний (JSON-список ссылок)
	Descriptions string
	// Имя поля со временем отправки формы
	SubmittedAt string
}

// Config содержит все параметры конфигурации bitsync.
type Config struct {
	// --- Логирование ---

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Удалённый API таблиц ---

	// Базовый URL API (например, https://open.feishu.cn)
	BitableBaseURL string
	// App ID приложения для обмена на tenant-токен
	AppID string
	// App Secret приложения
	AppSecret string
	// URL многомерной таблицы (содержит /base/<token> и ?table=<id>)
	BitableURL string
	// Размер страницы при постраничной загрузке записей
	PageSize int
	// Таймаут HTTP-запросов к API
	HTTPTimeout time.Duration
	// Таймаут скачивания одного файла
	DownloadTimeout time.Duration

	// --- Синхронизация ---

	// Максимум новых записей, переносимых в обработку за один запуск
	NewRecordsLimit int
	// Префикс названий тестовых записей (не удаляются при полном обновлении)
	TestTitlePrefix string

	// --- Скачивание файлов ---

	// Корневой каталог для скачанных файлов проектов
	SaveRoot string
	// Размер LRU-кэша скачанных файлов (записей)
	BlobCacheSize int

	// --- Маппинг полей таблицы ---

	Fields FieldMapping

	// --- Метрики ---

	// URL Pushgateway для отправки метрик после запуска (опционально)
	PushgatewayURL string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Логирование ---

	// BS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("BS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("BS_LOG_LEVEL: %w", err)
	}

	// BS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("BS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("BS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// BS_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("BS_DB_HOST")
	if err != nil {
		return nil, err
	}

	// BS_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("BS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("BS_DB_PORT: %w", err)
	}

	// BS_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("BS_DB_NAME")
	if err != nil {
		return nil, err
	}

	// BS_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("BS_DB_USER")
	if err != nil {
		return nil, err
	}

	// BS_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("BS_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// BS_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("BS_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("BS_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Удалённый API таблиц ---

	// BS_BITABLE_BASE_URL — базовый URL API (по умолчанию https://open.feishu.cn)
	cfg.BitableBaseURL = strings.TrimRight(getEnvDefault("BS_BITABLE_BASE_URL", "https://open.feishu.cn"), "/")

	// BS_APP_ID — обязательный
	cfg.AppID, err = getEnvRequired("BS_APP_ID")
	if err != nil {
		return nil, err
	}

	// BS_APP_SECRET — обязательный
	cfg.AppSecret, err = getEnvRequired("BS_APP_SECRET")
	if err != nil {
		return nil, err
	}

	// BS_BITABLE_URL — обязательный
	cfg.BitableURL, err = getEnvRequired("BS_BITABLE_URL")
	if err != nil {
		return nil, err
	}

	// BS_PAGE_SIZE — размер страницы (по умолчанию 500, максимум API)
	cfg.PageSize, err = getEnvInt("BS_PAGE_SIZE", 500)
	if err != nil {
		return nil, fmt.Errorf("BS_PAGE_SIZE: %w", err)
	}
	if cfg.PageSize < 1 || cfg.PageSize > 500 {
		return nil, fmt.Errorf("BS_PAGE_SIZE: значение %d вне диапазона 1-500", cfg.PageSize)
	}

	// BS_HTTP_TIMEOUT — таймаут запросов к API (по умолчанию 30s)
	cfg.HTTPTimeout, err = getEnvDuration("BS_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BS_HTTP_TIMEOUT: %w", err)
	}

	// BS_DOWNLOAD_TIMEOUT — таймаут скачивания файла (по умолчанию 30s)
	cfg.DownloadTimeout, err = getEnvDuration("BS_DOWNLOAD_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BS_DOWNLOAD_TIMEOUT: %w", err)
	}

	// --- Синхронизация ---

	// BS_NEW_RECORDS_LIMIT — лимит новых записей за запуск (по умолчанию 2).
	// Дросселирование объёма работы на один запуск cron.
	cfg.NewRecordsLimit, err = getEnvInt("BS_NEW_RECORDS_LIMIT", 2)
	if err != nil {
		return nil, fmt.Errorf("BS_NEW_RECORDS_LIMIT: %w", err)
	}
	if cfg.NewRecordsLimit < 1 {
		return nil, fmt.Errorf("BS_NEW_RECORDS_LIMIT: значение %d должно быть >= 1", cfg.NewRecordsLimit)
	}

	// BS_TEST_TITLE_PREFIX — префикс тестовых записей (по умолчанию "test_")
	cfg.TestTitlePrefix = getEnvDefault("BS_TEST_TITLE_PREFIX", "test_")

	// --- Скачивание файлов ---

	// BS_SAVE_ROOT — корневой каталог (по умолчанию /var/lib/bitsync/files)
	cfg.SaveRoot = getEnvDefault("BS_SAVE_ROOT", "/var/lib/bitsync/files")

	// BS_BLOB_CACHE_SIZE — размер кэша файлов (по умолчанию 128)
	cfg.BlobCacheSize, err = getEnvInt("BS_BLOB_CACHE_SIZE", 128)
	if err != nil {
		return nil, fmt.Errorf("BS_BLOB_CACHE_SIZE: %w", err)
	}
	if cfg.BlobCacheSize < 1 {
		return nil, fmt.Errorf("BS_BLOB_CACHE_SIZE: значение %d должно быть >= 1", cfg.BlobCacheSize)
	}

	// --- Маппинг полей таблицы ---

	cfg.Fields = FieldMapping{
		Title:        getEnvDefault("BS_FIELD_TITLE", "title"),
		Category:     getEnvDefault("BS_FIELD_CATEGORY", "category"),
		Subtitles:    getEnvDefault("BS_FIELD_SUBTITLES", "subtitles"),
		Descriptions: getEnvDefault("BS_FIELD_DESCRIPTIONS", "descriptions"),
		SubmittedAt:  getEnvDefault("BS_FIELD_SUBMITTED_AT", "submitted_at"),
	}

	// --- Метрики ---

	// BS_PUSHGATEWAY_URL — опциональный, пустая строка отключает push
	cfg.PushgatewayURL = getEnvDefault("BS_PUSHGATEWAY_URL", "")

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (формат Go: 30s, 15m, 1h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
