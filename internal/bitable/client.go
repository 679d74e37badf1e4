// Пакет bitable — HTTP-клиент к API многомерных таблиц (Feishu/Lark Bitable).
// Реализует обмен app credentials на tenant-токен с кэшированием,
// постраничную выгрузку записей таблицы и скачивание файлов из Drive API.
package bitable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Ошибки клиента.
var (
	// ErrAuth — не удалось получить tenant-токен
	ErrAuth = errors.New("ошибка аутентификации в API таблиц")
	// ErrBadURL — URL таблицы не содержит app token или table id
	ErrBadURL = errors.New("некорректный URL многомерной таблицы")
)

// bitableURLRe извлекает app token из пути URL таблицы.
var bitableURLRe = regexp.MustCompile(`/base/([a-zA-Z0-9]+)`)

// ParseBitableURL извлекает app token и table id из URL многомерной таблицы.
// Ожидаемый вид: https://xxx.feishu.cn/base/<appToken>?table=<tableID>&view=…
func ParseBitableURL(raw string) (appToken, tableID string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrBadURL, err)
	}

	m := bitableURLRe.FindStringSubmatch(u.Path)
	if m == nil {
		return "", "", fmt.Errorf("%w: путь %q не содержит /base/<token>", ErrBadURL, u.Path)
	}
	appToken = m[1]

	tableID = u.Query().Get("table")
	if tableID == "" {
		return "", "", fmt.Errorf("%w: отсутствует параметр table", ErrBadURL)
	}

	return appToken, tableID, nil
}

// Record — запись удалённой таблицы.
type Record struct {
	// RecordID — идентификатор записи в таблице
	RecordID string `json:"record_id"`
	// Fields — значения полей записи, типы зависят от типа колонки
	Fields map[string]any `json:"fields"`
}

// Client — HTTP-клиент к API многомерных таблиц.
type Client struct {
	baseURL   string // Базовый URL API (без trailing slash)
	appID     string // App ID для обмена на tenant-токен
	appSecret string // App Secret

	httpClient *http.Client
	logger     *slog.Logger

	// Кэш tenant-токена
	mu          sync.Mutex
	tenantToken string
	tokenExpiry time.Time
}

// New создаёт клиент к API многомерных таблиц.
// baseURL — базовый URL API (например, https://open.feishu.cn).
// appID, appSecret — credentials приложения.
// httpClient — HTTP-клиент (может содержать таймауты и TLS конфигурацию).
func New(baseURL, appID, appSecret string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appID:      appID,
		appSecret:  appSecret,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "bitable_client")),
	}
}

// --- Аутентификация ---

// tokenResponse — ответ endpoint'а получения tenant-токена.
type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

// getToken возвращает актуальный tenant-токен, обновляя при необходимости.
// Токен обновляется за 30 секунд до истечения.
func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Проверяем кэш: если токен валиден ещё 30 секунд — используем его
	if c.tenantToken != "" && time.Now().Add(30*time.Second).Before(c.tokenExpiry) {
		return c.tenantToken, nil
	}

	token, err := c.requestToken(ctx)
	if err != nil {
		return "", err
	}

	c.tenantToken = token.TenantAccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.Expire) * time.Second)

	c.logger.Debug("Tenant-токен обновлён",
		slog.Time("expires_at", c.tokenExpiry),
	)

	return c.tenantToken, nil
}

// requestToken обменивает app credentials на tenant-токен.
func (c *Client) requestToken(ctx context.Context) (*tokenResponse, error) {
	body, err := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("сериализация запроса токена: %w", err)
	}

	reqURL := c.baseURL + "/open-apis/auth/v3/tenant_access_token/internal"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("создание запроса токена: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: статус %d: %s", ErrAuth, resp.StatusCode, string(respBody))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("%w: декодирование ответа: %v", ErrAuth, err)
	}

	// API возвращает 200 и при логической ошибке, признак успеха — code == 0
	if token.Code != 0 {
		return nil, fmt.Errorf("%w: code %d: %s", ErrAuth, token.Code, token.Msg)
	}

	return &token, nil
}

// --- Records API ---

// recordsResponse — страница ответа records API.
type recordsResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		HasMore   bool     `json:"has_more"`
		PageToken string   `json:"page_token"`
		Total     int      `json:"total"`
		Items     []Record `json:"items"`
	} `json:"data"`
}

// ListRecords выгружает все записи таблицы постранично.
// При ошибке на очередной странице возвращает уже накопленные записи
// вместе с ошибкой — вызывающий решает, использовать ли частичный результат.
func (c *Client) ListRecords(ctx context.Context, appToken, tableID string, pageSize int) ([]Record, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	var records []Record
	pageToken := ""
	page := 0

	for {
		page++
		items, nextToken, hasMore, err := c.listPage(ctx, token, appToken, tableID, pageSize, pageToken)
		if err != nil {
			return records, fmt.Errorf("страница %d: %w", page, err)
		}

		records = append(records, items...)

		c.logger.Debug("Страница записей получена",
			slog.Int("page", page),
			slog.Int("items", len(items)),
			slog.Bool("has_more", hasMore),
		)

		if !hasMore {
			break
		}
		pageToken = nextToken
	}

	return records, nil
}

// listPage выгружает одну страницу записей.
func (c *Client) listPage(ctx context.Context, token, appToken, tableID string, pageSize int, pageToken string) ([]Record, string, bool, error) {
	reqURL := fmt.Sprintf("%s/open-apis/bitable/v1/apps/%s/tables/%s/records?page_size=%d",
		c.baseURL, appToken, tableID, pageSize)
	if pageToken != "" {
		reqURL += "&page_token=" + url.QueryEscape(pageToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", false, fmt.Errorf("создание запроса записей: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", false, fmt.Errorf("запрос записей: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, "", false, fmt.Errorf("records API вернул статус %d: %s", resp.StatusCode, string(respBody))
	}

	var page recordsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, "", false, fmt.Errorf("декодирование страницы записей: %w", err)
	}

	if page.Code != 0 {
		return nil, "", false, fmt.Errorf("records API вернул code %d: %s", page.Code, page.Msg)
	}

	return page.Data.Items, page.Data.PageToken, page.Data.HasMore, nil
}

// --- Drive API ---

// DownloadFile скачивает содержимое файла по его токену.
// Без повторных попыток: неудача отдельного файла обрабатывается выше.
func (c *Client) DownloadFile(ctx context.Context, fileToken string) ([]byte, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/open-apis/drive/v1/medias/%s/download", c.baseURL, url.PathEscape(fileToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса скачивания: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("скачивание файла %s: %w", fileToken, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("drive API вернул статус %d для файла %s: %s",
			resp.StatusCode, fileToken, string(respBody))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение содержимого файла %s: %w", fileToken, err)
	}

	return data, nil
}
