// Пакет service — бизнес-логика bitsync: выгрузка удалённой таблицы,
// сверка staging -> processing и скачивание файлов.
package service

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша.
var (
	blobCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bitsync_blob_cache_hits_total",
		Help: "Общее количество попаданий в кэш скачанных файлов.",
	})
	blobCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bitsync_blob_cache_misses_total",
		Help: "Общее количество промахов кэша скачанных файлов.",
	})
)

// BlobCache — LRU-кэш содержимого скачанных файлов по file_token.
// Один и тот же файл нередко прикреплён к нескольким записям
// (общие шаблоны описаний): кэш позволяет скачать его один раз за проход.
type BlobCache struct {
	cache *lru.Cache[string, []byte]
}

// NewBlobCache создаёт LRU-кэш на maxSize записей.
func NewBlobCache(maxSize int) (*BlobCache, error) {
	cache, err := lru.New[string, []byte](maxSize)
	if err != nil {
		return nil, err
	}
	return &BlobCache{cache: cache}, nil
}

// Get возвращает содержимое файла из кэша по file_token.
// Обновляет Prometheus-метрики hit/miss.
func (c *BlobCache) Get(fileToken string) ([]byte, bool) {
	val, ok := c.cache.Get(fileToken)
	if ok {
		blobCacheHitsTotal.Inc()
		return val, true
	}
	blobCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет содержимое файла в кэш.
func (c *BlobCache) Set(fileToken string, data []byte) {
	c.cache.Add(fileToken, data)
}
