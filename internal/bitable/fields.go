package bitable

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// StringifyField приводит значение поля записи к строке.
// Строки возвращаются как есть, nil — пустая строка,
// составные значения (списки вложений и т.п.) сериализуются в JSON.
func StringifyField(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

// FormatSubmitTime приводит значение поля времени к строке 'YYYY-MM-DD HH:MM:SS'.
// API отдаёт время как epoch-число: в миллисекундах (значения > 1e12)
// или секундах. Допускается и строка с числом. Неразбираемое значение
// даёт пустую строку.
func FormatSubmitTime(v any) string {
	var epoch float64

	switch val := v.(type) {
	case float64:
		epoch = val
	case int64:
		epoch = float64(val)
	case int:
		epoch = float64(val)
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return ""
		}
		epoch = f
	default:
		return ""
	}

	if epoch <= 0 {
		return ""
	}

	// Миллисекунды против секунд: epoch в секундах не превысит 1e12
	// до 33658 года
	sec := int64(epoch)
	if epoch > 1e12 {
		sec = int64(epoch / 1000)
	}

	return time.Unix(sec, 0).Format("2006-01-02 15:04:05")
}
