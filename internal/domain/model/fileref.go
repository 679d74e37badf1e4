package model

import "encoding/json"

// FileReference — ссылка на файл во вложении записи удалённой таблицы.
// Поля subtitles/descriptions хранят JSON-списки таких объектов.
type FileReference struct {
	// FileToken — токен файла для скачивания через Drive API
	FileToken string `json:"file_token"`
	// Name — имя файла, под которым он сохраняется на диск
	Name string `json:"name"`
}

// ParseFileReferences разбирает JSON-список ссылок на файлы.
// Поле заполняется людьми через формы, поэтому разбор щадящий:
//   - пустая строка или некорректный JSON целиком -> пустой список;
//   - одиночный объект (не список) -> список из одного элемента;
//   - элементы без file_token или name пропускаются.
//
// Возвращает корректные ссылки и количество пропущенных элементов.
func ParseFileReferences(raw string) (refs []FileReference, skipped int) {
	if raw == "" {
		return nil, 0
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		// Не список: пробуем одиночный объект
		var single FileReference
		if err := json.Unmarshal([]byte(raw), &single); err != nil {
			return nil, 0
		}
		if single.FileToken == "" || single.Name == "" {
			return nil, 1
		}
		return []FileReference{single}, 0
	}

	for _, item := range items {
		var ref FileReference
		if err := json.Unmarshal(item, &ref); err != nil {
			skipped++
			continue
		}
		if ref.FileToken == "" || ref.Name == "" {
			skipped++
			continue
		}
		refs = append(refs, ref)
	}

	return refs, skipped
}
