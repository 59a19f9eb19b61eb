// Package source содержит источники текста экспорта чата.
package source

import (
	"bytes"
	"unicode/utf8"

	"chat-insights/internal/domain"
	"chat-insights/internal/ports"
)

var bom = []byte("\xef\xbb\xbf")

// ReadText получает данные из источника и проверяет, что это UTF-8.
// Метка порядка байтов в начале отбрасывается.
func ReadText(src ports.DataSource) (string, error) {
	data, err := src.Fetch()
	if err != nil {
		return "", err
	}
	return Decode(data)
}

// Decode проверяет кодировку и возвращает текст без метки порядка байтов.
func Decode(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, bom)
	if !utf8.Valid(data) {
		return "", &domain.ValidationError{Field: "file", Reason: "content is not valid UTF-8"}
	}
	return string(data), nil
}
